package translation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBaiduTransportSignsAndSplitsLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		q := r.PostForm.Get("q")
		want := Sign("app", q, r.PostForm.Get("salt"), "secret")
		if r.PostForm.Get("sign") != want {
			t.Errorf("bad sign %q, want %q", r.PostForm.Get("sign"), want)
		}
		if r.PostForm.Get("from") != "en" || r.PostForm.Get("to") != "zh" {
			t.Errorf("unexpected language pair %q -> %q", r.PostForm.Get("from"), r.PostForm.Get("to"))
		}
		lines := strings.Split(q, "\n")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"from":"en","to":"zh","trans_result":[{"src":"` + lines[0] + `","dst":"你好"},{"src":"` + lines[1] + `","dst":"谢谢"}]}`))
	}))
	defer srv.Close()

	transport := NewBaiduTransport(srv.URL, "app", "secret", srv.Client())
	got, err := transport.Translate(context.Background(), Request{Source: "en", Target: "zh", Texts: []string{"Hello", "Thanks"}})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(got) != 2 || got[0] != "你好" || got[1] != "谢谢" {
		t.Fatalf("unexpected translations %v", got)
	}
}

func TestBaiduTransportMapsErrors(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		transient bool
	}{
		{"rate limited", http.StatusOK, `{"error_code":"54003","error_msg":"Invalid Access Limit"}`, true},
		{"bad sign", http.StatusOK, `{"error_code":"54001","error_msg":"Invalid Sign"}`, false},
		{"server error", http.StatusBadGateway, `oops`, true},
		{"line mismatch", http.StatusOK, `{"trans_result":[{"src":"a","dst":"b"}]}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			transport := NewBaiduTransport(srv.URL, "app", "secret", srv.Client())
			_, err := transport.Translate(context.Background(), Request{Target: "zh", Texts: []string{"a", "b"}})
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if IsTransient(err) != tc.transient {
				t.Fatalf("IsTransient = %v, want %v", IsTransient(err), tc.transient)
			}
		})
	}
}

func TestBaiduTransportRequiresCredentials(t *testing.T) {
	transport := NewBaiduTransport("", "", "", nil)
	_, err := transport.Translate(context.Background(), Request{Target: "zh", Texts: []string{"a"}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Transient() {
		t.Fatalf("expected permanent credentials error, got %v", err)
	}
}

func TestSignMatchesKnownVector(t *testing.T) {
	// md5("2015063000000001apple143566028812345678")
	if got := Sign("2015063000000001", "apple", "1435660288", "12345678"); got != "f89f9594663708c1605f3d736d01d2d4" {
		t.Fatalf("unexpected sign %s", got)
	}
}
