package translation

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bisub/internal/language"
)

const defaultBaiduEndpoint = "https://fanyi-api.baidu.com/api/trans/vip/translate"

// BaiduTransport calls the signed Baidu-style translation API. A batch is
// sent as one newline-joined query; the endpoint answers with one
// src/dst pair per line.
type BaiduTransport struct {
	endpoint   string
	appID      string
	appKey     string
	httpClient *http.Client
	salt       func() string
}

// NewBaiduTransport constructs a transport. A nil httpClient uses a client
// with a 30 second timeout; per-call deadlines come from the context.
func NewBaiduTransport(endpoint, appID, appKey string, httpClient *http.Client) *BaiduTransport {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = defaultBaiduEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &BaiduTransport{
		endpoint:   endpoint,
		appID:      strings.TrimSpace(appID),
		appKey:     strings.TrimSpace(appKey),
		httpClient: httpClient,
		salt: func() string {
			return strconv.FormatInt(rand.Int64N(1<<31), 10)
		},
	}
}

type baiduResponse struct {
	From        string `json:"from"`
	To          string `json:"to"`
	ErrorCode   string `json:"error_code"`
	ErrorMsg    string `json:"error_msg"`
	TransResult []struct {
		Src string `json:"src"`
		Dst string `json:"dst"`
	} `json:"trans_result"`
}

// Sign computes md5(appid + query + salt + key) as lowercase hex.
func Sign(appID, query, salt, key string) string {
	sum := md5.Sum([]byte(appID + query + salt + key))
	return hex.EncodeToString(sum[:])
}

// Translate implements Transport.
func (t *BaiduTransport) Translate(ctx context.Context, req Request) ([]string, error) {
	if t.appID == "" || t.appKey == "" {
		return nil, &APIError{Code: "52003", Message: "translation credentials not configured"}
	}
	if len(req.Texts) == 0 {
		return nil, nil
	}
	query := strings.Join(req.Texts, "\n")
	salt := t.salt()
	source := language.APICode(req.Source)
	if source == "" {
		source = language.Auto
	}
	form := url.Values{}
	form.Set("q", query)
	form.Set("from", source)
	form.Set("to", language.APICode(req.Target))
	form.Set("appid", t.appID)
	form.Set("salt", salt)
	form.Set("sign", Sign(t.appID, query, salt, t.appKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("translation request: new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("translation request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("translation request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &APIError{HTTPStatus: resp.StatusCode, Message: string(body)}
	}

	var decoded baiduResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("translation request: decode response: %w", err)
	}
	if decoded.ErrorCode != "" && decoded.ErrorCode != "52000" {
		return nil, &APIError{Code: decoded.ErrorCode, Message: decoded.ErrorMsg, HTTPStatus: resp.StatusCode}
	}
	if len(decoded.TransResult) != len(req.Texts) {
		return nil, &APIError{Code: "mismatch", Message: fmt.Sprintf("sent %d lines, received %d", len(req.Texts), len(decoded.TransResult))}
	}
	out := make([]string, len(decoded.TransResult))
	for i, r := range decoded.TransResult {
		out[i] = r.Dst
	}
	return out, nil
}
