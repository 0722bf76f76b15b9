package stage

import "testing"

func TestHealthConstructors(t *testing.T) {
	if h := Healthy("extracting"); !h.Ready || h.Name != "extracting" || h.Detail != "" {
		t.Fatalf("unexpected healthy record %+v", h)
	}
	if h := Unhealthy("muxing", "ffmpeg missing"); h.Ready || h.Detail != "ffmpeg missing" {
		t.Fatalf("unexpected unhealthy record %+v", h)
	}
}
