package testutil

import (
	"net/http"
	"testing"
)

func TestAssertStatusCode(t *testing.T) {
	t.Parallel()

	fakeT := &testing.T{}
	AssertStatusCode(fakeT, http.StatusOK, http.StatusOK)
	if fakeT.Failed() {
		t.Error("expected no failure for matching status codes")
	}
}

func TestNewRequest(t *testing.T) {
	t.Parallel()

	req := NewRequest(http.MethodPost, "/api/scan", `{"x":1}`)
	if req.RemoteAddr != LoopbackAddr {
		t.Errorf("RemoteAddr = %q, want %q", req.RemoteAddr, LoopbackAddr)
	}
	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}

	get := NewRequest(http.MethodGet, "/api/scan", "")
	if got := get.Header.Get("Content-Type"); got != "" {
		t.Errorf("Content-Type = %q, want empty", got)
	}
}

func TestServeAndDecode(t *testing.T) {
	t.Parallel()

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"name":"oval","pieces":7}`))
	})
	rec := Serve(h, NewRequest(http.MethodGet, "/", ""))
	AssertStatusCode(t, rec.Code, http.StatusTeapot)

	got := DecodeJSON[map[string]any](t, rec)
	if got["name"] != "oval" || got["pieces"] != float64(7) {
		t.Errorf("decoded = %v", got)
	}
}
