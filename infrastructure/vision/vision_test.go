package vision

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPAnalyzerParsesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"item_count": 42, "confidence": 88}`))
	}))
	t.Cleanup(srv.Close)

	a := NewHTTPAnalyzer(srv.URL)
	res, err := a.Analyze(context.Background(), []string{"photo-1.jpg"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.ItemCount != 42 || res.Confidence != 88 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestHTTPAnalyzerRejectsOutOfRangeConfidence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"item_count": 1, "confidence": 250}`))
	}))
	t.Cleanup(srv.Close)

	a := NewHTTPAnalyzer(srv.URL)
	if _, err := a.Analyze(context.Background(), nil); err == nil {
		t.Fatalf("expected error for confidence 250")
	}
}

func TestHTTPAnalyzerSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	a := NewHTTPAnalyzer(srv.URL)
	if _, err := a.Analyze(context.Background(), nil); err == nil {
		t.Fatalf("expected error for 502 response")
	}
}

func TestDisabledAnalyzer(t *testing.T) {
	if _, err := (Disabled{}).Analyze(context.Background(), nil); err == nil {
		t.Fatalf("expected error from disabled analyzer")
	}
}
