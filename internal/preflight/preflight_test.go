package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCheck_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	if err := Check(context.Background(), srv.URL, time.Second); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestCheck_BadStatusStillReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	if err := Check(context.Background(), srv.URL, time.Second); err != nil {
		t.Fatalf("Check: %v, want nil (5xx still proves reachability)", err)
	}
}

func TestCheck_BadScheme(t *testing.T) {
	if err := Check(context.Background(), "ftp://example.com", time.Second); err == nil {
		t.Fatal("expected error for ftp:// scheme")
	}
}

func TestCheck_Unreachable(t *testing.T) {
	err := Check(context.Background(), "http://127.0.0.1:1", 200*time.Millisecond)
	if err == nil {
		t.Fatal("expected error for unreachable target")
	}
}
