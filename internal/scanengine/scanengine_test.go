package scanengine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/snapetech/halberd/internal/probeclient"
)

func TestScan_CollectsClues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "nginx")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var statuses int
	clues, err := Scan(context.Background(), Task{
		Target:      srv.URL,
		ScanTime:    300 * time.Millisecond,
		Parallelism: 3,
		StatusFunc:  func(Status) { statuses++ },
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(clues) == 0 {
		t.Fatal("expected at least one clue")
	}
}

// A connection refused on the very first probe is fatal: every worker would
// hit the same wall, so the scan must abort as soon as one of them sees it
// rather than spinning for the rest of ScanTime.
func TestScan_AbortsPromptlyOnConnectionRefused(t *testing.T) {
	start := time.Now()
	_, err := Scan(context.Background(), Task{
		Target:      "http://127.0.0.1:1",
		ScanTime:    10 * time.Second,
		Parallelism: 2,
	})
	elapsed := time.Since(start)
	if err == nil {
		t.Fatal("expected a fatal error")
	}
	if !errors.Is(err, probeclient.ErrConnectFailed) {
		t.Errorf("err = %v, want wrapping probeclient.ErrConnectFailed", err)
	}
	if elapsed >= 2*time.Second {
		t.Errorf("Scan took %v, want well under the 10s ScanTime budget", elapsed)
	}
}

func TestScan_RespectsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Scan(ctx, Task{Target: srv.URL, ScanTime: 5 * time.Second, Parallelism: 2})
	if err == nil {
		t.Fatal("expected error when context already cancelled")
	}
}
