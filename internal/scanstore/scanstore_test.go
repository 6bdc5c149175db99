package scanstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/snapetech/halberd/internal/clue"
)

func TestRecordAndHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scans.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	raw := []clue.Clue{{Count: 1}, {Count: 1}}
	result := []clue.Clue{{Count: 2}}
	started := time.Now().UTC()

	id, err := store.Record("http://example.com", started, 5*time.Second, raw, result)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty id")
	}

	history, err := store.History("http://example.com", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("len = %d, want 1", len(history))
	}
	if history[0].ID != id || history[0].RawClues != 2 || history[0].Backends != 1 {
		t.Errorf("run = %+v", history[0])
	}
}

func TestHistory_EmptyForUnknownTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scans.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	history, err := store.History("http://nothing.example", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("len = %d, want 0", len(history))
	}
}
