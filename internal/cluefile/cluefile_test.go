package cluefile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/snapetech/halberd/internal/clue"
	"github.com/snapetech/halberd/internal/fingerprint"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	local := time.Date(2024, 1, 1, 12, 0, 3, 0, time.UTC)
	c, err := clue.Parse(local, []fingerprint.Field{
		{Name: "Date", Value: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC).Format(time.RFC1123)},
		{Name: "Server", Value: "nginx"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	c.Count = 7

	path := filepath.Join(t.TempDir(), "clues.csv")
	if err := Save(path, []clue.Clue{c}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("len = %d, want 1", len(loaded))
	}
	if loaded[0].Count != 7 {
		t.Errorf("Count = %d, want 7", loaded[0].Count)
	}
	if loaded[0].Digest != c.Digest {
		t.Errorf("Digest = %q, want %q", loaded[0].Digest, c.Digest)
	}
	if loaded[0].Diff != c.Diff {
		t.Errorf("Diff = %d, want %d", loaded[0].Diff, c.Diff)
	}
}

func TestLoad_RejectsNegativeCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte(`-1,123.0,"[{""Name"":""Server"",""Value"":""x""}]"`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for negative count")
	}
}

func TestLoad_RejectsEmptyHeaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte(`1,123.0,"[]"`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty headers")
	}
}

func TestLoad_RejectsMalformedHeaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte(`1,123.0,not-json`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed headers json")
	}
}
