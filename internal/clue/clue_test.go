package clue

import (
	"testing"
	"time"

	"github.com/snapetech/halberd/internal/fingerprint"
)

func TestParse_DiffComputation(t *testing.T) {
	local := time.Date(2004, 2, 24, 17, 9, 8, 0, time.UTC)
	headers := []fingerprint.Field{
		{Name: "Server", Value: "Apache"},
		{Name: "Date", Value: "Tue, 24 Feb 2004 17:09:05 GMT"},
	}
	c, err := Parse(local, headers, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Diff != 3 {
		t.Fatalf("diff = %d, want 3", c.Diff)
	}
	if c.Count != 1 {
		t.Fatalf("count = %d, want 1", c.Count)
	}
}

func TestEqual_DigestAndDiffOnly(t *testing.T) {
	a := Clue{Digest: "x", Diff: 1}
	b := Clue{Digest: "x", Diff: 1, Count: 99}
	if !Equal(a, b) {
		t.Fatal("expected equal clues")
	}
	c := Clue{Digest: "x", Diff: 2}
	if Equal(a, c) {
		t.Fatal("expected unequal clues (different diff)")
	}
	d := Clue{Digest: "y", Diff: 1}
	if Equal(a, d) {
		t.Fatal("expected unequal clues (different digest)")
	}
}

func TestMerge_SumsCount(t *testing.T) {
	a := Clue{Count: 2}
	b := Clue{Count: 3}
	m := Merge(a, b)
	if m.Count != 5 {
		t.Fatalf("count = %d, want 5", m.Count)
	}
}

func TestTotalCount(t *testing.T) {
	clues := []Clue{{Count: 1}, {Count: 4}, {Count: 2}}
	if got := TotalCount(clues); got != 7 {
		t.Fatalf("TotalCount = %d, want 7", got)
	}
}
