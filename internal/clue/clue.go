// Package clue implements the clue data model: one observation of an HTTP
// reply, fingerprinted and timestamped, plus the clock-skew arithmetic used
// to tell back-end servers apart.
package clue

import (
	"time"

	"github.com/snapetech/halberd/internal/fingerprint"
)

// Clue is one observation of one HTTP reply from the target. It is
// immutable after Parse except for Count, which only increases (via Merge),
// and except for a deliberate reparse during reanalysis.
type Clue struct {
	Count   int
	Local   time.Time
	Remote  time.Time
	Diff    int64 // trunc(Local) - trunc(Remote), seconds
	Digest  string
	Info    fingerprint.Info
	Headers []fingerprint.Field
}

// Parse builds a Clue from the timestamp captured at first-byte-arrival and
// the raw header fields of one probe reply. ignored extends the fingerprint
// handler table for reanalysis; pass nil for the default table.
func Parse(local time.Time, headers []fingerprint.Field, ignored map[string]bool) (Clue, error) {
	res, err := fingerprint.Fingerprint(headers, ignored)
	if err != nil {
		return Clue{}, err
	}
	c := Clue{
		Count:   1,
		Local:   local,
		Remote:  res.Remote,
		Digest:  res.Digest,
		Info:    res.Info,
		Headers: headers,
	}
	c.Diff = truncUnix(c.Local) - truncUnix(c.Remote)
	return c, nil
}

func truncUnix(t time.Time) int64 {
	return t.Unix()
}

// Equal reports whether two clues represent the same inferred back-end:
// identical digest and identical clock-skew delta.
func Equal(a, b Clue) bool {
	return a.Diff == b.Diff && a.Digest == b.Digest
}

// Merge combines b into a, summing Count. a and b must be Equal by the
// caller's convention, but Merge does not enforce it — callers merge
// deliberately dissimilar clues too (e.g. the proxy filter's runs and the
// per-digest clustering step).
func Merge(a, b Clue) Clue {
	a.Count += b.Count
	return a
}

// TotalCount sums Count across a slice of clues; used to check the
// monotonicity invariant across an analysis pass.
func TotalCount(clues []Clue) int {
	var n int
	for _, c := range clues {
		n += c.Count
	}
	return n
}
