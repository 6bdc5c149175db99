package analysis

import (
	"github.com/snapetech/halberd/internal/clue"
	"github.com/snapetech/halberd/internal/fingerprint"
)

// Reanalyze finds the header names responsible for digest poisoning via
// pairwise sequence-diff, extends the fingerprinter's ignore set with any
// such name that has no dedicated handler, reparses every raw clue against
// the extended table, and re-runs the primary pipeline.
//
// The ignore set is passed explicitly into fingerprint.Fingerprint on every
// call rather than mutating global state, so concurrent scans of different
// targets never interfere with each other's ignore sets.
func Reanalyze(raw []clue.Clue, params Params) ([]clue.Clue, bool) {
	ignored := diffFieldNames(raw)
	if len(ignored) == 0 {
		return nil, false
	}

	reparsed := make([]clue.Clue, 0, len(raw))
	for _, c := range raw {
		rc, err := clue.Parse(c.Local, c.Headers, ignored)
		if err != nil {
			continue
		}
		rc.Count = c.Count
		reparsed = append(reparsed, rc)
	}
	return primaryPipeline(reparsed, params), true
}

// diffFieldNames runs a pairwise sequence-match diff between every ordered
// pair of raw clues' header lists and collects the normalized names that
// appear in any non-equal edit, excluding names the fingerprinter already
// has a dedicated handler for (those can't be "ignored" any further — Date
// already never contributes, Set-Cookie already never contributes, etc).
func diffFieldNames(raw []clue.Clue) map[string]bool {
	changed := map[string]bool{}
	for i := range raw {
		for j := range raw {
			if i == j {
				continue
			}
			for _, name := range diffNames(raw[i].Headers, raw[j].Headers) {
				changed[name] = true
			}
		}
	}

	ignored := map[string]bool{}
	for name := range changed {
		if hasDedicatedHandler(name) {
			continue
		}
		ignored[name] = true
	}
	return ignored
}

// recognized fields the fingerprinter already handles; reanalysis must not
// "ignore" these since that would change the semantics of a field that
// already has defined behavior (e.g. Date already never contributes).
var recognizedHandlers = map[string]bool{
	"date":            true,
	"server":          true,
	"contentlocation": true,
	"setcookie":       true,
	"expires":         true,
	"age":             true,
	"contentlength":   true,
	"lastmodified":    true,
	"etag":            true,
	"cacheexpires":    true,
}

func hasDedicatedHandler(normalizedName string) bool {
	return recognizedHandlers[normalizedName]
}

// diffNames runs an LCS-based sequence diff (equivalent to the non-equal
// opcodes of Python's difflib.SequenceMatcher) between two ordered header
// lists and returns the normalized names of fields that are not part of the
// longest common subsequence — i.e. fields that were inserted, deleted, or
// whose value changed between the two clues.
func diffNames(a, b []fingerprint.Field) []string {
	matchedA, matchedB := lcsMatch(a, b)

	seen := map[string]bool{}
	var names []string
	add := func(name string) {
		norm := fingerprint.Normalize(name)
		if norm != "" && !seen[norm] {
			seen[norm] = true
			names = append(names, norm)
		}
	}
	for i, m := range matchedA {
		if !m {
			add(a[i].Name)
		}
	}
	for i, m := range matchedB {
		if !m {
			add(b[i].Name)
		}
	}
	return names
}

// lcsMatch returns, for each index of a and b, whether that element
// participates in a longest common subsequence of (a, b) under full field
// equality (name and value both equal).
func lcsMatch(a, b []fingerprint.Field) (matchedA, matchedB []bool) {
	n, m := len(a), len(b)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}

	matchedA = make([]bool, n)
	matchedB = make([]bool, m)
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			matchedA[i] = true
			matchedB[j] = true
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			i++
		default:
			j++
		}
	}
	return matchedA, matchedB
}
