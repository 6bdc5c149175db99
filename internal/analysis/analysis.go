// Package analysis implements the clue analysis pipeline: de-duplication,
// proxy-artifact stripping, per-digest clustering, and the auto-correction
// reanalysis pass that recovers when volatile headers poison the digest.
package analysis

import (
	"sort"

	"github.com/snapetech/halberd/internal/clue"
)

// Params controls the thresholds the pipeline uses; all have sensible
// defaults (see DefaultParams) but are exposed so cmd/ can wire them to CLI
// flags or internal/config.
type Params struct {
	MaxDelta        int     // proxy-filter: max diff gap within one run (default 3)
	ClusterStep     int     // cluster: max diff spread within one cluster (default 3)
	ReanalysisRatio float64 // trigger: len(result)/len(raw) >= ratio (default 0.6)
}

// DefaultParams matches Halberd's historical default thresholds.
var DefaultParams = Params{MaxDelta: 3, ClusterStep: 3, ReanalysisRatio: 0.6}

// Analyze reduces a raw clue multiset to one clue per inferred back-end,
// running the primary pipeline and then reanalysis if the primary pipeline's
// result looks poisoned by volatile headers.
func Analyze(raw []clue.Clue, params Params) []clue.Clue {
	if len(raw) == 0 {
		return nil
	}
	primary := primaryPipeline(raw, params)
	if shouldReanalyze(len(raw), len(primary), params.ReanalysisRatio) {
		if reanalyzed, ok := Reanalyze(raw, params); ok {
			return reanalyzed
		}
	}
	return primary
}

func shouldReanalyze(rawLen, resultLen int, ratio float64) bool {
	if rawLen == 0 {
		return false
	}
	return float64(resultLen)/float64(rawLen) >= ratio
}

// primaryPipeline runs uniq -> filterProxies -> clusterPerDigest in order.
func primaryPipeline(raw []clue.Clue, params Params) []clue.Clue {
	u := uniq(raw)
	p := filterProxies(u, params.MaxDelta)
	return clusterPerDigest(p, params.ClusterStep)
}

// uniq groups by (digest, diff) and merges each group's Count.
func uniq(clues []clue.Clue) []clue.Clue {
	type key struct {
		digest string
		diff   int64
	}
	index := map[key]int{}
	var out []clue.Clue
	for _, c := range clues {
		k := key{c.Digest, c.Diff}
		if i, ok := index[k]; ok {
			out[i] = clue.Merge(out[i], c)
			continue
		}
		index[k] = len(out)
		out = append(out, c)
	}
	return out
}

// filterProxies groups by (remote, digest); within a group, sorts by diff
// and splits into contiguous runs at any gap > maxDelta, merging each run
// into a single clue. This collapses the spread of local arrival times that
// a shared upstream cache produces around one pinned remote Date.
func filterProxies(clues []clue.Clue, maxDelta int) []clue.Clue {
	type key struct {
		remote int64
		digest string
	}
	groups := map[key][]clue.Clue{}
	var order []key
	for _, c := range clues {
		k := key{c.Remote.Unix(), c.Digest}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], c)
	}

	var out []clue.Clue
	for _, k := range order {
		group := groups[k]
		sort.Slice(group, func(i, j int) bool { return group[i].Diff < group[j].Diff })
		runStart := 0
		for i := 1; i <= len(group); i++ {
			if i == len(group) || group[i].Diff-group[i-1].Diff > int64(maxDelta) {
				out = append(out, mergeRun(group[runStart:i]))
				runStart = i
			}
		}
	}
	return out
}

// clusterPerDigest groups by digest; within each group, sorts by diff and
// greedily forms clusters of up to ClusterStep consecutive clues whose diff
// range is <= ClusterStep, preferring the largest satisfying cluster size at
// each position.
func clusterPerDigest(clues []clue.Clue, step int) []clue.Clue {
	groups := map[string][]clue.Clue{}
	var order []string
	for _, c := range clues {
		if _, ok := groups[c.Digest]; !ok {
			order = append(order, c.Digest)
		}
		groups[c.Digest] = append(groups[c.Digest], c)
	}

	var out []clue.Clue
	for _, digest := range order {
		group := groups[digest]
		sort.Slice(group, func(i, j int) bool { return group[i].Diff < group[j].Diff })
		i := 0
		for i < len(group) {
			size := clusterSizeAt(group, i, step)
			out = append(out, mergeRun(group[i:i+size]))
			i += size
		}
	}
	return out
}

// clusterSizeAt tries sizes from min(remaining, step) down to 1 and returns
// the largest that keeps max(diff)-min(diff) <= step. A cluster holds at
// most step adjacent clues, never more, even if their diffs are all equal.
func clusterSizeAt(sorted []clue.Clue, start, step int) int {
	remaining := len(sorted) - start
	maxTry := step
	if remaining < maxTry {
		maxTry = remaining
	}
	for size := maxTry; size >= 1; size-- {
		spread := sorted[start+size-1].Diff - sorted[start].Diff
		if spread <= int64(step) {
			return size
		}
	}
	return 1
}

func mergeRun(run []clue.Clue) clue.Clue {
	merged := run[0]
	for _, c := range run[1:] {
		merged = clue.Merge(merged, c)
	}
	return merged
}
