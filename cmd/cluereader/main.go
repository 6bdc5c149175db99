// Command cluereader loads a clue file saved by a previous halberd scan and
// re-runs the analysis pipeline against it, so the clustering parameters
// can be tuned without re-probing the target.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/snapetech/halberd/internal/analysis"
	"github.com/snapetech/halberd/internal/clue"
	"github.com/snapetech/halberd/internal/cluefile"
)

func main() {
	path := flag.String("file", "", "clue file to load")
	maxDelta := flag.Int("maxdelta", analysis.DefaultParams.MaxDelta, "proxy-filter max diff gap")
	clusterStep := flag.Int("step", analysis.DefaultParams.ClusterStep, "cluster max diff spread")
	ratio := flag.Float64("ratio", analysis.DefaultParams.ReanalysisRatio, "reanalysis trigger ratio")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: cluereader -file <clues.csv> [flags]")
		os.Exit(2)
	}

	raw, err := cluefile.Load(*path)
	if err != nil {
		log.Fatalf("cluereader: %v", err)
	}

	params := analysis.Params{MaxDelta: *maxDelta, ClusterStep: *clusterStep, ReanalysisRatio: *ratio}
	result := analysis.Analyze(raw, params)

	fmt.Printf("%s: %d raw clues, %d distinct back-end(s)\n", *path, clue.TotalCount(raw), len(result))
	for i, c := range result {
		fmt.Printf("  [%d] digest=%s diff=%ds count=%d server=%q\n", i, c.Digest[:12], c.Diff, c.Count, c.Info.Server)
	}
}
