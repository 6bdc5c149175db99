// Command halberd scans one or more HTTP(S) targets for load-balanced
// back-ends by correlating clock skew and header fingerprints across many
// probes.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/snapetech/halberd/internal/agent"
	"github.com/snapetech/halberd/internal/analysis"
	"github.com/snapetech/halberd/internal/clue"
	"github.com/snapetech/halberd/internal/cluefile"
	"github.com/snapetech/halberd/internal/config"
	"github.com/snapetech/halberd/internal/metrics"
	"github.com/snapetech/halberd/internal/preflight"
	"github.com/snapetech/halberd/internal/scanengine"
	"github.com/snapetech/halberd/internal/scanstore"
)

func main() {
	cfg := config.Load()

	target := flag.String("url", "", "target URL to scan")
	targetsFile := flag.String("targets", "", "file of newline-separated target URLs to scan in sequence")
	scanTime := flag.Duration("scantime", cfg.ScanTime, "duration of the scan")
	parallelism := flag.Int("parallel", cfg.Parallelism, "concurrent probes per target")
	agentsFlag := flag.String("agents", strings.Join(cfg.Agents, ","), "comma-separated agent addresses to dispatch to")
	savePath := flag.String("save", "", "save raw clues to this file")
	storePath := flag.String("history", "", "sqlite file to record scan history to")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "address to serve /metrics on (blank disables)")
	flag.Parse()

	metrics.Serve(*metricsAddr)

	var targets []string
	if *target != "" {
		targets = append(targets, *target)
	}
	if *targetsFile != "" {
		lines, err := readTargetsFile(*targetsFile)
		if err != nil {
			log.Fatalf("halberd: %v", err)
		}
		targets = append(targets, lines...)
	}
	if len(targets) == 0 {
		fmt.Fprintln(os.Stderr, "usage: halberd -url <target> [flags]")
		os.Exit(2)
	}

	var agents []string
	if *agentsFlag != "" {
		agents = strings.Split(*agentsFlag, ",")
	}

	var store *scanstore.Store
	if *storePath != "" {
		s, err := scanstore.Open(*storePath)
		if err != nil {
			log.Fatalf("halberd: history store: %v", err)
		}
		defer s.Close()
		store = s
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	params := analysis.Params{
		MaxDelta:        cfg.ProxyMaxDelta,
		ClusterStep:     cfg.ClusterStep,
		ReanalysisRatio: cfg.ReanalysisRatio,
	}

	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			break
		}
		runOne(ctx, t, *scanTime, *parallelism, agents, params, *savePath, store)
	}
}

func runOne(ctx context.Context, target string, scanTime time.Duration, parallelism int, agents []string, params analysis.Params, savePath string, store *scanstore.Store) {
	log.Printf("halberd: preflight %s", target)
	if err := preflight.Check(ctx, target, 5*time.Second); err != nil {
		log.Printf("halberd: %s: %v", target, err)
		return
	}

	started := time.Now()
	raw, err := scanengine.Scan(ctx, scanengine.Task{
		Target:      target,
		ScanTime:    scanTime,
		Parallelism: parallelism,
		StatusFunc: func(s scanengine.Status) {
			log.Printf("halberd: %s: %d probes, %d clues, %s elapsed", target, s.Probes, s.Clues, s.Elapsed.Round(time.Second))
		},
	})
	if err != nil {
		log.Printf("halberd: %s: %v", target, err)
		return
	}
	metrics.CluesTotal.Add(float64(len(raw)))

	if len(agents) > 0 {
		client := agent.NewClient(2)
		agentClues, errs := client.DispatchAll(ctx, agents, target, scanTime, parallelism)
		for _, e := range errs {
			log.Printf("halberd: agent dispatch: %v", e)
		}
		raw = append(raw, agentClues...)
	}

	duration := time.Since(started)
	metrics.ScanDuration.Observe(duration.Seconds())

	result := analysis.Analyze(raw, params)
	metrics.BackendsDetected.Observe(float64(len(result)))

	report(target, raw, result)

	if savePath != "" {
		if err := cluefile.Save(savePath, raw); err != nil {
			log.Printf("halberd: save clue file: %v", err)
		}
	}
	if store != nil {
		if _, err := store.Record(target, started, duration, raw, result); err != nil {
			log.Printf("halberd: record history: %v", err)
		}
	}
}

func report(target string, raw, result []clue.Clue) {
	fmt.Printf("%s: %d raw clues, %d distinct back-end(s)\n", target, len(raw), len(result))
	for i, c := range result {
		fmt.Printf("  [%d] digest=%s diff=%ds count=%d server=%q\n", i, c.Digest[:12], c.Diff, c.Count, c.Info.Server)
	}
}

func readTargetsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var targets []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	return targets, sc.Err()
}
