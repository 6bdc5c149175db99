// Command halberd-agent runs the distributed scan listener: it accepts one
// scan request at a time from a coordinator and replies with the raw clues
// it collected plus its own clock reading for skew correction.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/snapetech/halberd/internal/agent"
	"github.com/snapetech/halberd/internal/config"
	"github.com/snapetech/halberd/internal/metrics"
)

func main() {
	cfg := config.Load()

	addr := flag.String("addr", ":2323", "address to listen on")
	rps := flag.Float64("rate-limit", cfg.AgentRateLimitRPS, "max accepted connections per second")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "address to serve /metrics on (blank disables)")
	flag.Parse()

	metrics.Serve(*metricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := agent.ListenAndServe(ctx, *addr, *rps); err != nil && ctx.Err() == nil {
		log.Fatalf("halberd-agent: %v", err)
	}
}
