// Package agent implements halberd's distributed layer: a coordinator can
// dispatch the same scan to a fleet of agents running behind different
// network vantage points and merge their clues, correcting for clock skew
// between each agent and the coordinator.
package agent

import (
	"context"
	"log"
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/snapetech/halberd/internal/scanengine"
)

// ListenAndServe runs on an agent host, binding addr and serially accepting
// one connection at a time: each request runs to completion (scan included)
// before the next is accepted. It never spawns worker goroutines per
// connection the way a typical net/http server would — the scan engine
// itself already saturates the agent's outbound concurrency, and the
// agent's signal handling lives on the main goroutine, so interleaving two
// scans under one process would fight over both.
// running each request to completion (scan included) before accepting the
// next. ctx cancellation closes the listener and returns.
func ListenAndServe(ctx context.Context, addr string, rps float64) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	limiters := map[string]*rate.Limiter{}
	log.Printf("agent: listening on %s", addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		remote := conn.RemoteAddr().String()
		if host, _, splitErr := net.SplitHostPort(remote); splitErr == nil {
			remote = host
		}
		limiter, ok := limiters[remote]
		if !ok {
			limiter = rate.NewLimiter(rate.Limit(rps), 1)
			limiters[remote] = limiter
		}
		if err := limiter.Wait(ctx); err != nil {
			conn.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		handleConn(ctx, conn)
	}
}

func handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	var req Request
	if err := readMessage(conn, &req); err != nil {
		log.Printf("agent: read request: %v", err)
		return
	}

	scanCtx, cancel := context.WithTimeout(ctx, req.ScanTime+10*time.Second)
	defer cancel()

	clues, err := scanengine.Scan(scanCtx, scanengine.Task{
		Target:      req.Target,
		ScanTime:    req.ScanTime,
		Parallelism: req.Parallelism,
	})
	if err != nil {
		log.Printf("agent: scan %s: %v", req.ID, err)
		clues = nil
	}

	conn.SetDeadline(time.Now().Add(10 * time.Second))
	resp := Response{ID: req.ID, AgentUTC: time.Now().UTC(), Clues: clues}
	if err := writeMessage(conn, resp); err != nil {
		log.Printf("agent: write response: %v", err)
	}
}
