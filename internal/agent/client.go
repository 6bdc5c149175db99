package agent

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/snapetech/halberd/internal/clue"
)

// Client dispatches scans to a fixed set of agent addresses, bounding how
// many simultaneous connections it holds open to any one agent.
type Client struct {
	dialSem *hostSemaphore
}

// NewClient returns a Client that allows at most perAgentConcurrency
// simultaneous in-flight requests to any single agent address.
func NewClient(perAgentConcurrency int) *Client {
	return &Client{dialSem: newHostSemaphore(perAgentConcurrency)}
}

// Dispatch runs one scan on the agent at addr and returns its clues with
// Local timestamps corrected for the clock skew between this coordinator
// and that agent: clue.local -= (agent_send_utc - coord_recv_utc).
func (c *Client) Dispatch(ctx context.Context, addr string, target string, scanTime time.Duration, parallelism int) ([]clue.Clue, error) {
	release := c.dialSem.acquire(addr)
	defer release()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("agent client: dial %s: %w", addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(scanTime + 15*time.Second)
	conn.SetDeadline(deadline)

	req := Request{ID: uuid.NewString(), Target: target, ScanTime: scanTime, Parallelism: parallelism}
	if err := writeMessage(conn, req); err != nil {
		return nil, fmt.Errorf("agent client: %s: %w", addr, err)
	}

	var resp Response
	if err := readMessage(conn, &resp); err != nil {
		return nil, fmt.Errorf("agent client: %s: %w", addr, err)
	}
	coordRecv := time.Now().UTC()

	skew := resp.AgentUTC.Sub(coordRecv)
	clues := make([]clue.Clue, len(resp.Clues))
	for i, cl := range resp.Clues {
		cl.Local = cl.Local.Add(-skew)
		cl.Diff = cl.Local.Unix() - cl.Remote.Unix()
		clues[i] = cl
	}
	return clues, nil
}

// DispatchAll fans a scan out to every agent address concurrently and
// returns the concatenation of every agent's (skew-corrected) clues. An
// agent that errors is logged by the caller via the returned per-agent
// error slice; it does not fail the whole dispatch.
func (c *Client) DispatchAll(ctx context.Context, addrs []string, target string, scanTime time.Duration, parallelism int) ([]clue.Clue, []error) {
	type result struct {
		clues []clue.Clue
		err   error
	}
	results := make(chan result, len(addrs))
	for _, addr := range addrs {
		addr := addr
		go func() {
			clues, err := c.Dispatch(ctx, addr, target, scanTime, parallelism)
			results <- result{clues: clues, err: err}
		}()
	}

	var allClues []clue.Clue
	var errs []error
	for range addrs {
		r := <-results
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		allClues = append(allClues, r.clues...)
	}
	return allClues, errs
}
