package agent

import (
	"net/url"
	"sync"
)

// hostSemaphore is a per-agent-host concurrency limiter shared by the
// distributed client across every scan it dispatches, so fanning a scan out
// to N agents never opens more than the configured number of simultaneous
// connections to any one agent.
type hostSemaphore struct {
	mu    sync.Mutex
	sems  map[string]chan struct{}
	limit int
}

func newHostSemaphore(concurrency int) *hostSemaphore {
	if concurrency < 1 {
		concurrency = 1
	}
	return &hostSemaphore{
		sems:  make(map[string]chan struct{}),
		limit: concurrency,
	}
}

// acquire blocks until a slot is available for host and returns a release func.
func (h *hostSemaphore) acquire(host string) func() {
	sem := h.semFor(host)
	sem <- struct{}{}
	return func() { <-sem }
}

func (h *hostSemaphore) semFor(host string) chan struct{} {
	if u, err := url.Parse(host); err == nil && u.Host != "" {
		host = u.Host
	}
	h.mu.Lock()
	s, ok := h.sems[host]
	if !ok {
		s = make(chan struct{}, h.limit)
		h.sems[host] = s
	}
	h.mu.Unlock()
	return s
}
