// Package preflight runs a cheap reachability check against a scan target
// before committing a full scan to it, so a typo'd or dead URL fails fast
// with a clear error instead of burning the scan's wall-clock budget on
// probe timeouts.
package preflight

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/snapetech/halberd/internal/safeurl"
)

// ErrUnsupportedScheme is returned when the target is not http or https.
var ErrUnsupportedScheme = fmt.Errorf("preflight: unsupported URL scheme")

// Check confirms target parses as an http(s) URL and that something answers
// on it within timeout. It does not validate status code: a 404 or 500 still
// proves a back-end is alive and worth fingerprinting.
func Check(ctx context.Context, target string, timeout time.Duration) error {
	if !safeurl.IsHTTPOrHTTPS(target) {
		return fmt.Errorf("%w: %s", ErrUnsupportedScheme, target)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return fmt.Errorf("preflight: %w", err)
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("preflight: target unreachable: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}
