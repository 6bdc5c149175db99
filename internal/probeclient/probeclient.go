// Package probeclient sends a single raw HEAD request to a target and
// captures the arrival timestamp and header block needed to build a clue.
// It intentionally bypasses net/http: halberd needs the connection
// established and the bytes on the wire, not a parsed response, and it
// needs the local clock read at a precise point in the exchange.
package probeclient

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/snapetech/halberd/internal/fingerprint"
	"github.com/snapetech/halberd/internal/safeurl"
)

// Sentinel errors, classified per the error handling design: callers use
// errors.Is to decide whether a failure is worth retrying or reporting.
var (
	ErrInvalidURL      = errors.New("probeclient: invalid URL")
	ErrUnknownProtocol = errors.New("probeclient: unsupported scheme")
	ErrConnectFailed   = errors.New("probeclient: connection failed")
	ErrTimedOut        = errors.New("probeclient: timed out waiting for reply")
	ErrUnknownReply    = errors.New("probeclient: reply did not start with HTTP/")
)

const requestTemplate = "HEAD %s HTTP/1.0\r\n" +
	"Host: %s\r\n" +
	"User-Agent: Mozilla/5.0 (compatible; halberd)\r\n" +
	"Accept: */*\r\n" +
	"Accept-Encoding: identity\r\n" +
	"Accept-Language: en\r\n" +
	"Accept-Charset: iso-8859-1,*,utf-8\r\n" +
	"Pragma: no-cache\r\n" +
	"Cache-control: no-cache\r\n" +
	"Connection: Keep-Alive\r\n\r\n"

// Result is one raw probe outcome: the local clock reading taken when the
// first byte of the reply arrives, and the header fields parsed from the
// reply's status-line-to-blank-line block.
type Result struct {
	Local  time.Time
	Fields []fingerprint.Field
}

// Probe opens a connection to target, sends a HEAD request, and returns the
// timestamp/header pair a clue is built from. ctx's deadline bounds the
// entire exchange: dial, write, and read-until-terminator.
func Probe(ctx context.Context, target string) (Result, error) {
	if !safeurl.IsHTTPOrHTTPS(target) {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownProtocol, target)
	}
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidURL, target)
	}

	host := u.Host
	if u.Port() == "" {
		if u.Scheme == "https" {
			host = net.JoinHostPort(u.Hostname(), "443")
		} else {
			host = net.JoinHostPort(u.Hostname(), "80")
		}
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	defer conn.Close()

	if u.Scheme == "https" {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: u.Hostname()})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			return Result{}, fmt.Errorf("%w: tls handshake: %v", ErrConnectFailed, err)
		}
		conn = tlsConn
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	req := fmt.Sprintf(requestTemplate, path, u.Host)
	if _, err := conn.Write([]byte(req)); err != nil {
		return Result{}, fmt.Errorf("%w: write: %v", ErrConnectFailed, err)
	}

	raw, local, err := readUntilTerminator(conn)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return Result{}, fmt.Errorf("%w: %v", ErrTimedOut, err)
		}
		return Result{}, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	if !strings.HasPrefix(raw, "HTTP/") {
		return Result{}, ErrUnknownReply
	}

	return Result{Local: local, Fields: parseFields(raw)}, nil
}

// firstByteClock wraps a net.Conn and records the instant its first Read
// call returns, so the caller can timestamp the reply's arrival rather than
// the moment the request was sent — the clock-skew arithmetic in
// internal/clue needs the former, not request→first-byte latency.
type firstByteClock struct {
	net.Conn
	once sync.Once
	at   time.Time
}

func (c *firstByteClock) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	c.once.Do(func() { c.at = time.Now().UTC() })
	return n, err
}

// readUntilTerminator reads from conn until it has seen the blank line that
// terminates an HTTP header block, returning everything read so far and the
// timestamp of the first byte received.
func readUntilTerminator(conn net.Conn) (string, time.Time, error) {
	clocked := &firstByteClock{Conn: conn}
	r := bufio.NewReader(clocked)
	var buf strings.Builder
	for {
		line, err := r.ReadString('\n')
		buf.WriteString(line)
		if err != nil {
			return buf.String(), clocked.at, err
		}
		if strings.TrimRight(line, "\r\n") == "" && buf.Len() > 2 {
			return buf.String(), clocked.at, nil
		}
	}
}

// parseFields splits the status-line-to-blank-line block into header
// fields, dropping the status line itself and any line that doesn't look
// like a well-formed header per fingerprint.ValidField.
func parseFields(raw string) []fingerprint.Field {
	lines := strings.Split(raw, "\n")
	var fields []fingerprint.Field
	for i, line := range lines {
		if i == 0 {
			continue // status line
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if !fingerprint.ValidField(name, value) {
			continue
		}
		fields = append(fields, fingerprint.Field{Name: name, Value: value})
	}
	return fields
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
