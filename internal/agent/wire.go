package agent

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/snapetech/halberd/internal/clue"
)

// Request is what a coordinator sends an agent: target plus the scan
// parameters to run locally. ID correlates a request with its response in
// logs spanning multiple agents.
type Request struct {
	ID          string
	Target      string
	ScanTime    time.Duration
	Parallelism int
}

// Response is what an agent sends back. AgentUTC is read immediately before
// the response is written, so the coordinator can correct for clock skew
// between itself and the agent (distinct from the skew each Clue already
// encodes against its target).
type Response struct {
	ID       string
	AgentUTC time.Time
	Clues    []clue.Clue
}

// writeMessage brotli-compresses the gob encoding of v and writes it to w,
// length-prefixed so the reader knows exactly how many compressed bytes to
// pull off the wire.
func writeMessage(w io.Writer, v any) error {
	var plain bytes.Buffer
	if err := gob.NewEncoder(&plain).Encode(v); err != nil {
		return fmt.Errorf("agent: encode: %w", err)
	}

	var compressed bytes.Buffer
	bw := brotli.NewWriter(&compressed)
	if _, err := bw.Write(plain.Bytes()); err != nil {
		return fmt.Errorf("agent: compress: %w", err)
	}
	if err := bw.Close(); err != nil {
		return fmt.Errorf("agent: compress: %w", err)
	}

	length := uint32(compressed.Len())
	header := []byte{byte(length >> 24), byte(length >> 16), byte(length >> 8), byte(length)}
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("agent: write length: %w", err)
	}
	if _, err := w.Write(compressed.Bytes()); err != nil {
		return fmt.Errorf("agent: write body: %w", err)
	}
	return nil
}

func readMessage(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return fmt.Errorf("agent: read length: %w", err)
	}
	length := uint32(header[0])<<24 | uint32(header[1])<<16 | uint32(header[2])<<8 | uint32(header[3])

	compressed := make([]byte, length)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return fmt.Errorf("agent: read body: %w", err)
	}

	br := brotli.NewReader(bytes.NewReader(compressed))
	if err := gob.NewDecoder(br).Decode(v); err != nil {
		return fmt.Errorf("agent: decode: %w", err)
	}
	return nil
}
