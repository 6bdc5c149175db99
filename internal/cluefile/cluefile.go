// Package cluefile persists raw clues to and from a CSV file, so a scan can
// be run once and reanalyzed or merged with another run's file later
// without re-probing the target.
package cluefile

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/snapetech/halberd/internal/clue"
	"github.com/snapetech/halberd/internal/fingerprint"
)

// ErrInvalidFile is wrapped by every parse failure Load returns, so callers
// can distinguish "not a clue file" from an I/O error.
var ErrInvalidFile = errors.New("cluefile: invalid clue file")

// Save writes clues to filename as CSV: one row per clue, columns
// count, local_unix_seconds, headers-as-json.
func Save(filename string, clues []clue.Clue) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, c := range clues {
		headersJSON, err := json.Marshal(c.Headers)
		if err != nil {
			return fmt.Errorf("cluefile: encode headers: %w", err)
		}
		row := []string{
			strconv.Itoa(c.Count),
			strconv.FormatFloat(float64(c.Local.UnixNano())/1e9, 'f', -1, 64),
			string(headersJSON),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Load reads a clue file previously written by Save and reparses every row
// into a Clue (recomputing digest and diff from the stored headers, rather
// than trusting stored derived fields).
func Load(filename string) ([]clue.Clue, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 3

	var clues []clue.Clue
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
		}

		count, err := strconv.Atoi(row[0])
		if err != nil || count < 0 {
			return nil, fmt.Errorf("%w: invalid count %q", ErrInvalidFile, row[0])
		}
		localSecs, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid local_time %q", ErrInvalidFile, row[1])
		}

		var headers []fingerprint.Field
		if err := json.Unmarshal([]byte(row[2]), &headers); err != nil {
			return nil, fmt.Errorf("%w: invalid headers %q: %v", ErrInvalidFile, row[2], err)
		}
		if len(headers) == 0 {
			return nil, fmt.Errorf("%w: empty headers list", ErrInvalidFile)
		}

		local := time.Unix(0, int64(localSecs*1e9)).UTC()
		c, err := clue.Parse(local, headers, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
		}
		c.Count = count
		clues = append(clues, c)
	}
	return clues, nil
}
