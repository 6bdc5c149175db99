// Package fingerprint reduces an HTTP header block to a stable digest that
// identifies a back-end configuration, independent of fields that vary per
// request (Date, Set-Cookie, ETag, and friends).
package fingerprint

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"
)

// ErrEmptyFieldName is returned when a header name normalizes to the empty string.
var ErrEmptyFieldName = errors.New("fingerprint: header field name normalizes to empty string")

// Field is one (name, value) header pair, order-preserved.
type Field struct {
	Name  string
	Value string
}

// Info carries the subset of recognized headers kept for reporting.
type Info struct {
	Server          string
	ContentLocation string
	Cookies         []string
	Date            string
}

// Result is the outcome of fingerprinting one header block.
type Result struct {
	Digest  string
	Info    Info
	Remote  time.Time
	HasDate bool
}

// droppedFields are recognized but never contribute to the digest: they are
// per-request or per-session noise (cache lifetimes, entity tags, byte
// counts) that vary on every reply from the same back-end and would
// otherwise make every reply look like a different one.
var droppedFields = map[string]bool{
	"expires":       true,
	"age":           true,
	"contentlength": true,
	"lastmodified":  true,
	"etag":          true,
	"cacheexpires":  true,
}

// Normalize lowercases name, strips non-alphanumerics, and drops leading digits.
// Returns "" if nothing survives.
func Normalize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	s := b.String()
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[i:]
}

// Fingerprint digests fields in arrival order, honoring the default
// recognized-field table plus any names in ignored (reanalysis' temporary
// extension — see internal/analysis). ignored may be nil.
func Fingerprint(fields []Field, ignored map[string]bool) (Result, error) {
	var res Result
	var contrib strings.Builder

	for _, f := range fields {
		norm := Normalize(f.Name)
		if norm == "" {
			return Result{}, ErrEmptyFieldName
		}
		if ignored[norm] {
			continue
		}
		switch norm {
		case "date":
			res.Info.Date = f.Value
			if t, err := parseHTTPDate(f.Value); err == nil {
				res.Remote = t
				res.HasDate = true
			}
			continue
		case "server":
			res.Info.Server = f.Value
			contrib.WriteString(f.Value)
			continue
		case "contentlocation":
			res.Info.ContentLocation = f.Value
			contrib.WriteString(f.Value)
			continue
		case "setcookie":
			res.Info.Cookies = append(res.Info.Cookies, f.Value)
			continue
		}
		if droppedFields[norm] {
			continue
		}
		contrib.WriteString(f.Name)
		contrib.WriteString(": ")
		contrib.WriteString(f.Value)
		contrib.WriteString(" ")
	}

	sum := sha1.Sum([]byte(contrib.String()))
	res.Digest = hex.EncodeToString(sum[:])
	return res, nil
}

// ValidField reports whether name/value could plausibly have come from a
// well-formed HTTP header line. Used by internal/probeclient while splitting
// the raw reply into fields, to drop garbage a broken or hostile server sent
// rather than feeding it into the digest.
func ValidField(name, value string) bool {
	return httpguts.ValidHeaderFieldName(name) && httpguts.ValidHeaderFieldValue(value)
}

// parseHTTPDate parses an RFC 822 / RFC 1123 style Date header, in UTC.
// time.Parse handles the common layouts; mail.ParseDate covers the loose
// variants some back-ends still emit (single-digit day, no leading zero).
func parseHTTPDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range []string{time.RFC1123, time.RFC1123Z, time.RFC850, time.ANSIC} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	t, err := mail.ParseDate(v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
