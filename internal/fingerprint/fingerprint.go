// Package fingerprint derives the content digest that gives an EventRecord
// its identity across runs. The digest is embedded as a trailing line in the
// remote entry description so a later run can recover it without any local
// state.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/model"
)

// fieldSep joins the canonical field strings before hashing. It never occurs
// inside the numeric fields and a literal "|" inside the title shifts the
// digest, which is acceptable: identity only has to be deterministic.
const fieldSep = "|"

// descPrefix marks the digest line inside a remote entry description.
const descPrefix = "Hash: "

// Compute returns the hex sha256 digest over the record's identity-relevant
// fields. RawText is deliberately excluded so incidental whitespace in the
// source markup does not churn the remote store.
func Compute(r model.EventRecord) string {
	parts := []string{
		strconv.Itoa(r.Year),
		strconv.Itoa(r.Month),
		strconv.Itoa(r.Day),
		strconv.Itoa(r.Hour),
		strconv.Itoa(r.Minute),
		r.Title,
		r.Category,
		r.TypeTag,
		r.SourceLink,
		strconv.FormatBool(r.TimeSpecified),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, fieldSep)))
	return hex.EncodeToString(sum[:])
}

// Embed appends the digest line to a remote entry description body.
func Embed(description, digest string) string {
	if description == "" {
		return descPrefix + digest
	}
	return description + "\n" + descPrefix + digest
}

// RawTextPrefix marks the diagnostic line carrying the original source item
// text in a remote entry description.
const RawTextPrefix = "原文: "

// BuildDescription composes the remote entry description: the original item
// text for diagnostics, then the digest line.
func BuildDescription(rawText, digest string) string {
	return Embed(RawTextPrefix+rawText, digest)
}

// Recognizable reports whether a description looks like it was written by
// this system: it either carries a digest line or the raw-text prefix. The
// full-replace path uses this to avoid deleting entries belonging to other
// tools.
func Recognizable(description string) bool {
	if _, ok := Extract(description); ok {
		return true
	}
	return strings.Contains(description, RawTextPrefix)
}

// Extract recovers an embedded digest from a remote entry description.
// Entries written by other tools have no digest line; they report ok=false
// and are left alone by the diff path.
func Extract(description string) (digest string, ok bool) {
	for _, line := range strings.Split(description, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, descPrefix) {
			d := strings.TrimSpace(strings.TrimPrefix(line, descPrefix))
			if d != "" {
				return d, true
			}
		}
	}
	return "", false
}
