package normalization

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Normalization derives the dedup view of a message body. The original
// body is kept verbatim on the raw row for entity extraction and search;
// only the fingerprint is computed from the normalized form, so two
// messages differing in case, whitespace, URLs or quoted prices collapse
// to the same fingerprint.

var (
	urlRE        = regexp.MustCompile(`(?i)https?://\S+`)
	moneyRE      = regexp.MustCompile(`\$?\b\d[\d,]*(?:\.\d+)?\b`)
	punctRunRE   = regexp.MustCompile("[\\s\\-_,.!?:;~*`'\"]+")
	whitespaceRE = regexp.MustCompile(`\s+`)
)

// EmptyFingerprint tags bodies that normalize to nothing. They are kept,
// counted and aggregated like any other fingerprint so ingest statistics
// stay accurate.
var EmptyFingerprint = func() string {
	sum := sha256.Sum256([]byte{0})
	return hex.EncodeToString(sum[:])
}()

// Normalize strips URLs, money amounts and formatting noise, lowercases
// and collapses whitespace. Pure and stable across restarts.
func Normalize(raw string) string {
	t := urlRE.ReplaceAllString(raw, " ")
	t = moneyRE.ReplaceAllString(t, " ")
	t = strings.ToLower(t)
	t = punctRunRE.ReplaceAllString(t, " ")
	t = whitespaceRE.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// Fingerprint digests already-normalized text. Empty input maps to
// EmptyFingerprint rather than the digest of "".
func Fingerprint(normalized string) string {
	if normalized == "" {
		return EmptyFingerprint
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// NormalizeFingerprint is the ingestion entry point.
func NormalizeFingerprint(raw string) (string, string) {
	n := Normalize(raw)
	return n, Fingerprint(n)
}

// IsEmpty reports whether a fingerprint belongs to the empty category.
func IsEmpty(fingerprint string) bool {
	return fingerprint == EmptyFingerprint
}
