package ingestion

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

// Parser for WhatsApp chat export .txt files. One message per header
// line; continuation lines belong to the previous message's body. The
// parser only produces ingest tuples; dedup happens downstream.

var (
	headerRE = regexp.MustCompile(`^\[(\d{1,2}/\d{1,2}/\d{2,4}),\s*(\d{1,2}:\d{2}(?::\d{2})?\s*(?:AM|PM|am|pm)?)\]\s*~?\s*([^:]+):\s?(.*)$`)
	urlRE    = regexp.MustCompile(`(?i)https?://\S+`)
	phoneRE  = regexp.MustCompile(`\+?\d[\d\s\-()]{6,}`)

	// Some exports carry narrow no-break spaces before AM/PM.
	spaceNormalizer = strings.NewReplacer("\u202f", " ", "\u00a0", " ")
)

// Day-first layouts are tried before month-first: most exports in the
// corpus come from day-first locales.
var timestampLayouts = []string{
	"2/1/06, 3:04:05 PM",
	"2/1/06, 3:04 PM",
	"2/1/06, 15:04:05",
	"2/1/06, 15:04",
	"2/1/2006, 3:04:05 PM",
	"2/1/2006, 3:04 PM",
	"2/1/2006, 15:04:05",
	"2/1/2006, 15:04",
	"1/2/06, 3:04:05 PM",
	"1/2/06, 3:04 PM",
	"1/2/06, 15:04:05",
	"1/2/06, 15:04",
	"1/2/2006, 3:04:05 PM",
	"1/2/2006, 3:04 PM",
	"1/2/2006, 15:04:05",
	"1/2/2006, 15:04",
}

type ParsedMessage struct {
	SenderName  string
	SenderPhone string
	Timestamp   time.Time
	Body        string
	Links       []string
	SourceKey   string
}

type ParsedExport struct {
	GroupName string
	Messages  []ParsedMessage
	// SkippedNoTimestamp counts header lines whose timestamp matched no
	// known layout. They are dropped, not silently merged into bodies.
	SkippedNoTimestamp int
}

// ParseExport reads a full export. When since is non-nil, messages at or
// before that instant are excluded (incremental re-export support).
func ParseExport(r io.Reader, since *time.Time) (*ParsedExport, error) {
	out := &ParsedExport{}

	type pending struct {
		sender string
		ts     time.Time
		ok     bool
		body   []string
	}
	var cur *pending

	flush := func() {
		if cur == nil || !cur.ok {
			cur = nil
			return
		}
		body := strings.TrimSpace(strings.Join(cur.body, "\n"))
		if since != nil && !cur.ts.After(*since) {
			cur = nil
			return
		}
		msg := ParsedMessage{
			SenderName:  cur.sender,
			SenderPhone: extractPhone(cur.sender),
			Timestamp:   cur.ts,
			Body:        body,
			Links:       urlRE.FindAllString(body, -1),
		}
		msg.SourceKey = MakeSourceKey(out.GroupName, msg.Timestamp, msg.SenderName, msg.Body)
		out.Messages = append(out.Messages, msg)
		cur = nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := spaceNormalizer.Replace(scanner.Text())

		m := headerRE.FindStringSubmatch(line)
		if m == nil {
			if cur != nil {
				cur.body = append(cur.body, line)
			}
			continue
		}

		flush()

		sender := strings.TrimSpace(m[3])
		if out.GroupName == "" {
			// The first header line of an export names the group.
			out.GroupName = sender
		}

		ts, err := parseTimestamp(m[1], m[2])
		if err != nil {
			out.SkippedNoTimestamp++
			cur = &pending{ok: false}
			continue
		}
		cur = &pending{sender: sender, ts: ts, ok: true, body: []string{m[4]}}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	flush()

	if out.GroupName == "" {
		out.GroupName = "Unknown Group"
	}
	return out, nil
}

func parseTimestamp(dateStr, timeStr string) (time.Time, error) {
	raw := strings.TrimSpace(dateStr + ", " + strings.ToUpper(strings.TrimSpace(timeStr)))
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			// Exports carry local wall time with no zone; store as UTC.
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func extractPhone(sender string) string {
	m := phoneRE.FindString(sender)
	if m == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range m {
		if r == '+' || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MakeSourceKey derives the stable per-message source key used for
// idempotent re-ingestion. Only the first 100 bytes of the body
// participate, matching the persisted keys of earlier ingests.
func MakeSourceKey(groupName string, ts time.Time, sender, body string) string {
	if len(body) > 100 {
		body = body[:100]
	}
	base := fmt.Sprintf("%s|%s|%s|%s", groupName, ts.Format(time.RFC3339), sender, body)
	sum := sha256.Sum256([]byte(base))
	return hex.EncodeToString(sum[:])
}
