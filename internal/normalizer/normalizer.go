// Package normalizer resolves field aliases on raw records, extracts
// addresses, parses timestamps and filters records that cannot form a
// valid communication event.
package normalizer

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/orgmesh-labs/orgmesh/internal/metrics"
	"github.com/orgmesh-labs/orgmesh/internal/models"
)

// fieldAliases maps each logical field to the record keys that may carry
// it. The first present non-empty alias wins.
var fieldAliases = map[string][]string{
	"sender":     {"from", "sender", "from_email", "from_address", "From"},
	"recipients": {"to", "recipients", "to_emails", "to_address", "to_addresses", "To"},
	"cc":         {"cc", "cc_emails", "cc_address", "cc_addresses", "Cc", "CC"},
	"bcc":        {"bcc", "bcc_emails", "bcc_address", "bcc_addresses", "Bcc", "BCC"},
	"subject":    {"subject", "title", "Subject"},
	"body":       {"body", "content", "text", "Body"},
	"timestamp":  {"date", "sent_at", "timestamp", "sent", "Date"},
}

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

// Drop reasons reported through metrics.
const (
	DropNoSender     = "no_sender"
	DropNoRecipients = "no_recipients"
	DropOutOfDomain  = "out_of_domain"
)

// Normalizer turns raw records into NormalizedEvents, dropping those with
// no sender, no recipients after self-exclusion, or a sender outside the
// organizational domain.
type Normalizer struct {
	domain string
	now    func() time.Time
}

// New creates a normalizer for the given organizational domain.
func New(domain string) *Normalizer {
	return &Normalizer{
		domain: strings.ToLower(strings.TrimSpace(domain)),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the wall clock used for unparseable timestamps.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// Normalize resolves a raw record into an immutable NormalizedEvent.
// The second return value is false when the record was dropped; dropping
// is never an error.
func (n *Normalizer) Normalize(rec models.RawRecord) (*models.NormalizedEvent, bool) {
	senderRaw := firstAlias(rec, fieldAliases["sender"])
	toRaw := firstAlias(rec, fieldAliases["recipients"])
	ccRaw := firstAlias(rec, fieldAliases["cc"])
	bccRaw := firstAlias(rec, fieldAliases["bcc"])
	subject := stringValue(firstAlias(rec, fieldAliases["subject"]), "(no subject)")
	body := stringValue(firstAlias(rec, fieldAliases["body"]), "")
	tsRaw := firstAlias(rec, fieldAliases["timestamp"])

	sender := ExtractEmail(senderRaw)
	if sender == "" {
		metrics.RecordsDroppedTotal.WithLabelValues(DropNoSender).Inc()
		return nil, false
	}

	var recipients []string
	seen := map[string]bool{sender: true}
	for _, raw := range append(append(asList(toRaw), asList(ccRaw)...), asList(bccRaw)...) {
		addr := ExtractEmail(raw)
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		recipients = append(recipients, addr)
	}
	if len(recipients) == 0 {
		metrics.RecordsDroppedTotal.WithLabelValues(DropNoRecipients).Inc()
		return nil, false
	}

	if !n.inDomain(sender) {
		metrics.RecordsDroppedTotal.WithLabelValues(DropOutOfDomain).Inc()
		return nil, false
	}

	return &models.NormalizedEvent{
		Sender:     sender,
		Recipients: recipients,
		Subject:    subject,
		Body:       body,
		Timestamp:  n.parseTimestamp(tsRaw),
	}, true
}

func (n *Normalizer) inDomain(email string) bool {
	if n.domain == "" {
		return true
	}
	return strings.HasSuffix(Domain(email), n.domain)
}

// Domain returns the lower-cased domain part of an email address, or ""
// when the value has no @.
func Domain(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return strings.ToLower(email[i+1:])
	}
	return ""
}

// stringValue renders an alias value as text, substituting fallback for
// absent or blank values.
func stringValue(v interface{}, fallback string) string {
	if v == nil {
		return fallback
	}
	s := strings.TrimSpace(fmt.Sprintf("%v", v))
	if s == "" {
		return fallback
	}
	return s
}

// firstAlias returns the first present non-empty alias value.
func firstAlias(rec models.RawRecord, keys []string) interface{} {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			continue
		}
		return v
	}
	return nil
}

// asList coerces an address-bearing value into a list: lists pass through,
// strings split on comma/semicolon, anything else becomes a single element.
func asList(v interface{}) []interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return val
	case string:
		var out []interface{}
		for _, part := range strings.FieldsFunc(val, func(r rune) bool {
			return r == ',' || r == ';'
		}) {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return []interface{}{fmt.Sprintf("%v", val)}
	}
}

// ExtractEmail pulls an email-shaped token out of a string, an
// address-like object or any other value, falling back to the trimmed raw
// value when no token matches.
func ExtractEmail(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case map[string]interface{}:
		for _, k := range []string{"email", "address", "addr"} {
			if inner, ok := val[k]; ok {
				return strings.TrimSpace(fmt.Sprintf("%v", inner))
			}
		}
		return ""
	case string:
		if m := emailPattern.FindString(val); m != "" {
			return strings.TrimSpace(m)
		}
		return strings.TrimSpace(val)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", val))
	}
}

// parseTimestamp accepts numeric epoch seconds, ISO-8601 and RFC-2822
// date text. It never fails: absent or unparseable values fall back to
// the current UTC time.
func (n *Normalizer) parseTimestamp(v interface{}) time.Time {
	switch val := v.(type) {
	case float64:
		sec := int64(val)
		nsec := int64((val - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC()
	case int64:
		return time.Unix(val, 0).UTC()
	case string:
		if t, ok := parseTimeString(val); ok {
			return t.UTC()
		}
	}
	return n.now()
}

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimeString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	// ISO-8601, with a bare Z normalized to an explicit offset
	iso := strings.Replace(s, "Z", "+00:00", 1)
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, iso); err == nil {
			return t, true
		}
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	// RFC-2822 date text, as found in mail headers
	if t, err := mail.ParseDate(s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
