// record-seeder generates synthetic communication record files for
// exercising the ingestion pipeline: JSON arrays or keyed objects, with
// the field aliases, address forms and timestamp formats found in real
// exports.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

var (
	out           = flag.String("out", "records.json", "output file")
	format        = flag.String("format", "array", "output format: array or object")
	count         = flag.Int("count", 1000, "number of records to generate")
	domain        = flag.String("domain", "acme.com", "organizational email domain")
	people        = flag.Int("people", 40, "size of the participant pool")
	externalRatio = flag.Float64("external-ratio", 0.1, "fraction of records sent from outside the domain")
	brokenRatio   = flag.Float64("broken-ratio", 0.05, "fraction of records missing sender or recipients")
	timeSpread    = flag.Duration("time-spread", 90*24*time.Hour, "spread timestamps over this period ending now")
	seed          = flag.Int64("seed", 0, "random seed (0 uses the current time)")
)

// Alias pools mirror the normalizer's field alias tables so every
// generated key resolves during ingestion.
var senderAliases = []string{"from", "From", "sender", "from_email", "from_address"}
var recipientAliases = []string{"to", "To", "recipients", "to_emails", "to_addresses"}
var subjectAliases = []string{"subject", "Subject", "title"}
var bodyAliases = []string{"body", "Body", "content", "text"}
var timestampAliases = []string{"date", "Date", "timestamp", "sent", "sent_at"}

var subjects = []string{
	"Quick question about the %s release",
	"Interview loop for the %s candidate",
	"Ticket escalation: %s outage",
	"Budget forecast for %s",
	"Roadmap priorities for %s",
	"Welcome aboard, %s team",
	"Please decide on the %s proposal",
	"FYI: %s newsletter",
}

func main() {
	flag.Parse()

	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(s))
	gofakeit.Seed(s)

	pool := buildPool(rng, *people, *domain)

	records := make([]map[string]interface{}, 0, *count)
	for i := 0; i < *count; i++ {
		records = append(records, generateRecord(rng, pool))
	}

	if err := write(*out, *format, records); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
	log.Printf("wrote %d records to %s (%s)", len(records), *out, *format)
}

func buildPool(rng *rand.Rand, n int, domain string) []string {
	pool := make([]string, 0, n)
	seen := map[string]bool{}
	for len(pool) < n {
		first := strings.ToLower(gofakeit.FirstName())
		last := strings.ToLower(gofakeit.LastName())
		sep := []string{".", "_", "-"}[rng.Intn(3)]
		email := fmt.Sprintf("%s%s%s@%s", first, sep, last, domain)
		if seen[email] {
			continue
		}
		seen[email] = true
		pool = append(pool, email)
	}
	return pool
}

func generateRecord(rng *rand.Rand, pool []string) map[string]interface{} {
	rec := map[string]interface{}{}

	sender := pool[rng.Intn(len(pool))]
	if rng.Float64() < *externalRatio {
		sender = gofakeit.Email()
	}
	broken := rng.Float64() < *brokenRatio

	if !broken || rng.Intn(2) == 0 {
		rec[pick(rng, senderAliases)] = addressForm(rng, sender)
	}

	nRcpt := 1 + rng.Intn(3)
	rcpts := make([]string, 0, nRcpt)
	for len(rcpts) < nRcpt {
		r := pool[rng.Intn(len(pool))]
		rcpts = append(rcpts, r)
	}
	if !broken || len(rec) == 0 {
		key := pick(rng, recipientAliases)
		if rng.Intn(2) == 0 {
			forms := make([]interface{}, len(rcpts))
			for i, r := range rcpts {
				forms[i] = addressForm(rng, r)
			}
			rec[key] = forms
		} else {
			rec[key] = strings.Join(rcpts, ", ")
		}
	}

	if rng.Float64() > 0.05 {
		rec[pick(rng, subjectAliases)] = fmt.Sprintf(pick(rng, subjects), gofakeit.BuzzWord())
	}
	rec[pick(rng, bodyAliases)] = gofakeit.Paragraph(1, 3, 12, " ")
	rec[pick(rng, timestampAliases)] = timestampForm(rng)
	return rec
}

func pick(rng *rand.Rand, options []string) string {
	return options[rng.Intn(len(options))]
}

// addressForm varies between bare addresses and display-name forms.
func addressForm(rng *rand.Rand, email string) string {
	if rng.Intn(3) == 0 {
		return fmt.Sprintf("%s <%s>", gofakeit.Name(), email)
	}
	return email
}

// timestampForm emits epoch seconds, ISO-8601 variants or RFC-2822 text,
// all within the configured spread ending now.
func timestampForm(rng *rand.Rand) interface{} {
	ts := time.Now().Add(-time.Duration(rng.Int63n(int64(*timeSpread)))).UTC()
	switch rng.Intn(5) {
	case 0:
		return float64(ts.Unix())
	case 1:
		return ts.Format(time.RFC3339)
	case 2:
		return ts.Format("2006-01-02T15:04:05-07:00")
	case 3:
		return ts.Format("2006-01-02 15:04:05")
	default:
		return ts.Format(time.RFC1123Z)
	}
}

func write(path, format string, records []map[string]interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch format {
	case "array":
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "object":
		keyed := map[string]interface{}{
			"export_version": "1.0",
			"messages":       records,
		}
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(keyed)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
