// Package oracle wraps the external best-effort text-classification
// capability. The core never blocks correctness on its outcome: every
// failure path substitutes the local Unknown quadruple.
package oracle

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/orgmesh-labs/orgmesh/internal/models"
)

// maxBodyChars bounds the body text sent to the classifier.
const maxBodyChars = 2000

// Request carries the message fields offered to the classifier.
type Request struct {
	Sender     string
	Recipients []string
	Subject    string
	Body       string
}

// Oracle classifies a message into a role/team/task quadruple.
type Oracle interface {
	Classify(ctx context.Context, req Request) (*models.Enrichment, error)
}

// Unknown returns the local substitute used whenever the oracle is
// unavailable, over budget, or fails.
func Unknown() *models.Enrichment {
	return &models.Enrichment{
		Role:            "Unknown",
		Team:            "Unknown",
		TaskTitle:       "Unknown",
		TaskDescription: "Unknown",
	}
}

// NewRequest builds an oracle request from a normalized event, truncating
// the body.
func NewRequest(ev *models.NormalizedEvent) Request {
	body := ev.Body
	if utf8.RuneCountInString(body) > maxBodyChars {
		body = string([]rune(body)[:maxBodyChars])
	}
	return Request{
		Sender:     ev.Sender,
		Recipients: ev.Recipients,
		Subject:    ev.Subject,
		Body:       body,
	}
}

func (r Request) prompt() string {
	var b strings.Builder
	b.WriteString("From: ")
	b.WriteString(r.Sender)
	b.WriteString("\nTo: ")
	b.WriteString(strings.Join(r.Recipients, ", "))
	b.WriteString("\nSubject: ")
	b.WriteString(r.Subject)
	b.WriteString("\nBody: ")
	b.WriteString(r.Body)
	return b.String()
}
