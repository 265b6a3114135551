package models

import (
	"fmt"
	"time"
)

// RawRecord is a decoded input record whose shape is unknown until the
// normalizer resolves its field aliases.
type RawRecord map[string]interface{}

// NormalizedEvent is one communication record after alias resolution,
// address extraction and filtering. Immutable once produced.
type NormalizedEvent struct {
	Sender     string    `json:"sender"`
	Recipients []string  `json:"recipients"` // sender excluded, de-duplicated
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Timestamp  time.Time `json:"timestamp"` // always UTC
}

// Participant is a resolved organizational identity. Created lazily on
// first sight of an email address, never deleted.
type Participant struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	Team      string    `json:"team"`
	Location  string    `json:"location"`
	FirstSeen time.Time `json:"first_seen"` // min timestamp ever observed for this email
	StartDate time.Time `json:"start_date"`
}

// CommunicationEvent is one directed, timestamped message instance between
// two participants. Append-only; one per (NormalizedEvent, recipient) pair.
type CommunicationEvent struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	FromParticipant string    `json:"from_participant"`
	ToParticipant   string    `json:"to_participant"`
	Channel         string    `json:"channel"`
	Capacity        string    `json:"capacity"`
	Topic           string    `json:"topic"`
	Summary         string    `json:"summary"`
}

// EdgeKey identifies the aggregate edge an event contributes to.
type EdgeKey struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Channel  string `json:"channel"`
	Capacity string `json:"capacity"`
}

func (k EdgeKey) String() string {
	return fmt.Sprintf("%s->%s/%s/%s", k.From, k.To, k.Channel, k.Capacity)
}

// Key returns the edge key an event aggregates under.
func (e *CommunicationEvent) Key() EdgeKey {
	return EdgeKey{
		From:     e.FromParticipant,
		To:       e.ToParticipant,
		Channel:  e.Channel,
		Capacity: e.Capacity,
	}
}

// CommunicationEdge is the aggregated, decayed weight summarizing all
// events sharing an EdgeKey. The only mutable aggregate in the model.
type CommunicationEdge struct {
	Key               EdgeKey   `json:"key"`
	MessageCount      int       `json:"message_count"`
	LastInteractionAt time.Time `json:"last_interaction_at"`
	Topics            []string  `json:"topics"` // sorted set
	Weight            float64   `json:"weight"` // rounded to 3 decimals
	Notes             string    `json:"notes,omitempty"`
}

// Enrichment is the best-effort classification quadruple returned by the
// external oracle, or the local Unknown substitute.
type Enrichment struct {
	Role            string `json:"role"`
	Team            string `json:"team"`
	TaskTitle       string `json:"task_title"`
	TaskDescription string `json:"task_description"`
}
