// Package repository provides the durable backend for participants, the
// append-only event log and the keyed edge aggregate table.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/orgmesh-labs/orgmesh/internal/models"
)

var (
	ErrParticipantNotFound = errors.New("participant not found")
	ErrParticipantExists   = errors.New("participant already exists")
	ErrEdgeNotFound        = errors.New("edge not found")
)

type Repository interface {
	// CreateParticipant inserts a new participant. Returns
	// ErrParticipantExists when the email is already taken.
	CreateParticipant(ctx context.Context, p *models.Participant) error
	GetParticipantByEmail(ctx context.Context, email string) (*models.Participant, error)
	// UpdateFirstSeen moves a participant's first_seen back in time.
	UpdateFirstSeen(ctx context.Context, id string, firstSeen time.Time) error
	ListParticipants(ctx context.Context) ([]*models.Participant, error)

	// AppendEvents writes a batch to the append-only event log.
	AppendEvents(ctx context.Context, events []*models.CommunicationEvent) error
	CountEvents(ctx context.Context) (int, error)

	GetEdge(ctx context.Context, key models.EdgeKey) (*models.CommunicationEdge, error)
	UpsertEdge(ctx context.Context, edge *models.CommunicationEdge) error
	ListEdges(ctx context.Context) ([]*models.CommunicationEdge, error)

	// CommitEvent persists one event together with its recomputed edge as
	// a single atomic unit (live-mode ingestion).
	CommitEvent(ctx context.Context, event *models.CommunicationEvent, edge *models.CommunicationEdge) error

	// RecordEnrichment stores the oracle's classification for a sender.
	RecordEnrichment(ctx context.Context, email string, enr *models.Enrichment) error

	Close() error
}
