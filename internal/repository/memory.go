package repository

import (
	"context"
	"sync"
	"time"

	"github.com/orgmesh-labs/orgmesh/internal/models"
)

// InMemoryRepository keeps all state in process. Used by tests and the
// "memory" storage driver.
type InMemoryRepository struct {
	mu           sync.RWMutex
	participants map[string]*models.Participant // by id
	byEmail      map[string]*models.Participant
	events       []*models.CommunicationEvent
	edges        map[models.EdgeKey]*models.CommunicationEdge
	enrichments  []enrichmentRow
}

type enrichmentRow struct {
	email string
	enr   models.Enrichment
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		participants: make(map[string]*models.Participant),
		byEmail:      make(map[string]*models.Participant),
		edges:        make(map[models.EdgeKey]*models.CommunicationEdge),
	}
}

func (r *InMemoryRepository) CreateParticipant(ctx context.Context, p *models.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[p.Email]; exists {
		return ErrParticipantExists
	}

	cp := *p
	r.participants[cp.ID] = &cp
	r.byEmail[cp.Email] = &cp
	return nil
}

func (r *InMemoryRepository) GetParticipantByEmail(ctx context.Context, email string) (*models.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.byEmail[email]
	if !exists {
		return nil, ErrParticipantNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *InMemoryRepository) UpdateFirstSeen(ctx context.Context, id string, firstSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.participants[id]
	if !exists {
		return ErrParticipantNotFound
	}
	p.FirstSeen = firstSeen
	return nil
}

func (r *InMemoryRepository) ListParticipants(ctx context.Context) ([]*models.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *InMemoryRepository) AppendEvents(ctx context.Context, events []*models.CommunicationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ev := range events {
		cp := *ev
		r.events = append(r.events, &cp)
	}
	return nil
}

func (r *InMemoryRepository) CountEvents(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events), nil
}

func (r *InMemoryRepository) GetEdge(ctx context.Context, key models.EdgeKey) (*models.CommunicationEdge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.edges[key]
	if !exists {
		return nil, ErrEdgeNotFound
	}
	return copyEdge(e), nil
}

func (r *InMemoryRepository) UpsertEdge(ctx context.Context, edge *models.CommunicationEdge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.edges[edge.Key] = copyEdge(edge)
	return nil
}

func (r *InMemoryRepository) ListEdges(ctx context.Context) ([]*models.CommunicationEdge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.CommunicationEdge, 0, len(r.edges))
	for _, e := range r.edges {
		out = append(out, copyEdge(e))
	}
	return out, nil
}

func (r *InMemoryRepository) CommitEvent(ctx context.Context, event *models.CommunicationEvent, edge *models.CommunicationEdge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *event
	r.events = append(r.events, &cp)
	r.edges[edge.Key] = copyEdge(edge)
	return nil
}

func (r *InMemoryRepository) RecordEnrichment(ctx context.Context, email string, enr *models.Enrichment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.enrichments = append(r.enrichments, enrichmentRow{email: email, enr: *enr})
	return nil
}

// Enrichments returns all recorded enrichments for an email. Test helper.
func (r *InMemoryRepository) Enrichments(email string) []models.Enrichment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Enrichment
	for _, row := range r.enrichments {
		if row.email == email {
			out = append(out, row.enr)
		}
	}
	return out
}

func (r *InMemoryRepository) Close() error {
	return nil
}

func copyEdge(e *models.CommunicationEdge) *models.CommunicationEdge {
	cp := *e
	cp.Topics = append([]string(nil), e.Topics...)
	return &cp
}
