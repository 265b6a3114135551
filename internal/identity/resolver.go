// Package identity maps email addresses to stable participant ids,
// creating participants on first sight.
package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orgmesh-labs/orgmesh/internal/metrics"
	"github.com/orgmesh-labs/orgmesh/internal/models"
	"github.com/orgmesh-labs/orgmesh/internal/repository"
)

// Resolver serializes concurrent resolution per email so two first
// sightings of the same address never create two participants. Distinct
// emails resolve concurrently.
type Resolver struct {
	repo repository.Repository

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	cache map[string]*models.Participant
}

// NewResolver creates a resolver backed by the given repository.
func NewResolver(repo repository.Repository) *Resolver {
	return &Resolver{
		repo:  repo,
		locks: make(map[string]*sync.Mutex),
		cache: make(map[string]*models.Participant),
	}
}

func (r *Resolver) lockFor(email string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.locks[email]
	if !ok {
		l = &sync.Mutex{}
		r.locks[email] = l
	}
	return l
}

// Resolve returns the participant for an email, creating one on first
// sight. A known participant's first_seen is lowered to the minimum
// timestamp ever observed, even under out-of-order arrival.
func (r *Resolver) Resolve(ctx context.Context, email string, ts time.Time) (*models.Participant, error) {
	l := r.lockFor(email)
	l.Lock()
	defer l.Unlock()

	if p, ok := r.cached(email); ok {
		return r.touch(ctx, p, ts)
	}

	p, err := r.repo.GetParticipantByEmail(ctx, email)
	if err == nil {
		r.store(p)
		return r.touch(ctx, p, ts)
	}
	if !errors.Is(err, repository.ErrParticipantNotFound) {
		return nil, err
	}

	p = &models.Participant{
		ID:        uuid.New().String(),
		Email:     email,
		FullName:  InferName(email),
		Role:      "Unknown",
		Team:      "Unknown",
		Location:  "Unknown",
		FirstSeen: ts,
		StartDate: ts.Truncate(24 * time.Hour),
	}
	if err := r.repo.CreateParticipant(ctx, p); err != nil {
		if errors.Is(err, repository.ErrParticipantExists) {
			// Lost a race against another writer on the same store;
			// the participant is there, use it.
			existing, getErr := r.repo.GetParticipantByEmail(ctx, email)
			if getErr != nil {
				return nil, getErr
			}
			r.store(existing)
			return r.touch(ctx, existing, ts)
		}
		return nil, err
	}

	metrics.ParticipantsCreatedTotal.Inc()
	r.store(p)
	return p, nil
}

func (r *Resolver) cached(email string) (*models.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.cache[email]
	return p, ok
}

func (r *Resolver) store(p *models.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[p.Email] = p
}

// touch lowers first_seen when an earlier timestamp arrives.
func (r *Resolver) touch(ctx context.Context, p *models.Participant, ts time.Time) (*models.Participant, error) {
	if !ts.Before(p.FirstSeen) {
		return p, nil
	}
	if err := r.repo.UpdateFirstSeen(ctx, p.ID, ts); err != nil {
		return nil, err
	}
	p.FirstSeen = ts
	return p, nil
}

// InferName synthesizes a display name from the local part of an email:
// split on '.', '_' and '-', capitalize each token, join with spaces.
func InferName(email string) string {
	local := email
	if i := strings.Index(email, "@"); i >= 0 {
		local = email[:i]
	}

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})

	var tokens []string
	for _, p := range parts {
		if p == "" {
			continue
		}
		tokens = append(tokens, strings.ToUpper(p[:1])+strings.ToLower(p[1:]))
	}
	if len(tokens) == 0 {
		return email
	}
	return strings.Join(tokens, " ")
}
