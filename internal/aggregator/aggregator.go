// Package aggregator maintains keyed, time-decayed aggregate edges from a
// stream of communication events. Updates to a given key are serialized;
// distinct keys aggregate concurrently.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/orgmesh-labs/orgmesh/internal/metrics"
	"github.com/orgmesh-labs/orgmesh/internal/models"
	"github.com/orgmesh-labs/orgmesh/internal/repository"
)

// Mode selects how edge weights are computed.
type Mode int

const (
	// ModeIncremental weighs edges against the wall clock on every
	// update, committing each event atomically with its edge (live
	// ingestion).
	ModeIncremental Mode = iota
	// ModeBatch accumulates edge state in memory, buffers events for
	// threshold flushes, and computes weights once against the maximum
	// timestamp observed across the whole batch. The result is identical
	// for any arrival order of events sharing a key.
	ModeBatch
)

// ParseMode converts a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "incremental":
		return ModeIncremental, nil
	case "batch":
		return ModeBatch, nil
	default:
		return ModeBatch, fmt.Errorf("invalid aggregation mode %q", s)
	}
}

const edgeNotes = "Auto-aggregated from comm_events"

// Aggregator applies create-or-update semantics per edge key.
type Aggregator struct {
	repo           repository.Repository
	mode           Mode
	flushThreshold int
	now            func() time.Time

	mu      sync.Mutex
	locks   map[models.EdgeKey]*sync.Mutex
	entries map[models.EdgeKey]*entry

	pendingMu sync.Mutex
	pending   []*models.CommunicationEvent
	maxTS     time.Time
}

// entry is the in-memory accumulation for one key in batch mode.
type entry struct {
	count  int
	last   time.Time
	topics map[string]bool
}

// New creates an aggregator. flushThreshold bounds the event batch held
// in memory before a durable flush; it is ignored in incremental mode.
func New(repo repository.Repository, mode Mode, flushThreshold int) *Aggregator {
	return &Aggregator{
		repo:           repo,
		mode:           mode,
		flushThreshold: flushThreshold,
		now:            func() time.Time { return time.Now().UTC() },
		locks:          make(map[models.EdgeKey]*sync.Mutex),
		entries:        make(map[models.EdgeKey]*entry),
	}
}

// WithClock overrides the wall clock used by incremental weighting.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

func (a *Aggregator) lockFor(key models.EdgeKey) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()

	l, ok := a.locks[key]
	if !ok {
		l = &sync.Mutex{}
		a.locks[key] = l
	}
	return l
}

// Record folds one communication event into its aggregate edge.
func (a *Aggregator) Record(ctx context.Context, ev *models.CommunicationEvent) error {
	metrics.EventsEmittedTotal.Inc()
	if a.mode == ModeIncremental {
		return a.recordIncremental(ctx, ev)
	}
	return a.recordBatch(ctx, ev)
}

func (a *Aggregator) recordIncremental(ctx context.Context, ev *models.CommunicationEvent) error {
	key := ev.Key()
	l := a.lockFor(key)
	l.Lock()
	defer l.Unlock()

	edge, err := a.repo.GetEdge(ctx, key)
	switch {
	case err == nil:
		edge.MessageCount++
		if ev.Timestamp.After(edge.LastInteractionAt) {
			edge.LastInteractionAt = ev.Timestamp
		}
		edge.Topics = mergeTopic(edge.Topics, ev.Topic)
	case errors.Is(err, repository.ErrEdgeNotFound):
		edge = &models.CommunicationEdge{
			Key:               key,
			MessageCount:      1,
			LastInteractionAt: ev.Timestamp,
			Topics:            []string{ev.Topic},
			Notes:             edgeNotes,
		}
	default:
		return err
	}

	edge.Weight = IncrementalWeight(edge.MessageCount, edge.LastInteractionAt, a.now())

	if err := a.repo.CommitEvent(ctx, ev, edge); err != nil {
		return err
	}
	metrics.EdgeUpsertsTotal.Inc()
	return nil
}

func (a *Aggregator) recordBatch(ctx context.Context, ev *models.CommunicationEvent) error {
	key := ev.Key()
	l := a.lockFor(key)
	l.Lock()
	a.mu.Lock()
	e, ok := a.entries[key]
	if !ok {
		e = &entry{last: ev.Timestamp, topics: make(map[string]bool)}
		a.entries[key] = e
	}
	a.mu.Unlock()
	e.count++
	e.topics[ev.Topic] = true
	if ev.Timestamp.After(e.last) {
		e.last = ev.Timestamp
	}
	l.Unlock()

	a.pendingMu.Lock()
	a.pending = append(a.pending, ev)
	if ev.Timestamp.After(a.maxTS) {
		a.maxTS = ev.Timestamp
	}
	flush := len(a.pending) >= a.flushThreshold
	a.pendingMu.Unlock()

	if flush {
		return a.Flush(ctx)
	}
	return nil
}

// Flush writes buffered events to the durable store. Batches already
// flushed stay durable even if the run later fails.
func (a *Aggregator) Flush(ctx context.Context) error {
	a.pendingMu.Lock()
	batch := a.pending
	a.pending = nil
	a.pendingMu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	if err := a.repo.AppendEvents(ctx, batch); err != nil {
		return fmt.Errorf("flush events: %w", err)
	}
	metrics.FlushDuration.Observe(time.Since(start).Seconds())
	return nil
}

// Finalize flushes any remaining events and, in batch mode, computes and
// persists every edge using the maximum batch timestamp as reference.
func (a *Aggregator) Finalize(ctx context.Context) error {
	if err := a.Flush(ctx); err != nil {
		return err
	}
	if a.mode != ModeBatch {
		return nil
	}

	a.pendingMu.Lock()
	reference := a.maxTS
	a.pendingMu.Unlock()
	if reference.IsZero() {
		reference = a.now()
	}

	a.mu.Lock()
	keys := make([]models.EdgeKey, 0, len(a.entries))
	for k := range a.entries {
		keys = append(keys, k)
	}
	a.mu.Unlock()

	for _, key := range keys {
		a.mu.Lock()
		e := a.entries[key]
		a.mu.Unlock()

		topics := make([]string, 0, len(e.topics))
		for t := range e.topics {
			topics = append(topics, t)
		}
		sort.Strings(topics)

		edge := &models.CommunicationEdge{
			Key:               key,
			MessageCount:      e.count,
			LastInteractionAt: e.last,
			Topics:            topics,
			Weight:            BatchWeight(e.count, e.last, reference),
			Notes:             edgeNotes,
		}
		if err := a.repo.UpsertEdge(ctx, edge); err != nil {
			return fmt.Errorf("persist edge %s: %w", key, err)
		}
		metrics.EdgeUpsertsTotal.Inc()
	}
	return nil
}

// IncrementalWeight applies the live decay: full weight while the last
// interaction is at most 30 days old, half weight after.
func IncrementalWeight(count int, last, now time.Time) float64 {
	recency := 0.5
	if daysBetween(last, now) <= 30 {
		recency = 1.0
	}
	return round3(float64(count) * recency)
}

// BatchWeight applies the replay decay: linear falloff over 30 days with
// a 0.1 floor, measured against the batch reference time.
func BatchWeight(count int, last, reference time.Time) float64 {
	days := daysBetween(last, reference)
	recency := math.Max(0.1, 1.0-float64(days)/30.0)
	return round3(float64(count) * recency)
}

// daysBetween counts whole days from a to b, clamped at zero.
func daysBetween(a, b time.Time) int {
	d := int(b.Sub(a).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

func mergeTopic(topics []string, topic string) []string {
	i := sort.SearchStrings(topics, topic)
	if i < len(topics) && topics[i] == topic {
		return topics
	}
	topics = append(topics, "")
	copy(topics[i+1:], topics[i:])
	topics[i] = topic
	return topics
}
