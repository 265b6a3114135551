package aggregator

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgmesh-labs/orgmesh/internal/models"
	"github.com/orgmesh-labs/orgmesh/internal/repository"
)

var refTS = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func event(from, to, topic string, ts time.Time) *models.CommunicationEvent {
	return &models.CommunicationEvent{
		ID:              uuid.New().String(),
		Timestamp:       ts,
		FromParticipant: from,
		ToParticipant:   to,
		Channel:         "email",
		Capacity:        "FYI",
		Topic:           topic,
		Summary:         "test",
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("incremental")
	require.NoError(t, err)
	assert.Equal(t, ModeIncremental, m)

	m, err = ParseMode("batch")
	require.NoError(t, err)
	assert.Equal(t, ModeBatch, m)

	_, err = ParseMode("bogus")
	assert.Error(t, err)
}

func TestIncrementalWeight(t *testing.T) {
	tests := []struct {
		name   string
		count  int
		last   time.Time
		expect float64
	}{
		{"recent keeps full weight", 3, refTS.Add(-24 * time.Hour), 3.0},
		{"exactly 30 days keeps full weight", 3, refTS.Add(-30 * 24 * time.Hour), 3.0},
		{"older halves", 3, refTS.Add(-31 * 24 * time.Hour), 1.5},
		{"future clamps to zero days", 2, refTS.Add(24 * time.Hour), 2.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, IncrementalWeight(tt.count, tt.last, refTS))
		})
	}
}

func TestBatchWeight(t *testing.T) {
	tests := []struct {
		name   string
		count  int
		last   time.Time
		expect float64
	}{
		{"same day full weight", 4, refTS, 4.0},
		{"15 days half decay", 4, refTS.Add(-15 * 24 * time.Hour), 2.0},
		{"ancient hits the floor", 10, refTS.Add(-365 * 24 * time.Hour), 1.0},
		{"rounded to three decimals", 1, refTS.Add(-1 * 24 * time.Hour), 0.967},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, BatchWeight(tt.count, tt.last, refTS))
		})
	}
}

func TestIncrementalRecord(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	a := New(repo, ModeIncremental, 1000).WithClock(func() time.Time { return refTS })
	ctx := context.Background()

	require.NoError(t, a.Record(ctx, event("p1", "p2", "hiring", refTS.Add(-time.Hour))))
	require.NoError(t, a.Record(ctx, event("p1", "p2", "release", refTS.Add(-2*time.Hour))))
	require.NoError(t, a.Record(ctx, event("p1", "p2", "hiring", refTS.Add(-time.Minute))))

	edge, err := repo.GetEdge(ctx, models.EdgeKey{From: "p1", To: "p2", Channel: "email", Capacity: "FYI"})
	require.NoError(t, err)
	assert.Equal(t, 3, edge.MessageCount)
	assert.Equal(t, 3.0, edge.Weight)
	assert.Equal(t, []string{"hiring", "release"}, edge.Topics)
	assert.True(t, edge.LastInteractionAt.Equal(refTS.Add(-time.Minute)))
	assert.Equal(t, "Auto-aggregated from comm_events", edge.Notes)

	// every event landed in the log atomically with its edge
	n, err := repo.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestIncrementalStaleEdgeHalves(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	a := New(repo, ModeIncremental, 1000).WithClock(func() time.Time { return refTS })
	ctx := context.Background()

	old := refTS.Add(-60 * 24 * time.Hour)
	require.NoError(t, a.Record(ctx, event("p1", "p2", "general", old)))
	require.NoError(t, a.Record(ctx, event("p1", "p2", "general", old.Add(time.Hour))))
	require.NoError(t, a.Record(ctx, event("p1", "p2", "general", old.Add(2*time.Hour))))

	edge, err := repo.GetEdge(ctx, models.EdgeKey{From: "p1", To: "p2", Channel: "email", Capacity: "FYI"})
	require.NoError(t, err)
	assert.Equal(t, 1.5, edge.Weight)
}

func TestBatchFinalize(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	a := New(repo, ModeBatch, 1000)
	ctx := context.Background()

	// the newest event anywhere in the batch sets the reference time
	require.NoError(t, a.Record(ctx, event("p1", "p2", "hiring", refTS.Add(-15*24*time.Hour))))
	require.NoError(t, a.Record(ctx, event("p1", "p2", "release", refTS.Add(-20*24*time.Hour))))
	require.NoError(t, a.Record(ctx, event("p3", "p4", "general", refTS)))
	require.NoError(t, a.Finalize(ctx))

	edge, err := repo.GetEdge(ctx, models.EdgeKey{From: "p1", To: "p2", Channel: "email", Capacity: "FYI"})
	require.NoError(t, err)
	assert.Equal(t, 2, edge.MessageCount)
	assert.Equal(t, []string{"hiring", "release"}, edge.Topics)
	// 2 * (1 - 15/30)
	assert.Equal(t, 1.0, edge.Weight)

	other, err := repo.GetEdge(ctx, models.EdgeKey{From: "p3", To: "p4", Channel: "email", Capacity: "FYI"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, other.Weight)

	n, err := repo.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestBatchOrderIndependence(t *testing.T) {
	events := []*models.CommunicationEvent{
		event("p1", "p2", "hiring", refTS.Add(-40*24*time.Hour)),
		event("p1", "p2", "release", refTS.Add(-10*24*time.Hour)),
		event("p1", "p2", "pricing", refTS),
		event("p1", "p2", "hiring", refTS.Add(-5*24*time.Hour)),
		event("p2", "p1", "general", refTS.Add(-3*24*time.Hour)),
	}

	var reference *models.CommunicationEdge
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 10; trial++ {
		shuffled := make([]*models.CommunicationEvent, len(events))
		copy(shuffled, events)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		repo := repository.NewInMemoryRepository()
		a := New(repo, ModeBatch, 1000)
		ctx := context.Background()
		for _, ev := range shuffled {
			require.NoError(t, a.Record(ctx, ev))
		}
		require.NoError(t, a.Finalize(ctx))

		edge, err := repo.GetEdge(ctx, models.EdgeKey{From: "p1", To: "p2", Channel: "email", Capacity: "FYI"})
		require.NoError(t, err)
		if reference == nil {
			reference = edge
			continue
		}
		assert.Equal(t, reference.MessageCount, edge.MessageCount)
		assert.Equal(t, reference.Weight, edge.Weight)
		assert.Equal(t, reference.Topics, edge.Topics)
		assert.True(t, reference.LastInteractionAt.Equal(edge.LastInteractionAt))
	}
}

func TestBatchFlushThreshold(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	a := New(repo, ModeBatch, 2)
	ctx := context.Background()

	require.NoError(t, a.Record(ctx, event("p1", "p2", "general", refTS)))
	n, err := repo.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, a.Record(ctx, event("p1", "p2", "general", refTS)))
	n, err = repo.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFinalizeEmptyBatch(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	a := New(repo, ModeBatch, 1000)
	require.NoError(t, a.Finalize(context.Background()))

	edges, err := repo.ListEdges(context.Background())
	require.NoError(t, err)
	assert.Empty(t, edges)
}
