package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgmesh-labs/orgmesh/internal/aggregator"
	"github.com/orgmesh-labs/orgmesh/internal/classifier"
	"github.com/orgmesh-labs/orgmesh/internal/identity"
	"github.com/orgmesh-labs/orgmesh/internal/logging"
	"github.com/orgmesh-labs/orgmesh/internal/models"
	"github.com/orgmesh-labs/orgmesh/internal/normalizer"
	"github.com/orgmesh-labs/orgmesh/internal/oracle"
	"github.com/orgmesh-labs/orgmesh/internal/reader"
	"github.com/orgmesh-labs/orgmesh/internal/repository"
)

type recordingOracle struct {
	mu    chan struct{}
	calls int
}

func newRecordingOracle() *recordingOracle {
	return &recordingOracle{mu: make(chan struct{}, 1)}
}

func (r *recordingOracle) Classify(ctx context.Context, req oracle.Request) (*models.Enrichment, error) {
	r.mu <- struct{}{}
	r.calls++
	<-r.mu
	return &models.Enrichment{Role: "Engineer", Team: "Core", TaskTitle: "t", TaskDescription: "d"}, nil
}

func writeRecords(t *testing.T, records []map[string]interface{}) string {
	t.Helper()
	data, err := json.Marshal(records)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func testRecords() []map[string]interface{} {
	return []map[string]interface{}{
		{
			"from":    "ava.mueller@acme.com",
			"to":      []string{"ben@acme.com", "cara@acme.com"},
			"subject": "Interview loop for the staff candidate",
			"date":    "2024-06-01T10:00:00Z",
		},
		{
			"from":    "ben@acme.com",
			"to":      "ava.mueller@acme.com",
			"subject": "please approve the release",
			"date":    "2024-06-01T11:00:00Z",
		},
		{
			// no sender, dropped
			"to":      "ben@acme.com",
			"subject": "orphan",
		},
		{
			// external sender, dropped
			"from": "mallory@evil.org",
			"to":   "ben@acme.com",
		},
	}
}

func newTestPipeline(path string, repo repository.Repository, mode aggregator.Mode, orc oracle.Oracle, opts Options) *Pipeline {
	return New(
		reader.NewSource(path, reader.PolicyStrict),
		normalizer.New("acme.com"),
		classifier.Default(),
		identity.NewResolver(repo),
		aggregator.New(repo, mode, 1000),
		repo,
		orc,
		logging.Default(),
		opts,
	)
}

func TestRunBatchEndToEnd(t *testing.T) {
	path := writeRecords(t, testRecords())
	repo := repository.NewInMemoryRepository()
	p := newTestPipeline(path, repo, aggregator.ModeBatch, nil, Options{Workers: 4})

	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.RecordsRead)
	assert.Equal(t, int64(2), stats.RecordsDropped)
	assert.Equal(t, int64(3), stats.EventsEmitted)
	assert.Equal(t, int64(0), stats.OracleJobs)

	ctx := context.Background()
	participants, err := repo.ListParticipants(ctx)
	require.NoError(t, err)
	assert.Len(t, participants, 3)

	byEmail := map[string]*models.Participant{}
	for _, pt := range participants {
		byEmail[pt.Email] = pt
	}
	require.Contains(t, byEmail, "ava.mueller@acme.com")
	assert.Equal(t, "Ava Mueller", byEmail["ava.mueller@acme.com"].FullName)

	n, err := repo.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	edges, err := repo.ListEdges(ctx)
	require.NoError(t, err)
	require.Len(t, edges, 3)

	ava := byEmail["ava.mueller@acme.com"]
	ben := byEmail["ben@acme.com"]
	key := models.EdgeKey{From: ava.ID, To: ben.ID, Channel: "email", Capacity: "FYI"}
	edge, err := repo.GetEdge(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, edge.MessageCount)
	assert.Equal(t, []string{"hiring"}, edge.Topics)
	assert.Equal(t, 1.0, edge.Weight)
}

func TestRunIncrementalEndToEnd(t *testing.T) {
	path := writeRecords(t, testRecords())
	repo := repository.NewInMemoryRepository()
	p := newTestPipeline(path, repo, aggregator.ModeIncremental, nil, Options{Workers: 2})

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.EventsEmitted)

	edges, err := repo.ListEdges(context.Background())
	require.NoError(t, err)
	assert.Len(t, edges, 3)
}

func TestRunMaxRecords(t *testing.T) {
	// The cap counts records that survive normalization, so a leading
	// invalid record must not eat the budget.
	path := writeRecords(t, []map[string]interface{}{
		{"to": "ben@acme.com", "subject": "orphan"},
		{
			"from": "ava.mueller@acme.com",
			"to":   []string{"ben@acme.com", "cara@acme.com"},
			"date": "2024-06-01T10:00:00Z",
		},
		{
			"from": "ben@acme.com",
			"to":   "ava.mueller@acme.com",
			"date": "2024-06-01T11:00:00Z",
		},
	})
	repo := repository.NewInMemoryRepository()
	p := newTestPipeline(path, repo, aggregator.ModeBatch, nil, Options{Workers: 1, MaxRecords: 1})

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.RecordsRead)
	assert.Equal(t, int64(1), stats.RecordsDropped)
	assert.Equal(t, int64(2), stats.EventsEmitted)

	n, err := repo.CountEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunWithOracle(t *testing.T) {
	path := writeRecords(t, testRecords())
	repo := repository.NewInMemoryRepository()
	orc := newRecordingOracle()
	p := newTestPipeline(path, repo, aggregator.ModeBatch, orc, Options{Workers: 2, OracleWorkers: 2})

	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	// one enrichment job per surviving record
	assert.Equal(t, int64(2), stats.OracleJobs)
	assert.Equal(t, 2, orc.calls)

	enrs := repo.Enrichments("ava.mueller@acme.com")
	require.Len(t, enrs, 1)
	assert.Equal(t, "Engineer", enrs[0].Role)
}

func TestRunWithBudgetedOracle(t *testing.T) {
	records := make([]map[string]interface{}, 0, 5)
	for i := 0; i < 5; i++ {
		records = append(records, map[string]interface{}{
			"from": "ava@acme.com",
			"to":   "ben@acme.com",
			"date": "2024-06-01T10:00:00Z",
		})
	}
	path := writeRecords(t, records)
	repo := repository.NewInMemoryRepository()
	inner := newRecordingOracle()
	p := newTestPipeline(path, repo, aggregator.ModeBatch, oracle.NewBudgeted(inner, 2), Options{Workers: 2, OracleWorkers: 2})

	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(5), stats.OracleJobs)
	// budget of 2 lets exactly two jobs reach the oracle; the rest degrade
	// locally with no call attempt
	assert.Equal(t, 2, inner.calls)

	enrs := repo.Enrichments("ava@acme.com")
	require.Len(t, enrs, 5)
	unknown := 0
	for _, e := range enrs {
		if e.Role == "Unknown" {
			unknown++
		}
	}
	assert.Equal(t, 3, unknown)
}

func TestRunMalformedInputFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"from":"a@acme.com"},{"from":`), 0o644))

	repo := repository.NewInMemoryRepository()
	p := newTestPipeline(path, repo, aggregator.ModeBatch, nil, Options{Workers: 1})

	_, err := p.Run(context.Background())
	assert.Error(t, err)
}

func TestRunEmptyInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	repo := repository.NewInMemoryRepository()
	p := newTestPipeline(path, repo, aggregator.ModeBatch, nil, Options{})

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.RecordsRead)

	participants, err := repo.ListParticipants(context.Background())
	require.NoError(t, err)
	assert.Empty(t, participants)
}
