// Package pipeline drives ingestion: a single producer streams and
// normalizes raw records into a bounded queue, workers classify, resolve
// and aggregate them, and a small oracle pool enriches senders off the
// hot path.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/orgmesh-labs/orgmesh/internal/aggregator"
	"github.com/orgmesh-labs/orgmesh/internal/classifier"
	"github.com/orgmesh-labs/orgmesh/internal/identity"
	"github.com/orgmesh-labs/orgmesh/internal/logging"
	"github.com/orgmesh-labs/orgmesh/internal/metrics"
	"github.com/orgmesh-labs/orgmesh/internal/models"
	"github.com/orgmesh-labs/orgmesh/internal/normalizer"
	"github.com/orgmesh-labs/orgmesh/internal/oracle"
	"github.com/orgmesh-labs/orgmesh/internal/reader"
	"github.com/orgmesh-labs/orgmesh/internal/repository"
)

// Options tunes queue and worker sizing.
type Options struct {
	QueueSize     int
	Workers       int
	OracleWorkers int
	MaxRecords    int // caps records surviving normalization; 0 processes everything
	Channel       string
}

func (o *Options) withDefaults() {
	if o.QueueSize < 1 {
		o.QueueSize = 1024
	}
	if o.Workers < 1 {
		o.Workers = 4
	}
	if o.OracleWorkers < 1 {
		o.OracleWorkers = 2
	}
	if o.Channel == "" {
		o.Channel = "email"
	}
}

// Stats summarizes one pipeline run.
type Stats struct {
	RecordsRead    int64 `json:"records_read"`
	RecordsDropped int64 `json:"records_dropped"`
	EventsEmitted  int64 `json:"events_emitted"`
	OracleJobs     int64 `json:"oracle_jobs"`
}

// Pipeline is one configured ingestion run over a single source.
type Pipeline struct {
	source   *reader.Source
	norm     *normalizer.Normalizer
	cls      *classifier.Classifier
	resolver *identity.Resolver
	agg      *aggregator.Aggregator
	repo     repository.Repository
	oracle   oracle.Oracle // nil disables enrichment
	log      *logging.Logger
	opts     Options

	recordsRead    atomic.Int64
	recordsDropped atomic.Int64
	eventsEmitted  atomic.Int64
	oracleJobs     atomic.Int64
}

// New assembles a pipeline. Pass a nil oracle to disable enrichment.
func New(
	source *reader.Source,
	norm *normalizer.Normalizer,
	cls *classifier.Classifier,
	resolver *identity.Resolver,
	agg *aggregator.Aggregator,
	repo repository.Repository,
	orc oracle.Oracle,
	log *logging.Logger,
	opts Options,
) *Pipeline {
	opts.withDefaults()
	return &Pipeline{
		source:   source,
		norm:     norm,
		cls:      cls,
		resolver: resolver,
		agg:      agg,
		repo:     repo,
		oracle:   orc,
		log:      log,
		opts:     opts,
	}
}

type enrichJob struct {
	email string
	req   oracle.Request
}

// Run executes the full ingestion pass and finalizes aggregation. On
// error, batches already flushed stay durable; the run stops at the
// first hard failure.
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	g, ctx := errgroup.WithContext(ctx)

	queue := make(chan *models.NormalizedEvent, p.opts.QueueSize)

	var enrich chan enrichJob
	if p.oracle != nil {
		enrich = make(chan enrichJob, p.opts.QueueSize)
		for i := 0; i < p.opts.OracleWorkers; i++ {
			g.Go(func() error {
				p.enrichWorker(ctx, enrich)
				return nil
			})
		}
	}

	g.Go(func() error {
		defer close(queue)
		return p.produce(ctx, queue)
	})

	var workerWG sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		workerWG.Add(1)
		g.Go(func() error {
			defer workerWG.Done()
			return p.consume(ctx, queue, enrich)
		})
	}
	g.Go(func() error {
		workerWG.Wait()
		if enrich != nil {
			close(enrich)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return p.stats(), err
	}

	if err := p.agg.Finalize(ctx); err != nil {
		return p.stats(), err
	}

	st := p.stats()
	p.log.Info("ingestion complete",
		"records_read", st.RecordsRead,
		"records_dropped", st.RecordsDropped,
		"events_emitted", st.EventsEmitted,
		"oracle_jobs", st.OracleJobs,
	)
	return st, nil
}

// produce reads and normalizes records. MaxRecords counts records that
// survive normalization, so dirty datasets still yield the requested
// number of valid records.
func (p *Pipeline) produce(ctx context.Context, queue chan<- *models.NormalizedEvent) error {
	survivors := 0
	err := p.source.Each(ctx, func(rec models.RawRecord) error {
		p.recordsRead.Add(1)
		ev, ok := p.norm.Normalize(rec)
		if !ok {
			p.recordsDropped.Add(1)
			return nil
		}
		select {
		case queue <- ev:
			metrics.QueueDepth.Inc()
		case <-ctx.Done():
			return ctx.Err()
		}
		survivors++
		if p.opts.MaxRecords > 0 && survivors >= p.opts.MaxRecords {
			return reader.ErrStop
		}
		return nil
	})
	if errors.Is(err, reader.ErrStop) {
		return nil
	}
	return err
}

func (p *Pipeline) consume(ctx context.Context, queue <-chan *models.NormalizedEvent, enrich chan<- enrichJob) error {
	for ev := range queue {
		metrics.QueueDepth.Dec()
		if err := p.process(ctx, ev, enrich); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) process(ctx context.Context, ev *models.NormalizedEvent, enrich chan<- enrichJob) error {
	topic, capacity := p.cls.Classify(ev.Subject, ev.Body)

	sender, err := p.resolver.Resolve(ctx, ev.Sender, ev.Timestamp)
	if err != nil {
		return err
	}

	for _, rcpt := range ev.Recipients {
		to, err := p.resolver.Resolve(ctx, rcpt, ev.Timestamp)
		if err != nil {
			return err
		}
		event := &models.CommunicationEvent{
			ID:              uuid.New().String(),
			Timestamp:       ev.Timestamp,
			FromParticipant: sender.ID,
			ToParticipant:   to.ID,
			Channel:         p.opts.Channel,
			Capacity:        capacity,
			Topic:           topic,
			Summary:         ev.Subject,
		}
		if err := p.agg.Record(ctx, event); err != nil {
			return err
		}
		p.eventsEmitted.Add(1)
	}

	if enrich != nil {
		job := enrichJob{email: ev.Sender, req: oracle.NewRequest(ev)}
		select {
		case enrich <- job:
			p.oracleJobs.Add(1)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// enrichWorker drains enrichment jobs. Oracle failures degrade to the
// Unknown quadruple and never fail the run.
func (p *Pipeline) enrichWorker(ctx context.Context, enrich <-chan enrichJob) {
	for job := range enrich {
		enr, err := p.oracle.Classify(ctx, job.req)
		if err != nil {
			metrics.OracleCallsTotal.WithLabelValues("error").Inc()
			p.log.Warn("oracle classification failed",
				logging.Email(job.email), logging.Err(err))
			enr = oracle.Unknown()
		} else {
			metrics.OracleCallsTotal.WithLabelValues("ok").Inc()
		}
		if err := p.repo.RecordEnrichment(ctx, job.email, enr); err != nil {
			p.log.Warn("enrichment write failed",
				logging.Email(job.email), logging.Err(err))
		}
	}
}

func (p *Pipeline) stats() *Stats {
	return &Stats{
		RecordsRead:    p.recordsRead.Load(),
		RecordsDropped: p.recordsDropped.Load(),
		EventsEmitted:  p.eventsEmitted.Load(),
		OracleJobs:     p.oracleJobs.Load(),
	}
}
