package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orgmesh-labs/orgmesh/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository is the shared-deployment storage driver.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects to the database and applies pending
// migrations.
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(connString); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresRepository{pool: pool}, nil
}

func runMigrations(connString string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, connString)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *PostgresRepository) CreateParticipant(ctx context.Context, p *models.Participant) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO participants (id, email, full_name, role, team, location, first_seen, start_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.Email, p.FullName, p.Role, p.Team, p.Location,
		p.FirstSeen.UTC(), p.StartDate.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrParticipantExists
		}
		return fmt.Errorf("failed to create participant: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetParticipantByEmail(ctx context.Context, email string) (*models.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT id, email, full_name, role, team, location, first_seen, start_date
		FROM participants
		WHERE email = $1
	`

	var p models.Participant
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&p.ID, &p.Email, &p.FullName, &p.Role, &p.Team, &p.Location,
		&p.FirstSeen, &p.StartDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}

	return &p, nil
}

func (r *PostgresRepository) UpdateFirstSeen(ctx context.Context, id string, firstSeen time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx,
		`UPDATE participants SET first_seen = $2 WHERE id = $1`,
		id, firstSeen.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update first_seen: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrParticipantNotFound
	}

	return nil
}

func (r *PostgresRepository) ListParticipants(ctx context.Context) ([]*models.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT id, email, full_name, role, team, location, first_seen, start_date
		FROM participants
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var out []*models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(
			&p.ID, &p.Email, &p.FullName, &p.Role, &p.Team, &p.Location,
			&p.FirstSeen, &p.StartDate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		out = append(out, &p)
	}

	return out, rows.Err()
}

func (r *PostgresRepository) AppendEvents(ctx context.Context, events []*models.CommunicationEvent) error {
	if len(events) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	batch := &pgx.Batch{}
	query := `
		INSERT INTO comm_events (id, timestamp, from_participant, to_participant, channel, capacity, topic, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, ev := range events {
		batch.Queue(query,
			ev.ID, ev.Timestamp.UTC(), ev.FromParticipant, ev.ToParticipant,
			ev.Channel, ev.Capacity, ev.Topic, ev.Summary,
		)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to append events: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountEvents(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM comm_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

const pgUpsertEdge = `
	INSERT INTO comm_edges (from_participant, to_participant, channel, capacity,
		message_count, last_interaction_at, topics, weight, notes)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (from_participant, to_participant, channel, capacity) DO UPDATE SET
		message_count = EXCLUDED.message_count,
		last_interaction_at = EXCLUDED.last_interaction_at,
		topics = EXCLUDED.topics,
		weight = EXCLUDED.weight,
		notes = EXCLUDED.notes
`

func (r *PostgresRepository) UpsertEdge(ctx context.Context, edge *models.CommunicationEdge) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	topics, err := json.Marshal(edge.Topics)
	if err != nil {
		return fmt.Errorf("failed to marshal topics: %w", err)
	}

	_, err = r.pool.Exec(ctx, pgUpsertEdge,
		edge.Key.From, edge.Key.To, edge.Key.Channel, edge.Key.Capacity,
		edge.MessageCount, edge.LastInteractionAt.UTC(), string(topics), edge.Weight, edge.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert edge: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetEdge(ctx context.Context, key models.EdgeKey) (*models.CommunicationEdge, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT message_count, last_interaction_at, topics, weight, COALESCE(notes, '')
		FROM comm_edges
		WHERE from_participant = $1 AND to_participant = $2 AND channel = $3 AND capacity = $4
	`

	edge := models.CommunicationEdge{Key: key}
	var topics string
	err := r.pool.QueryRow(ctx, query, key.From, key.To, key.Channel, key.Capacity).Scan(
		&edge.MessageCount, &edge.LastInteractionAt, &topics, &edge.Weight, &edge.Notes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEdgeNotFound
		}
		return nil, fmt.Errorf("failed to get edge: %w", err)
	}
	if err := json.Unmarshal([]byte(topics), &edge.Topics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal topics: %w", err)
	}

	return &edge, nil
}

func (r *PostgresRepository) ListEdges(ctx context.Context) ([]*models.CommunicationEdge, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	query := `
		SELECT from_participant, to_participant, channel, capacity,
			message_count, last_interaction_at, topics, weight, COALESCE(notes, '')
		FROM comm_edges
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	defer rows.Close()

	var out []*models.CommunicationEdge
	for rows.Next() {
		var edge models.CommunicationEdge
		var topics string
		if err := rows.Scan(
			&edge.Key.From, &edge.Key.To, &edge.Key.Channel, &edge.Key.Capacity,
			&edge.MessageCount, &edge.LastInteractionAt, &topics, &edge.Weight, &edge.Notes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		if err := json.Unmarshal([]byte(topics), &edge.Topics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal topics: %w", err)
		}
		out = append(out, &edge)
	}

	return out, rows.Err()
}

func (r *PostgresRepository) CommitEvent(ctx context.Context, event *models.CommunicationEvent, edge *models.CommunicationEdge) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	topics, err := json.Marshal(edge.Topics)
	if err != nil {
		return fmt.Errorf("failed to marshal topics: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin commit: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO comm_events (id, timestamp, from_participant, to_participant, channel, capacity, topic, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		event.ID, event.Timestamp.UTC(), event.FromParticipant, event.ToParticipant,
		event.Channel, event.Capacity, event.Topic, event.Summary,
	); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	if _, err := tx.Exec(ctx, pgUpsertEdge,
		edge.Key.From, edge.Key.To, edge.Key.Channel, edge.Key.Capacity,
		edge.MessageCount, edge.LastInteractionAt.UTC(), string(topics), edge.Weight, edge.Notes,
	); err != nil {
		return fmt.Errorf("failed to upsert edge: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PostgresRepository) RecordEnrichment(ctx context.Context, email string, enr *models.Enrichment) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO enrichments (email, role, team, task_title, task_description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		email, enr.Role, enr.Team, enr.TaskTitle, enr.TaskDescription, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record enrichment: %w", err)
	}
	return nil
}
