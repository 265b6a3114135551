package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/orgmesh-labs/orgmesh/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS participants (
	id TEXT PRIMARY KEY,
	email TEXT UNIQUE NOT NULL,
	full_name TEXT NOT NULL,
	role TEXT NOT NULL,
	team TEXT NOT NULL,
	location TEXT NOT NULL,
	first_seen DATETIME NOT NULL,
	start_date DATE NOT NULL
);

CREATE TABLE IF NOT EXISTS comm_events (
	id TEXT PRIMARY KEY,
	timestamp DATETIME NOT NULL,
	from_participant TEXT NOT NULL,
	to_participant TEXT NOT NULL,
	channel TEXT NOT NULL,
	capacity TEXT NOT NULL,
	topic TEXT NOT NULL,
	summary TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS comm_edges (
	from_participant TEXT NOT NULL,
	to_participant TEXT NOT NULL,
	channel TEXT NOT NULL,
	capacity TEXT NOT NULL,
	message_count INTEGER NOT NULL,
	last_interaction_at DATETIME NOT NULL,
	topics TEXT NOT NULL,
	weight REAL NOT NULL,
	notes TEXT,
	PRIMARY KEY (from_participant, to_participant, channel, capacity)
);

CREATE TABLE IF NOT EXISTS enrichments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL,
	role TEXT NOT NULL,
	team TEXT NOT NULL,
	task_title TEXT NOT NULL,
	task_description TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`

// SQLiteRepository is the single-file storage driver, the default for CLI
// runs. Schema is ensured on open.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens or creates the database at path.
func NewSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Serialized access keeps the single writer happy under worker fan-in.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) CreateParticipant(ctx context.Context, p *models.Participant) error {
	query := `
		INSERT INTO participants (id, email, full_name, role, team, location, first_seen, start_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Email, p.FullName, p.Role, p.Team, p.Location,
		p.FirstSeen.UTC(), p.StartDate.UTC(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrParticipantExists
		}
		return fmt.Errorf("create participant: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetParticipantByEmail(ctx context.Context, email string) (*models.Participant, error) {
	query := `
		SELECT id, email, full_name, role, team, location, first_seen, start_date
		FROM participants
		WHERE email = ?
	`
	var p models.Participant
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&p.ID, &p.Email, &p.FullName, &p.Role, &p.Team, &p.Location,
		&p.FirstSeen, &p.StartDate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return &p, nil
}

func (r *SQLiteRepository) UpdateFirstSeen(ctx context.Context, id string, firstSeen time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE participants SET first_seen = ? WHERE id = ?`,
		firstSeen.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update first_seen: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrParticipantNotFound
	}
	return nil
}

func (r *SQLiteRepository) ListParticipants(ctx context.Context) ([]*models.Participant, error) {
	query := `
		SELECT id, email, full_name, role, team, location, first_seen, start_date
		FROM participants
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []*models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(
			&p.ID, &p.Email, &p.FullName, &p.Role, &p.Team, &p.Location,
			&p.FirstSeen, &p.StartDate,
		); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) AppendEvents(ctx context.Context, events []*models.CommunicationEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO comm_events (id, timestamp, from_participant, to_participant, channel, capacity, topic, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare event insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx,
			ev.ID, ev.Timestamp.UTC(), ev.FromParticipant, ev.ToParticipant,
			ev.Channel, ev.Capacity, ev.Topic, ev.Summary,
		); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	return tx.Commit()
}

func (r *SQLiteRepository) CountEvents(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comm_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

const sqliteUpsertEdge = `
	INSERT INTO comm_edges (from_participant, to_participant, channel, capacity,
		message_count, last_interaction_at, topics, weight, notes)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (from_participant, to_participant, channel, capacity) DO UPDATE SET
		message_count = excluded.message_count,
		last_interaction_at = excluded.last_interaction_at,
		topics = excluded.topics,
		weight = excluded.weight,
		notes = excluded.notes
`

func (r *SQLiteRepository) UpsertEdge(ctx context.Context, edge *models.CommunicationEdge) error {
	topics, err := json.Marshal(edge.Topics)
	if err != nil {
		return fmt.Errorf("marshal topics: %w", err)
	}

	_, err = r.db.ExecContext(ctx, sqliteUpsertEdge,
		edge.Key.From, edge.Key.To, edge.Key.Channel, edge.Key.Capacity,
		edge.MessageCount, edge.LastInteractionAt.UTC(), string(topics), edge.Weight, edge.Notes,
	)
	if err != nil {
		return fmt.Errorf("upsert edge: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetEdge(ctx context.Context, key models.EdgeKey) (*models.CommunicationEdge, error) {
	query := `
		SELECT message_count, last_interaction_at, topics, weight, COALESCE(notes, '')
		FROM comm_edges
		WHERE from_participant = ? AND to_participant = ? AND channel = ? AND capacity = ?
	`
	edge := models.CommunicationEdge{Key: key}
	var topics string
	err := r.db.QueryRowContext(ctx, query, key.From, key.To, key.Channel, key.Capacity).Scan(
		&edge.MessageCount, &edge.LastInteractionAt, &topics, &edge.Weight, &edge.Notes,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEdgeNotFound
		}
		return nil, fmt.Errorf("get edge: %w", err)
	}
	if err := json.Unmarshal([]byte(topics), &edge.Topics); err != nil {
		return nil, fmt.Errorf("unmarshal topics: %w", err)
	}
	return &edge, nil
}

func (r *SQLiteRepository) ListEdges(ctx context.Context) ([]*models.CommunicationEdge, error) {
	query := `
		SELECT from_participant, to_participant, channel, capacity,
			message_count, last_interaction_at, topics, weight, COALESCE(notes, '')
		FROM comm_edges
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
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
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		if err := json.Unmarshal([]byte(topics), &edge.Topics); err != nil {
			return nil, fmt.Errorf("unmarshal topics: %w", err)
		}
		out = append(out, &edge)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CommitEvent(ctx context.Context, event *models.CommunicationEvent, edge *models.CommunicationEdge) error {
	topics, err := json.Marshal(edge.Topics)
	if err != nil {
		return fmt.Errorf("marshal topics: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO comm_events (id, timestamp, from_participant, to_participant, channel, capacity, topic, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID, event.Timestamp.UTC(), event.FromParticipant, event.ToParticipant,
		event.Channel, event.Capacity, event.Topic, event.Summary,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if _, err := tx.ExecContext(ctx, sqliteUpsertEdge,
		edge.Key.From, edge.Key.To, edge.Key.Channel, edge.Key.Capacity,
		edge.MessageCount, edge.LastInteractionAt.UTC(), string(topics), edge.Weight, edge.Notes,
	); err != nil {
		return fmt.Errorf("upsert edge: %w", err)
	}

	return tx.Commit()
}

func (r *SQLiteRepository) RecordEnrichment(ctx context.Context, email string, enr *models.Enrichment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO enrichments (email, role, team, task_title, task_description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		email, enr.Role, enr.Team, enr.TaskTitle, enr.TaskDescription, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record enrichment: %w", err)
	}
	return nil
}
