package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/netplus/netprep/internal/codec"
)

// Schema holds the local progress table and the offline update outbox.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS progress (
		component_id TEXT PRIMARY KEY,
		completed    INTEGER NOT NULL DEFAULT 0,
		score        REAL,
		time_spent   INTEGER NOT NULL DEFAULT 0,
		last_visited TEXT NOT NULL,
		attempts     INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS progress_outbox (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		component_id TEXT NOT NULL,
		payload      BLOB NOT NULL,
		created_at   TEXT NOT NULL
	);`,
}

var ErrNotFound = errors.New("progress: component not found")

const upsertRecord = `
INSERT INTO progress (component_id, completed, score, time_spent, last_visited, attempts)
VALUES (:component_id, :completed, :score, :time_spent, :last_visited, :attempts)
ON CONFLICT (component_id) DO UPDATE SET
	completed    = excluded.completed,
	score        = excluded.score,
	time_spent   = excluded.time_spent,
	last_visited = excluded.last_visited,
	attempts     = excluded.attempts`

type recordRow struct {
	ComponentID string          `db:"component_id"`
	Completed   bool            `db:"completed"`
	Score       sql.NullFloat64 `db:"score"`
	TimeSpent   int64           `db:"time_spent"`
	LastVisited string          `db:"last_visited"`
	Attempts    int             `db:"attempts"`
}

func toRow(r Record) recordRow {
	row := recordRow{
		ComponentID: r.ComponentID,
		Completed:   r.Completed,
		TimeSpent:   r.TimeSpent,
		LastVisited: r.LastVisited.UTC().Format(time.RFC3339Nano),
		Attempts:    r.Attempts,
	}
	if r.Score != nil {
		row.Score = sql.NullFloat64{Float64: *r.Score, Valid: true}
	}
	return row
}

func (row recordRow) record() (Record, error) {
	visited, err := time.Parse(time.RFC3339Nano, row.LastVisited)
	if err != nil {
		return Record{}, fmt.Errorf("progress: parse last_visited of %s: %w", row.ComponentID, err)
	}
	r := Record{
		ComponentID: row.ComponentID,
		Completed:   row.Completed,
		TimeSpent:   row.TimeSpent,
		LastVisited: visited,
		Attempts:    row.Attempts,
	}
	if row.Score.Valid {
		score := row.Score.Float64
		r.Score = &score
	}
	return r, nil
}

// LocalStore is the on-device copy of progress plus the outbox of updates not yet sent.
type LocalStore struct {
	db *sqlx.DB
}

// NewLocalStore uses a database opened with Schema applied.
func NewLocalStore(db *sqlx.DB) *LocalStore {
	return &LocalStore{db: db}
}

func (s *LocalStore) All(ctx context.Context) (map[string]Record, error) {
	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM progress ORDER BY component_id`); err != nil {
		return nil, fmt.Errorf("progress: list: %w", err)
	}

	all := make(map[string]Record, len(rows))
	for _, row := range rows {
		r, err := row.record()
		if err != nil {
			return nil, err
		}
		all[r.ComponentID] = r
	}
	return all, nil
}

func (s *LocalStore) Get(ctx context.Context, componentID string) (Record, error) {
	var row recordRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM progress WHERE component_id = ?`, componentID)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("progress: get %s: %w", componentID, err)
	}
	return row.record()
}

func (s *LocalStore) Put(ctx context.Context, r Record) error {
	if _, err := s.db.NamedExecContext(ctx, upsertRecord, toRow(r)); err != nil {
		return fmt.Errorf("progress: put %s: %w", r.ComponentID, err)
	}
	return nil
}

// PutAll writes records in one transaction.
func (s *LocalStore) PutAll(ctx context.Context, records map[string]Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("progress: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, upsertRecord)
	if err != nil {
		return fmt.Errorf("progress: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, toRow(r)); err != nil {
			return fmt.Errorf("progress: put %s: %w", r.ComponentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("progress: commit: %w", err)
	}
	return nil
}

// Reset deletes all local progress. The outbox is kept.
func (s *LocalStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM progress`); err != nil {
		return fmt.Errorf("progress: reset: %w", err)
	}
	return nil
}

// Enqueue appends an update to the outbox.
func (s *LocalStore) Enqueue(ctx context.Context, componentID string, u Update, at time.Time) error {
	payload, err := codec.Marshal(u)
	if err != nil {
		return fmt.Errorf("progress: encode update: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO progress_outbox (component_id, payload, created_at) VALUES (?, ?, ?)`,
		componentID, payload, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("progress: enqueue %s: %w", componentID, err)
	}
	return nil
}

type outboxRow struct {
	ID          int64  `db:"id"`
	ComponentID string `db:"component_id"`
	Payload     []byte `db:"payload"`
	CreatedAt   string `db:"created_at"`
}

// Pending returns the outbox in insertion order.
func (s *LocalStore) Pending(ctx context.Context) ([]QueuedUpdate, error) {
	var rows []outboxRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM progress_outbox ORDER BY id`); err != nil {
		return nil, fmt.Errorf("progress: list outbox: %w", err)
	}

	queued := make([]QueuedUpdate, 0, len(rows))
	for _, row := range rows {
		var u Update
		if err := codec.Unmarshal(row.Payload, &u); err != nil {
			return nil, fmt.Errorf("progress: decode outbox item %d: %w", row.ID, err)
		}
		ts, _ := time.Parse(time.RFC3339Nano, row.CreatedAt)
		queued = append(queued, QueuedUpdate{
			ID:          row.ID,
			ComponentID: row.ComponentID,
			Update:      u,
			Timestamp:   ts,
		})
	}
	return queued, nil
}

// Ack removes a processed outbox item.
func (s *LocalStore) Ack(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM progress_outbox WHERE id = ?`, id); err != nil {
		return fmt.Errorf("progress: ack %d: %w", id, err)
	}
	return nil
}
