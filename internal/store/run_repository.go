package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/limaJavier/timetabler/pkg/model"
)

const (
	RunComplete = "complete"
	RunPartial  = "partial"

	defaultListLimit = 20

	// Fixed width so that text ordering matches time ordering
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

var ErrRunNotFound = errors.New("run not found")

// Run is one persisted generation, holding the full timetable it produced
type Run struct {
	ID          string          `json:"id"`
	Strategy    model.Strategy  `json:"strategy"`
	Status      string          `json:"status"`
	InputDigest string          `json:"inputDigest"`
	Divisions   int             `json:"divisions"`
	Failures    int             `json:"failures"`
	Duration    time.Duration   `json:"-"`
	CreatedAt   time.Time       `json:"createdAt"`
	Timetable   model.Timetable `json:"timetable"`
}

// NewRun summarises a timetable into a Run ready to be stored
func NewRun(strategy model.Strategy, digest string, timetable model.Timetable, duration time.Duration) *Run {
	status := RunComplete
	if !timetable.Complete() {
		status = RunPartial
	}
	return &Run{
		Strategy:    strategy,
		Status:      status,
		InputDigest: digest,
		Divisions:   len(timetable.Divisions),
		Failures:    len(timetable.Failures()),
		Duration:    duration,
		Timetable:   timetable,
	}
}

type runRow struct {
	ID          string `db:"id"`
	Strategy    string `db:"strategy"`
	Status      string `db:"status"`
	InputDigest string `db:"input_digest"`
	Divisions   int    `db:"divisions"`
	Failures    int    `db:"failures"`
	Result      string `db:"result"`
	DurationMs  int64  `db:"duration_ms"`
	CreatedAt   string `db:"created_at"`
}

func (row runRow) run() (*Run, error) {
	createdAt, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at of run %s: %w", row.ID, err)
	}
	run := &Run{
		ID:          row.ID,
		Strategy:    model.Strategy(row.Strategy),
		Status:      row.Status,
		InputDigest: row.InputDigest,
		Divisions:   row.Divisions,
		Failures:    row.Failures,
		Duration:    time.Duration(row.DurationMs) * time.Millisecond,
		CreatedAt:   createdAt,
	}
	if err := json.Unmarshal([]byte(row.Result), &run.Timetable); err != nil {
		return nil, fmt.Errorf("unmarshal result of run %s: %w", row.ID, err)
	}
	return run, nil
}

// RunRepository persists timetable runs in SQLite or PostgreSQL
type RunRepository struct {
	db *sqlx.DB
}

func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create assigns the id and creation time when missing and inserts the run
func (r *RunRepository) Create(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	result, err := json.Marshal(run.Timetable)
	if err != nil {
		return fmt.Errorf("marshal result of run %s: %w", run.ID, err)
	}

	row := runRow{
		ID:          run.ID,
		Strategy:    string(run.Strategy),
		Status:      run.Status,
		InputDigest: run.InputDigest,
		Divisions:   run.Divisions,
		Failures:    run.Failures,
		Result:      string(result),
		DurationMs:  run.Duration.Milliseconds(),
		CreatedAt:   run.CreatedAt.UTC().Format(timeLayout),
	}
	const query = `INSERT INTO timetable_runs (id, strategy, status, input_digest, divisions, failures, result, duration_ms, created_at)
		VALUES (:id, :strategy, :status, :input_digest, :divisions, :failures, :result, :duration_ms, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Get returns the run with the given id or ErrRunNotFound
func (r *RunRepository) Get(ctx context.Context, id string) (*Run, error) {
	query := r.db.Rebind(`SELECT id, strategy, status, input_digest, divisions, failures, result, duration_ms, created_at FROM timetable_runs WHERE id = ?`)
	var row runRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return row.run()
}

// List returns the most recent runs first. A non-positive limit uses the default page size
func (r *RunRepository) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := r.db.Rebind(`SELECT id, strategy, status, input_digest, divisions, failures, result, duration_ms, created_at FROM timetable_runs ORDER BY created_at DESC, id LIMIT ?`)
	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	runs := make([]*Run, 0, len(rows))
	for _, row := range rows {
		run, err := row.run()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}
