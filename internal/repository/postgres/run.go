package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/RMahshie/sedconv/internal/repository"
	"github.com/RMahshie/sedconv/pkg/models"
)

// schema creates the tables used by the run repository
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            UUID PRIMARY KEY,
	status        TEXT NOT NULL,
	progress      INTEGER NOT NULL DEFAULT 0,
	stages        TEXT[] NOT NULL DEFAULT '{}',
	error_message TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS convolved_fluxes (
	id           UUID PRIMARY KEY,
	run_id       UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	model_family TEXT NOT NULL,
	model_name   TEXT NOT NULL,
	filter       TEXT NOT NULL,
	flux         DOUBLE PRECISION NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS convolved_fluxes_run_family_idx
	ON convolved_fluxes (run_id, model_family);
`

// Migrate applies the schema; it is safe to run repeatedly
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Open connects to url, verifies the connection and applies the schema
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// PostgresRunRepository implements RunRepository for PostgreSQL
type PostgresRunRepository struct {
	db *sql.DB
}

// NewPostgresRunRepository creates a new PostgreSQL run repository
func NewPostgresRunRepository(db *sql.DB) repository.RunRepository {
	return &PostgresRunRepository{db: db}
}

// Create inserts a new run record
func (r *PostgresRunRepository) Create(ctx context.Context, run *models.Run) error {
	query := `
		INSERT INTO runs (id, status, progress, stages, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.Status,
		run.Progress,
		pq.Array(run.Stages),
		run.CreatedAt,
		run.UpdatedAt)

	return err
}

const runColumns = `id, status, progress, stages, error_message, created_at, updated_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var run models.Run
	var errorMsg sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&run.ID,
		&run.Status,
		&run.Progress,
		pq.Array(&run.Stages),
		&errorMsg,
		&run.CreatedAt,
		&run.UpdatedAt,
		&completedAt)
	if err != nil {
		return nil, err
	}

	if errorMsg.Valid {
		run.ErrorMsg = &errorMsg.String
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}

	return &run, nil
}

// GetByID retrieves a run by ID
func (r *PostgresRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", repository.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	return run, nil
}

// List returns the most recent runs first
func (r *PostgresRunRepository) List(ctx context.Context, limit int) ([]*models.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// UpdateStatus updates the status and progress of a run
func (r *PostgresRunRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int) error {
	query := `
		UPDATE runs
		SET status = $1, progress = $2, updated_at = NOW(),
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END
		WHERE id = $3`

	_, err := r.db.ExecContext(ctx, query, status, progress, id)
	return err
}

// UpdateError marks a run as failed with a message
func (r *PostgresRunRepository) UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	query := `
		UPDATE runs
		SET status = 'failed', error_message = $1, updated_at = NOW()
		WHERE id = $2`

	_, err := r.db.ExecContext(ctx, query, errorMsg, id)
	return err
}

// StoreFluxes bulk-inserts convolved fluxes with COPY
func (r *PostgresRunRepository) StoreFluxes(ctx context.Context, fluxes []models.ConvolvedFlux) error {
	if len(fluxes) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("convolved_fluxes",
		"id", "run_id", "model_family", "model_name", "filter", "flux", "created_at"))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}

	for _, f := range fluxes {
		if _, err := stmt.ExecContext(ctx, f.ID, f.RunID, f.ModelFamily, f.ModelName, f.Filter, f.Flux, f.CreatedAt); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy flux %s/%s/%s: %w", f.ModelFamily, f.ModelName, f.Filter, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return err
	}

	return tx.Commit()
}

// GetFluxes returns the fluxes of a run, optionally restricted to one family
func (r *PostgresRunRepository) GetFluxes(ctx context.Context, runID uuid.UUID, family string) ([]models.ConvolvedFlux, error) {
	query := `
		SELECT id, run_id, model_family, model_name, filter, flux, created_at
		FROM convolved_fluxes
		WHERE run_id = $1 AND ($2 = '' OR model_family = $2)
		ORDER BY model_family, filter, model_name`

	rows, err := r.db.QueryContext(ctx, query, runID, family)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fluxes []models.ConvolvedFlux
	for rows.Next() {
		var f models.ConvolvedFlux
		if err := rows.Scan(&f.ID, &f.RunID, &f.ModelFamily, &f.ModelName, &f.Filter, &f.Flux, &f.CreatedAt); err != nil {
			return nil, err
		}
		fluxes = append(fluxes, f)
	}

	return fluxes, rows.Err()
}
