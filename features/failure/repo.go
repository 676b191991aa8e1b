package failure

import (
	"context"
	"database/sql"
)

type Repository interface {
	Save(ctx context.Context, f *Failure) error
	List(ctx context.Context) ([]Failure, error)
	Get(ctx context.Context, id string) (*Failure, error)
	Delete(ctx context.Context, id string) error
	DeleteStale(ctx context.Context, runID string) (int64, error)
	Count(ctx context.Context) (int, error)
	IncrementRetries(ctx context.Context, id, errMsg string) error
	SaveRun(ctx context.Context, run *Run) error
	LatestRun(ctx context.Context) (*Run, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// Save records f, replacing any earlier failure for the same path. The retry
// counter survives the replacement.
func (r *PostgresRepo) Save(ctx context.Context, f *Failure) error {
	query := `INSERT INTO ingest_failures (run_id, path, kind, reason, error) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (path) DO UPDATE SET run_id = EXCLUDED.run_id, kind = EXCLUDED.kind, reason = EXCLUDED.reason, error = EXCLUDED.error, created_at = NOW()
		RETURNING id, retries, created_at`
	return r.db.QueryRowContext(ctx, query, f.RunID, f.Path, f.Kind, f.Reason, f.Error).Scan(&f.ID, &f.Retries, &f.CreatedAt)
}

func (r *PostgresRepo) List(ctx context.Context) ([]Failure, error) {
	query := `SELECT id, run_id, path, kind, reason, error, retries, created_at FROM ingest_failures ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var failures []Failure
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.ID, &f.RunID, &f.Path, &f.Kind, &f.Reason, &f.Error, &f.Retries, &f.CreatedAt); err != nil {
			return nil, err
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Failure, error) {
	f := &Failure{}
	query := `SELECT id, run_id, path, kind, reason, error, retries, created_at FROM ingest_failures WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&f.ID, &f.RunID, &f.Path, &f.Kind, &f.Reason, &f.Error, &f.Retries, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM ingest_failures WHERE id = $1`, id)
	return err
}

// DeleteStale drops failures recorded by any run other than runID.
func (r *PostgresRepo) DeleteStale(ctx context.Context, runID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ingest_failures WHERE run_id <> $1`, runID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ingest_failures`).Scan(&count)
	return count, err
}

func (r *PostgresRepo) IncrementRetries(ctx context.Context, id, errMsg string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE ingest_failures SET retries = retries + 1, error = $2 WHERE id = $1`, id, errMsg)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresRepo) SaveRun(ctx context.Context, run *Run) error {
	query := `INSERT INTO ingest_runs (id, root, files_seen, files_failed, chunks_produced, chunks_stored, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query, run.ID, run.Root, run.FilesSeen, run.FilesFailed, run.ChunksProduced, run.ChunksStored, run.StartedAt, run.DurationMs)
	return err
}

// LatestRun returns the most recent run, or sql.ErrNoRows when none exist.
func (r *PostgresRepo) LatestRun(ctx context.Context) (*Run, error) {
	run := &Run{}
	query := `SELECT id, root, files_seen, files_failed, chunks_produced, chunks_stored, started_at, duration_ms FROM ingest_runs ORDER BY started_at DESC LIMIT 1`
	err := r.db.QueryRowContext(ctx, query).Scan(&run.ID, &run.Root, &run.FilesSeen, &run.FilesFailed, &run.ChunksProduced, &run.ChunksStored, &run.StartedAt, &run.DurationMs)
	if err != nil {
		return nil, err
	}
	return run, nil
}
