package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/semdiff/videodiff/internal/models"
)

// Postgres persists comparison runs and their per-frame descriptions.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects, verifies the connection and makes sure the schema
// exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Postgres{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Postgres) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Postgres) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS comparison_runs (
			id               TEXT PRIMARY KEY,
			video_id         TEXT NOT NULL,
			class            TEXT NOT NULL,
			num_frames       INT NOT NULL,
			baseline_tokens  BIGINT NOT NULL,
			diff_tokens      BIGINT NOT NULL,
			reduction        DOUBLE PRECISION,
			complete         BOOLEAN NOT NULL,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS frame_descriptions (
			run_id            TEXT NOT NULL REFERENCES comparison_runs(id),
			frame_index       INT NOT NULL,
			strategy          TEXT NOT NULL,
			text              TEXT NOT NULL,
			prompt_tokens     BIGINT NOT NULL,
			completion_tokens BIGINT NOT NULL,
			ok                BOOLEAN NOT NULL,
			fail_reason       TEXT,
			PRIMARY KEY (run_id, frame_index, strategy)
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveResult stores one video result. The run row and all frame rows go in a
// single transaction so a crash never leaves a half-saved run behind.
func (s *Postgres) SaveResult(ctx context.Context, res *models.VideoResult) error {
	run := res.Run

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var reduction *float64
	if run.ReductionComputable {
		reduction = &run.Reduction
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO comparison_runs
		(id, video_id, class, num_frames, baseline_tokens, diff_tokens, reduction, complete)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, res.VideoID, res.Class, run.NumFrames,
		run.BaselineTokens, run.DiffTokens, reduction, run.Complete)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, set := range []struct {
		strategy string
		results  []models.DescriptionResult
	}{
		{"baseline", run.Baseline},
		{"diff", run.Diff},
	} {
		for i, r := range set.results {
			_, err = tx.Exec(ctx,
				`INSERT INTO frame_descriptions
				(run_id, frame_index, strategy, text, prompt_tokens, completion_tokens, ok, fail_reason)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				run.ID, i, set.strategy, r.Text,
				r.PromptTokens, r.CompletionTokens, r.OK, r.FailReason)
			if err != nil {
				return fmt.Errorf("insert %s description %d: %w", set.strategy, i, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
