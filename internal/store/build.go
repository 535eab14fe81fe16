package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Build statuses.
const (
	BuildRunning   = "building"
	BuildSucceeded = "succeeded"
	BuildFailed    = "failed"
)

// Build is one entry of the build history.
type Build struct {
	ID     string `json:"id"`
	Target string `json:"target"`
	Seq    int64  `json:"seq"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// BeginBuild records the start of build id for target. Seq is a logical
// clock: one more than the highest recorded seq.
func (s *Store) BeginBuild(ctx context.Context, id, target string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO builds (id, target, seq, status)
			VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM builds), ?)
		`, id, target, BuildRunning)
		return err
	})
	if err != nil {
		return fmt.Errorf("begin build: %w", err)
	}
	return nil
}

// FinishBuild records the outcome of build id. A nil buildErr is success.
func (s *Store) FinishBuild(ctx context.Context, id string, buildErr error) error {
	status, msg := BuildSucceeded, ""
	if buildErr != nil {
		status, msg = BuildFailed, buildErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE builds SET status = ?, error = ? WHERE id = ?`, status, msg, id)
	if err != nil {
		return fmt.Errorf("finish build: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish build: unknown build %s", id)
	}
	return nil
}

// Builds returns up to limit builds, newest first. limit <= 0 returns all.
func (s *Store) Builds(ctx context.Context, limit int) ([]Build, error) {
	query := `SELECT id, target, seq, status, error FROM builds ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	builds := []Build{}
	for rows.Next() {
		var b Build
		if err := rows.Scan(&b.ID, &b.Target, &b.Seq, &b.Status, &b.Error); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate builds: %w", err)
	}
	return builds, nil
}
