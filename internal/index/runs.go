package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/backlinks/internal/models"
)

// RecordRun stores a finished collection, marks its target as tracked and
// replaces the set of source notes that fed it.
func (db *DB) RecordRun(ctx context.Context, run models.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, target, output_path, entries, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Target, run.OutputPath, run.Entries, run.CreatedAt); err != nil {
		return fmt.Errorf("index: insert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO outputs (target, output_path, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(target) DO UPDATE SET
			output_path = excluded.output_path,
			updated_at  = excluded.updated_at
	`, run.Target, run.OutputPath, run.CreatedAt); err != nil {
		return fmt.Errorf("index: upsert output: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM output_sources WHERE target = ?`, run.Target); err != nil {
		return fmt.Errorf("index: clear output sources: %w", err)
	}
	if len(run.Sources) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO output_sources (target, source) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare source insert: %w", err)
		}
		defer stmt.Close()
		for _, src := range run.Sources {
			if _, err := stmt.ExecContext(ctx, run.Target, src); err != nil {
				return fmt.Errorf("index: insert output source: %w", err)
			}
		}
	}

	return tx.Commit()
}

// Runs returns the most recent runs first. Sources are not loaded.
func (db *DB) Runs(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, target, output_path, entries, created_at
		FROM runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("index: runs: %w", err)
	}
	defer rows.Close()

	var out []models.Run
	for rows.Next() {
		var r models.Run
		if err := rows.Scan(&r.ID, &r.Target, &r.OutputPath, &r.Entries, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Tracked reports whether a backlinks document has been generated for
// target, and where it was written.
func (db *DB) Tracked(target string) (string, bool, error) {
	var p string
	err := db.conn.QueryRow(`SELECT output_path FROM outputs WHERE target = ?`, target).Scan(&p)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("index: tracked: %w", err)
	}
	return p, true, nil
}

// OutputTarget returns the tracked target whose document lives at p.
func (db *DB) OutputTarget(p string) (string, bool, error) {
	var target string
	err := db.conn.QueryRow(`SELECT target FROM outputs WHERE output_path = ?`, p).Scan(&target)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("index: output target: %w", err)
	}
	return target, true, nil
}

// TargetsSourcedBy returns the tracked targets whose last run drew on the
// note at source.
func (db *DB) TargetsSourcedBy(source string) ([]string, error) {
	return db.queryStrings(`SELECT target FROM output_sources WHERE source = ? ORDER BY target`, source)
}

// ForgetOutput stops tracking the document generated for target. Run
// history is kept.
func (db *DB) ForgetOutput(target string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM output_sources WHERE target = ?`, target); err != nil {
		return fmt.Errorf("index: forget sources: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM outputs WHERE target = ?`, target); err != nil {
		return fmt.Errorf("index: forget output: %w", err)
	}
	return tx.Commit()
}
