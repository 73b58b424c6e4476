package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mgreene/runlab/internal/storage"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements storage.Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and runs migrations.
// Use ":memory:" for an in-memory database (useful for testing).
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveImage(ctx context.Context, img *storage.Image) error {
	img.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO images (id, filename, data, text, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		img.ID, img.Filename, img.Data, img.Text,
		img.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting image: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetImage(ctx context.Context, id string) (*storage.Image, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, data, text, created_at
		FROM images WHERE id = ?`, id)

	var img storage.Image
	var createdAt string
	err := row.Scan(&img.ID, &img.Filename, &img.Data, &img.Text, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("image not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying image: %w", err)
	}
	img.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &img, nil
}

func (s *SQLiteStore) ListImages(ctx context.Context, opts storage.ListOptions) ([]storage.Image, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, text, created_at FROM images
		ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	defer rows.Close()

	var images []storage.Image
	for rows.Next() {
		var img storage.Image
		var createdAt string
		if err := rows.Scan(&img.ID, &img.Filename, &img.Text, &createdAt); err != nil {
			return nil, err
		}
		img.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		images = append(images, img)
	}
	return images, rows.Err()
}

func (s *SQLiteStore) DeleteImage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("image not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *storage.Run) error {
	run.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, language, code, output, errors, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Language, run.Code, run.Output, run.Errors,
		run.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, opts storage.ListOptions) ([]storage.Run, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, language, code, output, errors, created_at FROM runs
		ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []storage.Run
	for rows.Next() {
		var run storage.Run
		var createdAt string
		if err := rows.Scan(&run.ID, &run.Language, &run.Code, &run.Output, &run.Errors, &createdAt); err != nil {
			return nil, err
		}
		run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
