// Package sqlite provides a SQLite-backed reverification submission store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/reverify/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/reverify/internal/services/reverify/storage"
	"github.com/louisbranch/reverify/internal/services/reverify/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const submissionColumns = `id, user_id, course_id, checkpoint_id, content_type, image,
        sha256, width, height, status, created_at`

// Store persists submissions in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite submission store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateSubmission inserts one submission record.
func (s *Store) CreateSubmission(ctx context.Context, submission storage.Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id := strings.TrimSpace(submission.ID)
	userID := strings.TrimSpace(submission.UserID)
	switch {
	case id == "":
		return fmt.Errorf("submission id is required")
	case userID == "":
		return fmt.Errorf("user id is required")
	case len(submission.Image) == 0:
		return fmt.Errorf("image is required")
	}
	status := submission.Status
	if status == "" {
		status = storage.StatusSubmitted
	}
	createdAt := submission.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO reverify_submissions (`+submissionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		userID,
		strings.TrimSpace(submission.CourseID),
		strings.TrimSpace(submission.CheckpointID),
		submission.ContentType,
		submission.Image,
		submission.SHA256,
		submission.Width,
		submission.Height,
		string(status),
		toMillis(createdAt),
	)
	if err != nil {
		if isSubmissionUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// GetSubmission returns one submission by id.
func (s *Store) GetSubmission(ctx context.Context, id string) (storage.Submission, error) {
	if err := ctx.Err(); err != nil {
		return storage.Submission{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Submission{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.Submission{}, fmt.Errorf("submission id is required")
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+submissionColumns+`
		   FROM reverify_submissions
		  WHERE id = ?`,
		id,
	)
	submission, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Submission{}, storage.ErrNotFound
		}
		return storage.Submission{}, fmt.Errorf("get submission: %w", err)
	}
	return submission, nil
}

// ListUserSubmissions returns the user's most recent submissions, newest
// first.
func (s *Store) ListUserSubmissions(ctx context.Context, userID string, limit int) ([]storage.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+submissionColumns+`
		   FROM reverify_submissions
		  WHERE user_id = ?
		  ORDER BY created_at DESC, id DESC
		  LIMIT ?`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	submissions := make([]storage.Submission, 0, limit)
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("list submissions: %w", err)
		}
		submissions = append(submissions, submission)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// LatestCheckpointSubmission returns the newest submission for one
// course checkpoint.
func (s *Store) LatestCheckpointSubmission(ctx context.Context, userID, courseID, checkpointID string) (storage.Submission, error) {
	if err := ctx.Err(); err != nil {
		return storage.Submission{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Submission{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+submissionColumns+`
		   FROM reverify_submissions
		  WHERE user_id = ? AND course_id = ? AND checkpoint_id = ?
		  ORDER BY created_at DESC, id DESC
		  LIMIT 1`,
		strings.TrimSpace(userID),
		strings.TrimSpace(courseID),
		strings.TrimSpace(checkpointID),
	)
	submission, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Submission{}, storage.ErrNotFound
		}
		return storage.Submission{}, fmt.Errorf("latest checkpoint submission: %w", err)
	}
	return submission, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (storage.Submission, error) {
	var submission storage.Submission
	var status string
	var createdAt int64
	if err := row.Scan(
		&submission.ID,
		&submission.UserID,
		&submission.CourseID,
		&submission.CheckpointID,
		&submission.ContentType,
		&submission.Image,
		&submission.SHA256,
		&submission.Width,
		&submission.Height,
		&status,
		&createdAt,
	); err != nil {
		return storage.Submission{}, err
	}
	submission.Status = storage.Status(status)
	submission.CreatedAt = fromMillis(createdAt)
	return submission, nil
}

func isSubmissionUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "reverify_submissions.id")
}

var _ storage.SubmissionStore = (*Store)(nil)
