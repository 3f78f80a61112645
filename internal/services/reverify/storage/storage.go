// Package storage defines persistence contracts for reverification photo
// submissions.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested submission is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a submission id is already taken.
	ErrAlreadyExists = errors.New("record already exists")
)

// Status is the review state of one submission.
type Status string

const (
	// StatusSubmitted marks a photo that is waiting for review.
	StatusSubmitted Status = "submitted"
)

// Submission stores one captured reverification photo.
type Submission struct {
	ID           string
	UserID       string
	CourseID     string
	CheckpointID string
	ContentType  string
	Image        []byte
	SHA256       string
	Width        int
	Height       int
	Status       Status
	CreatedAt    time.Time
}

// SubmissionStore persists reverification submissions.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, submission Submission) error
	GetSubmission(ctx context.Context, id string) (Submission, error)
	ListUserSubmissions(ctx context.Context, userID string, limit int) ([]Submission, error)
	LatestCheckpointSubmission(ctx context.Context, userID, courseID, checkpointID string) (Submission, error)
}
