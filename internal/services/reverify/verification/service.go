// Package verification accepts reverification photo submissions and
// records them for review.
package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/reverify/internal/platform/errors"
	"github.com/louisbranch/reverify/internal/platform/id"
	"github.com/louisbranch/reverify/internal/platform/logging"
	reverifyotel "github.com/louisbranch/reverify/internal/platform/otel"
	"github.com/louisbranch/reverify/internal/services/reverify/photo"
	"github.com/louisbranch/reverify/internal/services/reverify/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// DefaultRecentLimit bounds dashboard listings when no limit is given.
const DefaultRecentLimit = 10

// SubmitInput is one photo submission for a course checkpoint.
type SubmitInput struct {
	UserID       string
	CourseID     string
	CheckpointID string
	FaceImage    string
}

// Config wires the service dependencies.
type Config struct {
	Store   storage.SubmissionStore
	Decoder photo.Decoder
	Logger  *zap.Logger
	Now     func() time.Time
	NewID   func() (string, error)
}

// Service validates and records submissions.
type Service struct {
	store   storage.SubmissionStore
	decoder photo.Decoder
	logger  *zap.Logger
	now     func() time.Time
	newID   func() (string, error)
}

// NewService builds a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("submission store is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	newID := cfg.NewID
	if newID == nil {
		newID = id.NewID
	}
	return &Service{
		store:   cfg.Store,
		decoder: cfg.Decoder,
		logger:  logging.OrNop(cfg.Logger),
		now:     now,
		newID:   newID,
	}, nil
}

// Submit validates the captured photo and persists it for the user's
// checkpoint.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (storage.Submission, error) {
	ctx, span := reverifyotel.Tracer("reverify/verification").Start(ctx, "verification.Submit")
	defer span.End()

	userID := strings.TrimSpace(input.UserID)
	courseID := strings.TrimSpace(input.CourseID)
	checkpointID := strings.TrimSpace(input.CheckpointID)
	span.SetAttributes(
		attribute.String("reverify.course_id", courseID),
		attribute.String("reverify.checkpoint", checkpointID),
	)
	switch {
	case userID == "":
		return storage.Submission{}, apperrors.EK(apperrors.KindUnauthorized, "reverify.session.missing", "user is required")
	case courseID == "", checkpointID == "":
		return storage.Submission{}, apperrors.EK(apperrors.KindInvalidInput, "reverify.request.invalid", "course and checkpoint are required")
	}

	decoded, err := s.decoder.Decode(input.FaceImage)
	if err != nil {
		span.SetStatus(codes.Error, "invalid photo")
		s.logger.Info("rejected reverification photo",
			zap.String("user_id", userID),
			zap.String("course_id", courseID),
			zap.String("checkpoint", checkpointID),
			zap.String("reason", apperrors.LocalizationKey(err)),
		)
		return storage.Submission{}, err
	}

	submissionID, err := s.newID()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate id")
		return storage.Submission{}, fmt.Errorf("generate submission id: %w", err)
	}
	submission := storage.Submission{
		ID:           submissionID,
		UserID:       userID,
		CourseID:     courseID,
		CheckpointID: checkpointID,
		ContentType:  decoded.ContentType,
		Image:        decoded.Data,
		SHA256:       decoded.SHA256,
		Width:        decoded.Width,
		Height:       decoded.Height,
		Status:       storage.StatusSubmitted,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateSubmission(ctx, submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist submission")
		s.logger.Error("persist reverification photo", zap.String("submission_id", submissionID), zap.Error(err))
		if errors.Is(err, storage.ErrAlreadyExists) {
			return storage.Submission{}, apperrors.Wrap(apperrors.KindConflict, "submission already exists", err)
		}
		return storage.Submission{}, fmt.Errorf("create submission: %w", err)
	}
	span.SetAttributes(attribute.String("reverify.submission_id", submissionID))
	s.logger.Info("recorded reverification photo",
		zap.String("submission_id", submissionID),
		zap.String("user_id", userID),
		zap.String("course_id", courseID),
		zap.String("checkpoint", checkpointID),
		zap.Int("bytes", len(decoded.Data)),
	)
	return submission, nil
}

// Recent returns the user's newest submissions. A non-positive limit uses
// DefaultRecentLimit.
func (s *Service) Recent(ctx context.Context, userID string, limit int) ([]storage.Submission, error) {
	ctx, span := reverifyotel.Tracer("reverify/verification").Start(ctx, "verification.Recent")
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.EK(apperrors.KindUnauthorized, "reverify.session.missing", "user is required")
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	submissions, err := s.store.ListUserSubmissions(ctx, userID, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list submissions")
		return nil, fmt.Errorf("list recent submissions: %w", err)
	}
	return submissions, nil
}
