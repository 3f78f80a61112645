package app

import (
	"context"
	"net/http"

	apperrors "github.com/louisbranch/reverify/internal/platform/errors"
	"github.com/louisbranch/reverify/internal/platform/i18n"
	"github.com/louisbranch/reverify/internal/services/reverify/controller"
	"github.com/louisbranch/reverify/internal/services/reverify/storage"
	"github.com/louisbranch/reverify/internal/services/reverify/verification"
)

// Verifier is the backend service surface the handlers need.
type Verifier interface {
	Submit(ctx context.Context, input verification.SubmitInput) (storage.Submission, error)
	Recent(ctx context.Context, userID string, limit int) ([]storage.Submission, error)
}

// failureResponse maps a service error to the status and body the backend
// endpoint returns. Only validation failures expose their message.
func failureResponse(loc i18n.Localizer, err error) (int, string) {
	status := apperrors.HTTPStatus(err)
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized:
		message := err.Error()
		if key := apperrors.LocalizationKey(err); key != "" {
			message = i18n.Text(loc, key, message)
		}
		return status, message
	default:
		return status, i18n.Text(loc, "core.error.generic", "An error has occurred. Please try again later.")
	}
}

// servicePersister persists submissions in-process for the page flow,
// reporting failures the way the backend endpoint would.
type servicePersister struct {
	service Verifier
	userID  string
	loc     i18n.Localizer
}

func (p servicePersister) Persist(ctx context.Context, submission controller.Submission) error {
	_, err := p.service.Submit(ctx, verification.SubmitInput{
		UserID:       p.userID,
		CourseID:     submission.CourseID,
		CheckpointID: submission.CheckpointID,
		FaceImage:    submission.FaceImage,
	})
	if err == nil {
		return nil
	}
	status, body := failureResponse(p.loc, err)
	return &controller.PersistError{Status: status, Body: body}
}
