package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	apperrors "github.com/louisbranch/reverify/internal/platform/errors"
	"github.com/louisbranch/reverify/internal/platform/httpx"
	"github.com/louisbranch/reverify/internal/platform/i18n"
	"github.com/louisbranch/reverify/internal/platform/session"
	"github.com/louisbranch/reverify/internal/services/reverify/capture"
	"github.com/louisbranch/reverify/internal/services/reverify/controller"
	"github.com/louisbranch/reverify/internal/services/reverify/page"
	"github.com/louisbranch/reverify/internal/services/reverify/photo"
	"github.com/louisbranch/reverify/internal/services/reverify/routepath"
	"github.com/louisbranch/reverify/internal/services/reverify/templates"
	"github.com/louisbranch/reverify/internal/services/reverify/verification"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

const (
	dashboardLimit = 10
	// formOverheadBytes covers base64 expansion and multipart framing.
	formOverheadBytes = 1 << 20
	cameraParam       = "camera"
)

type handlers struct {
	service       Verifier
	sessions      *session.Manager
	logger        *zap.Logger
	maxPhotoBytes int
}

func (h handlers) requirePage(next http.HandlerFunc) http.Handler {
	return h.sessions.Require(h.denyPage)(next)
}

func (h handlers) requireText(next http.HandlerFunc) http.Handler {
	return h.sessions.Require(h.denyText)(next)
}

func (h handlers) denyPage(w http.ResponseWriter, r *http.Request, err error) {
	loc, tag := i18n.RequestLocalizer(w, r)
	notice := templates.Notice{
		Title:   i18n.Text(loc, "reverify.page.title", "Re-Verify Your Identity"),
		Message: i18n.Text(loc, sessionKey(err), "Please sign in to continue."),
		Shown:   true,
	}
	h.writeShell(w, r, http.StatusUnauthorized, notice.Title, tag, templates.ErrorNotice(notice))
}

func (h handlers) denyText(w http.ResponseWriter, r *http.Request, err error) {
	loc, _ := i18n.RequestLocalizer(w, r)
	_ = httpx.WriteText(w, http.StatusUnauthorized, i18n.Text(loc, sessionKey(err), "Please sign in to continue."))
}

func sessionKey(err error) string {
	if key := apperrors.LocalizationKey(err); key != "" {
		return key
	}
	return "reverify.session.invalid"
}

func (h handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_ = httpx.WriteText(w, http.StatusOK, "ok")
}

func (h handlers) handlePage(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.RequestContext(r)
	loc, tag := i18n.RequestLocalizer(w, r)
	p, err := h.newPage(ctx, r, loc, tag, nil)
	if err != nil {
		h.writeFailure(w, r, loc, tag, err)
		return
	}
	defer p.Close()
	if err := p.Render(ctx); err != nil {
		h.writeFailure(w, r, loc, tag, err)
		return
	}
	_ = httpx.WriteHTML(w, http.StatusOK, p.Doc.String())
}

func (h handlers) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.RequestContext(r)
	loc, tag := i18n.RequestLocalizer(w, r)
	payload, err := h.readFacePayload(w, r)
	if err != nil {
		h.writeFailure(w, r, loc, tag, err)
		return
	}

	p, err := h.newPage(ctx, r, loc, tag, capture.StaticSource(payload))
	if err != nil {
		h.writeFailure(w, r, loc, tag, err)
		return
	}
	defer p.Close()
	if err := p.Render(ctx); err != nil {
		h.writeFailure(w, r, loc, tag, err)
		return
	}
	outcome, err := p.Submit(ctx)
	if err != nil {
		h.writeFailure(w, r, loc, tag, err)
		return
	}
	if outcome.Succeeded() {
		httpx.WriteRedirect(w, r, p.Navigator.Location())
		return
	}

	if httpx.IsHTMXRequest(r) {
		container, err := p.ContainerHTML()
		if err != nil {
			h.writeFailure(w, r, loc, tag, err)
			return
		}
		oob, err := templates.RenderString(ctx, templates.ErrorRegionOOB(page.Notice(outcome.Notice)))
		if err != nil {
			h.writeFailure(w, r, loc, tag, err)
			return
		}
		// HTMX only swaps 2xx responses.
		_ = httpx.WriteHTML(w, http.StatusOK, container+oob)
		return
	}
	status := outcome.Status
	if status < http.StatusBadRequest {
		status = http.StatusBadGateway
	}
	_ = httpx.WriteHTML(w, status, p.Doc.String())
}

func (h handlers) handlePersist(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.RequestContext(r)
	loc, _ := i18n.RequestLocalizer(w, r)
	claims, _ := session.FromContext(ctx)
	payload, err := h.readFacePayload(w, r)
	if err == nil {
		_, err = h.service.Submit(ctx, submitInput(r, claims.UserID, payload))
	}
	if err != nil {
		status, body := failureResponse(loc, err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("persist reverification photo", zap.Error(err))
		}
		_ = httpx.WriteText(w, status, body)
		return
	}
	_ = httpx.WriteText(w, http.StatusOK, "")
}

func (h handlers) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.RequestContext(r)
	loc, tag := i18n.RequestLocalizer(w, r)
	claims, _ := session.FromContext(ctx)
	submissions, err := h.service.Recent(ctx, claims.UserID, dashboardLimit)
	if err != nil {
		h.writeFailure(w, r, loc, tag, err)
		return
	}
	items := make([]templates.DashboardItem, 0, len(submissions))
	for _, submission := range submissions {
		items = append(items, templates.DashboardItem{
			CourseID:     submission.CourseID,
			CheckpointID: submission.CheckpointID,
			Status:       string(submission.Status),
			SubmittedAt:  submission.CreatedAt,
		})
	}
	h.writeShell(w, r, http.StatusOK, i18n.Text(loc, "reverify.dashboard.title", "Dashboard"), tag, templates.Dashboard(loc, items))
}

func (h handlers) newPage(ctx context.Context, r *http.Request, loc i18n.Localizer, tag language.Tag, source capture.Source) (*page.Page, error) {
	claims, _ := session.FromContext(ctx)
	return page.New(ctx, page.Config{
		Context: controller.SubmissionContext{
			CourseID:     r.PathValue(routepath.PathValueCourseID),
			CheckpointID: r.PathValue(routepath.PathValueCheckpointID),
		},
		Localizer: loc,
		Lang:      tag.String(),
		Capture:   capture.Factory{Mode: captureMode(r), Source: source, Localizer: loc},
		Persister: servicePersister{service: h.service, userID: claims.UserID, loc: loc},
		Logger:    h.logger,
	})
}

func submitInput(r *http.Request, userID string, payload string) verification.SubmitInput {
	return verification.SubmitInput{
		UserID:       userID,
		CourseID:     r.PathValue(routepath.PathValueCourseID),
		CheckpointID: r.PathValue(routepath.PathValueCheckpointID),
		FaceImage:    payload,
	}
}

// captureMode selects the upload widget when the client reports no camera.
func captureMode(r *http.Request) capture.Mode {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get(cameraParam))) {
	case "0", "false", "none":
		return capture.Supported(false)
	default:
		return capture.Supported(true)
	}
}

// readFacePayload reads the captured photo from a urlencoded or multipart
// form. An uploaded file is converted to a data URL.
func (h handlers) readFacePayload(w http.ResponseWriter, r *http.Request) (string, error) {
	maxPhoto := h.maxPhotoBytes
	if maxPhoto <= 0 {
		maxPhoto = photo.DefaultMaxBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxPhoto)*4/3+formOverheadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(int64(maxPhoto) + formOverheadBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", apperrors.EK(apperrors.KindInvalidInput, "reverify.photo.too_large", "photo is too large")
		}
		return "", apperrors.Error{Kind: apperrors.KindInvalidInput, Key: "reverify.request.invalid", Message: "form could not be parsed", Cause: err}
	}

	if value := strings.TrimSpace(r.PostFormValue(templates.FaceImageField)); value != "" {
		return value, nil
	}
	if r.MultipartForm == nil {
		return "", nil
	}
	file, _, err := r.FormFile(templates.FaceImageFileField)
	if err != nil {
		return "", nil
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, int64(maxPhoto)+1))
	if err != nil {
		return "", fmt.Errorf("read uploaded photo: %w", err)
	}
	if len(data) == 0 {
		return "", nil
	}
	return photo.DataURL(http.DetectContentType(data), data), nil
}

func (h handlers) writeShell(w http.ResponseWriter, r *http.Request, status int, title string, tag language.Tag, body templ.Component) {
	markup, err := templates.RenderString(httpx.RequestContext(r), templates.Shell(templates.ShellData{
		Title: title,
		Lang:  tag.String(),
	}, body))
	if err != nil {
		h.logger.Error("render shell", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	_ = httpx.WriteHTML(w, status, markup)
}

func (h handlers) writeFailure(w http.ResponseWriter, r *http.Request, loc i18n.Localizer, tag language.Tag, err error) {
	status, message := failureResponse(loc, err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("reverify request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	notice := templates.Notice{
		Title:   i18n.Text(loc, "reverify.error.title", "Could not submit photos"),
		Message: message,
		Shown:   true,
	}
	h.writeShell(w, r, status, notice.Title, tag, templates.ErrorNotice(notice))
}
