// Package client submits reverification photos to a remote reverify
// server.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/louisbranch/reverify/internal/platform/logging"
	"github.com/louisbranch/reverify/internal/platform/session"
	"github.com/louisbranch/reverify/internal/platform/timeouts"
	"github.com/louisbranch/reverify/internal/services/reverify/controller"
	"github.com/louisbranch/reverify/internal/services/reverify/routepath"
	"go.uber.org/zap"
)

const (
	// FaceImageField is the form field the backend reads the photo from.
	FaceImageField = "face_image"

	maxBodyBytes = 1 << 20
)

// ErrResponseTooLarge reports a failure response whose body exceeds the
// client's read limit. The body is never truncated.
var ErrResponseTooLarge = errors.New("persist response body too large")

// Config configures a Persister.
type Config struct {
	BaseURL string
	// Token is sent as the session cookie.
	Token      string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Persister posts submissions to the reverify backend.
type Persister struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

// NewPersister builds a Persister for cfg.BaseURL.
func NewPersister(cfg Config) (*Persister, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, fmt.Errorf("base url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https: %q", base)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeouts.Persist}
	}
	return &Persister{
		baseURL: strings.TrimRight(parsed.String(), "/"),
		token:   strings.TrimSpace(cfg.Token),
		client:  httpClient,
		logger:  logging.OrNop(cfg.Logger),
	}, nil
}

// Persist posts the captured photo. Non-2xx responses return
// *controller.PersistError with the response body exactly as received;
// transport failures and oversized bodies are returned as plain errors.
func (p *Persister) Persist(ctx context.Context, submission controller.Submission) error {
	endpoint := p.baseURL + routepath.VerifyPersist(submission.CourseID, submission.CheckpointID)
	form := url.Values{FaceImageField: {submission.FaceImage}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build persist request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/plain")
	if p.token != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: p.token})
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("post submission: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("read persist response: %w", err)
	}
	p.logger.Debug("persist response", zap.String("url", endpoint), zap.Int("status", resp.StatusCode))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("%w: status %d", ErrResponseTooLarge, resp.StatusCode)
	}
	return &controller.PersistError{Status: resp.StatusCode, Body: string(body)}
}

var _ controller.Persister = (*Persister)(nil)
