// Package controller drives the in-course reverification page: it renders
// the page, hands photo capture to a widget, submits the captured photo,
// and reacts to the outcome.
package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/louisbranch/reverify/internal/platform/i18n"
	"github.com/louisbranch/reverify/internal/platform/logging"
	reverifyotel "github.com/louisbranch/reverify/internal/platform/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	errorTitleKey       = "reverify.error.title"
	errorTitleFallback  = "Could not submit photos"
	errorGenericKey     = "reverify.error.generic"
	errorGenericMessage = "An error has occurred. Please try again later."
)

// Options wires a controller. Errors, Localizer and Logger are optional;
// every other collaborator is required.
type Options struct {
	Context         SubmissionContext
	Container       Container
	WebcamContainer Container
	SubmitControl   Control
	Renderer        Renderer
	// TemplateName defaults to TemplateName.
	TemplateName string
	Widgets      WidgetFactory
	Persister    Persister
	Errors       ErrorReporter
	Navigator    Navigator
	Localizer    i18n.Localizer
	Logger       *zap.Logger
}

// Controller is the reverification page controller. Handler bodies run one
// at a time under the controller lock; the persist call itself runs outside
// it and reports back through its Attempt. The navigator and the error
// reporter are called after the lock is released, so they may call back
// into the controller. Renderer and widgets run under it and must not.
type Controller struct {
	opts   Options
	model  *Model
	logger *zap.Logger

	mu       sync.Mutex
	state    State
	attempt  *Attempt
	release  func()
	disposed bool
	// pending counts persists that have not reported back; idle is closed
	// when it drops to zero.
	pending int
	idle    chan struct{}
}

// New builds a controller. It only assigns fields; nothing is rendered or
// sent until Render and SubmitPhoto.
func New(opts Options) (*Controller, error) {
	switch {
	case opts.Container == nil:
		return nil, fmt.Errorf("page container is required")
	case opts.WebcamContainer == nil:
		return nil, fmt.Errorf("webcam container is required")
	case opts.SubmitControl == nil:
		return nil, fmt.Errorf("submit control is required")
	case opts.Renderer == nil:
		return nil, fmt.Errorf("renderer is required")
	case opts.Widgets == nil:
		return nil, fmt.Errorf("widget factory is required")
	case opts.Persister == nil:
		return nil, fmt.Errorf("persister is required")
	case opts.Navigator == nil:
		return nil, fmt.Errorf("navigator is required")
	}
	if opts.TemplateName == "" {
		opts.TemplateName = TemplateName
	}
	logger := logging.OrNop(opts.Logger).With(
		zap.String("course_id", opts.Context.CourseID),
		zap.String("checkpoint", opts.Context.CheckpointID),
	)
	if opts.Errors == nil {
		opts.Errors = logReporter{logger: logger}
	}
	return &Controller{
		opts:   opts,
		model:  NewModel(opts.Context),
		logger: logger,
		state:  StateIdle,
	}, nil
}

// Model returns the submission model the capture widget writes into.
func (c *Controller) Model() *Model {
	return c.model
}

// State returns the current submission state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastAttempt returns the most recent submission attempt, or nil.
func (c *Controller) LastAttempt() *Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

// Render renders the page template into the container, binds the submit
// control to SubmitPhoto, then renders the capture widget into its own
// container. Rendering again replaces the previous click binding.
func (c *Controller) Render(ctx context.Context) (*Controller, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return c, ErrDisposed
	}

	markup, err := c.opts.Renderer.Render(ctx, c.opts.TemplateName, PageData{
		CourseID:     c.opts.Context.CourseID,
		CheckpointID: c.opts.Context.CheckpointID,
	})
	if err != nil {
		return c, fmt.Errorf("render %s: %w", c.opts.TemplateName, err)
	}
	if err := c.opts.Container.SetHTML(markup); err != nil {
		return c, fmt.Errorf("inject page: %w", err)
	}

	if c.release != nil {
		c.release()
	}
	c.release = c.opts.SubmitControl.OnClick(func(ctx context.Context) {
		if _, err := c.SubmitPhoto(ctx); err != nil {
			c.logger.Warn("submit click ignored", zap.Error(err))
		}
	})

	widget, err := c.opts.Widgets.NewWidget(WidgetConfig{
		Container:       c.opts.WebcamContainer,
		Model:           c.model,
		ModelField:      FaceImageField,
		SubmitControlID: c.opts.SubmitControl.ID(),
		ErrorReporter:   c.opts.Errors,
	})
	if err != nil {
		return c, fmt.Errorf("build capture widget: %w", err)
	}
	if err := widget.Render(ctx); err != nil {
		return c, fmt.Errorf("render capture widget: %w", err)
	}
	return c, nil
}

// SubmitPhoto disables the submit control and then persists the captured
// photo. The returned Attempt resolves once the persist reports back.
func (c *Controller) SubmitPhoto(ctx context.Context) (*Attempt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return nil, ErrDisposed
	}
	switch c.state {
	case StateSubmitting:
		return nil, ErrSubmissionInFlight
	case StateSucceeded:
		return nil, ErrAlreadySubmitted
	}

	if err := c.setSubmitControlEnabled(false); err != nil {
		return nil, err
	}
	previous := c.state
	if err := c.transition(StateSubmitting); err != nil {
		_ = c.setSubmitControlEnabled(true)
		return nil, err
	}

	attempt := newAttempt(c.model.Submission())
	c.attempt = attempt
	c.logger.Debug("submitting photo", zap.Stringer("from", previous))

	persistCtx := context.WithoutCancel(ctx)
	if c.pending == 0 {
		c.idle = make(chan struct{})
	}
	c.pending++
	go func() {
		err := c.persist(persistCtx, attempt.Submission)
		c.complete(persistCtx, attempt, err)
	}()
	return attempt, nil
}

func (c *Controller) persist(ctx context.Context, submission Submission) error {
	ctx, span := reverifyotel.Tracer("reverify/controller").Start(ctx, "controller.Persist")
	defer span.End()
	span.SetAttributes(
		attribute.String("reverify.course_id", submission.CourseID),
		attribute.String("reverify.checkpoint", submission.CheckpointID),
	)
	err := c.opts.Persister.Persist(ctx, submission)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
	}
	return err
}

func (c *Controller) complete(ctx context.Context, attempt *Attempt, err error) {
	defer c.donePending()
	c.mu.Lock()
	if c.attempt != attempt || c.state != StateSubmitting {
		state := c.state
		c.mu.Unlock()
		attempt.resolve(Outcome{State: state, Err: ErrInvalidTransition})
		c.logger.Warn("persist result arrived after the attempt was settled", zap.Error(err))
		return
	}
	var r reaction
	if err == nil {
		r = c.onSucceeded()
	} else {
		status, body := 0, ""
		var persistErr *PersistError
		if errors.As(err, &persistErr) {
			status, body = persistErr.Status, persistErr.Body
		} else {
			c.logger.Warn("persist transport failure", zap.Error(err))
		}
		r = c.onFailed(status, body, err)
	}
	c.mu.Unlock()
	c.react(ctx, r)
}

func (c *Controller) donePending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending--
	if c.pending == 0 {
		close(c.idle)
		c.idle = nil
	}
}

// OnSubmissionSucceeded navigates to the dashboard and settles the pending
// attempt. It only applies while a submission is in flight.
func (c *Controller) OnSubmissionSucceeded(ctx context.Context) error {
	c.mu.Lock()
	if !c.state.CanTransition(StateSucceeded) {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	r := c.onSucceeded()
	c.mu.Unlock()
	c.react(ctx, r)
	return nil
}

// OnSubmissionFailed re-enables the submit control and reports the
// failure. A 400 body is shown verbatim; anything else gets the generic
// localized message.
func (c *Controller) OnSubmissionFailed(status int, body string) error {
	c.mu.Lock()
	if !c.state.CanTransition(StateFailed) {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	r := c.onFailed(status, body, &PersistError{Status: status, Body: body})
	c.mu.Unlock()
	c.react(context.Background(), r)
	return nil
}

// reaction is what follows a settled submission once the controller lock is
// released: navigate or report, then resolve the attempt. Navigator and
// ErrorReporter may call back into the controller.
type reaction struct {
	attempt  *Attempt
	navigate bool
	notice   ErrorNotice
	outcome  Outcome
}

func (c *Controller) react(ctx context.Context, r reaction) {
	if r.navigate {
		if err := c.opts.Navigator.Navigate(ctx, DashboardPath); err != nil {
			c.logger.Error("navigate after submission", zap.String("location", DashboardPath), zap.Error(err))
		}
	} else if r.notice.Shown {
		if err := c.opts.Errors.Report(r.notice); err != nil {
			c.logger.Error("report submission error", zap.Error(err))
		}
	}
	if r.attempt != nil {
		r.attempt.resolve(r.outcome)
	}
}

// onSucceeded must be called with c.mu held and state Submitting.
func (c *Controller) onSucceeded() reaction {
	_ = c.transition(StateSucceeded)
	if c.release != nil {
		c.release()
		c.release = nil
	}
	c.logger.Info("photo submitted")
	return reaction{
		attempt:  c.attempt,
		navigate: true,
		outcome:  Outcome{State: StateSucceeded},
	}
}

// onFailed must be called with c.mu held and state Submitting.
func (c *Controller) onFailed(status int, body string, cause error) reaction {
	_ = c.transition(StateFailed)
	if err := c.setSubmitControlEnabled(true); err != nil {
		c.logger.Error("re-enable submit control", zap.Error(err))
	}

	message := i18n.Text(c.opts.Localizer, errorGenericKey, errorGenericMessage)
	if status == http.StatusBadRequest {
		message = body
	}
	notice := ErrorNotice{
		Title:   i18n.Text(c.opts.Localizer, errorTitleKey, errorTitleFallback),
		Message: message,
		Shown:   true,
	}
	c.logger.Info("photo submission failed", zap.Int("status", status))
	return reaction{
		attempt: c.attempt,
		notice:  notice,
		outcome: Outcome{State: StateFailed, Status: status, Body: body, Notice: notice, Err: cause},
	}
}

// SetSubmitControlEnabled sets the disabled style, the disabled attribute
// and aria-disabled of the submit control from one flag.
func (c *Controller) SetSubmitControlEnabled(enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setSubmitControlEnabled(enabled)
}

func (c *Controller) setSubmitControlEnabled(enabled bool) error {
	if err := c.opts.SubmitControl.SetDisabled(!enabled); err != nil {
		return fmt.Errorf("set submit control enabled=%t: %w", enabled, err)
	}
	return nil
}

func (c *Controller) transition(next State) error {
	if !c.state.CanTransition(next) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, c.state, next)
	}
	c.state = next
	return nil
}

// Wait blocks until the persists started before the call have reported
// back, or ctx ends.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()
	if idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispose releases the submit binding. An in-flight persist still
// completes and resolves its Attempt.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disposed = true
	if c.release != nil {
		c.release()
		c.release = nil
	}
}

// logReporter stands in when no error reporter is supplied.
type logReporter struct {
	logger *zap.Logger
}

func (r logReporter) Report(notice ErrorNotice) error {
	r.logger.Warn("submission error",
		zap.String("title", notice.Title),
		zap.String("message", notice.Message),
		zap.Bool("shown", notice.Shown),
	)
	return nil
}
