package controller

import (
	"context"
	"fmt"

	"github.com/louisbranch/reverify/internal/services/reverify/routepath"
)

// DashboardPath is where a successful submission navigates.
const DashboardPath = routepath.Dashboard

// TemplateName names the page template rendered into the container.
const TemplateName = "incourse_reverify"

// PageData is the exact data handed to the page template.
type PageData struct {
	CourseID     string
	CheckpointID string
}

// Renderer renders a named template to markup.
type Renderer interface {
	Render(ctx context.Context, name string, data PageData) (string, error)
}

// Container receives rendered markup.
type Container interface {
	ID() string
	SetHTML(markup string) error
}

// Control is the submit button.
type Control interface {
	ID() string
	SetDisabled(disabled bool) error
	OnClick(handler func(context.Context)) (release func())
}

// ErrorNotice is the error region payload.
type ErrorNotice struct {
	Title   string
	Message string
	Shown   bool
}

// ErrorReporter displays error notices.
type ErrorReporter interface {
	Report(notice ErrorNotice) error
}

// Navigator moves the learner to another page.
type Navigator interface {
	Navigate(ctx context.Context, location string) error
}

// PersistError is a failed persist carrying the backend response.
type PersistError struct {
	Status int
	Body   string
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist submission: status %d", e.Status)
}

// Persister stores a submission. Failures with a backend response return
// *PersistError; any other error is treated as a generic failure.
type Persister interface {
	Persist(ctx context.Context, submission Submission) error
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(ctx context.Context, submission Submission) error

// Persist calls f.
func (f PersisterFunc) Persist(ctx context.Context, submission Submission) error {
	return f(ctx, submission)
}

// WidgetConfig is handed to the capture widget factory.
type WidgetConfig struct {
	Container       Container
	Model           *Model
	ModelField      string
	SubmitControlID string
	ErrorReporter   ErrorReporter
}

// Widget is a capture widget bound to its container.
type Widget interface {
	Render(ctx context.Context) error
}

// WidgetFactory builds a capture widget.
type WidgetFactory interface {
	NewWidget(cfg WidgetConfig) (Widget, error)
}

// WidgetFactoryFunc adapts a function to WidgetFactory.
type WidgetFactoryFunc func(cfg WidgetConfig) (Widget, error)

// NewWidget calls f.
func (f WidgetFactoryFunc) NewWidget(cfg WidgetConfig) (Widget, error) {
	return f(cfg)
}
