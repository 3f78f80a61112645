// Package page assembles a server-side reverification page: the document
// shell, its element handles and the controller that drives them.
package page

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/louisbranch/reverify/internal/platform/dom"
	"github.com/louisbranch/reverify/internal/platform/i18n"
	"github.com/louisbranch/reverify/internal/services/reverify/controller"
	"github.com/louisbranch/reverify/internal/services/reverify/templates"
	"go.uber.org/zap"
)

// ErrNoAttempt reports a submit click that did not start a persist.
var ErrNoAttempt = errors.New("submit click did not start an attempt")

// Config configures a page.
type Config struct {
	Context   controller.SubmissionContext
	Localizer i18n.Localizer
	Lang      string
	Capture   controller.WidgetFactory
	Persister controller.Persister
	Logger    *zap.Logger
}

// Page is one rendered reverification document and its controller.
type Page struct {
	Doc        *dom.Document
	Controller *controller.Controller
	Reporter   *RegionReporter
	Navigator  *Navigator
}

// New renders the document shell and wires a controller to it. The page
// content is not rendered until Render.
func New(ctx context.Context, cfg Config) (*Page, error) {
	shell, err := templates.RenderString(ctx, templates.Shell(templates.ShellData{
		Title: i18n.Text(cfg.Localizer, "reverify.page.title", "Re-Verify Your Identity"),
		Lang:  cfg.Lang,
	}, nil))
	if err != nil {
		return nil, err
	}
	doc, err := dom.Parse(shell)
	if err != nil {
		return nil, err
	}
	reporter := &RegionReporter{region: doc.Element(templates.ErrorContainerID)}
	navigator := &Navigator{}
	ctrl, err := controller.New(controller.Options{
		Context:         cfg.Context,
		Container:       doc.Element(templates.ContainerID),
		WebcamContainer: doc.Element(templates.WebcamContainerID),
		SubmitControl:   doc.Element(templates.SubmitControlID),
		Renderer:        templates.Renderer{Localizer: cfg.Localizer},
		Widgets:         cfg.Capture,
		Persister:       cfg.Persister,
		Errors:          reporter,
		Navigator:       navigator,
		Localizer:       cfg.Localizer,
		Logger:          cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build controller: %w", err)
	}
	return &Page{Doc: doc, Controller: ctrl, Reporter: reporter, Navigator: navigator}, nil
}

// Render renders the controller's page into the document.
func (p *Page) Render(ctx context.Context) error {
	_, err := p.Controller.Render(ctx)
	return err
}

// Submit clicks the submit control and waits for the attempt to resolve.
func (p *Page) Submit(ctx context.Context) (controller.Outcome, error) {
	previous := p.Controller.LastAttempt()
	if err := p.Doc.Click(ctx, templates.SubmitControlID); err != nil {
		return controller.Outcome{}, err
	}
	attempt := p.Controller.LastAttempt()
	if attempt == nil || attempt == previous {
		return controller.Outcome{}, ErrNoAttempt
	}
	return attempt.Wait(ctx)
}

// ContainerHTML returns the page container content.
func (p *Page) ContainerHTML() (string, error) {
	return p.Doc.Element(templates.ContainerID).InnerHTML()
}

// Close releases the controller bindings.
func (p *Page) Close() {
	p.Controller.Dispose()
}

// RegionReporter renders error notices into the document's error region.
type RegionReporter struct {
	region *dom.Element

	mu   sync.Mutex
	last controller.ErrorNotice
}

// Report replaces the error region content with notice.
func (r *RegionReporter) Report(notice controller.ErrorNotice) error {
	r.mu.Lock()
	r.last = notice
	r.mu.Unlock()
	markup, err := templates.RenderString(context.Background(), templates.ErrorNotice(Notice(notice)))
	if err != nil {
		return err
	}
	return r.region.SetHTML(markup)
}

// Last returns the most recently reported notice.
func (r *RegionReporter) Last() controller.ErrorNotice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Notice converts a controller notice for the templates.
func Notice(notice controller.ErrorNotice) templates.Notice {
	return templates.Notice{Title: notice.Title, Message: notice.Message, Shown: notice.Shown}
}

// Navigator records the location the controller navigated to; the HTTP
// layer turns it into a redirect.
type Navigator struct {
	mu       sync.Mutex
	location string
}

// Navigate records location.
func (n *Navigator) Navigate(_ context.Context, location string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.location = location
	return nil
}

// Location returns the recorded location, empty when none.
func (n *Navigator) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}
