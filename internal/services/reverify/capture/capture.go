// Package capture provides the photo capture widgets the reverify
// controller renders into its webcam container.
package capture

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/louisbranch/reverify/internal/platform/i18n"
	"github.com/louisbranch/reverify/internal/services/reverify/controller"
	"github.com/louisbranch/reverify/internal/services/reverify/photo"
	"github.com/louisbranch/reverify/internal/services/reverify/templates"
)

// Mode selects the capture widget.
type Mode string

const (
	ModeWebcam Mode = "webcam"
	ModeUpload Mode = "upload"
)

// Supported picks the widget for a client: the webcam when a camera is
// available, the upload fallback otherwise.
func Supported(hasCamera bool) Mode {
	if hasCamera {
		return ModeWebcam
	}
	return ModeUpload
}

// Source supplies an already captured payload. An empty payload means
// nothing has been captured yet.
type Source interface {
	Capture(ctx context.Context) (string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (string, error)

// Capture calls f.
func (f SourceFunc) Capture(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticSource returns payload as the capture.
func StaticSource(payload string) Source {
	return SourceFunc(func(context.Context) (string, error) {
		return strings.TrimSpace(payload), nil
	})
}

// FileSource reads an image file and encodes it as a data URL.
func FileSource(path string) Source {
	return SourceFunc(func(ctx context.Context) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read photo %s: %w", path, err)
		}
		return photo.DataURL(http.DetectContentType(data), data), nil
	})
}

// Factory builds capture widgets for the controller.
type Factory struct {
	Mode      Mode
	Source    Source
	Localizer i18n.Localizer
}

// NewWidget builds the widget selected by Mode.
func (f Factory) NewWidget(cfg controller.WidgetConfig) (controller.Widget, error) {
	if cfg.Container == nil {
		return nil, fmt.Errorf("capture container is required")
	}
	if cfg.Model == nil {
		return nil, fmt.Errorf("capture model is required")
	}
	if _, ok := cfg.Model.Get(cfg.ModelField); !ok {
		return nil, fmt.Errorf("unknown model field %q", cfg.ModelField)
	}
	switch f.Mode {
	case ModeWebcam, "":
		return &Widget{cfg: cfg, source: f.Source, loc: f.Localizer, mode: ModeWebcam}, nil
	case ModeUpload:
		return &Widget{cfg: cfg, source: f.Source, loc: f.Localizer, mode: ModeUpload}, nil
	default:
		return nil, fmt.Errorf("unknown capture mode %q", f.Mode)
	}
}

// Widget renders capture markup and writes captured payloads into the
// submission model.
type Widget struct {
	cfg    controller.WidgetConfig
	source Source
	loc    i18n.Localizer
	mode   Mode
}

// Mode reports which widget was built.
func (w *Widget) Mode() Mode {
	return w.mode
}

// Render captures from the source, stores the payload in the model and
// renders the widget into its container. Capture failures are reported
// and leave the model empty.
func (w *Widget) Render(ctx context.Context) error {
	captured := ""
	if w.source != nil {
		payload, err := w.source.Capture(ctx)
		if err != nil {
			w.reportCaptureFailure()
		} else {
			captured = payload
		}
	}
	if captured != "" {
		if err := w.cfg.Model.Set(w.cfg.ModelField, captured); err != nil {
			return err
		}
	}

	data := templates.WebcamData{
		SubmitControlID: w.cfg.SubmitControlID,
		FieldName:       templates.FaceImageField,
		Captured:        captured,
	}
	component := templates.Webcam(w.loc, data)
	if w.mode == ModeUpload {
		component = templates.Upload(w.loc, data)
	}
	markup, err := templates.RenderString(ctx, component)
	if err != nil {
		return err
	}
	return w.cfg.Container.SetHTML(markup)
}

func (w *Widget) reportCaptureFailure() {
	if w.cfg.ErrorReporter == nil {
		return
	}
	_ = w.cfg.ErrorReporter.Report(controller.ErrorNotice{
		Title:   i18n.Text(w.loc, "reverify.error.title", "Could not submit photos"),
		Message: i18n.Text(w.loc, "reverify.webcam.no_camera", "We could not find a camera. Upload a photo instead."),
		Shown:   true,
	})
}

var _ controller.WidgetFactory = Factory{}
