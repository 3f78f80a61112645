// Package templates holds the reverification page components.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/louisbranch/reverify/internal/platform/i18n"
	"github.com/louisbranch/reverify/internal/services/reverify/routepath"
)

const (
	// ContainerID is the page container the reverify template renders into.
	ContainerID = "incourse-reverify-container"
	// ErrorContainerID is the region the error reporter writes into.
	ErrorContainerID = "error-container"
	// WebcamContainerID is the capture widget container.
	WebcamContainerID = "webcam"
	// SubmitControlID is the submit button.
	SubmitControlID = "submit"
	// FormID is the form wrapping the reverify template.
	FormID = "reverify-form"
	// FaceImageField is the form field carrying the captured photo.
	FaceImageField = "face_image"
	// FaceImageFileField is the upload fallback's file field.
	FaceImageFileField = "face_image_file"
)

// htmlWriter writes markup and keeps the first write error.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(parts ...string) {
	for _, part := range parts {
		if h.err != nil {
			return
		}
		_, h.err = io.WriteString(h.w, part)
	}
}

func (h *htmlWriter) text(value string) {
	h.raw(templ.EscapeString(value))
}

func (h *htmlWriter) component(ctx context.Context, c templ.Component) {
	if h.err != nil || c == nil {
		return
	}
	h.err = c.Render(ctx, h.w)
}

// ShellData configures the document shell.
type ShellData struct {
	Title string
	Lang  string
}

// Shell renders the full document with the error region and an empty page
// container. Body, when set, is rendered inside the page container.
func Shell(data ShellData, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		lang := strings.TrimSpace(data.Lang)
		if lang == "" {
			lang = i18n.DefaultTag().String()
		}
		h := &htmlWriter{w: w}
		h.raw(`<!DOCTYPE html><html lang="`)
		h.text(lang)
		h.raw(`"><head><meta charset="utf-8"/><meta name="viewport" content="width=device-width, initial-scale=1"/><title>`)
		h.text(data.Title)
		h.raw(`</title><script src="https://unpkg.com/htmx.org@2.0.4" defer></script></head><body hx-boost="true">`)
		h.raw(`<main class="reverify">`)
		h.raw(`<div id="`, ErrorContainerID, `" class="wrapper-msg" aria-live="polite"></div>`)
		h.raw(`<div id="`, ContainerID, `" class="reverify-container">`)
		h.component(ctx, body)
		h.raw(`</div></main></body></html>`)
		return h.err
	})
}

// PageData is the reverify template input.
type PageData struct {
	CourseID     string
	CheckpointID string
}

// ReverifyPage renders the in-course reverify template: the checkpoint
// summary, the webcam container and the submit control.
func ReverifyPage(loc i18n.Localizer, data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		unknown := i18n.Text(loc, "core.unknown", "Unknown")
		course := orDefault(data.CourseID, unknown)
		checkpoint := orDefault(data.CheckpointID, unknown)
		action := routepath.ReverifySubmit(data.CourseID, data.CheckpointID)

		h := &htmlWriter{w: w}
		h.raw(`<form id="`, FormID, `" method="post" action="`)
		h.text(action)
		h.raw(`" hx-post="`)
		h.text(action)
		h.raw(`" hx-target="#`, ContainerID, `" hx-swap="innerHTML" enctype="multipart/form-data">`)
		h.raw(`<header class="reverify-header"><h1>`)
		h.text(i18n.Text(loc, "reverify.page.title", "Re-Verify Your Identity"))
		h.raw(`</h1><p class="intro">`)
		h.text(i18n.Text(loc, "reverify.page.intro", "To continue in this course, take a new photo of your face."))
		h.raw(`</p><dl class="checkpoint"><dt>`)
		h.text(i18n.Text(loc, "reverify.page.course", "Course"))
		h.raw(`</dt><dd class="course-id">`)
		h.text(course)
		h.raw(`</dd><dt>`)
		h.text(i18n.Text(loc, "reverify.page.checkpoint", "Checkpoint"))
		h.raw(`</dt><dd class="checkpoint-id">`)
		h.text(checkpoint)
		h.raw(`</dd></dl></header>`)
		h.raw(`<div id="`, WebcamContainerID, `" class="webcam"></div>`)
		h.raw(`<nav class="nav-wizard"><button id="`, SubmitControlID, `" type="submit" class="action action-primary">`)
		h.text(i18n.Text(loc, "reverify.page.submit", "Submit photos & re-verify"))
		h.raw(`</button></nav></form>`)
		return h.err
	})
}

// WebcamData configures the webcam capture markup.
type WebcamData struct {
	SubmitControlID string
	FieldName       string
	// Captured is the already captured payload, if any.
	Captured string
}

// Webcam renders the camera capture widget.
func Webcam(loc i18n.Localizer, data WebcamData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		field := orDefault(data.FieldName, FaceImageField)
		h := &htmlWriter{w: w}
		h.raw(`<div class="webcam-capture" data-submit-control="`)
		h.text(data.SubmitControlID)
		h.raw(`"><h2>`)
		h.text(i18n.Text(loc, "reverify.webcam.heading", "Take your photo"))
		h.raw(`</h2><p class="instructions">`)
		h.text(i18n.Text(loc, "reverify.webcam.instructions", "Make sure your face is well-lit."))
		h.raw(`</p><video class="webcam-video" autoplay="autoplay" playsinline="playsinline"></video><canvas class="webcam-canvas" width="640" height="480"></canvas>`)
		h.raw(`<button type="button" class="action action-capture">`)
		if data.Captured != "" {
			h.text(i18n.Text(loc, "reverify.webcam.retake", "Retake photo"))
		} else {
			h.text(i18n.Text(loc, "reverify.webcam.capture", "Take photo"))
		}
		h.raw(`</button><input type="hidden" name="`)
		h.text(field)
		h.raw(`" value="`)
		h.text(data.Captured)
		h.raw(`"/></div>`)
		return h.err
	})
}

// Upload renders the file input fallback for browsers without a camera.
func Upload(loc i18n.Localizer, data WebcamData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<div class="upload-capture" data-submit-control="`)
		h.text(data.SubmitControlID)
		h.raw(`"><p class="no-camera">`)
		h.text(i18n.Text(loc, "reverify.webcam.no_camera", "We could not find a camera. Upload a photo instead."))
		h.raw(`</p><label for="`, FaceImageFileField, `">`)
		h.text(i18n.Text(loc, "reverify.webcam.upload", "Choose a photo of your face"))
		h.raw(`</label><input type="file" id="`, FaceImageFileField, `" name="`, FaceImageFileField, `" accept="image/jpeg,image/png"/>`)
		if data.Captured != "" {
			h.raw(`<input type="hidden" name="`)
			h.text(orDefault(data.FieldName, FaceImageField))
			h.raw(`" value="`)
			h.text(data.Captured)
			h.raw(`"/>`)
		}
		h.raw(`</div>`)
		return h.err
	})
}

// Notice is the error region content.
type Notice struct {
	Title   string
	Message string
	Shown   bool
}

// ErrorNotice renders the error region content; a hidden notice renders
// nothing.
func ErrorNotice(notice Notice) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if !notice.Shown {
			return nil
		}
		h := &htmlWriter{w: w}
		h.raw(`<div class="msg msg-error" role="alert"><h3 class="title">`)
		h.text(notice.Title)
		h.raw(`</h3><div class="copy"><p>`)
		h.text(notice.Message)
		h.raw(`</p></div></div>`)
		return h.err
	})
}

// ErrorRegionOOB renders the error region as an HTMX out-of-band swap.
func ErrorRegionOOB(notice Notice) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<div id="`, ErrorContainerID, `" class="wrapper-msg" aria-live="polite" hx-swap-oob="true">`)
		h.component(ctx, ErrorNotice(notice))
		h.raw(`</div>`)
		return h.err
	})
}

// DashboardItem is one submission row.
type DashboardItem struct {
	CourseID     string
	CheckpointID string
	Status       string
	SubmittedAt  time.Time
}

// Dashboard renders the learner's recent reverification submissions.
func Dashboard(loc i18n.Localizer, items []DashboardItem) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<section class="dashboard"><h1>`)
		h.text(i18n.Text(loc, "reverify.dashboard.heading", "Your identity verifications"))
		h.raw(`</h1>`)
		if len(items) == 0 {
			h.raw(`<p class="empty">`)
			h.text(i18n.Text(loc, "reverify.dashboard.empty", "You have not submitted any photos yet."))
			h.raw(`</p></section>`)
			return h.err
		}
		unknown := i18n.Text(loc, "core.unknown", "Unknown")
		submitted := i18n.Text(loc, "reverify.dashboard.submitted", "Submitted")
		h.raw(`<ul class="submissions">`)
		for _, item := range items {
			h.raw(`<li class="submission"><span class="course-id">`)
			h.text(orDefault(item.CourseID, unknown))
			h.raw(`</span> <span class="checkpoint-id">`)
			h.text(orDefault(item.CheckpointID, unknown))
			h.raw(`</span> <span class="status status-`)
			h.text(item.Status)
			h.raw(`">`)
			h.text(submitted)
			h.raw(`</span> <time datetime="`)
			h.text(item.SubmittedAt.UTC().Format(time.RFC3339))
			h.raw(`">`)
			h.text(item.SubmittedAt.UTC().Format("2006-01-02 15:04 MST"))
			h.raw(`</time></li>`)
		}
		h.raw(`</ul></section>`)
		return h.err
	})
}

// RenderString renders c to a string.
func RenderString(ctx context.Context, c templ.Component) (string, error) {
	var b strings.Builder
	if err := c.Render(ctx, &b); err != nil {
		return "", fmt.Errorf("render component: %w", err)
	}
	return b.String(), nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
