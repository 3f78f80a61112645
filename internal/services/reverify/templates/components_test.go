package templates

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/louisbranch/reverify/internal/platform/dom"
	"github.com/louisbranch/reverify/internal/platform/i18n"
	"github.com/louisbranch/reverify/internal/services/reverify/controller"
	"golang.org/x/text/language"
)

func render(t *testing.T, component templ.Component) string {
	t.Helper()
	markup, err := RenderString(context.Background(), component)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return markup
}

func TestShellProvidesContainers(t *testing.T) {
	t.Parallel()

	markup := render(t, Shell(ShellData{Title: "Re-Verify <me>"}, nil))
	doc, err := dom.Parse(markup)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, id := range []string{ContainerID, ErrorContainerID} {
		if !doc.Element(id).Exists() {
			t.Fatalf("expected #%s in shell", id)
		}
	}
	if !strings.Contains(markup, `lang="en-US"`) {
		t.Fatalf("expected default lang in %q", markup)
	}
	if !strings.Contains(markup, "Re-Verify &lt;me&gt;") {
		t.Fatal("expected escaped title")
	}
}

func TestReverifyPageRendersIdentifiersAndControls(t *testing.T) {
	t.Parallel()

	loc := i18n.Printer(language.MustParse("en-US"))
	markup, err := Renderer{Localizer: loc}.Render(context.Background(), controller.TemplateName, controller.PageData{
		CourseID:     "course-v1:edX+Demo<X>",
		CheckpointID: "midterm",
	})
	if err != nil {
		t.Fatalf("render %s: %v", controller.TemplateName, err)
	}
	for _, want := range []string{
		`id="submit"`,
		`id="webcam"`,
		"course-v1:edX+Demo&lt;X&gt;",
		"midterm",
		"Submit photos &amp; re-verify",
		`action="/reverify/course-v1:edX+Demo%3CX%3E/midterm/submit"`,
	} {
		if !strings.Contains(markup, want) {
			t.Fatalf("page missing %q:\n%s", want, markup)
		}
	}
}

func TestReverifyPageShowsUnknownForEmptyIdentifiers(t *testing.T) {
	t.Parallel()

	loc := i18n.Printer(language.MustParse("pt-BR"))
	markup := render(t, ReverifyPage(loc, PageData{}))
	if strings.Count(markup, "Desconhecido") != 2 {
		t.Fatalf("expected localized unknown twice:\n%s", markup)
	}
}

func TestRendererRejectsUnknownTemplate(t *testing.T) {
	t.Parallel()

	if _, err := (Renderer{}).Render(context.Background(), "missing", controller.PageData{}); err == nil {
		t.Fatal("expected unknown template error")
	}
}

func TestWebcamCarriesFieldAndSubmitReference(t *testing.T) {
	t.Parallel()

	markup := render(t, Webcam(nil, WebcamData{
		SubmitControlID: "submit",
		Captured:        "data:image/png;base64,AAAA",
	}))
	for _, want := range []string{`data-submit-control="submit"`, `name="face_image"`, `value="data:image/png;base64,AAAA"`, "Retake photo"} {
		if !strings.Contains(markup, want) {
			t.Fatalf("webcam missing %q:\n%s", want, markup)
		}
	}
}

func TestUploadRendersFileInput(t *testing.T) {
	t.Parallel()

	markup := render(t, Upload(nil, WebcamData{SubmitControlID: "submit"}))
	if !strings.Contains(markup, `type="file"`) || strings.Contains(markup, `type="hidden"`) {
		t.Fatalf("unexpected upload markup:\n%s", markup)
	}
}

func TestErrorNoticeHiddenRendersNothing(t *testing.T) {
	t.Parallel()

	markup := render(t, ErrorNotice(Notice{Title: "x", Message: "y"}))
	if markup != "" {
		t.Fatalf("hidden notice rendered %q", markup)
	}
	markup = render(t, ErrorRegionOOB(Notice{Title: "Could not submit photos", Message: "<b>Bad</b>", Shown: true}))
	for _, want := range []string{`hx-swap-oob="true"`, "Could not submit photos", "&lt;b&gt;Bad&lt;/b&gt;", `role="alert"`} {
		if !strings.Contains(markup, want) {
			t.Fatalf("notice missing %q:\n%s", want, markup)
		}
	}
}

func TestDashboardListsSubmissions(t *testing.T) {
	t.Parallel()

	empty := render(t, Dashboard(nil, nil))
	if !strings.Contains(empty, "You have not submitted any photos yet.") {
		t.Fatalf("empty dashboard:\n%s", empty)
	}
	markup := render(t, Dashboard(nil, []DashboardItem{{
		CourseID:     "course-1",
		CheckpointID: "final",
		Status:       "submitted",
		SubmittedAt:  time.Date(2026, time.May, 2, 8, 30, 0, 0, time.UTC),
	}}))
	for _, want := range []string{"course-1", "final", "status-submitted", `datetime="2026-05-02T08:30:00Z"`} {
		if !strings.Contains(markup, want) {
			t.Fatalf("dashboard missing %q:\n%s", want, markup)
		}
	}
}
