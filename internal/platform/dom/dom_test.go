package dom

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const testPage = `<!DOCTYPE html><html><body>
<main id="container"></main>
<div id="errors"></div>
</body></html>`

func mustParse(t *testing.T, markup string) *Document {
	t.Helper()
	doc, err := Parse(markup)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return doc
}

func TestSetHTMLReplacesChildren(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, testPage)
	container := doc.Element("#container")
	if err := container.SetHTML(`<p>first</p>`); err != nil {
		t.Fatalf("SetHTML() error = %v", err)
	}
	if err := container.SetHTML(`<button id="submit" class="action">Go</button>`); err != nil {
		t.Fatalf("SetHTML() error = %v", err)
	}
	inner, err := container.InnerHTML()
	if err != nil {
		t.Fatalf("InnerHTML() error = %v", err)
	}
	if strings.Contains(inner, "first") {
		t.Fatalf("old content still present: %s", inner)
	}
	if !doc.Element("submit").Exists() {
		t.Fatal("expected injected submit button to resolve")
	}
}

func TestMissingElement(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, testPage)
	missing := doc.Element("nope")
	if err := missing.SetHTML("<p></p>"); !errors.Is(err, ErrElementNotFound) {
		t.Fatalf("SetHTML() error = %v, want ErrElementNotFound", err)
	}
	if err := missing.SetDisabled(true); !errors.Is(err, ErrElementNotFound) {
		t.Fatalf("SetDisabled() error = %v, want ErrElementNotFound", err)
	}
	if err := doc.Click(context.Background(), "nope"); !errors.Is(err, ErrElementNotFound) {
		t.Fatalf("Click() error = %v, want ErrElementNotFound", err)
	}
}

func TestSetDisabledKeepsPropertiesTogether(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, testPage)
	if err := doc.Element("container").SetHTML(`<button id="submit" class="action">Go</button>`); err != nil {
		t.Fatalf("SetHTML() error = %v", err)
	}
	submit := doc.Element("submit")
	for _, disabled := range []bool{true, false, true, true, false} {
		if err := submit.SetDisabled(disabled); err != nil {
			t.Fatalf("SetDisabled(%t) error = %v", disabled, err)
		}
		style, attr, aria := submit.DisabledState()
		if style != disabled || attr != disabled || aria != disabled {
			t.Fatalf("SetDisabled(%t) state = (%t, %t, %t)", disabled, style, attr, aria)
		}
		if !submit.HasClass("action") {
			t.Fatal("unrelated class was dropped")
		}
	}
	value, ok := submit.Attr("aria-disabled")
	if !ok || value != "false" {
		t.Fatalf("aria-disabled = %q (%t), want \"false\"", value, ok)
	}
}

func TestClickDispatchesHandlersAndRespectsDisabled(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, testPage)
	if err := doc.Element("container").SetHTML(`<button id="submit">Go</button>`); err != nil {
		t.Fatalf("SetHTML() error = %v", err)
	}
	submit := doc.Element("submit")
	clicks := 0
	release := submit.OnClick(func(context.Context) { clicks++ })

	if err := doc.Click(context.Background(), "#submit"); err != nil {
		t.Fatalf("Click() error = %v", err)
	}
	if clicks != 1 {
		t.Fatalf("clicks = %d, want 1", clicks)
	}

	if err := submit.SetDisabled(true); err != nil {
		t.Fatalf("SetDisabled() error = %v", err)
	}
	if err := doc.Click(context.Background(), "submit"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Click() error = %v, want ErrDisabled", err)
	}
	if clicks != 1 {
		t.Fatalf("clicks = %d after disabled click, want 1", clicks)
	}

	release()
	release()
	if got := submit.ClickHandlers(); got != 0 {
		t.Fatalf("handlers = %d after release, want 0", got)
	}
}

func TestHandleSurvivesReRender(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, testPage)
	container := doc.Element("container")
	if err := container.SetHTML(`<button id="submit">A</button>`); err != nil {
		t.Fatalf("SetHTML() error = %v", err)
	}
	submit := doc.Element("submit")
	if err := submit.SetDisabled(true); err != nil {
		t.Fatalf("SetDisabled() error = %v", err)
	}
	if err := container.SetHTML(`<button id="submit">B</button>`); err != nil {
		t.Fatalf("SetHTML() error = %v", err)
	}
	if style, attr, aria := submit.DisabledState(); style || attr || aria {
		t.Fatalf("re-rendered button state = (%t, %t, %t), want enabled", style, attr, aria)
	}
	outer, err := submit.OuterHTML()
	if err != nil {
		t.Fatalf("OuterHTML() error = %v", err)
	}
	if !strings.Contains(outer, ">B<") {
		t.Fatalf("handle resolved stale node: %s", outer)
	}
}

func TestRenderSerializesDocument(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, testPage)
	if err := doc.Element("errors").SetHTML(`<p class="msg">bad &amp; worse</p>`); err != nil {
		t.Fatalf("SetHTML() error = %v", err)
	}
	out := doc.String()
	if !strings.Contains(out, `<p class="msg">bad &amp; worse</p>`) {
		t.Fatalf("rendered document missing fragment: %s", out)
	}
	if sel := doc.Element("errors").Selector(); sel != "#errors" {
		t.Fatalf("Selector() = %q", sel)
	}
}
