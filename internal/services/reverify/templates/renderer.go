package templates

import (
	"context"
	"fmt"

	"github.com/a-h/templ"
	"github.com/louisbranch/reverify/internal/platform/i18n"
	"github.com/louisbranch/reverify/internal/services/reverify/controller"
)

// Renderer renders named page templates for the controller.
type Renderer struct {
	Localizer i18n.Localizer
}

// Render renders the template called name with data.
func (r Renderer) Render(ctx context.Context, name string, data controller.PageData) (string, error) {
	var component templ.Component
	switch name {
	case controller.TemplateName:
		component = ReverifyPage(r.Localizer, PageData{CourseID: data.CourseID, CheckpointID: data.CheckpointID})
	default:
		return "", fmt.Errorf("unknown template %q", name)
	}
	return RenderString(ctx, component)
}

var _ controller.Renderer = Renderer{}
