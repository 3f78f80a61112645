package app

import (
	"net/http"

	"github.com/louisbranch/reverify/internal/services/reverify/routepath"
)

func registerRoutes(mux *http.ServeMux, h handlers) {
	if mux == nil {
		return
	}
	mux.HandleFunc(http.MethodGet+" "+routepath.Health, h.handleHealth)
	mux.Handle(http.MethodGet+" "+routepath.ReverifyPattern, h.requirePage(h.handlePage))
	mux.Handle(http.MethodPost+" "+routepath.ReverifySubmitPattern, h.requirePage(h.handleSubmit))
	mux.Handle(http.MethodPost+" "+routepath.VerifyPersistPattern, h.requireText(h.handlePersist))
	mux.Handle(http.MethodGet+" "+routepath.Dashboard, h.requirePage(h.handleDashboard))
}
