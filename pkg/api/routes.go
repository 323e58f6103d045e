package api

import (
	"net/http"

	"github.com/rubiojr/solrpi/pkg/metrics"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Plugin pages, HTML
	mux.HandleFunc("GET /search", s.HandleSearch)
	mux.HandleFunc("GET /form", s.HandleForm)
	mux.HandleFunc("GET /frequent", s.HandleFrequent)

	mux.HandleFunc("GET /health", s.HandleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
}
