package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rubiojr/solrpi/pkg/backend"
	"github.com/rubiojr/solrpi/pkg/i18n"
	"github.com/rubiojr/solrpi/pkg/plugin"
	"github.com/rubiojr/solrpi/pkg/version"
)

// healthTimeout bounds the pings of one health check.
const healthTimeout = 5 * time.Second

// RequestFromHTTP builds a plugin request from the query string. A missing
// q parameter yields a nil query, q= yields an empty one. Page, language and
// mount point come from id, L and mp.
func RequestFromHTTP(r *http.Request) plugin.Request {
	values := r.URL.Query()

	var q *string
	if v, ok := values["q"]; ok {
		s := ""
		if len(v) > 0 {
			s = v[0]
		}
		q = &s
	}

	pageID, _ := strconv.Atoi(values.Get("id"))
	languageID, _ := strconv.Atoi(values.Get("L"))

	return plugin.Request{
		Query:      q,
		Params:     values,
		PageID:     pageID,
		LanguageID: languageID,
		MountPoint: values.Get("mp"),
		ActionURL:  "/search",
	}
}

func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	s.servePlugin(w, r, s.results, "Search")
}

func (s *Server) HandleForm(w http.ResponseWriter, r *http.Request) {
	s.servePlugin(w, r, s.form, "Search")
}

func (s *Server) HandleFrequent(w http.ResponseWriter, r *http.Request) {
	s.servePlugin(w, r, s.frequent, "Frequent Searches")
}

// servePlugin runs l and writes its output. With fragment=1 only the plugin
// markup is written, otherwise a full page.
func (s *Server) servePlugin(w http.ResponseWriter, r *http.Request, l *plugin.Lifecycle, title string) {
	res := l.Execute(r.Context(), RequestFromHTTP(r))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Request-ID", res.RequestID)

	if r.URL.Query().Get("fragment") == "1" {
		if _, err := w.Write([]byte(res.Content)); err != nil {
			s.logger.Warnf("Writing response: %v", err)
		}
		return
	}

	lang := res.Language
	if lang == "" || lang == i18n.DefaultLanguage {
		lang = "en"
	}
	if err := Page(title, lang, res.Content, res.Scripts).Render(r.Context(), w); err != nil {
		s.logger.Errorf("Rendering page: %v", err)
	}
}

// HandleHealth pings every configured connection. Any unavailable backend
// makes the response 503.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	env := s.env.Load()
	if env == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Not configured", "no environment loaded")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
		Backends:  []BackendHealth{},
	}

	for _, info := range env.Backends.Connections() {
		key := backend.ConnectionKey{PageID: info.PageID, LanguageID: info.LanguageID, MountPoint: info.MountPoint}
		bh := BackendHealth{
			PageID:     info.PageID,
			LanguageID: info.LanguageID,
			MountPoint: info.MountPoint,
			Type:       info.Type,
		}
		conn, release, err := env.Backends.Connect(ctx, key)
		if err != nil {
			bh.Error = err.Error()
		} else {
			bh.Endpoint = conn.Endpoint()
			bh.Available = backend.Ping(ctx, conn)
			release()
		}
		if !bh.Available {
			health.Status = "degraded"
		}
		health.Backends = append(health.Backends, bh)
	}

	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, health)
}
