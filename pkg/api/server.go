package api

import (
	"net/http"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/gzhttp"

	"github.com/rubiojr/solrpi/pkg/log"
	"github.com/rubiojr/solrpi/pkg/plugin"
	"github.com/rubiojr/solrpi/pkg/plugins/frequent"
	"github.com/rubiojr/solrpi/pkg/plugins/results"
	"github.com/rubiojr/solrpi/pkg/plugins/searchform"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Server struct {
	env      atomic.Pointer[plugin.Environment]
	results  *plugin.Lifecycle
	form     *plugin.Lifecycle
	frequent *plugin.Lifecycle
	logger   *log.Logger
}

func NewServer(env *plugin.Environment) *Server {
	s := &Server{
		results:  plugin.New(results.New(), env),
		form:     plugin.New(searchform.New(), env),
		frequent: plugin.New(frequent.New(), env),
		logger:   log.ForService("api"),
	}
	s.env.Store(env)
	return s
}

// SetEnvironment switches every plugin to env. In-flight requests finish
// with the environment they started with.
func (s *Server) SetEnvironment(env *plugin.Environment) {
	s.env.Store(env)
	for _, l := range s.lifecycles() {
		l.SetEnvironment(env)
	}
}

func (s *Server) lifecycles() []*plugin.Lifecycle {
	return []*plugin.Lifecycle{s.results, s.form, s.frequent}
}

// Handler returns the routes wrapped with CORS and gzip compression.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return gzhttp.GzipHandler(CorsMiddleware(mux))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("Error encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
