// Package backend connects plugins to search backends.
//
// A Connection is a live handle to one endpoint. Connections are created by
// drivers registered per connection type and cached by a Manager keyed by
// page, language and mount point. Liveness checks go through Ping, which
// never fails outward; query errors from Search.Execute do.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/rubiojr/solrpi/pkg/errors"
	"github.com/rubiojr/solrpi/pkg/log"
	"github.com/rubiojr/solrpi/pkg/metrics"
)

// ConnectionKey addresses a backend endpoint.
type ConnectionKey struct {
	PageID     int
	LanguageID int
	MountPoint string
}

func (k ConnectionKey) String() string {
	return fmt.Sprintf("%d|%d|%s", k.PageID, k.LanguageID, k.MountPoint)
}

// Connection is a handle to one backend endpoint. Implementations must be
// safe for concurrent use.
type Connection interface {
	// Ping checks liveness. It should be cheap.
	Ping(ctx context.Context) error
	// Select runs a query.
	Select(ctx context.Context, req Request) (*Response, error)
	// Endpoint describes the endpoint for logs and metrics.
	Endpoint() string
	Close() error
}

// Request is a search request.
type Request struct {
	Query   string
	Start   int
	Rows    int
	Filters []string
	Sort    string
}

// Document is one search hit as returned by the backend.
type Document map[string]any

// ID returns the document id.
func (d Document) ID() string {
	return d.String("id")
}

// Type returns the document type.
func (d Document) Type() string {
	return d.String("type")
}

// String returns field as a string. Multi-valued fields return their first
// value.
func (d Document) String(field string) string {
	v, ok := d[field]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []any:
		if len(t) == 0 {
			return ""
		}
		return fmt.Sprint(t[0])
	case []string:
		if len(t) == 0 {
			return ""
		}
		return t[0]
	}
	return fmt.Sprint(v)
}

// Response is a search result page.
type Response struct {
	NumFound  int
	Start     int
	Documents []Document
	QTime     time.Duration
}

// Ping reports whether conn is alive. Every failure, including a nil
// connection and a panicking driver, is reported as false.
func Ping(ctx context.Context, conn Connection) (alive bool) {
	if conn == nil {
		return false
	}

	logger := log.ForService("backend")
	defer func() {
		if r := recover(); r != nil {
			logger.Warnf("Ping of %s panicked: %v", conn.Endpoint(), r)
			alive = false
		}
		metrics.SetAvailable(conn.Endpoint(), alive)
	}()

	start := time.Now()
	err := conn.Ping(ctx)
	metrics.RecordBackendRequest(conn.Endpoint(), "ping", err, time.Since(start))
	if err != nil {
		logger.Debugf("Ping of %s failed: %v", conn.Endpoint(), err)
		return false
	}
	return true
}

// Search runs queries against one connection and keeps the last request
// and response so later stages of a request can inspect them.
type Search struct {
	conn     Connection
	request  *Request
	response *Response
}

// NewSearch returns a Search over conn. conn may be nil; Execute then fails
// with a connection error.
func NewSearch(conn Connection) *Search {
	return &Search{conn: conn}
}

// Connection returns the underlying connection.
func (s *Search) Connection() Connection {
	return s.conn
}

// Ping checks the underlying connection.
func (s *Search) Ping(ctx context.Context) bool {
	return Ping(ctx, s.conn)
}

// Execute runs req. Failures are coded backend errors.
func (s *Search) Execute(ctx context.Context, req Request) (*Response, error) {
	if s.conn == nil {
		return nil, errors.Connection(errors.CodeNoConnection, "search has no backend connection", nil)
	}

	start := time.Now()
	resp, err := s.conn.Select(ctx, req)
	metrics.RecordBackendRequest(s.conn.Endpoint(), "select", err, time.Since(start))
	if err != nil {
		if errors.CodeOf(err) == 0 {
			err = errors.Backend(errors.CodeBackendRequest, fmt.Sprintf("querying %s", s.conn.Endpoint()), err)
		}
		return nil, err
	}

	s.request = &req
	s.response = resp
	return resp, nil
}

// Request returns the last executed request, or nil.
func (s *Search) Request() *Request {
	return s.request
}

// Response returns the last response, or nil.
func (s *Search) Response() *Response {
	return s.response
}
