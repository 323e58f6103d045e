// Package solr implements the Solr backend driver over Solr's JSON HTTP API.
package solr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sony/gobreaker"

	"github.com/rubiojr/solrpi/pkg/backend"
	"github.com/rubiojr/solrpi/pkg/config"
	"github.com/rubiojr/solrpi/pkg/errors"
	"github.com/rubiojr/solrpi/pkg/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodySize bounds how much of a response is read.
const maxBodySize = 32 << 20

func init() {
	backend.RegisterDriver("solr", New)
}

// Client talks to one Solr core.
type Client struct {
	base    *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *log.Logger
}

// New is the driver entry point.
func New(info config.ConnectionInfo) (backend.Connection, error) {
	return NewClient(info.URL, info.RequestTimeout())
}

// NewClient returns a client for the core at baseURL, for example
// http://localhost:8983/solr/core_en.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing solr url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported solr url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("solr url %q has no host", baseURL)
	}

	logger := log.ForService("solr")
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        u.String(),
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("Circuit breaker for %s changed from %s to %s", name, from, to)
		},
	})
	return c, nil
}

// Endpoint returns the core URL.
func (c *Client) Endpoint() string {
	return c.base.String()
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

type pingResponse struct {
	Status string `json:"status"`
}

// Ping calls the core's ping handler. It bypasses the circuit breaker so a
// recovered backend is noticed right away.
func (c *Client) Ping(ctx context.Context) error {
	status, body, err := c.get(ctx, "admin/ping", url.Values{"wt": {"json"}})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("ping returned status %d", status)
	}
	var resp pingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decoding ping response: %w", err)
	}
	if resp.Status != "OK" {
		return fmt.Errorf("ping status %q", resp.Status)
	}
	return nil
}

type selectResponse struct {
	ResponseHeader struct {
		Status int `json:"status"`
		QTime  int `json:"QTime"`
	} `json:"responseHeader"`
	Response struct {
		NumFound int              `json:"numFound"`
		Start    int              `json:"start"`
		Docs     []map[string]any `json:"docs"`
	} `json:"response"`
	Error *struct {
		Msg  string `json:"msg"`
		Code int    `json:"code"`
	} `json:"error"`
}

type httpResult struct {
	status int
	body   []byte
}

// Select runs req against the select handler. Transport failures and 5xx
// responses count against the circuit breaker; 4xx responses do not.
func (c *Client) Select(ctx context.Context, req backend.Request) (*backend.Response, error) {
	params := SelectParams(req)

	out, err := c.breaker.Execute(func() (interface{}, error) {
		status, body, err := c.get(ctx, "select", params)
		if err != nil {
			return nil, err
		}
		if status >= 500 {
			return nil, errors.Backend(errors.CodeBackendStatus, fmt.Sprintf("solr returned status %d", status), nil)
		}
		return httpResult{status: status, body: body}, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, errors.Backend(errors.CodeBackendCircuitOpen, fmt.Sprintf("solr at %s is failing", c.Endpoint()), err)
		}
		if errors.CodeOf(err) != 0 {
			return nil, err
		}
		return nil, errors.Backend(errors.CodeBackendRequest, fmt.Sprintf("querying %s", c.Endpoint()), err)
	}

	res := out.(httpResult)
	var decoded selectResponse
	if err := json.Unmarshal(res.body, &decoded); err != nil {
		if res.status != http.StatusOK {
			return nil, errors.Backend(errors.CodeBackendStatus, fmt.Sprintf("solr returned status %d", res.status), nil)
		}
		return nil, errors.Backend(errors.CodeBackendResponse, "decoding solr response", err)
	}
	if decoded.Error != nil {
		return nil, errors.Backend(errors.CodeBackendStatus, fmt.Sprintf("solr error %d: %s", decoded.Error.Code, decoded.Error.Msg), nil)
	}
	if res.status != http.StatusOK {
		return nil, errors.Backend(errors.CodeBackendStatus, fmt.Sprintf("solr returned status %d", res.status), nil)
	}

	docs := make([]backend.Document, 0, len(decoded.Response.Docs))
	for _, d := range decoded.Response.Docs {
		docs = append(docs, backend.Document(d))
	}
	return &backend.Response{
		NumFound:  decoded.Response.NumFound,
		Start:     decoded.Response.Start,
		Documents: docs,
		QTime:     time.Duration(decoded.ResponseHeader.QTime) * time.Millisecond,
	}, nil
}

// SelectParams encodes req as select handler parameters.
func SelectParams(req backend.Request) url.Values {
	q := req.Query
	if strings.TrimSpace(q) == "" {
		q = "*:*"
	}
	params := url.Values{
		"q":  {q},
		"wt": {"json"},
	}
	if req.Start > 0 {
		params.Set("start", strconv.Itoa(req.Start))
	}
	if req.Rows > 0 {
		params.Set("rows", strconv.Itoa(req.Rows))
	}
	for _, fq := range req.Filters {
		params.Add("fq", fq)
	}
	if req.Sort != "" {
		params.Set("sort", req.Sort)
	}
	return params
}

func (c *Client) get(ctx context.Context, handler string, params url.Values) (int, []byte, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + handler
	u.RawQuery = params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("requesting %s: %w", handler, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, nil, fmt.Errorf("reading %s response: %w", handler, err)
	}
	c.logger.Debugf("GET %s -> %d (%d bytes)", u.Path, resp.StatusCode, len(body))
	return resp.StatusCode, body, nil
}
