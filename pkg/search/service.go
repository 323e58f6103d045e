package search

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/rubiojr/solrpi/pkg/backend"
)

// MaxLimit caps the results per page a request may ask for.
const MaxLimit = 100

// MaxPage is the highest page whose offset still fits an int.
const MaxPage = math.MaxInt / MaxLimit

// DefaultDateField is the document field date filters apply to.
const DefaultDateField = "created"

// Params are the parameters of one search.
type Params struct {
	// Query is sent to the backend as is. Empty matches everything.
	Query string

	// Filters are backend filter queries.
	Filters []string

	// Sort is a backend sort clause.
	Sort string

	// Page is 1-based.
	Page int

	// Limit is the number of results per page.
	Limit int

	// StartDate and EndDate bound DateField. EndDate is set to the end of
	// its day when parsed.
	StartDate *time.Time
	EndDate   *time.Time
	DateField string
}

// Results is one page of search results.
type Results struct {
	Documents  []backend.Document
	NumFound   int
	Page       int
	Limit      int
	TotalPages int
	HasMore    bool
	Query      string
	QTime      time.Duration
}

// Service executes searches.
type Service struct{}

// NewService returns a search service.
func NewService() *Service {
	return &Service{}
}

// Search runs params against s.
func (svc *Service) Search(ctx context.Context, s *backend.Search, params Params) (*Results, error) {
	params = normalize(params)

	resp, err := s.Execute(ctx, Request(params))
	if err != nil {
		return nil, err
	}

	totalPages := 1
	if resp.NumFound > 0 {
		totalPages = (resp.NumFound + params.Limit - 1) / params.Limit
	}

	return &Results{
		Documents:  resp.Documents,
		NumFound:   resp.NumFound,
		Page:       params.Page,
		Limit:      params.Limit,
		TotalPages: totalPages,
		HasMore:    params.Page < totalPages,
		Query:      params.Query,
		QTime:      resp.QTime,
	}, nil
}

// Request converts params to a backend request.
func Request(params Params) backend.Request {
	params = normalize(params)

	filters := append([]string(nil), params.Filters...)
	if params.StartDate != nil || params.EndDate != nil {
		field := params.DateField
		if field == "" {
			field = DefaultDateField
		}
		filters = append(filters, fmt.Sprintf("%s:[%s TO %s]", field, formatBound(params.StartDate), formatBound(params.EndDate)))
	}

	return backend.Request{
		Query:   params.Query,
		Start:   (params.Page - 1) * params.Limit,
		Rows:    params.Limit,
		Filters: filters,
		Sort:    params.Sort,
	}
}

func formatBound(t *time.Time) string {
	if t == nil {
		return "*"
	}
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

func normalize(params Params) Params {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Page > MaxPage {
		params.Page = MaxPage
	}
	if params.Limit < 1 {
		params.Limit = 10
	}
	if params.Limit > MaxLimit {
		params.Limit = MaxLimit
	}
	return params
}

// ParseParams parses request parameters. defaultLimit applies when no valid
// limit is given. Invalid dates are an error; other invalid values fall back
// to defaults.
func ParseParams(values url.Values, defaultLimit int) (Params, error) {
	params := normalize(Params{Page: 1, Limit: defaultLimit})

	if limit := values.Get("limit"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil && parsed > 0 {
			params.Limit = min(parsed, MaxLimit)
		}
	}

	if page := values.Get("page"); page != "" {
		if parsed, err := strconv.Atoi(page); err == nil && parsed > 0 {
			params.Page = min(parsed, MaxPage)
		}
	}

	for _, fq := range values["fq"] {
		if fq != "" {
			params.Filters = append(params.Filters, fq)
		}
	}
	params.Sort = values.Get("sort")

	if start := values.Get("start_date"); start != "" {
		parsed, err := time.Parse("2006-01-02", start)
		if err != nil {
			return params, fmt.Errorf("invalid start_date: %w", err)
		}
		params.StartDate = &parsed
	}

	if end := values.Get("end_date"); end != "" {
		parsed, err := time.Parse("2006-01-02", end)
		if err != nil {
			return params, fmt.Errorf("invalid end_date: %w", err)
		}
		endOfDay := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, 0, parsed.Location())
		params.EndDate = &endOfDay
	}

	return params, nil
}

// Pagination describes the pager of a result page.
type Pagination struct {
	Page    int
	Pages   int
	HasPrev bool
	HasNext bool
	PrevURL string
	NextURL string
}

// Pagination builds pager links from the current request parameters.
func (r *Results) Pagination(current url.Values) Pagination {
	p := Pagination{
		Page:    r.Page,
		Pages:   r.TotalPages,
		HasPrev: r.Page > 1,
		HasNext: r.HasMore,
	}
	if p.HasPrev {
		p.PrevURL = pageURL(current, r.Page-1)
	}
	if p.HasNext {
		p.NextURL = pageURL(current, r.Page+1)
	}
	return p
}

func pageURL(current url.Values, page int) string {
	values := url.Values{}
	for k, v := range current {
		values[k] = append([]string(nil), v...)
	}
	values.Set("page", strconv.Itoa(page))
	return "?" + values.Encode()
}
