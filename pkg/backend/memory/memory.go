// Package memory implements an in-process backend on top of a memory-only
// bleve index. It understands the same requests as the Solr driver, which
// makes it useful for development and tests without a running Solr.
package memory

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	jsoniter "github.com/json-iterator/go"

	"github.com/rubiojr/solrpi/pkg/backend"
	"github.com/rubiojr/solrpi/pkg/config"
	"github.com/rubiojr/solrpi/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func init() {
	backend.RegisterDriver("memory", New)
}

// Index is a memory-only search index.
type Index struct {
	name   string
	mu     sync.RWMutex
	index  bleve.Index
	closed bool
}

// New is the driver entry point. Documents, when set, is a JSON file with
// an array of documents loaded into the index.
func New(info config.ConnectionInfo) (backend.Connection, error) {
	name := fmt.Sprintf("memory:%d:%d", info.PageID, info.LanguageID)
	if info.MountPoint != "" {
		name += ":" + info.MountPoint
	}
	idx, err := NewIndex(name)
	if err != nil {
		return nil, err
	}
	if info.Documents != "" {
		if err := idx.LoadFile(info.Documents); err != nil {
			idx.Close()
			return nil, err
		}
	}
	return idx, nil
}

// NewIndex returns an empty index.
func NewIndex(name string) (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating memory index: %w", err)
	}
	return &Index{name: name, index: idx}, nil
}

// Add indexes docs. Every document needs an "id".
func (i *Index) Add(docs ...backend.Document) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return fmt.Errorf("index is closed")
	}

	batch := i.index.NewBatch()
	for n, doc := range docs {
		id := doc.ID()
		if id == "" {
			return fmt.Errorf("document %d has no id", n)
		}
		if err := batch.Index(id, map[string]any(doc)); err != nil {
			return fmt.Errorf("indexing document %s: %w", id, err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("executing batch: %w", err)
	}
	return nil
}

// LoadFile indexes the documents in a JSON array file.
func (i *Index) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading documents: %w", err)
	}
	var docs []backend.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("decoding documents from %s: %w", path, err)
	}
	return i.Add(docs...)
}

// Endpoint returns the index name.
func (i *Index) Endpoint() string {
	return i.name
}

// Ping fails once the index is closed.
func (i *Index) Ping(ctx context.Context) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return fmt.Errorf("index is closed")
	}
	return nil
}

// Select runs req. The query and filters use query string syntax; an empty
// query or *:* matches every document.
func (i *Index) Select(ctx context.Context, req backend.Request) (*backend.Response, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.closed {
		return nil, errors.Backend(errors.CodeBackendRequest, "index is closed", nil)
	}

	rows := req.Rows
	if rows <= 0 {
		rows = 10
	}
	sreq := bleve.NewSearchRequestOptions(buildQuery(req), rows, req.Start, false)
	sreq.Fields = []string{"*"}
	if order := sortOrder(req.Sort); len(order) > 0 {
		sreq.SortBy(order)
	}

	result, err := i.index.SearchInContext(ctx, sreq)
	if err != nil {
		return nil, errors.Backend(errors.CodeBackendRequest, fmt.Sprintf("searching %s", i.name), err)
	}

	docs := make([]backend.Document, 0, len(result.Hits))
	for _, hit := range result.Hits {
		doc := backend.Document{}
		for k, v := range hit.Fields {
			doc[k] = v
		}
		doc["id"] = hit.ID
		docs = append(docs, doc)
	}
	return &backend.Response{
		NumFound:  int(result.Total),
		Start:     req.Start,
		Documents: docs,
		QTime:     result.Took,
	}, nil
}

// Close closes the index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	return i.index.Close()
}

func buildQuery(req backend.Request) query.Query {
	var main query.Query
	q := strings.TrimSpace(req.Query)
	if q == "" || q == "*:*" {
		main = bleve.NewMatchAllQuery()
	} else {
		main = bleve.NewQueryStringQuery(q)
	}
	if len(req.Filters) == 0 {
		return main
	}

	parts := []query.Query{main}
	for _, fq := range req.Filters {
		parts = append(parts, bleve.NewQueryStringQuery(fq))
	}
	return bleve.NewConjunctionQuery(parts...)
}

// sortOrder converts a Solr sort clause such as "date desc, score desc" to
// bleve sort fields.
func sortOrder(sort string) []string {
	var order []string
	for _, clause := range strings.Split(sort, ",") {
		fields := strings.Fields(clause)
		if len(fields) == 0 {
			continue
		}
		field := fields[0]
		if field == "score" {
			field = "_score"
		}
		desc := len(fields) > 1 && strings.EqualFold(fields[1], "desc")
		if desc {
			field = "-" + field
		}
		order = append(order, field)
	}
	return order
}
