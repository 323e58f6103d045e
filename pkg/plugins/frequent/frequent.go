// Package frequent implements the frequent searches plugin. It lists the
// queries recorded by the results plugin, weighted by how often they were
// searched.
package frequent

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rubiojr/solrpi/pkg/errors"
	"github.com/rubiojr/solrpi/pkg/plugin"
	"github.com/rubiojr/solrpi/pkg/storage"
)

const (
	Key     = "frequent"
	Subpart = "solr_search_frequent"

	// Buckets is the number of size classes queries are spread over.
	Buckets = 5
)

// Conf is the search.frequent settings section.
type Conf struct {
	Limit int `mapstructure:"limit"`
	// MaxAge limits the statistics considered. Zero means all.
	MaxAge time.Duration `mapstructure:"max_age"`
	// SameLanguage restricts the list to queries made in the request's
	// language.
	SameLanguage bool `mapstructure:"same_language"`
}

// Item is one listed query.
type Item struct {
	Query string
	Count int
	URL   string
	Class string
}

type Plugin struct{}

var _ plugin.Plugin = (*Plugin)(nil)

func New() *Plugin {
	return &Plugin{}
}

func (p *Plugin) Key() string             { return Key }
func (p *Plugin) TemplateFileKey() string { return Key }
func (p *Plugin) Subpart() string         { return Subpart }

// PerformAction loads the most frequent queries. Without a storage
// directory the list is empty.
func (p *Plugin) PerformAction(ctx context.Context, pc *plugin.Context) (any, error) {
	var conf Conf
	if err := pc.Settings.Decode("search.frequent", &conf); err != nil {
		return nil, errors.Config("decoding search.frequent", err)
	}
	if conf.Limit <= 0 {
		conf.Limit = 10
	}

	env := pc.Environment()
	if !env.Storage.Enabled() {
		return []Item{}, nil
	}
	store, err := env.Storage.Statistics()
	if err != nil {
		return nil, err
	}

	opts := storage.TopOptions{Limit: conf.Limit}
	if conf.MaxAge > 0 {
		opts.Since = time.Now().Add(-conf.MaxAge)
	}
	if conf.SameLanguage {
		opts.Language = pc.Language
	}
	top, err := store.Top(ctx, opts)
	if err != nil {
		return nil, err
	}
	return Items(top, pc.ActionURL()), nil
}

func (p *Plugin) Render(ctx context.Context, pc *plugin.Context, result any) (string, error) {
	items, ok := result.([]Item)
	if !ok {
		return "", fmt.Errorf("unexpected result type %T", result)
	}
	pc.Template.AddVariable("frequent", items)
	return pc.Template.Render()
}

// Items converts frequent queries to list items linking to action. Each
// item gets a size class from solr-frequent-1 (least searched) to
// solr-frequent-5 (most searched).
func Items(top []storage.FrequentQuery, action string) []Item {
	if len(top) == 0 {
		return []Item{}
	}

	lo, hi := top[0].Count, top[0].Count
	for _, fq := range top {
		lo = min(lo, fq.Count)
		hi = max(hi, fq.Count)
	}

	sep := "?"
	if strings.Contains(action, "?") {
		sep = "&"
	}

	items := make([]Item, 0, len(top))
	for _, fq := range top {
		bucket := Buckets
		if hi > lo {
			bucket = 1 + (fq.Count-lo)*(Buckets-1)/(hi-lo)
		}
		items = append(items, Item{
			Query: fq.Keywords,
			Count: fq.Count,
			URL:   action + sep + "q=" + url.QueryEscape(fq.Keywords),
			Class: fmt.Sprintf("solr-frequent-%d", bucket),
		})
	}
	return items
}
