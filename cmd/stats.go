package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rubiojr/solrpi/pkg/storage"
	tmpl "github.com/rubiojr/solrpi/pkg/template"
	"github.com/urfave/cli/v3"
)

// StatsCommand creates the stats command
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show query statistics",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Number of frequent queries to show",
				Value: 10,
			},
			&cli.StringFlag{
				Name:  "language",
				Usage: "Only count queries in this language",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			opts := storage.TopOptions{Limit: c.Int("limit"), Language: c.String("language")}
			return showStats(ctx, c.String("config"), opts, os.Stdout)
		},
	}
}

// showStats prints the statistics summary and the most frequent queries
func showStats(ctx context.Context, configPath string, opts storage.TopOptions, w io.Writer) error {
	_, env, err := loadEnvironment(configPath)
	if err != nil {
		return err
	}
	defer env.Close()

	if !env.Storage.Enabled() {
		fmt.Fprintln(w, noDataStyle.Render("Statistics are disabled: no storage_dir configured."))
		return nil
	}

	store, err := env.Storage.Statistics()
	if err != nil {
		return fmt.Errorf("opening statistics: %w", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("getting stats: %w", err)
	}
	top, err := store.Top(ctx, opts)
	if err != nil {
		return fmt.Errorf("getting frequent queries: %w", err)
	}

	fmt.Fprint(w, formatStats(stats, top))
	return nil
}

func formatStats(stats storage.Stats, top []storage.FrequentQuery) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Query Statistics"))
	b.WriteString("\n")

	if stats.Total == 0 {
		b.WriteString(noDataStyle.Render("No queries recorded yet."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(row("Queries", formatNumber(stats.Total)) + "\n")
	b.WriteString(row("Distinct", formatNumber(stats.Distinct)) + "\n")
	b.WriteString(row("No results", fmt.Sprintf("%s (%.1f%%)", formatNumber(stats.NoResults),
		float64(stats.NoResults)/float64(stats.Total)*100)) + "\n")
	b.WriteString(row("Avg time", stats.AvgDuration.Round(time.Millisecond).String()) + "\n")
	b.WriteString(row("First", tmpl.FormatTime(stats.First)) + "\n")
	b.WriteString(row("Last", tmpl.FormatTime(stats.Last)) + "\n")
	b.WriteString(row("Span", formatDuration(stats.Last.Sub(stats.First))) + "\n")

	b.WriteString(headerStyle.Render("Frequent Queries"))
	b.WriteString("\n")
	if len(top) == 0 {
		b.WriteString(noDataStyle.Render("No query found any results."))
		b.WriteString("\n")
		return b.String()
	}
	for i, q := range top {
		fmt.Fprintf(&b, "%2d. %s %s\n", i+1, q.Keywords,
			metaStyle.Render(fmt.Sprintf("(%d, last %s)", q.Count, tmpl.FormatTime(q.LastSeen))))
	}
	return b.String()
}
