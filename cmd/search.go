package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/rubiojr/solrpi/pkg/plugin"
	"github.com/rubiojr/solrpi/pkg/plugins/results"
	"github.com/urfave/cli/v3"
)

// searchOptions describe one plugin invocation from the command line.
type searchOptions struct {
	Plugin       string
	Query        *string
	PageID       int
	LanguageID   int
	MountPoint   string
	TemplateFile string
	Params       url.Values
}

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Run a plugin once and print its markup",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "Search query (omit to run without a query)",
			},
			&cli.StringFlag{
				Name:  "plugin",
				Usage: "Plugin to run: " + fmt.Sprint(pluginNames()),
				Value: results.Key,
			},
			&cli.IntFlag{
				Name:  "page",
				Usage: "Page id used to resolve the connection",
			},
			&cli.IntFlag{
				Name:  "language",
				Usage: "Language id",
			},
			&cli.StringFlag{
				Name:  "mount-point",
				Usage: "Mount point used to resolve the connection",
			},
			&cli.StringFlag{
				Name:  "template",
				Usage: "Template file overriding the configured one",
			},
			&cli.StringSliceFlag{
				Name:  "param",
				Usage: "Extra request parameter as key=value (repeatable)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			params, err := parseParams(c.StringSlice("param"))
			if err != nil {
				return err
			}
			opts := searchOptions{
				Plugin:       c.String("plugin"),
				PageID:       c.Int("page"),
				LanguageID:   c.Int("language"),
				MountPoint:   c.String("mount-point"),
				TemplateFile: c.String("template"),
				Params:       params,
			}
			if c.IsSet("query") {
				q := c.String("query")
				opts.Query = &q
			}
			return runSearch(ctx, c.String("config"), opts, os.Stdout)
		},
	}
}

// runSearch executes the selected plugin once and writes its output to w.
// The plugin output is written even when rendering failed; the lifecycle
// always produces markup.
func runSearch(ctx context.Context, configPath string, opts searchOptions, w io.Writer) error {
	p, err := newPlugin(opts.Plugin)
	if err != nil {
		return err
	}

	_, env, err := loadEnvironment(configPath)
	if err != nil {
		return err
	}
	defer env.Close()

	params := opts.Params
	if params == nil {
		params = url.Values{}
	}
	if opts.Query != nil {
		params.Set("q", *opts.Query)
	}

	out := plugin.New(p, env).Main(ctx, plugin.Request{
		Query:        opts.Query,
		Params:       params,
		PageID:       opts.PageID,
		LanguageID:   opts.LanguageID,
		MountPoint:   opts.MountPoint,
		TemplateFile: opts.TemplateFile,
	})

	_, err = fmt.Fprintln(w, out)
	return err
}

func parseParams(pairs []string) (url.Values, error) {
	params := url.Values{}
	for _, pair := range pairs {
		values, err := url.ParseQuery(pair)
		if err != nil {
			return nil, fmt.Errorf("invalid param %q: %w", pair, err)
		}
		for k, v := range values {
			params[k] = append(params[k], v...)
		}
	}
	return params, nil
}
