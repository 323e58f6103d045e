package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rubiojr/solrpi/pkg/maintenance"
	"github.com/urfave/cli/v3"
)

// PingCommand creates the ping command
func PingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "Check every configured search backend",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Overall timeout for all pings",
				Value: 10 * time.Second,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, cancel := context.WithTimeout(ctx, c.Duration("timeout"))
			defer cancel()
			return pingBackends(ctx, c.String("config"), os.Stdout)
		},
	}
}

// pingBackends probes the configured connections and fails when any of
// them is unavailable.
func pingBackends(ctx context.Context, configPath string, w io.Writer) error {
	_, env, err := loadEnvironment(configPath)
	if err != nil {
		return err
	}
	defer env.Close()

	results := maintenance.New(maintenance.Config{}, env.Backends, env.Storage).ProbeOnce(ctx)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Search Backends"))
	b.WriteString("\n")

	if len(results) == 0 {
		b.WriteString(noDataStyle.Render("No connections configured."))
		b.WriteString("\n")
		fmt.Fprint(w, b.String())
		return nil
	}

	failed := 0
	for _, r := range results {
		status := okStyle.Render("available")
		if !r.Available {
			status = failStyle.Render("unavailable")
			failed++
		}
		endpoint := r.Endpoint
		if r.Err != nil {
			endpoint = r.Err.Error()
		}
		fmt.Fprintf(&b, "%s %s %s\n", labelStyle.Render(r.Key.String()), status, metaStyle.Render(endpoint))
	}
	fmt.Fprint(w, b.String())

	if failed > 0 {
		return fmt.Errorf("%d of %d backends unavailable", failed, len(results))
	}
	return nil
}
