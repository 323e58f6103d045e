package main

import (
	"context"
	"os"

	"github.com/rubiojr/solrpi/cmd"
	"github.com/rubiojr/solrpi/pkg/config"
	"github.com/rubiojr/solrpi/pkg/log"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := log.ForService("solrpi")
	defer log.Flush()

	app := &cli.Command{
		Name:  "solrpi",
		Usage: "Solr search plugins for content pages",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
				Value: false,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: getDefaultConfigPathOrExit(logger),
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			log.SetGlobalDebug(c.Bool("debug"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmd.InitCommand(),
			cmd.ServeCommand(),
			cmd.SearchCommand(),
			cmd.PingCommand(),
			cmd.StatsCommand(),
			cmd.VersionCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Errorf("%v", err)
		log.Flush()
		os.Exit(1)
	}
}

func getDefaultConfigPathOrExit(logger *log.Logger) string {
	path, err := config.GetDefaultConfigPath()
	if err != nil {
		logger.Errorf("Failed to get default config path: %v", err)
		log.Flush()
		os.Exit(1)
	}
	return path
}
