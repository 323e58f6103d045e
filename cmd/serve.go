package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rubiojr/solrpi/pkg/api"
	"github.com/rubiojr/solrpi/pkg/config"
	"github.com/rubiojr/solrpi/pkg/log"
	"github.com/rubiojr/solrpi/pkg/maintenance"
	"github.com/rubiojr/solrpi/pkg/plugin"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the search plugins over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Address to listen on (overrides the config file)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c.String("config"), c.String("listen"))
		},
	}
}

// serve runs the HTTP server until SIGINT or SIGTERM. The configuration is
// reloaded on SIGHUP and when the config file changes.
func serve(ctx context.Context, configPath, listen string) error {
	logger := log.ForService("serve")

	cfg, env, err := loadEnvironment(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := env.Close(); err != nil {
			logger.Warnf("Failed to close environment: %v", err)
		}
	}()

	if listen == "" {
		listen = cfg.Listen
	}

	server := api.NewServer(env)
	httpServer := &http.Server{
		Addr:              listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	schedule := maintenanceConfig(cfg)
	scheduler := maintenance.New(schedule, env.Backends, env.Storage)
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("starting maintenance: %w", err)
	}
	defer scheduler.Stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("Listening on http://%s", listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	fmt.Println("Server started. Press Ctrl+C to stop, send SIGHUP to reload, or modify config file for automatic reload.")

	var envMutex sync.Mutex
	current := env
	reload := func() error {
		envMutex.Lock()
		defer envMutex.Unlock()

		next, err := reloadEnvironment(configPath, current)
		if err != nil {
			return err
		}
		current = next
		server.SetEnvironment(next)

		if mc := maintenanceConfig(next.Config); mc != schedule {
			if err := scheduler.Reconfigure(ctx, mc); err != nil {
				return fmt.Errorf("restarting maintenance: %w", err)
			}
			schedule = mc
			logger.Infof("Maintenance schedule updated")
		}
		return nil
	}

	// The watcher is optional; with a nil channel the select never fires.
	var events chan fsnotify.Event
	var watchErrors chan error
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("Failed to create config file watcher: %v", err)
	} else {
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warnf("Failed to close config file watcher: %v", err)
			}
		}()
		if err := watcher.Add(configPath); err != nil {
			logger.Warnf("Failed to watch config file %s: %v", configPath, err)
		} else {
			logger.Infof("Watching config file for changes: %s", configPath)
		}
		events = watcher.Events
		watchErrors = watcher.Errors
	}

	for {
		select {
		case <-ctx.Done():
			return shutdown(httpServer, scheduler)
		case err, ok := <-serverErr:
			if ok && err != nil {
				return fmt.Errorf("serving http: %w", err)
			}
			return nil
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				logger.Infof("Received SIGHUP, reloading configuration...")
				if err := reload(); err != nil {
					logger.Errorf("Failed to reload configuration: %v", err)
				} else {
					logger.Infof("Configuration reloaded successfully")
				}
			case syscall.SIGINT, syscall.SIGTERM:
				fmt.Println("\nShutting down...")
				return shutdown(httpServer, scheduler)
			}
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			// Editors often replace the file instead of writing to it.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			logger.Infof("Config file changed: %s (event: %s), reloading configuration...", event.Name, event.Op.String())

			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(200 * time.Millisecond)

				if _, err := os.Stat(configPath); os.IsNotExist(err) {
					logger.Warnf("Config file was removed and not replaced, skipping reload")
					continue
				}
				if err := watcher.Add(configPath); err != nil {
					logger.Warnf("Failed to re-add config file to watcher after rename/remove: %v", err)
				}
			} else {
				time.Sleep(100 * time.Millisecond)
			}

			if err := reload(); err != nil {
				logger.Errorf("Failed to reload configuration after file change: %v", err)
			} else {
				logger.Infof("Configuration reloaded successfully after file change")
			}
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			logger.Warnf("Config file watcher error: %v", err)
		}
	}
}

// reloadEnvironment loads configPath and applies it to current. The storage
// is kept while cached backend connections and labels are replaced.
func reloadEnvironment(configPath string, current *plugin.Environment) (*plugin.Environment, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading new config: %w", err)
	}
	next, err := current.Reload(cfg)
	if err != nil {
		return nil, fmt.Errorf("applying new config: %w", err)
	}
	return next, nil
}

func maintenanceConfig(cfg *config.Config) maintenance.Config {
	return maintenance.Config{
		ProbeInterval:       cfg.Maintenance.ProbeInterval.Duration,
		OptimizeInterval:    cfg.Maintenance.OptimizeInterval.Duration,
		StatisticsRetention: cfg.Maintenance.StatisticsRetention.Duration,
	}
}

func shutdown(httpServer *http.Server, scheduler *maintenance.Scheduler) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	scheduler.Stop()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
