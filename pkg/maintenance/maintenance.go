// Package maintenance runs the periodic background jobs of a server:
// probing backend connections and pruning the query statistics.
package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rubiojr/solrpi/pkg/backend"
	"github.com/rubiojr/solrpi/pkg/log"
	"github.com/rubiojr/solrpi/pkg/storage"
)

// Config sets the job intervals. A zero or negative interval disables the
// job. A zero StatisticsRetention keeps statistics forever.
type Config struct {
	ProbeInterval       time.Duration
	OptimizeInterval    time.Duration
	StatisticsRetention time.Duration
}

// ProbeResult is the outcome of pinging one configured connection.
type ProbeResult struct {
	Key       backend.ConnectionKey
	Endpoint  string
	Available bool
	Err       error
}

type Scheduler struct {
	config    Config
	backends  *backend.Manager
	storage   *storage.Manager
	logger    *log.Logger
	stopCh    chan struct{}
	ctxCancel context.CancelFunc
	mu        sync.Mutex
	wg        sync.WaitGroup
	running   bool
	now       func() time.Time
}

func New(config Config, backends *backend.Manager, store *storage.Manager) *Scheduler {
	return &Scheduler{
		config:   config,
		backends: backends,
		storage:  store,
		logger:   log.ForService("maintenance"),
		now:      time.Now,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("maintenance scheduler is already running")
	}

	ctx, s.ctxCancel = context.WithCancel(ctx)
	s.stopCh = make(chan struct{})
	s.running = true

	if s.config.ProbeInterval > 0 {
		s.wg.Add(1)
		go s.loop(ctx, "probe", s.config.ProbeInterval, func(ctx context.Context) error {
			s.ProbeOnce(ctx)
			return nil
		})
	}
	if s.config.OptimizeInterval > 0 && s.storage.Enabled() {
		s.wg.Add(1)
		go s.loop(ctx, "optimize", s.config.OptimizeInterval, s.OptimizeOnce)
	}

	s.logger.Infof("Maintenance started, probe interval: %v, optimize interval: %v",
		s.config.ProbeInterval, s.config.OptimizeInterval)
	return nil
}

// Stop signals every job and waits for running ones to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.ctxCancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Infof("Maintenance stopped")
}

// Reconfigure replaces the job intervals. Running jobs are stopped and
// started again with config; a stopped scheduler stays stopped.
func (s *Scheduler) Reconfigure(ctx context.Context, config Config) error {
	wasRunning := s.IsRunning()
	s.Stop()

	s.mu.Lock()
	s.config = config
	s.mu.Unlock()

	if !wasRunning {
		return nil
	}
	return s.Start(ctx)
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, job func(context.Context) error) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.logger.Debugf("Running %s", name)
			if err := job(ctx); err != nil {
				s.logger.Warnf("Scheduled %s failed: %v", name, err)
			}
		}
	}
}

// ProbeOnce pings every configured connection. Availability is exported
// through the backend metrics as a side effect of the ping.
func (s *Scheduler) ProbeOnce(ctx context.Context) []ProbeResult {
	conns := s.backends.Connections()
	results := make([]ProbeResult, 0, len(conns))

	for _, info := range conns {
		key := backend.ConnectionKey{PageID: info.PageID, LanguageID: info.LanguageID, MountPoint: info.MountPoint}
		res := ProbeResult{Key: key}

		conn, release, err := s.backends.Connect(ctx, key)
		if err != nil {
			res.Err = err
			s.logger.Warnf("Connection %s unusable: %v", key, err)
			results = append(results, res)
			continue
		}
		res.Endpoint = conn.Endpoint()
		res.Available = backend.Ping(ctx, conn)
		release()
		if !res.Available {
			s.logger.Warnf("Backend %s is unavailable", res.Endpoint)
		}
		results = append(results, res)
	}
	return results
}

// OptimizeOnce prunes statistics older than the retention and checkpoints
// the database.
func (s *Scheduler) OptimizeOnce(ctx context.Context) error {
	if !s.storage.Enabled() {
		return nil
	}
	store, err := s.storage.Statistics()
	if err != nil {
		return err
	}

	if s.config.StatisticsRetention > 0 {
		n, err := store.Prune(ctx, s.now().Add(-s.config.StatisticsRetention))
		if err != nil {
			return err
		}
		if n > 0 {
			s.logger.Infof("Pruned %d statistics records", n)
		}
	}

	if err := store.WALCheckpoint(); err != nil {
		return fmt.Errorf("checkpointing statistics: %w", err)
	}
	return nil
}
