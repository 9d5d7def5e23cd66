// Package control wires the job store, ticker, persister and API into one
// running service.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/vietddude/blockscan/internal/api"
	"github.com/vietddude/blockscan/internal/core/config"
	"github.com/vietddude/blockscan/internal/core/job"
	"github.com/vietddude/blockscan/internal/core/worker"
	redisclient "github.com/vietddude/blockscan/internal/infra/redis"
	"github.com/vietddude/blockscan/internal/infra/storage"
	"github.com/vietddude/blockscan/internal/infra/storage/memory"
	"github.com/vietddude/blockscan/internal/scanning/health"
	"github.com/vietddude/blockscan/internal/scanning/ticker"
)

// Service is the main application struct that manages the scanner lifecycle.
type Service struct {
	cfg         config.AppConfig
	store       *job.Store
	ticker      *ticker.Ticker
	persister   *worker.Persister
	healthMon   *health.Monitor
	apiServer   *api.Server
	redisClient *redisclient.Client
	log         *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a new Service with all dependencies initialized.
func NewService(cfg config.AppConfig) (*Service, error) {
	return newService(cfg, clockwork.NewRealClock(), nil)
}

// newService builds the service. A non-nil repo overrides the configured storage.
func newService(cfg config.AppConfig, clock clockwork.Clock, repo storage.JobSnapshotRepository) (*Service, error) {
	log := slog.Default().With("component", "service")

	// 1. Initialize Storage
	var redisClient *redisclient.Client
	var pinger health.Pinger

	switch {
	case repo != nil:
	case cfg.Redis.Enabled():
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		repo = redisclient.NewJobSnapshotRepo(redisClient)
		pinger = redisClient
		log.Info("Using Redis snapshot storage")
	default:
		repo = memory.NewJobSnapshotRepo(memory.NewMemoryStorage())
		log.Info("Using Memory snapshot storage")
	}

	// 2. Job store. The store and the ticker each get their own random
	// source; *rand.Rand is not safe for concurrent use.
	store := job.NewStore(job.Options{
		Clock:              clock,
		Rand:               rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		FindingProbability: cfg.Ticker.FindingProbability,
		Networks:           cfg.NetworkSet(),
	})

	// 3. Workers
	tk := ticker.New(ticker.Config{
		Interval:     cfg.Ticker.Interval,
		MinIncrement: cfg.Ticker.MinIncrement,
		MaxIncrement: cfg.Ticker.MaxIncrement,
	}, store, clock, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))

	persister := worker.NewPersister(store, repo, clock, cfg.Persist.Interval)

	// 4. Health + API
	healthMon := health.NewMonitor(tk, store, pinger, clock)
	apiServer := api.NewServer(store, health.NewHandler(healthMon), clock, cfg.Server.Port)

	return &Service{
		cfg:         cfg,
		store:       store,
		ticker:      tk,
		persister:   persister,
		healthMon:   healthMon,
		apiServer:   apiServer,
		redisClient: redisClient,
		log:         log,
	}, nil
}

// Store returns the job store.
func (s *Service) Store() *job.Store {
	return s.store
}

// Start restores persisted jobs and starts every component. It does not block.
func (s *Service) Start(ctx context.Context) error {
	if _, err := s.persister.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore jobs: %w", err)
	}
	s.persister.Attach()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	// Start API Server
	go func() {
		if err := s.apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("API server failed", "error", err)
		}
	}()

	// Start Ticker
	s.ticker.Start(ctx)

	// Start Persister
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.persister.Start(ctx)
	}()

	s.log.Info("Service started", "port", s.cfg.Server.Port, "networks", s.store.Networks())
	return nil
}

// Stop stops the service. Progress stops before the final snapshot flush.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("Stopping service...")

	// Stop API first so no new mutations arrive
	err := s.apiServer.Stop(ctx)

	s.ticker.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	// Close Redis
	if s.redisClient != nil {
		if cerr := s.redisClient.Close(); cerr != nil {
			s.log.Warn("Failed to close Redis", "error", cerr)
		}
	}

	return err
}
