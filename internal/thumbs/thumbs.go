// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

// Package thumbs renders thumbnails off the indexing hot path. Requests are
// fire-and-forget: the coordinator hands over (photo id, path) and moves on;
// a bounded queue feeds render workers, and the resulting ready or failed
// status lands back on the photo row and broadcasts on the event bus. The
// renderer sits behind a circuit breaker so a broken thumbnail store stops
// burning render work until the cooldown elapses.
package thumbs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/photarium/internal/cache"
	"github.com/tomtom215/photarium/internal/config"
	"github.com/tomtom215/photarium/internal/events"
	"github.com/tomtom215/photarium/internal/logging"
	"github.com/tomtom215/photarium/internal/metrics"
	"github.com/tomtom215/photarium/internal/models"
)

const (
	defaultWorkers          = 2
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30 * time.Second
	defaultQueueCapacity    = 512

	// inflightCapacity bounds the dedup cache; the TTL is a safety valve
	// for entries whose completion path was missed, normal entries are
	// removed when their render settles.
	inflightCapacity = 4096
	inflightTTL      = time.Minute
)

// ErrStore marks failures of the thumbnail store itself (cache directory
// unwritable, disk full) as opposed to per-file decode failures. Only store
// failures count against the circuit breaker.
var ErrStore = errors.New("thumbs: thumbnail store failure")

// Catalog is the slice of the photo store the pipeline writes status to.
type Catalog interface {
	SetThumbStatus(ctx context.Context, id int64, status models.ThumbStatus) error
}

type renderJob struct {
	photoID int64
	path    string
}

func (j renderJob) dedupKey() string {
	return fmt.Sprintf("%d:%s", j.photoID, j.path)
}

// Service is the thumbnail pipeline. Safe for concurrent use; Request never
// blocks.
type Service struct {
	catalog  Catalog
	bus      *events.Bus
	render   Renderer
	cfg      config.ThumbsConfig
	breaker  *gobreaker.CircuitBreaker[any]
	inflight *cache.LRU

	queue   chan renderJob
	workers int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New wires the pipeline. Zero config fields fall back to usable defaults.
func New(cat Catalog, bus *events.Bus, cfg config.ThumbsConfig) *Service {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	threshold := cfg.BreakerThreshold
	if threshold == 0 {
		threshold = defaultBreakerThreshold
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = defaultBreakerCooldown
	}

	s := &Service{
		catalog:  cat,
		bus:      bus,
		render:   NewDiskRenderer(cfg.MaxDim),
		cfg:      cfg,
		inflight: cache.NewLRU(inflightCapacity, inflightTTL),
		queue:    make(chan renderJob, defaultQueueCapacity),
		workers:  workers,
	}
	s.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "thumb-renderer",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// Per-file decode failures leave the renderer healthy.
			return err == nil || !errors.Is(err, ErrStore)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.ThumbBreakerState.Set(float64(to))
			if to == gobreaker.StateOpen {
				logging.Warn().Str("breaker", name).Str("from", from.String()).
					Msg("Thumbnail breaker opened")
			} else {
				logging.Info().Str("breaker", name).Str("from", from.String()).
					Str("to", to.String()).Msg("Thumbnail breaker state changed")
			}
		},
	})

	logging.Info().
		Bool("enabled", cfg.Enabled).
		Str("path", cfg.Path).
		Int("max_dim", cfg.MaxDim).
		Int("workers", workers).
		Uint32("breaker_threshold", threshold).
		Dur("breaker_cooldown", cooldown).
		Msg("Thumbnail pipeline config loaded")
	return s
}

// Start launches the render workers.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("thumbnail pipeline already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
	logging.Info().Int("workers", s.workers).Msg("Thumbnail pipeline started")
	return nil
}

// Stop halts the workers. Queued jobs that have not started are discarded;
// the affected records keep their pending status until re-requested.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return errors.New("thumbnail pipeline not running")
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	logging.Info().Msg("Thumbnail pipeline stopped")
	return nil
}

// Request enqueues one render. Never blocks: when the pipeline is stopped,
// an identical request is already in flight, or the queue is full, the
// request is dropped.
func (s *Service) Request(photoID int64, path string) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return
	}

	job := renderJob{photoID: photoID, path: path}
	if s.inflight.Seen(job.dedupKey()) {
		return
	}
	select {
	case s.queue <- job:
	default:
		s.inflight.Remove(job.dedupKey())
		metrics.ThumbsRendered.WithLabelValues("dropped").Inc()
		logging.Warn().Int64("photo_id", photoID).Msg("Thumbnail queue full, request dropped")
	}
}

// ThumbPath returns the cache file a photo's thumbnail renders to. Keyed on
// the photo id, so a renamed file keeps its thumbnail without a re-render.
func (s *Service) ThumbPath(photoID int64) string {
	return filepath.Join(s.cfg.Path, fmt.Sprintf("%d.jpg", photoID))
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.queue:
			s.process(ctx, job)
		}
	}
}

// process renders one job and settles its status. An open breaker rejects
// the render immediately and the record reports failed.
func (s *Service) process(ctx context.Context, job renderJob) {
	started := time.Now()
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, s.render.Render(ctx, job.path, s.ThumbPath(job.photoID))
	})
	s.inflight.Remove(job.dedupKey())

	if ctx.Err() != nil && err != nil {
		// Shutdown interrupted the render; the record keeps its pending
		// status and the next mutation re-requests it.
		return
	}

	status := models.ThumbStatusReady
	if err != nil {
		status = models.ThumbStatusFailed
		logging.Debug().Err(err).Int64("photo_id", job.photoID).Str("path", job.path).
			Msg("Thumbnail render failed")
	}
	metrics.RecordThumbRender(string(status), time.Since(started))

	wctx := context.WithoutCancel(ctx)
	if err := s.catalog.SetThumbStatus(wctx, job.photoID, status); err != nil {
		logging.Warn().Err(err).Int64("photo_id", job.photoID).
			Msg("Thumbnail status write failed")
		return
	}
	if err := s.bus.PublishThumb(wctx, events.NewThumbEvent(job.photoID, string(status))); err != nil {
		logging.Warn().Err(err).Int64("photo_id", job.photoID).
			Msg("Thumbnail event publish failed")
	}
}
