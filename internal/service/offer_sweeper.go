package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/procedure-staffing-api/internal/models"
	"github.com/noah-isme/procedure-staffing-api/pkg/jobs"
)

const offerTickJob = "sequential_offer_tick"

type sweepStore interface {
	offerStore
	ListSequentialOpen(ctx context.Context, limit int) ([]models.Posting, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// OfferSweeperConfig governs the background sweep.
type OfferSweeperConfig struct {
	Interval  time.Duration
	BatchSize int
}

// OfferSweeper periodically ticks open sequential postings so the stored
// offer index keeps pace with time even when nobody reads the posting.
type OfferSweeper struct {
	repo      sweepStore
	scheduler *OfferScheduler
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       OfferSweeperConfig
	clock     func() time.Time
}

// NewOfferSweeper constructs the sweeper.
func NewOfferSweeper(repo sweepStore, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg OfferSweeperConfig) *OfferSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	return &OfferSweeper{
		repo:      repo,
		scheduler: NewOfferScheduler(repo, metrics, logger),
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		clock:     time.Now,
	}
}

// Sweep ticks every open sequential posting once and returns how many
// advanced.
func (s *OfferSweeper) Sweep(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveSweep(time.Since(start)) }()

	postings, err := s.repo.ListSequentialOpen(ctx, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	advanced := 0
	for i := range postings {
		moved, err := s.tick(ctx, &postings[i])
		if err != nil {
			s.logger.Warn("offer tick failed", zap.String("posting_id", postings[i].ID), zap.Error(err))
			continue
		}
		if moved {
			advanced++
		}
	}
	if advanced > 0 {
		_ = s.cache.Invalidate(ctx, postingCachePattern)
	}
	return advanced, nil
}

// Start enqueues one tick job per open sequential posting every interval until
// ctx is cancelled.
func (s *OfferSweeper) Start(ctx context.Context, queue jobDispatcher) {
	ticker := time.NewTicker(s.cfg.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.dispatch(ctx, queue)
			}
		}
	}()
}

func (s *OfferSweeper) dispatch(ctx context.Context, queue jobDispatcher) {
	postings, err := s.repo.ListSequentialOpen(ctx, s.cfg.BatchSize)
	if err != nil {
		s.logger.Sugar().Warnw("failed to list sequential postings", "error", err)
		return
	}
	for _, p := range postings {
		if AdvanceOfferIndex(p, s.clock().UTC()) == p.SequentialOfferIndex {
			continue
		}
		if err := queue.Enqueue(jobs.Job{ID: p.ID, Type: offerTickJob}); err != nil && !errors.Is(err, jobs.ErrAlreadyQueued) {
			s.logger.Sugar().Warnw("failed to enqueue offer tick", "posting_id", p.ID, "error", err)
		}
	}
}

// Handle processes one queued tick job.
func (s *OfferSweeper) Handle(ctx context.Context, job jobs.Job) error {
	start := time.Now()
	defer func() { s.metrics.ObserveSweep(time.Since(start)) }()

	posting, err := s.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	moved, err := s.tick(ctx, posting)
	if err != nil {
		return err
	}
	if moved {
		_ = s.cache.Invalidate(ctx, postingCachePattern)
	}
	return nil
}

func (s *OfferSweeper) tick(ctx context.Context, p *models.Posting) (bool, error) {
	before := p.SequentialOfferIndex
	updated, err := s.scheduler.Tick(ctx, p, s.clock().UTC())
	if err != nil {
		return false, err
	}
	return updated.SequentialOfferIndex != before, nil
}
