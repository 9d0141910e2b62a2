package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/procedure-staffing-api/internal/models"
	appErrors "github.com/noah-isme/procedure-staffing-api/pkg/errors"
)

// AdvanceOfferIndex computes the current offer index of a sequential posting
// at now. Each candidate holds the offer for SequentialOfferDuration starting
// at SequentialOfferStartedAt, so the index is the number of whole periods
// elapsed, capped at len(PreferredCandidates). The result never moves below
// the stored index, which makes repeated or out-of-order evaluation converge.
// Once a posting leaves available the cascade freezes at the stored index.
func AdvanceOfferIndex(p models.Posting, now time.Time) int {
	stored := p.SequentialOfferIndex
	total := len(p.PreferredCandidates)
	if stored > total {
		stored = total
	}
	if stored < 0 {
		stored = 0
	}
	if p.VisibilityMode != models.VisibilitySequential || p.Status != models.PostingStatusAvailable ||
		p.SequentialOfferStartedAt == nil || p.SequentialOfferDuration <= 0 {
		return stored
	}
	elapsed := now.Sub(*p.SequentialOfferStartedAt)
	if elapsed < 0 {
		return stored
	}
	periods := int64(elapsed / p.SequentialOfferDuration)
	idx := total
	if periods < int64(total) {
		idx = int(periods)
	}
	if idx < stored {
		return stored
	}
	return idx
}

type offerStore interface {
	GetByID(ctx context.Context, id string) (*models.Posting, error)
	CompareAndSwap(ctx context.Context, id string, guard models.PostingGuard, patch models.PostingPatch) error
}

// OfferScheduler persists sequential offer advances.
type OfferScheduler struct {
	repo    offerStore
	logger  *zap.Logger
	metrics *MetricsService
}

// NewOfferScheduler constructs the scheduler.
func NewOfferScheduler(repo offerStore, metrics *MetricsService, logger *zap.Logger) *OfferScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OfferScheduler{repo: repo, metrics: metrics, logger: logger}
}

// Tick brings the stored offer index of p up to date with now and returns the
// resulting posting. Non-sequential or non-available postings are returned
// unchanged. The write is guarded by the previously stored index; when another
// writer got there first the fresh row is re-read and returned instead.
func (s *OfferScheduler) Tick(ctx context.Context, p *models.Posting, now time.Time) (*models.Posting, error) {
	if p == nil || p.VisibilityMode != models.VisibilitySequential || p.Status != models.PostingStatusAvailable {
		return p, nil
	}
	newIndex := AdvanceOfferIndex(*p, now)
	if newIndex == p.SequentialOfferIndex {
		return p, nil
	}

	oldIndex := p.SequentialOfferIndex
	available := models.PostingStatusAvailable
	err := s.repo.CompareAndSwap(ctx, p.ID,
		models.PostingGuard{Status: &available, OfferIndex: &oldIndex},
		models.PostingPatch{OfferIndex: &newIndex, UpdatedAt: now.UTC()},
	)
	switch {
	case err == nil:
		s.metrics.RecordOfferAdvance(newIndex - oldIndex)
		s.logger.Info("sequential offer advanced",
			zap.String("posting_id", p.ID),
			zap.Int("from_index", oldIndex),
			zap.Int("to_index", newIndex),
		)
		advanced := *p
		advanced.SequentialOfferIndex = newIndex
		advanced.UpdatedAt = now.UTC()
		return &advanced, nil
	case errors.Is(err, sql.ErrNoRows):
		fresh, getErr := s.repo.GetByID(ctx, p.ID)
		if getErr != nil {
			if errors.Is(getErr, sql.ErrNoRows) {
				return nil, appErrors.ErrNotFound
			}
			return nil, appErrors.Wrap(getErr, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to reload posting")
		}
		return fresh, nil
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to advance sequential offer")
	}
}
