package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/procedure-staffing-api/internal/dto"
	"github.com/noah-isme/procedure-staffing-api/internal/models"
	appErrors "github.com/noah-isme/procedure-staffing-api/pkg/errors"
)

const (
	postingCachePattern = "postings:*"

	defaultSequentialOffer = 24 * time.Hour
	defaultTimedDelay      = 48 * time.Hour
)

type postingStore interface {
	Create(ctx context.Context, posting *models.Posting) error
	GetByID(ctx context.Context, id string) (*models.Posting, error)
	List(ctx context.Context, filter models.PostingFilter) ([]models.Posting, error)
	ListByCandidate(ctx context.Context, candidateID string) ([]models.Posting, error)
	ListOpenToAll(ctx context.Context, now time.Time) ([]models.Posting, error)
	ListConfirmedFor(ctx context.Context, candidateID string) ([]models.Posting, error)
	CompareAndSwap(ctx context.Context, id string, guard models.PostingGuard, patch models.PostingPatch) error
}

// PostingServiceConfig tunes caching and retry behaviour.
type PostingServiceConfig struct {
	CacheTTL       time.Duration
	StorageRetries int
	RetryDelay     time.Duration
}

// PostingServiceOption configures the service.
type PostingServiceOption func(*PostingService)

// WithPostingClock overrides the time source.
func WithPostingClock(clock func() time.Time) PostingServiceOption {
	return func(s *PostingService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// PostingService coordinates posting creation, listing, and the
// accept/confirm/cancel state machine. Every mutation re-reads fresh state and
// lands as one guarded write.
type PostingService struct {
	repo      postingStore
	scheduler *OfferScheduler
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    PostingServiceConfig
	clock     func() time.Time
}

// NewPostingService constructs the coordinator.
func NewPostingService(repo postingStore, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg PostingServiceConfig, opts ...PostingServiceOption) *PostingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.StorageRetries < 0 {
		cfg.StorageRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	svc := &PostingService{
		repo:      repo,
		scheduler: NewOfferScheduler(repo, metrics, logger),
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    cfg,
		clock:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// CreatePosting validates and stores a new available posting owned by posterID.
func (s *PostingService) CreatePosting(ctx context.Context, req dto.CreatePostingRequest, posterID string) (*models.Posting, error) {
	if strings.TrimSpace(posterID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "poster id is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid posting payload")
	}
	preferred, err := normaliseCandidates(req.PreferredCandidates)
	if err != nil {
		return nil, err
	}
	if req.VisibilityMode.RequiresCandidates() && len(preferred) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("preferredCandidates is required for %s visibility", req.VisibilityMode))
	}

	now := s.clock().UTC()
	posting := &models.Posting{
		PostedBy:            posterID,
		Date:                req.Date,
		StartTime:           req.StartTime,
		Duration:            req.Duration,
		Location:            req.Location,
		SurgeryName:         strings.TrimSpace(req.SurgeryName),
		SurgeonName:         strings.TrimSpace(req.SurgeonName),
		Fee:                 req.Fee,
		Remarks:             req.Remarks,
		IsPriority:          req.IsPriority,
		Status:              models.PostingStatusAvailable,
		VisibilityMode:      req.VisibilityMode,
		PreferredCandidates: pq.StringArray(preferred),
		AcceptedBy:          pq.StringArray{},
		AutoAccept:          req.AutoAccept,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	switch req.VisibilityMode {
	case models.VisibilitySequential:
		offer := defaultSequentialOffer
		if req.SequentialOfferHours > 0 {
			offer = time.Duration(req.SequentialOfferHours) * time.Hour
		}
		posting.SequentialOfferStartedAt = &now
		posting.SequentialOfferDuration = offer
	case models.VisibilityTimed:
		delay := defaultTimedDelay
		if req.TimeDelayDays > 0 {
			delay = time.Duration(req.TimeDelayDays) * 24 * time.Hour
		}
		release := now.Add(delay)
		posting.TimeDelay = delay
		posting.VisibleToAllAfter = &release
	case models.VisibilityAll, models.VisibilitySpecific:
	}

	if err := s.repo.Create(ctx, posting); err != nil {
		s.metrics.RecordPostingOperation("create", appErrors.ErrStorage.Code)
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to create posting")
	}
	s.metrics.RecordPostingOperation("create", "ok")
	s.invalidate(ctx)
	s.logger.Info("posting created",
		zap.String("posting_id", posting.ID),
		zap.String("posted_by", posterID),
		zap.String("visibility_mode", string(posting.VisibilityMode)),
	)
	return posting, nil
}

// GetPosting returns the stored posting.
func (s *PostingService) GetPosting(ctx context.Context, id string) (*models.Posting, error) {
	return s.load(ctx, id)
}

// ListPostingsByStatus lists postings with the given status, optionally only
// those owned by posterID. A nil status lists every status.
func (s *PostingService) ListPostingsByStatus(ctx context.Context, status *models.PostingStatus, posterID string) ([]models.Posting, error) {
	statusKey := "any"
	if status != nil {
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", *status))
		}
		statusKey = string(*status)
	}
	key := fmt.Sprintf("postings:status:%s:poster:%s", statusKey, posterID)
	postings, _, err := ReadThrough(ctx, s.cache, key, s.config.CacheTTL, func(ctx context.Context) ([]models.Posting, error) {
		var list []models.Posting
		err := s.withStorageRetry(ctx, func() error {
			var err error
			list, err = s.repo.List(ctx, models.PostingFilter{Status: status, PostedBy: posterID})
			return err
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list postings")
		}
		if list == nil {
			list = []models.Posting{}
		}
		return list, nil
	})
	return postings, err
}

// ListVisiblePostings returns the postings candidateID may currently see:
// the candidate's preferred postings, everything open to all, and postings
// confirmed to them, filtered through IsVisible.
func (s *PostingService) ListVisiblePostings(ctx context.Context, candidateID string) ([]dto.CandidatePosting, error) {
	if strings.TrimSpace(candidateID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "candidate id is required")
	}
	key := "postings:visible:" + candidateID
	postings, _, err := ReadThrough(ctx, s.cache, key, s.config.CacheTTL, func(ctx context.Context) ([]dto.CandidatePosting, error) {
		now := s.clock().UTC()
		var preferred, public, confirmed []models.Posting
		err := s.withStorageRetry(ctx, func() error {
			var err error
			if preferred, err = s.repo.ListByCandidate(ctx, candidateID); err != nil {
				return err
			}
			if public, err = s.repo.ListOpenToAll(ctx, now); err != nil {
				return err
			}
			confirmed, err = s.repo.ListConfirmedFor(ctx, candidateID)
			return err
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list visible postings")
		}

		seen := make(map[string]struct{})
		result := make([]dto.CandidatePosting, 0, len(preferred)+len(public)+len(confirmed))
		for _, group := range [][]models.Posting{preferred, public, confirmed} {
			for _, p := range group {
				if _, dup := seen[p.ID]; dup {
					continue
				}
				seen[p.ID] = struct{}{}
				if !IsVisible(p, candidateID, now) {
					continue
				}
				result = append(result, dto.CandidatePosting{
					Posting:                 p,
					IsPreferred:             p.IsPreferred(candidateID),
					IsVisibleToCurrentUser:  true,
					SequentialOfferDeadline: currentOfferDeadline(p, now),
				})
			}
		}
		return result, nil
	})
	return postings, err
}

// Accept records candidateID's acceptance. With auto-accept the first
// acceptance confirms the candidate outright. A lost write race is retried
// once from a fresh read before surfacing STALE_WRITE.
func (s *PostingService) Accept(ctx context.Context, postingID, candidateID string) (*models.Posting, error) {
	return s.mutate(ctx, "accept", postingID, func(ctx context.Context) (*models.Posting, error) {
		return s.tryAccept(ctx, postingID, candidateID)
	})
}

func (s *PostingService) tryAccept(ctx context.Context, postingID, candidateID string) (*models.Posting, error) {
	if strings.TrimSpace(candidateID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "candidate id is required")
	}
	posting, err := s.load(ctx, postingID)
	if err != nil {
		return nil, err
	}
	now := s.clock().UTC()
	if posting.VisibilityMode == models.VisibilitySequential {
		if posting, err = s.scheduler.Tick(ctx, posting, now); err != nil {
			return nil, err
		}
	}
	if !IsVisible(*posting, candidateID, now) {
		return nil, appErrors.ErrNotVisible
	}
	if posting.HasAccepted(candidateID) {
		return nil, appErrors.ErrAlreadyAccepted
	}
	if !posting.Status.Valid() || posting.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidStatusTransition, fmt.Sprintf("cannot accept a %s posting", posting.Status))
	}

	previous := append([]string{}, posting.AcceptedBy...)
	accepted := append(append([]string{}, posting.AcceptedBy...), candidateID)
	oldStatus := posting.Status
	patch := models.PostingPatch{AcceptedBy: accepted, UpdatedAt: now}
	next := oldStatus
	var confirmedID *string
	if posting.AutoAccept && len(previous) == 0 {
		next = models.PostingStatusConfirmed
		id := candidateID
		confirmedID = &id
		patch.ConfirmedCandidateID = confirmedID
	} else if oldStatus == models.PostingStatusAvailable {
		next = models.PostingStatusPending
	}
	if next != oldStatus {
		if !oldStatus.CanTransitionTo(next) {
			return nil, appErrors.Clone(appErrors.ErrInvalidStatusTransition, fmt.Sprintf("cannot move a %s posting to %s", oldStatus, next))
		}
		patch.Status = &next
	}

	if err := s.compareAndSwap(ctx, posting.ID, models.PostingGuard{Status: &oldStatus, AcceptedBy: previous}, patch); err != nil {
		return nil, err
	}

	updated := *posting
	updated.AcceptedBy = pq.StringArray(accepted)
	updated.Status = next
	if confirmedID != nil {
		updated.ConfirmedCandidateID = confirmedID
	}
	updated.UpdatedAt = now
	s.logger.Info("posting accepted",
		zap.String("posting_id", posting.ID),
		zap.String("candidate_id", candidateID),
		zap.String("status", string(next)),
	)
	return &updated, nil
}

// Confirm selects candidateID, who must already have accepted, for the
// posting. posterID, when set, must own the posting.
func (s *PostingService) Confirm(ctx context.Context, postingID, posterID, candidateID string) (*models.Posting, error) {
	return s.mutate(ctx, "confirm", postingID, func(ctx context.Context) (*models.Posting, error) {
		posting, err := s.loadOwned(ctx, postingID, posterID)
		if err != nil {
			return nil, err
		}
		if !posting.Status.CanTransitionTo(models.PostingStatusConfirmed) {
			return nil, appErrors.Clone(appErrors.ErrInvalidStatusTransition, fmt.Sprintf("cannot confirm a %s posting", posting.Status))
		}
		if !posting.HasAccepted(candidateID) {
			return nil, appErrors.Clone(appErrors.ErrInvalidStatusTransition, "candidate has not accepted this posting")
		}

		now := s.clock().UTC()
		oldStatus := posting.Status
		confirmed := models.PostingStatusConfirmed
		id := candidateID
		if err := s.compareAndSwap(ctx, posting.ID,
			models.PostingGuard{Status: &oldStatus},
			models.PostingPatch{Status: &confirmed, ConfirmedCandidateID: &id, UpdatedAt: now},
		); err != nil {
			return nil, err
		}
		updated := *posting
		updated.Status = confirmed
		updated.ConfirmedCandidateID = &id
		updated.UpdatedAt = now
		s.logger.Info("posting confirmed", zap.String("posting_id", posting.ID), zap.String("candidate_id", candidateID))
		return &updated, nil
	})
}

// Cancel withdraws an available or pending posting. posterID, when set, must
// own the posting. Confirmed postings cannot be cancelled.
func (s *PostingService) Cancel(ctx context.Context, postingID, posterID string) (*models.Posting, error) {
	return s.mutate(ctx, "cancel", postingID, func(ctx context.Context) (*models.Posting, error) {
		posting, err := s.loadOwned(ctx, postingID, posterID)
		if err != nil {
			return nil, err
		}
		if !posting.Status.CanTransitionTo(models.PostingStatusCancelled) {
			return nil, appErrors.Clone(appErrors.ErrInvalidStatusTransition, fmt.Sprintf("cannot cancel a %s posting", posting.Status))
		}

		now := s.clock().UTC()
		oldStatus := posting.Status
		cancelled := models.PostingStatusCancelled
		if err := s.compareAndSwap(ctx, posting.ID,
			models.PostingGuard{Status: &oldStatus},
			models.PostingPatch{Status: &cancelled, UpdatedAt: now},
		); err != nil {
			return nil, err
		}
		updated := *posting
		updated.Status = cancelled
		updated.UpdatedAt = now
		s.logger.Info("posting cancelled", zap.String("posting_id", posting.ID))
		return &updated, nil
	})
}

// mutate runs op, retrying once on a lost write race, then records the
// outcome and drops cached listings after a success.
func (s *PostingService) mutate(ctx context.Context, operation, postingID string, op func(context.Context) (*models.Posting, error)) (*models.Posting, error) {
	posting, err := op(ctx)
	if err != nil && errors.Is(err, appErrors.ErrStaleWrite) {
		s.logger.Info("posting write conflicted, retrying",
			zap.String("operation", operation),
			zap.String("posting_id", postingID),
		)
		posting, err = op(ctx)
	}
	if err != nil {
		s.metrics.RecordPostingOperation(operation, appErrors.FromError(err).Code)
		return nil, err
	}
	s.metrics.RecordPostingOperation(operation, "ok")
	s.invalidate(ctx)
	return posting, nil
}

func (s *PostingService) load(ctx context.Context, id string) (*models.Posting, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "posting id is required")
	}
	var posting *models.Posting
	err := s.withStorageRetry(ctx, func() error {
		var err error
		posting, err = s.repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "posting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load posting")
	}
	return posting, nil
}

func (s *PostingService) loadOwned(ctx context.Context, id, posterID string) (*models.Posting, error) {
	posting, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if posterID != "" && posting.PostedBy != posterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "posting belongs to another poster")
	}
	return posting, nil
}

func (s *PostingService) compareAndSwap(ctx context.Context, id string, guard models.PostingGuard, patch models.PostingPatch) error {
	if err := s.repo.CompareAndSwap(ctx, id, guard, patch); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrStaleWrite
		}
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to update posting")
	}
	return nil
}

// withStorageRetry retries read failures other than sql.ErrNoRows up to
// StorageRetries times. Writes are never retried here.
func (s *PostingService) withStorageRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.config.StorageRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(s.config.RetryDelay * time.Duration(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
		}
		err = fn()
		if err == nil || errors.Is(err, sql.ErrNoRows) {
			return err
		}
		s.logger.Warn("posting store read failed", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return err
}

func (s *PostingService) invalidate(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, postingCachePattern)
}

func normaliseCandidates(ids []string) ([]string, error) {
	result := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "preferredCandidates must not contain blank ids")
		}
		if _, dup := seen[id]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("candidate %s listed twice", id))
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result, nil
}
