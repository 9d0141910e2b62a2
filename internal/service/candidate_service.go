package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/procedure-staffing-api/internal/models"
	appErrors "github.com/noah-isme/procedure-staffing-api/pkg/errors"
)

const (
	candidateCachePrefix  = "candidates:"
	candidateCachePattern = candidateCachePrefix + "*"
)

type candidateRepository interface {
	ListCandidates(ctx context.Context, filter models.UserFilter) ([]models.Candidate, int, error)
}

// CandidateList is a page of candidate metadata.
type CandidateList struct {
	Items      []models.Candidate `json:"items"`
	Pagination models.Pagination  `json:"pagination"`
}

// CandidateService exposes the anaesthetist directory clinics pick preferred
// candidates from.
type CandidateService struct {
	repo   candidateRepository
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewCandidateService constructs a CandidateService.
func NewCandidateService(repo candidateRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *CandidateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CandidateService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// ListCandidates returns active anaesthetists matching search. The bool
// reports whether the page came from cache.
func (s *CandidateService) ListCandidates(ctx context.Context, search string, page, pageSize int) (*CandidateList, bool, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}
	role := models.RoleAnaesthetist
	key := fmt.Sprintf("%s%s:%d:%d", candidateCachePrefix, search, page, pageSize)
	return ReadThrough(ctx, s.cache, key, s.ttl, func(ctx context.Context) (*CandidateList, error) {
		items, total, err := s.repo.ListCandidates(ctx, models.UserFilter{Role: &role, Search: search, Page: page, PageSize: pageSize})
		if err != nil {
			s.logger.Error("failed to list candidates", zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list candidates")
		}
		if items == nil {
			items = []models.Candidate{}
		}
		return &CandidateList{
			Items:      items,
			Pagination: models.Pagination{Page: page, PageSize: pageSize, TotalCount: total},
		}, nil
	})
}
