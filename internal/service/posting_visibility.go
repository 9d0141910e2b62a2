package service

import (
	"time"

	"github.com/noah-isme/procedure-staffing-api/internal/models"
)

// IsVisible decides whether candidateID may see and act on p at now.
// Sequential postings are advanced to now before the index comparison, so a
// snapshot with a stale stored index is still evaluated correctly.
func IsVisible(p models.Posting, candidateID string, now time.Time) bool {
	if candidateID == "" {
		return false
	}
	switch p.Status {
	case models.PostingStatusConfirmed:
		return p.ConfirmedCandidateID != nil && *p.ConfirmedCandidateID == candidateID
	case models.PostingStatusCancelled:
		return false
	case models.PostingStatusAvailable, models.PostingStatusPending:
	default:
		return false
	}

	switch p.VisibilityMode {
	case models.VisibilityAll:
		return true
	case models.VisibilitySpecific:
		return p.IsPreferred(candidateID)
	case models.VisibilitySequential:
		idx := AdvanceOfferIndex(p, now)
		if idx >= len(p.PreferredCandidates) {
			return true
		}
		return p.PreferredCandidates[idx] == candidateID
	case models.VisibilityTimed:
		if p.IsPreferred(candidateID) {
			return true
		}
		return p.VisibleToAllAfter != nil && !now.Before(*p.VisibleToAllAfter)
	default:
		return false
	}
}

// currentOfferDeadline reports when the active sequential offer lapses at now.
func currentOfferDeadline(p models.Posting, now time.Time) *time.Time {
	return p.OfferDeadline(AdvanceOfferIndex(p, now))
}
