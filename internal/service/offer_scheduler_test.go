package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/procedure-staffing-api/internal/models"
	appErrors "github.com/noah-isme/procedure-staffing-api/pkg/errors"
)

func sequentialPosting(index int, candidates ...string) models.Posting {
	started := postingEpoch
	return models.Posting{
		ID:                       "seq-1",
		Status:                   models.PostingStatusAvailable,
		VisibilityMode:           models.VisibilitySequential,
		PreferredCandidates:      pq.StringArray(candidates),
		AcceptedBy:               pq.StringArray{},
		SequentialOfferIndex:     index,
		SequentialOfferStartedAt: &started,
		SequentialOfferDuration:  time.Hour,
	}
}

func TestAdvanceOfferIndex(t *testing.T) {
	p := sequentialPosting(0, "A", "B", "C")
	cases := []struct {
		name    string
		elapsed time.Duration
		want    int
	}{
		{name: "before start", elapsed: -time.Minute, want: 0},
		{name: "first offer", elapsed: 59 * time.Minute, want: 0},
		{name: "boundary", elapsed: time.Hour, want: 1},
		{name: "third offer", elapsed: 2*time.Hour + time.Second, want: 2},
		{name: "exhausted", elapsed: 3 * time.Hour, want: 3},
		{name: "capped", elapsed: 72 * time.Hour, want: 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, AdvanceOfferIndex(p, postingEpoch.Add(tc.elapsed)))
		})
	}
}

func TestAdvanceOfferIndexNeverRegresses(t *testing.T) {
	p := sequentialPosting(2, "A", "B", "C")
	require.Equal(t, 2, AdvanceOfferIndex(p, postingEpoch.Add(10*time.Minute)))

	p.SequentialOfferIndex = 9
	require.Equal(t, 3, AdvanceOfferIndex(p, postingEpoch))
}

func TestAdvanceOfferIndexFrozenOutsideAvailable(t *testing.T) {
	p := sequentialPosting(1, "A", "B", "C")
	p.Status = models.PostingStatusPending
	require.Equal(t, 1, AdvanceOfferIndex(p, postingEpoch.Add(10*time.Hour)))

	p.Status = models.PostingStatusAvailable
	p.SequentialOfferDuration = 0
	require.Equal(t, 1, AdvanceOfferIndex(p, postingEpoch.Add(10*time.Hour)))
}

func TestAdvanceOfferIndexIdempotent(t *testing.T) {
	snapshot := sequentialPosting(0, "A", "B", "C", "D")
	for _, t1 := range []time.Duration{0, 30 * time.Minute, 90 * time.Minute, 150 * time.Minute} {
		for _, later := range []time.Duration{0, time.Minute, time.Hour, 5 * time.Hour} {
			first := postingEpoch.Add(t1)
			second := first.Add(later)

			applied := snapshot
			applied.SequentialOfferIndex = AdvanceOfferIndex(snapshot, first)
			require.Equal(t, AdvanceOfferIndex(snapshot, second), AdvanceOfferIndex(applied, second),
				"t1=%s t2=%s", t1, t1+later)
		}
	}
}

func TestOfferSchedulerTickPersistsAdvance(t *testing.T) {
	repo := newPostingRepoStub()
	p := sequentialPosting(0, "A", "B", "C")
	require.NoError(t, repo.Create(context.Background(), &p))
	metrics := NewMetricsService()
	scheduler := NewOfferScheduler(repo, metrics, nil)

	ticked, err := scheduler.Tick(context.Background(), &p, postingEpoch.Add(2*time.Hour+time.Minute))
	require.NoError(t, err)
	require.Equal(t, 2, ticked.SequentialOfferIndex)
	stored, _ := repo.GetByID(context.Background(), p.ID)
	require.Equal(t, 2, stored.SequentialOfferIndex)
	require.Equal(t, uint64(2), metrics.Snapshot().OfferAdvances)

	// replaying the stale snapshot converges on the stored row
	again, err := scheduler.Tick(context.Background(), &p, postingEpoch.Add(2*time.Hour+time.Minute))
	require.NoError(t, err)
	require.Equal(t, 2, again.SequentialOfferIndex)
	require.Equal(t, uint64(2), metrics.Snapshot().OfferAdvances)
}

func TestOfferSchedulerTickNoops(t *testing.T) {
	repo := newPostingRepoStub()
	scheduler := NewOfferScheduler(repo, nil, nil)

	all := models.Posting{ID: "x", VisibilityMode: models.VisibilityAll, Status: models.PostingStatusAvailable}
	got, err := scheduler.Tick(context.Background(), &all, postingEpoch)
	require.NoError(t, err)
	require.Same(t, &all, got)

	current := sequentialPosting(0, "A", "B")
	got, err = scheduler.Tick(context.Background(), &current, postingEpoch.Add(time.Minute))
	require.NoError(t, err)
	require.Same(t, &current, got)
}

func TestOfferSchedulerTickMissingPosting(t *testing.T) {
	scheduler := NewOfferScheduler(newPostingRepoStub(), nil, nil)
	p := sequentialPosting(0, "A", "B")
	_, err := scheduler.Tick(context.Background(), &p, postingEpoch.Add(time.Hour))
	require.True(t, errors.Is(err, appErrors.ErrNotFound))
}
