package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostingStatusTransitions(t *testing.T) {
	all := []PostingStatus{PostingStatusAvailable, PostingStatusPending, PostingStatusConfirmed, PostingStatusCancelled}
	allowed := map[PostingStatus][]PostingStatus{
		PostingStatusAvailable: {PostingStatusPending, PostingStatusConfirmed, PostingStatusCancelled},
		PostingStatusPending:   {PostingStatusConfirmed, PostingStatusCancelled},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
		assert.Equal(t, len(allowed[from]) == 0, from.IsTerminal(), "%s terminal", from)
	}

	assert.False(t, PostingStatus("archived").CanTransitionTo(PostingStatusCancelled))
	assert.False(t, PostingStatus("archived").Valid())
}
