package models

import (
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostingStatus captures the staffing lifecycle of a posting.
type PostingStatus string

const (
	PostingStatusAvailable PostingStatus = "available"
	PostingStatusPending   PostingStatus = "pending"
	PostingStatusConfirmed PostingStatus = "confirmed"
	PostingStatusCancelled PostingStatus = "cancelled"
)

// Valid reports whether the status is one of the known values.
func (s PostingStatus) Valid() bool {
	switch s {
	case PostingStatusAvailable, PostingStatusPending, PostingStatusConfirmed, PostingStatusCancelled:
		return true
	}
	return false
}

// Scan implements sql.Scanner, rejecting values outside the enumeration.
func (s *PostingStatus) Scan(src interface{}) error {
	raw, err := scanEnum(src)
	if err != nil {
		return err
	}
	if !PostingStatus(raw).Valid() {
		return fmt.Errorf("unknown posting status %q", raw)
	}
	*s = PostingStatus(raw)
	return nil
}

// IsTerminal reports whether no further transition may leave the status.
func (s PostingStatus) IsTerminal() bool {
	switch s {
	case PostingStatusConfirmed, PostingStatusCancelled:
		return true
	case PostingStatusAvailable, PostingStatusPending:
		return false
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s in one step.
//
//	available -> pending -> confirmed
//	available -> confirmed (auto-accept)
//	available|pending -> cancelled
func (s PostingStatus) CanTransitionTo(next PostingStatus) bool {
	switch s {
	case PostingStatusAvailable:
		return next == PostingStatusPending || next == PostingStatusConfirmed || next == PostingStatusCancelled
	case PostingStatusPending:
		return next == PostingStatusConfirmed || next == PostingStatusCancelled
	case PostingStatusConfirmed, PostingStatusCancelled:
		return false
	}
	return false
}

// VisibilityMode governs which candidates may see and act on a posting.
type VisibilityMode string

const (
	VisibilityAll        VisibilityMode = "all"
	VisibilitySpecific   VisibilityMode = "specific"
	VisibilitySequential VisibilityMode = "sequential"
	VisibilityTimed      VisibilityMode = "timed"
)

// Valid reports whether the mode is one of the known values.
func (m VisibilityMode) Valid() bool {
	switch m {
	case VisibilityAll, VisibilitySpecific, VisibilitySequential, VisibilityTimed:
		return true
	}
	return false
}

// Scan implements sql.Scanner, rejecting values outside the enumeration.
func (m *VisibilityMode) Scan(src interface{}) error {
	raw, err := scanEnum(src)
	if err != nil {
		return err
	}
	if !VisibilityMode(raw).Valid() {
		return fmt.Errorf("unknown visibility mode %q", raw)
	}
	*m = VisibilityMode(raw)
	return nil
}

func scanEnum(src interface{}) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("unsupported enum source %T", src)
	}
}

// RequiresCandidates reports whether the mode needs a non-empty preferred list.
func (m VisibilityMode) RequiresCandidates() bool {
	switch m {
	case VisibilitySpecific, VisibilitySequential, VisibilityTimed:
		return true
	case VisibilityAll:
		return false
	}
	return false
}

// Posting is a scheduled procedure awaiting a qualified anaesthetist.
type Posting struct {
	ID          string  `db:"id" json:"id"`
	PostedBy    string  `db:"posted_by" json:"postedBy"`
	Date        string  `db:"date" json:"date"`
	StartTime   string  `db:"start_time" json:"startTime"`
	Duration    string  `db:"duration" json:"duration"`
	Location    string  `db:"location" json:"location"`
	SurgeryName string  `db:"surgery_name" json:"surgeryName"`
	SurgeonName string  `db:"surgeon_name" json:"surgeonName"`
	Fee         float64 `db:"fee" json:"fee"`
	Remarks     string  `db:"remarks" json:"remarks,omitempty"`
	IsPriority  bool    `db:"is_priority" json:"isPriority"`

	Status               PostingStatus  `db:"status" json:"status"`
	VisibilityMode       VisibilityMode `db:"visibility_mode" json:"visibilityMode"`
	PreferredCandidates  pq.StringArray `db:"preferred_candidates" json:"preferredCandidates"`
	AcceptedBy           pq.StringArray `db:"accepted_by" json:"acceptedBy"`
	ConfirmedCandidateID *string        `db:"confirmed_candidate_id" json:"confirmedCandidateId,omitempty"`
	AutoAccept           bool           `db:"auto_accept" json:"autoAccept"`

	// SequentialOfferStartedAt marks the start of the offer to index 0; the
	// offer to index i begins at SequentialOfferStartedAt + i*SequentialOfferDuration.
	SequentialOfferIndex     int           `db:"sequential_offer_index" json:"sequentialOfferIndex"`
	SequentialOfferStartedAt *time.Time    `db:"sequential_offer_started_at" json:"sequentialOfferStartedAt,omitempty"`
	SequentialOfferDuration  time.Duration `db:"sequential_offer_duration" json:"sequentialOfferDuration"`

	TimeDelay         time.Duration `db:"time_delay" json:"timeDelay"`
	VisibleToAllAfter *time.Time    `db:"visible_to_all_after" json:"visibleToAllAfter,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// HasAccepted reports whether the candidate already accepted the posting.
func (p *Posting) HasAccepted(candidateID string) bool {
	for _, id := range p.AcceptedBy {
		if id == candidateID {
			return true
		}
	}
	return false
}

// IsPreferred reports whether the candidate appears on the preferred list.
func (p *Posting) IsPreferred(candidateID string) bool {
	for _, id := range p.PreferredCandidates {
		if id == candidateID {
			return true
		}
	}
	return false
}

// OfferDeadline returns when the offer at index idx lapses, or nil when the
// posting is not sequential or idx is past the end of the list.
func (p *Posting) OfferDeadline(idx int) *time.Time {
	if p.VisibilityMode != VisibilitySequential || p.SequentialOfferStartedAt == nil || idx >= len(p.PreferredCandidates) {
		return nil
	}
	deadline := p.SequentialOfferStartedAt.Add(time.Duration(idx+1) * p.SequentialOfferDuration)
	return &deadline
}

// PostingGuard lists the fields a conditional write compares before applying
// its patch. Nil fields are not compared; a non-nil empty AcceptedBy matches
// only a posting nobody has accepted yet.
type PostingGuard struct {
	Status     *PostingStatus
	AcceptedBy []string
	OfferIndex *int
}

// PostingPatch holds the columns a conditional write sets. Nil fields are left
// untouched.
type PostingPatch struct {
	Status               *PostingStatus
	AcceptedBy           []string
	ConfirmedCandidateID *string
	OfferIndex           *int
	UpdatedAt            time.Time
}

// PostingFilter constrains listing queries.
type PostingFilter struct {
	Status   *PostingStatus
	PostedBy string
	Mode     *VisibilityMode
	Limit    int
	Offset   int
}
