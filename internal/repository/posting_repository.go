package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/procedure-staffing-api/internal/models"
)

const postingColumns = `id, posted_by, date, start_time, duration, location, surgery_name, surgeon_name, fee, remarks, is_priority,
       status, visibility_mode, preferred_candidates, accepted_by, confirmed_candidate_id, auto_accept,
       sequential_offer_index, sequential_offer_started_at, sequential_offer_duration,
       time_delay, visible_to_all_after, created_at, updated_at`

// PostingRepository persists postings in Postgres.
type PostingRepository struct {
	db *sqlx.DB
}

// NewPostingRepository constructs the repository.
func NewPostingRepository(db *sqlx.DB) *PostingRepository {
	return &PostingRepository{db: db}
}

// Create inserts a new posting row.
func (r *PostingRepository) Create(ctx context.Context, posting *models.Posting) error {
	if posting.ID == "" {
		posting.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if posting.CreatedAt.IsZero() {
		posting.CreatedAt = now
	}
	if posting.UpdatedAt.IsZero() {
		posting.UpdatedAt = posting.CreatedAt
	}
	if posting.PreferredCandidates == nil {
		posting.PreferredCandidates = pq.StringArray{}
	}
	if posting.AcceptedBy == nil {
		posting.AcceptedBy = pq.StringArray{}
	}
	const query = `INSERT INTO postings
	(id, posted_by, date, start_time, duration, location, surgery_name, surgeon_name, fee, remarks, is_priority,
	 status, visibility_mode, preferred_candidates, accepted_by, confirmed_candidate_id, auto_accept,
	 sequential_offer_index, sequential_offer_started_at, sequential_offer_duration,
	 time_delay, visible_to_all_after, created_at, updated_at)
	VALUES (:id, :posted_by, :date, :start_time, :duration, :location, :surgery_name, :surgeon_name, :fee, :remarks, :is_priority,
	 :status, :visibility_mode, :preferred_candidates, :accepted_by, :confirmed_candidate_id, :auto_accept,
	 :sequential_offer_index, :sequential_offer_started_at, :sequential_offer_duration,
	 :time_delay, :visible_to_all_after, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, posting); err != nil {
		return fmt.Errorf("create posting: %w", err)
	}
	return nil
}

// GetByID fetches a posting by identifier.
func (r *PostingRepository) GetByID(ctx context.Context, id string) (*models.Posting, error) {
	query := `SELECT ` + postingColumns + ` FROM postings WHERE id = $1`
	var posting models.Posting
	if err := r.db.GetContext(ctx, &posting, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get posting: %w", err)
	}
	return &posting, nil
}

// List returns postings matching the filter ordered by procedure date. The
// result is unbounded unless filter.Limit is set.
func (r *PostingRepository) List(ctx context.Context, filter models.PostingFilter) ([]models.Posting, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 3)
	builder.WriteString(`SELECT ` + postingColumns + ` FROM postings`)

	conditions := make([]string, 0, 3)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.PostedBy != "" {
		args = append(args, filter.PostedBy)
		conditions = append(conditions, fmt.Sprintf("posted_by = $%d", len(args)))
	}
	if filter.Mode != nil {
		args = append(args, *filter.Mode)
		conditions = append(conditions, fmt.Sprintf("visibility_mode = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY date ASC, start_time ASC")

	if filter.Limit > 0 {
		builder.WriteString(fmt.Sprintf(" LIMIT %d", filter.Limit))
		if filter.Offset > 0 {
			builder.WriteString(fmt.Sprintf(" OFFSET %d", filter.Offset))
		}
	}

	var postings []models.Posting
	if err := r.db.SelectContext(ctx, &postings, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list postings: %w", err)
	}
	return postings, nil
}

// ListByCandidate returns open postings whose preferred list contains the candidate.
func (r *PostingRepository) ListByCandidate(ctx context.Context, candidateID string) ([]models.Posting, error) {
	query := `SELECT ` + postingColumns + ` FROM postings
	WHERE $1 = ANY(preferred_candidates) AND status IN ('available', 'pending', 'confirmed')
	ORDER BY date ASC, start_time ASC`
	var postings []models.Posting
	if err := r.db.SelectContext(ctx, &postings, query, candidateID); err != nil {
		return nil, fmt.Errorf("list postings by candidate: %w", err)
	}
	return postings, nil
}

// ListOpenToAll returns open postings that any candidate may see as of now:
// mode all, timed postings past their release, and sequential postings whose
// candidate list has been exhausted.
func (r *PostingRepository) ListOpenToAll(ctx context.Context, now time.Time) ([]models.Posting, error) {
	query := `SELECT ` + postingColumns + ` FROM postings
	WHERE status IN ('available', 'pending')
	  AND (visibility_mode = 'all'
	       OR (visibility_mode = 'timed' AND visible_to_all_after <= $1)
	       OR (visibility_mode = 'sequential' AND sequential_offer_started_at
	           + make_interval(secs => sequential_offer_duration::double precision * cardinality(preferred_candidates) / 1e9) <= $1))
	ORDER BY date ASC, start_time ASC`
	var postings []models.Posting
	if err := r.db.SelectContext(ctx, &postings, query, now); err != nil {
		return nil, fmt.Errorf("list public postings: %w", err)
	}
	return postings, nil
}

// ListConfirmedFor returns postings confirmed to the candidate.
func (r *PostingRepository) ListConfirmedFor(ctx context.Context, candidateID string) ([]models.Posting, error) {
	query := `SELECT ` + postingColumns + ` FROM postings
	WHERE status = 'confirmed' AND confirmed_candidate_id = $1
	ORDER BY date ASC, start_time ASC`
	var postings []models.Posting
	if err := r.db.SelectContext(ctx, &postings, query, candidateID); err != nil {
		return nil, fmt.Errorf("list confirmed postings: %w", err)
	}
	return postings, nil
}

// ListSequentialOpen returns available sequential postings the offer sweeper ticks.
func (r *PostingRepository) ListSequentialOpen(ctx context.Context, limit int) ([]models.Posting, error) {
	if limit <= 0 {
		limit = 200
	}
	query := `SELECT ` + postingColumns + ` FROM postings
	WHERE status = 'available' AND visibility_mode = 'sequential'
	  AND sequential_offer_index < cardinality(preferred_candidates)
	ORDER BY sequential_offer_started_at ASC LIMIT $1`
	var postings []models.Posting
	if err := r.db.SelectContext(ctx, &postings, query, limit); err != nil {
		return nil, fmt.Errorf("list sequential postings: %w", err)
	}
	return postings, nil
}

// CompareAndSwap applies patch only when the stored row still matches guard.
// It returns sql.ErrNoRows when the row is absent or the guard no longer holds.
func (r *PostingRepository) CompareAndSwap(ctx context.Context, id string, guard models.PostingGuard, patch models.PostingPatch) error {
	args := make([]interface{}, 0, 8)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if patch.UpdatedAt.IsZero() {
		patch.UpdatedAt = time.Now().UTC()
	}
	setParts := []string{"updated_at = " + arg(patch.UpdatedAt)}
	if patch.Status != nil {
		setParts = append(setParts, "status = "+arg(*patch.Status))
	}
	if patch.AcceptedBy != nil {
		setParts = append(setParts, "accepted_by = "+arg(pq.StringArray(patch.AcceptedBy)))
	}
	if patch.ConfirmedCandidateID != nil {
		setParts = append(setParts, "confirmed_candidate_id = "+arg(*patch.ConfirmedCandidateID))
	}
	if patch.OfferIndex != nil {
		setParts = append(setParts, "sequential_offer_index = "+arg(*patch.OfferIndex))
	}

	conditions := []string{"id = " + arg(id)}
	if guard.Status != nil {
		conditions = append(conditions, "status = "+arg(*guard.Status))
	}
	if guard.AcceptedBy != nil {
		conditions = append(conditions, "accepted_by = "+arg(pq.StringArray(guard.AcceptedBy))+"::text[]")
	}
	if guard.OfferIndex != nil {
		conditions = append(conditions, "sequential_offer_index = "+arg(*guard.OfferIndex))
	}

	query := fmt.Sprintf("UPDATE postings SET %s WHERE %s",
		strings.Join(setParts, ", "),
		strings.Join(conditions, " AND "),
	)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update posting: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check posting update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
