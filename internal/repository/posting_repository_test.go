package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/procedure-staffing-api/internal/models"
)

var postingColumnNames = []string{
	"id", "posted_by", "date", "start_time", "duration", "location", "surgery_name", "surgeon_name", "fee", "remarks", "is_priority",
	"status", "visibility_mode", "preferred_candidates", "accepted_by", "confirmed_candidate_id", "auto_accept",
	"sequential_offer_index", "sequential_offer_started_at", "sequential_offer_duration",
	"time_delay", "visible_to_all_after", "created_at", "updated_at",
}

func newPostingRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPostingRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newPostingRepoMock(t)
	defer cleanup()

	repo := NewPostingRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO postings")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	started := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	posting := &models.Posting{
		PostedBy:                 "clinic-1",
		Date:                     "2026-03-10",
		StartTime:                "09:00",
		SurgeryName:              "Knee arthroscopy",
		Status:                   models.PostingStatusAvailable,
		VisibilityMode:           models.VisibilitySequential,
		PreferredCandidates:      pq.StringArray{"a", "b"},
		SequentialOfferStartedAt: &started,
		SequentialOfferDuration:  time.Hour,
	}
	require.NoError(t, repo.Create(context.Background(), posting))
	require.NotEmpty(t, posting.ID)
	require.NotNil(t, posting.AcceptedBy)

	rows := sqlmock.NewRows(postingColumnNames).
		AddRow(posting.ID, "clinic-1", "2026-03-10", "09:00", "2h", "Room 3", "Knee arthroscopy", "Dr. Lee", 1500.0, "", false,
			"available", "sequential", "{a,b}", "{}", nil, false,
			0, started, int64(time.Hour),
			int64(0), nil, started, started)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, posted_by")).
		WithArgs(posting.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), posting.ID)
	require.NoError(t, err)
	require.Equal(t, models.VisibilitySequential, found.VisibilityMode)
	require.Equal(t, pq.StringArray{"a", "b"}, found.PreferredCandidates)
	require.Equal(t, time.Hour, found.SequentialOfferDuration)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostingRepositoryGetMissing(t *testing.T) {
	db, mock, cleanup := newPostingRepoMock(t)
	defer cleanup()

	repo := NewPostingRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, posted_by")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostingRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newPostingRepoMock(t)
	defer cleanup()

	repo := NewPostingRepository(db)
	status := models.PostingStatusPending
	mock.ExpectQuery(`(?s)SELECT id, posted_by.* FROM postings WHERE status = \$1 AND posted_by = \$2 ORDER BY date ASC`).
		WithArgs("pending", "clinic-1").
		WillReturnRows(sqlmock.NewRows(postingColumnNames))

	list, err := repo.List(context.Background(), models.PostingFilter{Status: &status, PostedBy: "clinic-1"})
	require.NoError(t, err)
	require.Empty(t, list)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostingRepositoryListIsUnboundedByDefault(t *testing.T) {
	db, mock, cleanup := newPostingRepoMock(t)
	defer cleanup()

	repo := NewPostingRepository(db)
	rows := sqlmock.NewRows(postingColumnNames)
	for i := 0; i < 250; i++ {
		rows.AddRow(fmt.Sprintf("post-%03d", i), "clinic-1", "2026-03-01", "08:00", "2h", "Theatre 1", "Appendectomy", "Dr. Reyes", 900.0, "", false,
			"available", "all", "{}", "{}", nil, false,
			0, nil, int64(0),
			int64(0), nil, time.Now(), time.Now())
	}
	mock.ExpectQuery(`(?s)SELECT id, posted_by.* FROM postings ORDER BY date ASC, start_time ASC$`).
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.PostingFilter{})
	require.NoError(t, err)
	require.Len(t, list, 250)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostingRepositoryListPages(t *testing.T) {
	db, mock, cleanup := newPostingRepoMock(t)
	defer cleanup()

	repo := NewPostingRepository(db)
	mock.ExpectQuery(`ORDER BY date ASC, start_time ASC LIMIT 20 OFFSET 40$`).
		WillReturnRows(sqlmock.NewRows(postingColumnNames))

	_, err := repo.List(context.Background(), models.PostingFilter{Limit: 20, Offset: 40})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostingRepositoryListByCandidateUsesArrayMembership(t *testing.T) {
	db, mock, cleanup := newPostingRepoMock(t)
	defer cleanup()

	repo := NewPostingRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("$1 = ANY(preferred_candidates)")).
		WithArgs("cand-1").
		WillReturnRows(sqlmock.NewRows(postingColumnNames))

	_, err := repo.ListByCandidate(context.Background(), "cand-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostingRepositoryCompareAndSwap(t *testing.T) {
	db, mock, cleanup := newPostingRepoMock(t)
	defer cleanup()

	repo := NewPostingRepository(db)
	now := time.Now().UTC()
	oldStatus := models.PostingStatusAvailable
	newStatus := models.PostingStatusPending

	mock.ExpectExec(regexp.QuoteMeta("UPDATE postings SET updated_at = $1, status = $2, accepted_by = $3 WHERE id = $4 AND status = $5 AND accepted_by = $6::text[]")).
		WithArgs(now, "pending", sqlmock.AnyArg(), "post-1", "available", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CompareAndSwap(context.Background(), "post-1",
		models.PostingGuard{Status: &oldStatus, AcceptedBy: []string{}},
		models.PostingPatch{Status: &newStatus, AcceptedBy: []string{"cand-1"}, UpdatedAt: now},
	)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostingRepositoryCompareAndSwapLostRace(t *testing.T) {
	db, mock, cleanup := newPostingRepoMock(t)
	defer cleanup()

	repo := NewPostingRepository(db)
	oldIndex := 0
	newIndex := 1

	mock.ExpectExec(regexp.QuoteMeta("UPDATE postings SET updated_at = $1, sequential_offer_index = $2 WHERE id = $3 AND sequential_offer_index = $4")).
		WithArgs(sqlmock.AnyArg(), 1, "post-1", 0).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.CompareAndSwap(context.Background(), "post-1",
		models.PostingGuard{OfferIndex: &oldIndex},
		models.PostingPatch{OfferIndex: &newIndex},
	)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
