package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/procedure-staffing-api/internal/dto"
	"github.com/noah-isme/procedure-staffing-api/internal/models"
	appErrors "github.com/noah-isme/procedure-staffing-api/pkg/errors"
	"github.com/noah-isme/procedure-staffing-api/pkg/export"
)

type rosterStub struct {
	postings []models.Posting
	status   *models.PostingStatus
	poster   string
	err      error
}

func (r *rosterStub) ListPostingsByStatus(ctx context.Context, status *models.PostingStatus, posterID string) ([]models.Posting, error) {
	r.status = status
	r.poster = posterID
	return r.postings, r.err
}

func rosterFixture() []models.Posting {
	confirmed := "anaes-7"
	return []models.Posting{
		{
			ID: "p-1", PostedBy: "clinic-1", Date: "2026-03-10", StartTime: "07:30", Duration: "2h",
			SurgeryName: "Laparoscopic cholecystectomy", SurgeonName: "Dr Okafor", Location: "Theatre 4",
			Fee: 1200, IsPriority: true, Status: models.PostingStatusConfirmed, VisibilityMode: models.VisibilityAll,
			AcceptedBy: pq.StringArray{"anaes-7", "anaes-2"}, ConfirmedCandidateID: &confirmed,
		},
		{
			ID: "p-2", PostedBy: "clinic-1", Date: "2026-03-11", StartTime: "13:00", Duration: "90m",
			SurgeryName: "Knee arthroscopy, left", SurgeonName: "Dr Hale", Location: "Day Unit",
			Fee: 850.5, Status: models.PostingStatusAvailable, VisibilityMode: models.VisibilitySequential,
			AcceptedBy: pq.StringArray{},
		},
	}
}

func TestExportRosterCSVGolden(t *testing.T) {
	source := &rosterStub{postings: rosterFixture()}
	svc := NewExportService(source, zap.NewNop(), nil, nil)
	svc.clock = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

	file, err := svc.ExportRoster(context.Background(), "clinic-1", nil, dto.ExportFormatCSV)
	require.NoError(t, err)
	require.Equal(t, "roster-20260301-090000.csv", file.Filename)
	require.Equal(t, "text/csv", file.ContentType)
	require.Equal(t, "clinic-1", source.poster)
	require.Nil(t, source.status)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "roster_export_csv", file.Content)
}

func TestExportRosterPDF(t *testing.T) {
	confirmed := models.PostingStatusConfirmed
	source := &rosterStub{postings: rosterFixture()}
	svc := NewExportService(source, nil, export.NewCSVExporter(), export.NewPDFExporter())

	file, err := svc.ExportRoster(context.Background(), "clinic-1", &confirmed, dto.ExportFormatPDF)
	require.NoError(t, err)
	require.Equal(t, "application/pdf", file.ContentType)
	require.True(t, bytes.HasPrefix(file.Content, []byte("%PDF")))
	require.Equal(t, &confirmed, source.status)
}

func TestExportRosterErrors(t *testing.T) {
	svc := NewExportService(&rosterStub{}, nil, nil, nil)
	_, err := svc.ExportRoster(context.Background(), "clinic-1", nil, dto.ExportFormat("xlsx"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	failing := NewExportService(&rosterStub{err: appErrors.ErrStorage}, nil, nil, nil)
	_, err = failing.ExportRoster(context.Background(), "clinic-1", nil, dto.ExportFormatCSV)
	require.True(t, errors.Is(err, appErrors.ErrStorage))
}
