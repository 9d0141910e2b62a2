package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/procedure-staffing-api/internal/dto"
	"github.com/noah-isme/procedure-staffing-api/internal/models"
	"github.com/noah-isme/procedure-staffing-api/pkg/export"
	appErrors "github.com/noah-isme/procedure-staffing-api/pkg/errors"
)

var rosterHeaders = []string{"Date", "Start", "Duration", "Surgery", "Surgeon", "Location", "Fee", "Priority", "Status", "Visibility", "Accepted", "Confirmed"}

type rosterSource interface {
	ListPostingsByStatus(ctx context.Context, status *models.PostingStatus, posterID string) ([]models.Posting, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportService renders a poster's postings as a downloadable roster.
type ExportService struct {
	postings rosterSource
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
	clock    func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(postings rosterSource, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{postings: postings, csv: csv, pdf: pdf, logger: logger, clock: time.Now}
}

// ExportRoster renders the postings of posterID, optionally narrowed to one
// status, in the requested format.
func (s *ExportService) ExportRoster(ctx context.Context, posterID string, status *models.PostingStatus, format dto.ExportFormat) (*dto.ExportFile, error) {
	postings, err := s.postings.ListPostingsByStatus(ctx, status, posterID)
	if err != nil {
		return nil, err
	}
	dataset := BuildRosterDataset(postings)
	stamp := s.clock().UTC().Format("20060102-150405")

	var (
		payload     []byte
		contentType string
	)
	switch format {
	case dto.ExportFormatCSV, "":
		format = dto.ExportFormatCSV
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case dto.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, "Procedure roster")
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}

	s.logger.Info("roster exported",
		zap.String("poster_id", posterID),
		zap.String("format", string(format)),
		zap.Int("rows", len(dataset.Rows)),
	)
	return &dto.ExportFile{
		Filename:    fmt.Sprintf("roster-%s.%s", stamp, format),
		ContentType: contentType,
		Content:     payload,
	}, nil
}

// BuildRosterDataset flattens postings into export rows.
func BuildRosterDataset(postings []models.Posting) export.Dataset {
	rows := make([]map[string]string, 0, len(postings))
	for _, p := range postings {
		confirmed := ""
		if p.ConfirmedCandidateID != nil {
			confirmed = *p.ConfirmedCandidateID
		}
		rows = append(rows, map[string]string{
			"Date":       p.Date,
			"Start":      p.StartTime,
			"Duration":   p.Duration,
			"Surgery":    p.SurgeryName,
			"Surgeon":    p.SurgeonName,
			"Location":   p.Location,
			"Fee":        strconv.FormatFloat(p.Fee, 'f', 2, 64),
			"Priority":   strconv.FormatBool(p.IsPriority),
			"Status":     string(p.Status),
			"Visibility": string(p.VisibilityMode),
			"Accepted":   strings.Join(p.AcceptedBy, ";"),
			"Confirmed":  confirmed,
		})
	}
	return export.Dataset{Headers: rosterHeaders, Rows: rows}
}
