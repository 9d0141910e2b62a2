package dto

import (
	"time"

	"github.com/noah-isme/procedure-staffing-api/internal/models"
)

// CreatePostingRequest is the clinic payload for publishing a procedure.
type CreatePostingRequest struct {
	SurgeryName string  `json:"surgeryName" validate:"required"`
	SurgeonName string  `json:"surgeonName"`
	Date        string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime   string  `json:"startTime" validate:"required,datetime=15:04"`
	Duration    string  `json:"duration"`
	Location    string  `json:"location"`
	Fee         float64 `json:"fee" validate:"gte=0"`
	Remarks     string  `json:"remarks"`
	IsPriority  bool    `json:"isPriority"`

	VisibilityMode      models.VisibilityMode `json:"visibilityMode" validate:"required,oneof=all specific sequential timed"`
	PreferredCandidates []string              `json:"preferredCandidates" validate:"dive,required"`
	AutoAccept          bool                  `json:"autoAccept"`

	// SequentialOfferHours defaults to 24 when the mode is sequential.
	SequentialOfferHours int `json:"sequentialOfferHours" validate:"gte=0"`
	// TimeDelayDays defaults to 2 when the mode is timed.
	TimeDelayDays int `json:"timeDelayDays" validate:"gte=0"`
}

// ConfirmPostingRequest names the accepted candidate a clinic confirms.
type ConfirmPostingRequest struct {
	CandidateID string `json:"candidateId" validate:"required"`
}

// CandidatePosting decorates a posting with per-candidate listing flags.
type CandidatePosting struct {
	models.Posting
	IsPreferred             bool       `json:"isPreferred"`
	IsVisibleToCurrentUser  bool       `json:"isVisibleToCurrentUser"`
	SequentialOfferDeadline *time.Time `json:"sequentialOfferDeadline,omitempty"`
}

// SeedPosting is the fixture shape read by the operator CLI.
type SeedPosting struct {
	PostedBy             string   `yaml:"postedBy"`
	SurgeryName          string   `yaml:"surgeryName"`
	SurgeonName          string   `yaml:"surgeonName"`
	Date                 string   `yaml:"date"`
	StartTime            string   `yaml:"startTime"`
	Duration             string   `yaml:"duration"`
	Location             string   `yaml:"location"`
	Fee                  float64  `yaml:"fee"`
	Remarks              string   `yaml:"remarks"`
	VisibilityMode       string   `yaml:"visibilityMode"`
	PreferredCandidates  []string `yaml:"preferredCandidates"`
	AutoAccept           bool     `yaml:"autoAccept"`
	SequentialOfferHours int      `yaml:"sequentialOfferHours"`
	TimeDelayDays        int      `yaml:"timeDelayDays"`
}

// Request converts a seed entry into the create payload.
func (s SeedPosting) Request() CreatePostingRequest {
	return CreatePostingRequest{
		SurgeryName:          s.SurgeryName,
		SurgeonName:          s.SurgeonName,
		Date:                 s.Date,
		StartTime:            s.StartTime,
		Duration:             s.Duration,
		Location:             s.Location,
		Fee:                  s.Fee,
		Remarks:              s.Remarks,
		VisibilityMode:       models.VisibilityMode(s.VisibilityMode),
		PreferredCandidates:  s.PreferredCandidates,
		AutoAccept:           s.AutoAccept,
		SequentialOfferHours: s.SequentialOfferHours,
		TimeDelayDays:        s.TimeDelayDays,
	}
}

// ExportFormat selects the roster export renderer.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportFile is a rendered roster ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
