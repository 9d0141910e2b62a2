package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/procedure-staffing-api/internal/dto"
	"github.com/noah-isme/procedure-staffing-api/internal/models"
	appErrors "github.com/noah-isme/procedure-staffing-api/pkg/errors"
	"github.com/noah-isme/procedure-staffing-api/pkg/response"
)

type postingService interface {
	CreatePosting(ctx context.Context, req dto.CreatePostingRequest, posterID string) (*models.Posting, error)
	GetPosting(ctx context.Context, id string) (*models.Posting, error)
	ListPostingsByStatus(ctx context.Context, status *models.PostingStatus, posterID string) ([]models.Posting, error)
	ListVisiblePostings(ctx context.Context, candidateID string) ([]dto.CandidatePosting, error)
	Accept(ctx context.Context, postingID, candidateID string) (*models.Posting, error)
	Confirm(ctx context.Context, postingID, posterID, candidateID string) (*models.Posting, error)
	Cancel(ctx context.Context, postingID, posterID string) (*models.Posting, error)
}

type rosterExporter interface {
	ExportRoster(ctx context.Context, posterID string, status *models.PostingStatus, format dto.ExportFormat) (*dto.ExportFile, error)
}

// PostingHandler exposes the posting workflow endpoints.
type PostingHandler struct {
	service  postingService
	exporter rosterExporter
}

// NewPostingHandler builds a new handler.
func NewPostingHandler(service postingService, exporter rosterExporter) *PostingHandler {
	return &PostingHandler{service: service, exporter: exporter}
}

// Create godoc
// @Summary Publish a procedure posting
// @Tags Postings
// @Accept json
// @Produce json
// @Param payload body dto.CreatePostingRequest true "Posting payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /postings [post]
func (h *PostingHandler) Create(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.CreatePostingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid posting payload"))
		return
	}
	posting, err := h.service.CreatePosting(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, posting)
}

// Get godoc
// @Summary Get a posting
// @Tags Postings
// @Produce json
// @Param id path string true "Posting ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /postings/{id} [get]
func (h *PostingHandler) Get(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	posting, err := h.service.GetPosting(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if scope := posterScope(claims); scope != "" && posting.PostedBy != scope {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "posting belongs to another poster"))
		return
	}
	response.JSON(c, http.StatusOK, posting, nil)
}

// List godoc
// @Summary List postings by status
// @Description Clinics see their own postings; admins may pass postedBy.
// @Tags Postings
// @Produce json
// @Param status query string false "available, pending, confirmed or cancelled"
// @Param postedBy query string false "Poster ID (admin only)"
// @Success 200 {object} response.Envelope
// @Router /postings [get]
func (h *PostingHandler) List(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	status, err := parseStatus(c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	posterID := posterScope(claims)
	if posterID == "" {
		posterID = c.Query("postedBy")
	}
	postings, err := h.service.ListPostingsByStatus(c.Request.Context(), status, posterID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, postings, nil)
}

// Visible godoc
// @Summary List postings visible to the calling anaesthetist
// @Tags Postings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /postings/visible [get]
func (h *PostingHandler) Visible(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	postings, err := h.service.ListVisiblePostings(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, postings, nil)
}

// Accept godoc
// @Summary Accept a posting as the calling anaesthetist
// @Tags Postings
// @Produce json
// @Param id path string true "Posting ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /postings/{id}/accept [post]
func (h *PostingHandler) Accept(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	posting, err := h.service.Accept(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, posting, nil)
}

// Confirm godoc
// @Summary Confirm an accepted candidate
// @Tags Postings
// @Accept json
// @Produce json
// @Param id path string true "Posting ID"
// @Param payload body dto.ConfirmPostingRequest true "Candidate to confirm"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /postings/{id}/confirm [post]
func (h *PostingHandler) Confirm(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.ConfirmPostingRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.CandidateID) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "candidateId is required"))
		return
	}
	posting, err := h.service.Confirm(c.Request.Context(), c.Param("id"), posterScope(claims), req.CandidateID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, posting, nil)
}

// Cancel godoc
// @Summary Cancel an open posting
// @Tags Postings
// @Produce json
// @Param id path string true "Posting ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /postings/{id}/cancel [post]
func (h *PostingHandler) Cancel(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	posting, err := h.service.Cancel(c.Request.Context(), c.Param("id"), posterScope(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, posting, nil)
}

// Export godoc
// @Summary Download the posting roster
// @Tags Postings
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param status query string false "Status filter"
// @Success 200 {file} file
// @Router /postings/export [get]
func (h *PostingHandler) Export(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	status, err := parseStatus(c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	posterID := posterScope(claims)
	if posterID == "" {
		posterID = c.Query("postedBy")
	}
	file, err := h.exporter.ExportRoster(c.Request.Context(), posterID, status, dto.ExportFormat(strings.ToLower(c.Query("format"))))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Content)
}

func parseStatus(raw string) (*models.PostingStatus, error) {
	if raw == "" {
		return nil, nil
	}
	status := models.PostingStatus(strings.ToLower(raw))
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", raw))
	}
	return &status, nil
}

// posterScope returns the poster id a caller is restricted to; admins are
// unrestricted.
func posterScope(claims *models.JWTClaims) string {
	if claims.Role == models.RoleAdmin {
		return ""
	}
	return claims.UserID
}
