package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/procedure-staffing-api/internal/middleware"
	"github.com/noah-isme/procedure-staffing-api/internal/service"
	"github.com/noah-isme/procedure-staffing-api/pkg/response"
)

type candidateService interface {
	ListCandidates(ctx context.Context, search string, page, pageSize int) (*service.CandidateList, bool, error)
}

// CandidateHandler serves the anaesthetist directory.
type CandidateHandler struct {
	service candidateService
}

// NewCandidateHandler builds a new handler.
func NewCandidateHandler(service candidateService) *CandidateHandler {
	return &CandidateHandler{service: service}
}

// List godoc
// @Summary List anaesthetist candidates
// @Tags Candidates
// @Produce json
// @Param search query string false "Name or email fragment"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /candidates [get]
func (h *CandidateHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "50"))
	list, hit, err := h.service.ListCandidates(c.Request.Context(), c.Query("search"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, list.Items, &list.Pagination, middleware.ExtractMeta(c))
}
