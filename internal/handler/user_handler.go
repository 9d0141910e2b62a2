package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/procedure-staffing-api/internal/models"
	appErrors "github.com/noah-isme/procedure-staffing-api/pkg/errors"
	"github.com/noah-isme/procedure-staffing-api/pkg/response"
)

type userRegistrar interface {
	RegisterUser(ctx context.Context, email, fullName, password string, role models.UserRole) (*models.User, error)
}

// UserHandler provisions clinic and anaesthetist accounts.
type UserHandler struct {
	service userRegistrar
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc userRegistrar) *UserHandler {
	return &UserHandler{service: svc}
}

// Create godoc
// @Summary Create user
// @Description Provision an account; admin only
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body models.RegisterUserRequest true "Create user payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req models.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	user, err := h.service.RegisterUser(c.Request.Context(), req.Email, req.FullName, req.Password, req.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, models.UserInfo{ID: user.ID, Email: user.Email, FullName: user.FullName, Role: user.Role})
}
