package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/procedure-staffing-api/internal/middleware"
	"github.com/noah-isme/procedure-staffing-api/internal/models"
	appErrors "github.com/noah-isme/procedure-staffing-api/pkg/errors"
	"github.com/noah-isme/procedure-staffing-api/pkg/response"
)

// requireClaims returns the caller's claims or writes 401 and reports false.
func requireClaims(c *gin.Context) (*models.JWTClaims, bool) {
	if value, exists := c.Get(middleware.ContextUserKey); exists {
		if claims, ok := value.(*models.JWTClaims); ok && claims.UserID != "" {
			return claims, true
		}
	}
	response.Error(c, appErrors.ErrUnauthorized)
	return nil, false
}
