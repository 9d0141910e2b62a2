package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/procedure-staffing-api/internal/models"
	appErrors "github.com/noah-isme/procedure-staffing-api/pkg/errors"
)

type userRegistrarMock struct {
	email string
	role  models.UserRole
	err   error
}

func (m *userRegistrarMock) RegisterUser(ctx context.Context, email, fullName, password string, role models.UserRole) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.email, m.role = email, role
	return &models.User{ID: "u-1", Email: email, FullName: fullName, Role: role, PasswordHash: "secret-hash"}, nil
}

func TestUserHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &userRegistrarMock{}
	router := gin.New()
	router.POST("/users", NewUserHandler(svc).Create)

	body := `{"email":"clinic@example.com","fullName":"North Clinic","password":"longenough","role":"CLINIC"}`
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "clinic@example.com", svc.email)
	assert.Equal(t, models.RoleClinic, svc.role)
	assert.NotContains(t, w.Body.String(), "secret-hash")
}

func TestUserHandlerCreateErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.POST("/users", NewUserHandler(&userRegistrarMock{}).Create)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"email":`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	failing := gin.New()
	failing.POST("/users", NewUserHandler(&userRegistrarMock{err: appErrors.Clone(appErrors.ErrValidation, "unknown role")}).Create)
	w = httptest.NewRecorder()
	body := `{"email":"x@example.com","fullName":"X","password":"longenough","role":"NURSE"}`
	failing.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
