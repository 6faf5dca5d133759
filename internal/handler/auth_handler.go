package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-admin/internal/dto"
	"github.com/noah-isme/timetable-admin/internal/middleware"
	"github.com/noah-isme/timetable-admin/internal/models"
	appErrors "github.com/noah-isme/timetable-admin/pkg/errors"
	"github.com/noah-isme/timetable-admin/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req dto.LoginRequest, actor models.Actor) (*models.User, error)
	IssueToken(user *models.User) (*models.AccessToken, error)
	CurrentUser(ctx context.Context, id string) (*models.User, error)
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service authService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Login godoc
// @Summary Authenticate user
// @Description Exchange email and password for a bearer token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err, "invalid login payload")
		return
	}

	user, err := h.service.Login(c.Request.Context(), req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	token, err := h.service.IssueToken(user)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, token, nil)
}

// Me godoc
// @Summary Current user
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	user, err := h.service.CurrentUser(c.Request.Context(), identity.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, user, nil)
}
