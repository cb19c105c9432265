package users

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"moodfood-backend/internal/shared/server/middleware"
	"moodfood-backend/internal/shared/server/respond"
	"moodfood-backend/internal/shared/telemetry"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches account routes. register and login are expected to
// be reachable without identity.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/users/register", h.register)
	rg.POST("/users/login", h.login)
	rg.GET("/users", h.byEmail)
	rg.GET("/users/:id", h.byID)
	rg.GET("/me", h.me)
}

func (h *Handler) register(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	var req RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	user, err := h.Svc.Register(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err, "failed to register user")
		return
	}
	respond.Created(c, user.Profile())
}

func (h *Handler) login(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	var req LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	session, err := h.Svc.Login(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err, "failed to log in")
		return
	}
	respond.JSON(c, http.StatusOK, session)
}

func (h *Handler) byID(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "user id is required", nil)
		return
	}
	user, err := h.Svc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "failed to load user")
		return
	}
	respond.JSON(c, http.StatusOK, user.Profile())
}

func (h *Handler) byEmail(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	user, err := h.Svc.GetByEmail(c.Request.Context(), c.Query("email"))
	if err != nil {
		h.writeError(c, err, "failed to load user")
		return
	}
	respond.JSON(c, http.StatusOK, user.Profile())
}

func (h *Handler) me(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	if middleware.IsGuest(c) {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "login required", nil)
		return
	}
	userID := middleware.UserIDFromContext(c)
	user, err := h.Svc.GetByID(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err, "failed to load user")
		return
	}
	respond.JSON(c, http.StatusOK, user.Profile())
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidEmail):
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid email format", []map[string]string{
			{"field": "email", "issue": "format"},
		})
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrEmailTaken):
		respond.Error(c, http.StatusConflict, "email_taken", "email already registered", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
	case errors.Is(err, ErrInvalidCredentials):
		respond.Error(c, http.StatusUnauthorized, "invalid_credentials", "incorrect password", nil)
	default:
		telemetry.Error("users.request_failed", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"path":       c.FullPath(),
			"error":      err.Error(),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
