package chats

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"moodfood-backend/internal/shared/server/middleware"
	"moodfood-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the chats service.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/chats", h.send)
	rg.GET("/chats", h.list)
	rg.GET("/chats/:id", h.get)
}

func (h *Handler) send(c *gin.Context) {
	var req SendInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	chat, err := h.Svc.Send(c.Request.Context(), middleware.UserIDFromContext(c), req)
	if err != nil {
		writeError(c, err, "failed to send message")
		return
	}
	c.Set("mood", chat.Mood)
	respond.Created(c, chat)
}

func (h *Handler) list(c *gin.Context) {
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	items, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		writeError(c, err, "failed to list chats")
		return
	}
	respond.OK(c, items)
}

func (h *Handler) get(c *gin.Context) {
	chat, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to fetch chat")
		return
	}
	respond.OK(c, chat)
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrValidation):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "chat not found", nil)
	case errors.Is(err, ErrAIUnavailable):
		respond.Error(c, http.StatusBadGateway, "ai_unavailable", "Failed to get response from AI", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
