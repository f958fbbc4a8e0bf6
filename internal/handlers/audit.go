package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tmarchal/authcore/internal/services"
	"github.com/tmarchal/authcore/pkg/response"
)

// AuditHandler exposes the security event log.
type AuditHandler struct {
	audit *services.AuditService
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(audit *services.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

func paginationFromQuery(c *gin.Context) (page, perPage int) {
	page = parseIntQuery(c, "page", 1)
	perPage = parseIntQuery(c, "limit", 50)
	if perPage > 200 {
		perPage = 200
	}
	return page, perPage
}

func paginationBody(page, perPage int, total int64) gin.H {
	totalPages := (total + int64(perPage) - 1) / int64(perPage)
	return gin.H{
		"current_page": page,
		"total_pages":  totalPages,
		"total_logs":   total,
		"per_page":     perPage,
	}
}

// List handles GET /api/logs with optional event_type and email query filters.
func (h *AuditHandler) List(c *gin.Context) {
	page, perPage := paginationFromQuery(c)

	events, total, err := h.audit.List(c.Request.Context(), services.AuditListOptions{
		Page:      page,
		PageSize:  perPage,
		EventType: c.Query("event_type"),
		Email:     c.Query("email"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"logs":       events,
		"pagination": paginationBody(page, perPage, total),
	})
}

// ListByUser handles GET /api/logs/user/:email.
func (h *AuditHandler) ListByUser(c *gin.Context) {
	email := c.Param("email")
	page, perPage := paginationFromQuery(c)

	events, total, err := h.audit.List(c.Request.Context(), services.AuditListOptions{
		Page:     page,
		PageSize: perPage,
		Email:    email,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"email":      email,
		"logs":       events,
		"pagination": paginationBody(page, perPage, total),
	})
}

// ListByEvent handles GET /api/logs/events/:eventType.
func (h *AuditHandler) ListByEvent(c *gin.Context) {
	eventType := c.Param("eventType")
	page, perPage := paginationFromQuery(c)

	events, _, err := h.audit.List(c.Request.Context(), services.AuditListOptions{
		Page:      page,
		PageSize:  perPage,
		EventType: eventType,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"event_type": eventType,
		"logs":       events,
		"count":      len(events),
	})
}

// Stats handles GET /api/logs/stats.
func (h *AuditHandler) Stats(c *gin.Context) {
	stats, err := h.audit.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats)
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
