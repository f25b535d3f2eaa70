package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vidyalaya/sams-api/internal/models"
	"github.com/vidyalaya/sams-api/internal/service"
	appErrors "github.com/vidyalaya/sams-api/pkg/errors"
	"github.com/vidyalaya/sams-api/pkg/response"
)

// SessionHandler exposes attendance session endpoints.
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler constructs handler.
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Upsert godoc
// @Summary Record attendance for a class on a date
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.UpsertSessionRequest true "Session payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/sessions [post]
func (h *SessionHandler) Upsert(c *gin.Context) {
	var req service.UpsertSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	session, err := h.sessions.Upsert(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Get godoc
// @Summary Get one attendance session
// @Tags Attendance
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// List godoc
// @Summary List attendance sessions
// @Tags Attendance
// @Produce json
// @Param classId query string false "Filter by class"
// @Param dateFrom query string false "From date (YYYY-MM-DD)"
// @Param dateTo query string false "To date (YYYY-MM-DD)"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance/sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	filter := models.SessionFilter{
		ClassID:  c.Query("classId"),
		DateFrom: parseQueryDate(c, "dateFrom"),
		DateTo:   parseQueryDate(c, "dateTo"),
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "pageSize", 50),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.SessionStatus(raw)
		filter.Status = &status
	}
	sessions, pagination, err := h.sessions.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, pagination)
}

// MarkEntry godoc
// @Summary Re-mark one student's attendance
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param studentId path string true "Student ID"
// @Param payload body service.MarkEntryRequest true "Mark payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/sessions/{id}/entries/{studentId} [patch]
func (h *SessionHandler) MarkEntry(c *gin.Context) {
	var req service.MarkEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	session, err := h.sessions.MarkEntry(c.Request.Context(), c.Param("id"), c.Param("studentId"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// MarkBulk godoc
// @Summary Re-mark many students in one call
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.BulkMarkRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/sessions/{id}/entries [patch]
func (h *SessionHandler) MarkBulk(c *gin.Context) {
	var req service.BulkMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, session, err := h.sessions.MarkBulk(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"result": result, "session": session}, nil)
}

// Finalize godoc
// @Summary Finalize an attendance session
// @Tags Attendance
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/sessions/{id}/finalize [post]
func (h *SessionHandler) Finalize(c *gin.Context) {
	session, err := h.sessions.Finalize(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}
