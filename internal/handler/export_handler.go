package handler

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/vidyalaya/sams-api/internal/service"
	appErrors "github.com/vidyalaya/sams-api/pkg/errors"
	"github.com/vidyalaya/sams-api/pkg/response"
)

// ExportHandler exposes CSV export endpoints.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs handler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// ExamResults godoc
// @Summary Export examination results as CSV
// @Tags Exports
// @Produce json
// @Param examId path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exports/exams/{examId} [post]
func (h *ExportHandler) ExamResults(c *gin.Context) {
	result, err := h.exports.ExamResults(c.Request.Context(), c.Param("examId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ClassAttendance godoc
// @Summary Export class attendance as CSV
// @Tags Exports
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /exports/classes/{classId} [post]
func (h *ExportHandler) ClassAttendance(c *gin.Context) {
	result, err := h.exports.ClassAttendance(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download a generated export
// @Tags Exports
// @Produce text/csv
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}
	file, err := h.exports.Download(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename="+filepath.Base(file.Name()))
	if _, err := io.Copy(c.Writer, file); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}
