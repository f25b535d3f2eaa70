package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vidyalaya/sams-api/internal/service"
	"github.com/vidyalaya/sams-api/pkg/response"
)

// StatisticsHandler exposes rollup endpoints.
type StatisticsHandler struct {
	statistics *service.StatisticsService
}

// NewStatisticsHandler constructs handler.
func NewStatisticsHandler(statistics *service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{statistics: statistics}
}

// ExamStatistics godoc
// @Summary Examination rollup statistics
// @Tags Statistics
// @Produce json
// @Param examId path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /statistics/exams/{examId} [get]
func (h *StatisticsHandler) ExamStatistics(c *gin.Context) {
	stats, err := h.statistics.ExamStatistics(c.Request.Context(), c.Param("examId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// AssignRanks godoc
// @Summary Assign ordinal ranks for an examination
// @Tags Statistics
// @Produce json
// @Param examId path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /statistics/exams/{examId}/ranks [post]
func (h *StatisticsHandler) AssignRanks(c *gin.Context) {
	ranks, err := h.statistics.AssignRanks(c.Request.Context(), c.Param("examId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"ranks": ranks}, nil)
}

// ClassAttendance godoc
// @Summary Class attendance rollup
// @Tags Statistics
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /statistics/classes/{classId}/attendance [get]
func (h *StatisticsHandler) ClassAttendance(c *gin.Context) {
	stats, err := h.statistics.ClassAttendance(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// StudentAttendance godoc
// @Summary One student's attendance summary within a class
// @Tags Statistics
// @Produce json
// @Param classId path string true "Class ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /statistics/classes/{classId}/students/{studentId}/attendance [get]
func (h *StatisticsHandler) StudentAttendance(c *gin.Context) {
	summary, err := h.statistics.StudentAttendance(c.Request.Context(), c.Param("classId"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
