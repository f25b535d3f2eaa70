package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vidyalaya/sams-api/internal/service"
	appErrors "github.com/vidyalaya/sams-api/pkg/errors"
	"github.com/vidyalaya/sams-api/pkg/response"
)

// AssessmentHandler exposes assessment endpoints.
type AssessmentHandler struct {
	assessments *service.AssessmentService
}

// NewAssessmentHandler constructs handler.
func NewAssessmentHandler(assessments *service.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{assessments: assessments}
}

// SetMarks godoc
// @Summary Record a student's marks for an examination
// @Tags Assessments
// @Accept json
// @Produce json
// @Param payload body service.SetMarksRequest true "Marks payload"
// @Success 200 {object} response.Envelope
// @Router /assessments/marks [put]
func (h *AssessmentHandler) SetMarks(c *gin.Context) {
	var req service.SetMarksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assessment, err := h.assessments.SetMarks(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assessment, nil)
}

// MarkAbsent godoc
// @Summary Record an absent examination outcome
// @Tags Assessments
// @Produce json
// @Param examId path string true "Exam ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /assessments/exams/{examId}/students/{studentId}/absent [post]
func (h *AssessmentHandler) MarkAbsent(c *gin.Context) {
	assessment, err := h.assessments.MarkAbsent(c.Request.Context(), c.Param("examId"), c.Param("studentId"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assessment, nil)
}

// Get godoc
// @Summary Get one assessment
// @Tags Assessments
// @Produce json
// @Param id path string true "Assessment ID"
// @Success 200 {object} response.Envelope
// @Router /assessments/{id} [get]
func (h *AssessmentHandler) Get(c *gin.Context) {
	assessment, err := h.assessments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assessment, nil)
}

// Submit godoc
// @Summary Submit an assessment for review
// @Tags Assessments
// @Produce json
// @Param id path string true "Assessment ID"
// @Success 200 {object} response.Envelope
// @Router /assessments/{id}/submit [post]
func (h *AssessmentHandler) Submit(c *gin.Context) {
	assessment, err := h.assessments.Submit(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assessment, nil)
}

// Verify godoc
// @Summary Verify a submitted assessment
// @Tags Assessments
// @Produce json
// @Param id path string true "Assessment ID"
// @Success 200 {object} response.Envelope
// @Router /assessments/{id}/verify [post]
func (h *AssessmentHandler) Verify(c *gin.Context) {
	assessment, err := h.assessments.Verify(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assessment, nil)
}

// Publish godoc
// @Summary Publish a verified assessment
// @Tags Assessments
// @Produce json
// @Param id path string true "Assessment ID"
// @Success 200 {object} response.Envelope
// @Router /assessments/{id}/publish [post]
func (h *AssessmentHandler) Publish(c *gin.Context) {
	assessment, err := h.assessments.Publish(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assessment, nil)
}
