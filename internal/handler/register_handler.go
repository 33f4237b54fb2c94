package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/registrocorsi/register-api/internal/service"
	appErrors "github.com/registrocorsi/register-api/pkg/errors"
	"github.com/registrocorsi/register-api/pkg/response"
)

// RegisterHandler handles register computation endpoints.
type RegisterHandler struct {
	registers *service.RegisterService
	exports   *service.ExportService
}

// NewRegisterHandler constructs a register handler.
func NewRegisterHandler(registers *service.RegisterService, exports *service.ExportService) *RegisterHandler {
	return &RegisterHandler{registers: registers, exports: exports}
}

type analyzeRequest struct {
	Content string `json:"content"`
}

// Analyze godoc
// @Summary Classify a meeting export without computing attendance
// @Tags Registers
// @Accept json
// @Produce json
// @Param payload body analyzeRequest true "Export content"
// @Success 200 {object} response.Envelope
// @Router /registers/analyze [post]
func (h *RegisterHandler) Analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	analysis, err := h.registers.Analyze(c.Request.Context(), req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analysis, nil)
}

// Compute godoc
// @Summary Compute the register for one lesson day
// @Tags Registers
// @Accept json
// @Produce json
// @Param payload body service.ComputeDayRequest true "Day computation payload"
// @Success 200 {object} response.Envelope
// @Router /registers/compute [post]
func (h *RegisterHandler) Compute(c *gin.Context) {
	var req service.ComputeDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	register, err := h.registers.ComputeDay(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, register, nil)
}

// ComputeBatch godoc
// @Summary Compute registers for multiple lesson days
// @Tags Registers
// @Accept json
// @Produce json
// @Param payload body service.ComputeBatchRequest true "Batch payload"
// @Success 200 {object} response.Envelope
// @Router /registers/batch [post]
func (h *RegisterHandler) ComputeBatch(c *gin.Context) {
	var req service.ComputeBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	results, err := h.registers.ComputeBatch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// ListDays godoc
// @Summary List persisted registers for a course
// @Tags Registers
// @Produce json
// @Param courseId path string true "Course ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /registers/{courseId} [get]
func (h *RegisterHandler) ListDays(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	days, pagination, err := h.registers.ListDays(c.Request.Context(), c.Param("courseId"), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, days, pagination)
}

// GetDay godoc
// @Summary Get one persisted register
// @Tags Registers
// @Produce json
// @Param courseId path string true "Course ID"
// @Param date path string true "Lesson date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /registers/{courseId}/{date} [get]
func (h *RegisterHandler) GetDay(c *gin.Context) {
	day, err := h.registers.GetDay(c.Request.Context(), c.Param("courseId"), c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, day, nil)
}

// Export godoc
// @Summary Render a persisted register as CSV or PDF
// @Tags Registers
// @Produce json
// @Param courseId path string true "Course ID"
// @Param date path string true "Lesson date (YYYY-MM-DD)"
// @Param format query string false "Output format, csv or pdf" default(csv)
// @Param async query bool false "Queue the export instead of rendering inline"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /registers/{courseId}/{date}/export [post]
func (h *RegisterHandler) Export(c *gin.Context) {
	req := service.ExportRequest{
		CourseID: c.Param("courseId"),
		Date:     c.Param("date"),
		Format:   c.DefaultQuery("format", "csv"),
	}

	if c.Query("async") == "true" {
		jobID, err := h.exports.Enqueue(req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusAccepted, gin.H{"job_id": jobID}, nil)
		return
	}

	result, err := h.exports.Export(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
