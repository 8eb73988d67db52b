package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"schemaforge/internal/domain"
	"schemaforge/internal/oracle"
	"schemaforge/internal/service"
)

// ConvertHandler serves conversion and refinement endpoints.
type ConvertHandler struct {
	convertSvc service.ConvertService
	refineSvc  service.RefineService
	historySvc service.HistoryService
}

// NewConvertHandler creates a ConvertHandler.
func NewConvertHandler(convertSvc service.ConvertService, refineSvc service.RefineService, historySvc service.HistoryService) *ConvertHandler {
	return &ConvertHandler{
		convertSvc: convertSvc,
		refineSvc:  refineSvc,
		historySvc: historySvc,
	}
}

type refineRequest struct {
	Feedback string `json:"feedback" binding:"required"`
}

// Convert handles POST /api/v1/convert
func (h *ConvertHandler) Convert(c *gin.Context) {
	var input service.ConvertInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := h.convertSvc.Convert(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	usage, cost := out.Metrics.Totals()
	c.JSON(http.StatusOK, gin.H{
		"run_id":              out.RunID,
		"schema":              out.Schema,
		"selection_reasoning": out.SelectionReasoning,
		"usage":               usage,
		"estimated_cost":      cost,
	})
}

// Refine handles POST /api/v1/runs/:id/refine
func (h *ConvertHandler) Refine(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}
	var req refineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := h.refineSvc.ApplyToRun(c.Request.Context(), runID, req.Feedback)
	if err != nil {
		respondError(c, err)
		return
	}

	usage, cost := out.Metrics.Totals()
	c.JSON(http.StatusOK, gin.H{
		"run_id":          out.RunID,
		"version":         out.Version,
		"schema":          out.Schema,
		"changed_columns": out.ChangedColumns,
		"usage":           usage,
		"estimated_cost":  cost,
	})
}

// GetRun handles GET /api/v1/runs/:id
func (h *ConvertHandler) GetRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	detail, err := h.historySvc.GetRun(c.Request.Context(), runID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// respondError maps pipeline errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	var (
		schemaInvalid *domain.SchemaInvalidError
		refineFailed  *domain.RefinementFailedError
		transient     *oracle.TransientError
		quota         *oracle.QuotaError
		malformed     *oracle.MalformedResponseError
	)

	switch {
	case errors.Is(err, domain.ErrRunNotFound), errors.Is(err, domain.ErrSchemaNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNoTablesFound):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &schemaInvalid), errors.As(err, &refineFailed), errors.As(err, &malformed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &quota):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.As(err, &transient):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
