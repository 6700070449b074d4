package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/limaJavier/timetabler/internal/apperrors"
	"github.com/limaJavier/timetabler/internal/export"
	"github.com/limaJavier/timetabler/internal/response"
	"github.com/limaJavier/timetabler/internal/service"
	"github.com/limaJavier/timetabler/internal/store"
	"github.com/limaJavier/timetabler/pkg/model"
)

type timetableService interface {
	Generate(ctx context.Context, raw model.RawModelInput, strategy string) (*service.GenerateResult, error)
	Run(ctx context.Context, id string) (*store.Run, error)
	Runs(ctx context.Context, limit int) ([]*store.Run, error)
	Export(ctx context.Context, id string, format string) ([]byte, export.Format, error)
}

// TimetableHandler exposes the generation and run history endpoints.
type TimetableHandler struct {
	service   timetableService
	validator *validator.Validate
}

func NewTimetableHandler(svc *service.TimetableService, validate *validator.Validate) *TimetableHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &TimetableHandler{service: svc, validator: validate}
}

// Generate builds the timetables of the posted input.
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.Wrap(err, apperrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		appErr := apperrors.Wrap(err, apperrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable payload")
		appErr.Details = validationIssues(err)
		response.Error(c, appErr)
		return
	}
	raw, err := req.RawInput()
	if err != nil {
		response.Error(c, apperrors.Wrap(err, apperrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
		return
	}

	result, err := h.service.Generate(c.Request.Context(), raw, req.Strategy)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, GenerateResponse{
		RunID:      result.RunID,
		Strategy:   result.Strategy,
		Cached:     result.Cached,
		Complete:   result.Timetable.Complete(),
		Timetables: result.Timetable,
		Failures:   result.Timetable.Failures(),
	}, map[string]any{"durationMs": result.Duration.Milliseconds(), "digest": result.Digest})
}

// Get returns a stored run.
func (h *TimetableHandler) Get(c *gin.Context) {
	run, err := h.service.Run(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run)
}

// List returns the latest stored runs, newest first.
func (h *TimetableHandler) List(c *gin.Context) {
	limit := 0
	if value := c.Query("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 1 {
			response.Error(c, apperrors.Clone(apperrors.ErrValidation, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	runs, err := h.service.Runs(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	summaries := lo.Map(runs, func(run *store.Run, _ int) RunSummary {
		return RunSummary{
			ID:          run.ID,
			Strategy:    run.Strategy,
			Status:      run.Status,
			InputDigest: run.InputDigest,
			Divisions:   run.Divisions,
			Failures:    run.Failures,
			DurationMs:  run.Duration.Milliseconds(),
			CreatedAt:   run.CreatedAt.Format(time.RFC3339),
		}
	})
	response.JSON(c, http.StatusOK, summaries, map[string]any{"count": len(summaries)})
}

// Export downloads a stored run as CSV, PDF or JSON.
func (h *TimetableHandler) Export(c *gin.Context) {
	id := c.Param("id")
	content, format, err := h.service.Export(c.Request.Context(), id, c.DefaultQuery("format", string(export.FormatCSV)))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=timetable-"+id+"."+string(format))
	c.Data(http.StatusOK, export.ContentType(format), content)
}
