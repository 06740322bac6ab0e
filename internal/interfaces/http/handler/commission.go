package handler

import (
	"context"
	"errors"
	"time"

	appcommission "github.com/erp/commission/internal/application/commission"
	"github.com/erp/commission/internal/domain/commission"
	"github.com/erp/commission/internal/infrastructure/logger"
	"github.com/erp/commission/internal/interfaces/http/dto"
	"github.com/erp/commission/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TriggerHTTP names runs started through the API
const TriggerHTTP = "http"

var errFromToTogether = errors.New("from and to must be given together")

// CommissionService is what the handler needs from the run service
type CommissionService interface {
	Run(ctx context.Context, req appcommission.RunRequest) (*appcommission.RunResult, error)
	PreviewRate(ctx context.Context, total decimal.Decimal) (*appcommission.RatePreview, error)
	Drafts(ctx context.Context, payrollDate time.Time) ([]commission.AdditionalSalary, error)
	SubmitDraft(ctx context.Context, id uuid.UUID) error
}

// CommissionHandler exposes commission runs over HTTP
type CommissionHandler struct {
	BaseHandler
	service  CommissionService
	audit    commission.AuditLog
	location *time.Location
}

// NewCommissionHandler creates a new CommissionHandler. Dates in requests
// are read in loc.
func NewCommissionHandler(service CommissionService, audit commission.AuditLog, loc *time.Location) *CommissionHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &CommissionHandler{service: service, audit: audit, location: loc}
}

// RegisterRoutes mounts the commission endpoints under rg
func (h *CommissionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/commission")
	g.POST("/runs", h.Run)
	g.POST("/runs/preview", h.PreviewRun)
	g.GET("/rate", h.PreviewRate)
	g.GET("/drafts", h.ListDrafts)
	g.POST("/drafts/:id/submit", h.SubmitDraft)
	g.GET("/audit", h.ListAudit)
}

// Run handles POST /commission/runs
func (h *CommissionHandler) Run(c *gin.Context) {
	h.run(c, false)
}

// PreviewRun handles POST /commission/runs/preview. It always runs dry.
func (h *CommissionHandler) PreviewRun(c *gin.Context) {
	h.run(c, true)
}

func (h *CommissionHandler) run(c *gin.Context, forceDryRun bool) {
	var req RunCommissionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.HandleValidationError(c, err)
			return
		}
	}

	runReq, err := h.toRunRequest(req)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	runReq.DryRun = runReq.DryRun || forceDryRun

	ctx, log := logger.WithTrigger(c.Request.Context(), logger.GetGinLogger(c), TriggerHTTP)
	result, err := h.service.Run(ctx, runReq)
	if err != nil {
		if result != nil {
			log.Error("Commission run finished but its trace was not stored",
				zap.String("run_key", result.RunKey), zap.Error(err))
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, toRunResponse(result))
}

func (h *CommissionHandler) toRunRequest(req RunCommissionRequest) (appcommission.RunRequest, error) {
	runReq := appcommission.RunRequest{DryRun: req.DryRun, Trigger: TriggerHTTP}
	if req.Period != "" {
		selector := commission.ParsePeriodSelector(req.Period)
		runReq.Period = &selector
	}
	if (req.From == "") != (req.To == "") {
		return runReq, errFromToTogether
	}
	if req.From != "" {
		from, err := time.ParseInLocation(time.DateOnly, req.From, h.location)
		if err != nil {
			return runReq, err
		}
		to, err := time.ParseInLocation(time.DateOnly, req.To, h.location)
		if err != nil {
			return runReq, err
		}
		runReq.From = &from
		runReq.To = &to
	}
	return runReq, nil
}

// PreviewRate handles GET /commission/rate?total=
func (h *CommissionHandler) PreviewRate(c *gin.Context) {
	var q RatePreviewQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	total, err := decimal.NewFromString(q.Total)
	if err != nil {
		h.BadRequest(c, "total must be a decimal number")
		return
	}

	preview, err := h.service.PreviewRate(c.Request.Context(), total)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, preview)
}

// ListDrafts handles GET /commission/drafts?payroll_date=
func (h *CommissionHandler) ListDrafts(c *gin.Context) {
	var q DraftListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	payrollDate, err := time.ParseInLocation(time.DateOnly, q.PayrollDate, h.location)
	if err != nil {
		h.BadRequest(c, "payroll_date must be YYYY-MM-DD")
		return
	}

	drafts, err := h.service.Drafts(c.Request.Context(), payrollDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toDraftResponses(drafts))
}

// SubmitDraft handles POST /commission/drafts/:id/submit
func (h *CommissionHandler) SubmitDraft(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	id := uuid.MustParse(req.ID)

	if err := h.service.SubmitDraft(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"id": id, "status": commission.DocStatusSubmitted.String()})
}

// ListAudit handles GET /commission/audit?run_key=
func (h *CommissionHandler) ListAudit(c *gin.Context) {
	if h.audit == nil {
		h.NotFound(c, "Audit log is not available")
		return
	}
	var q AuditQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	entries, err := h.audit.ListByRunKey(c.Request.Context(), q.RunKey)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toAuditResponses(entries))
}
