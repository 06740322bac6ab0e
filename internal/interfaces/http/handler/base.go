package handler

import (
	"errors"
	"net/http"

	"github.com/erp/commission/internal/domain/shared"
	"github.com/erp/commission/internal/infrastructure/logger"
	"github.com/erp/commission/internal/interfaces/http/dto"
	"github.com/erp/commission/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BaseHandler holds the response helpers shared by the commission handlers
type BaseHandler struct{}

func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.fail(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.fail(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// HandleError answers with the status mapped from a domain error code.
// Anything that is not a domain error is logged and hidden behind a 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if !errors.As(err, &domainErr) {
		logger.GetGinLogger(c).Error("Request failed", zap.Error(err))
		h.fail(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
		return
	}

	code := dto.NormalizeErrorCode(domainErr.Code)
	status := dto.GetHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		logger.GetGinLogger(c).Error("Request failed", zap.String("code", code), zap.Error(err))
	}
	h.fail(c, status, code, domainErr.Message)
}

func (h *BaseHandler) fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.NewErrorResponseWithRequestID(code, message, middleware.RequestID(c)))
}
