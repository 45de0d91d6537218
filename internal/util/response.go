package util

import (
	"errors"
	"net/http"

	"examhub_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error", zap.Error(err))
	InternalServerError(c)
}

// DomainError maps the error taxonomy onto HTTP codes so controllers stay
// one-liners. Unknown errors are logged and become a 500.
func DomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrExamNotFound),
		errors.Is(err, ErrAttemptNotFound),
		errors.Is(err, ErrQuestionNotFound):
		Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrExamUnavailable),
		errors.Is(err, ErrAttemptLimitExceeded),
		errors.Is(err, ErrAttemptExpired):
		Error(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrAttemptAlreadyActive),
		errors.Is(err, ErrAttemptAlreadyFinalized),
		errors.Is(err, ErrAttemptNotActive),
		errors.Is(err, ErrAttemptNotFinalized):
		Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, ErrPermissionDenied):
		Forbidden(c)
	case errors.Is(err, ErrDependency):
		logger.Log.Error("dependency failure", zap.Error(err))
		Error(c, http.StatusServiceUnavailable, "Service temporarily unavailable")
	default:
		LogInternalError(c, err)
	}
}
