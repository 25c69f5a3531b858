package util

import (
	"errors"
	"net/http"

	"cfaquiz_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
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

func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, message)
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error", zap.Error(err))
	InternalServerError(c)
}

// HandleError 把领域错误映射为 HTTP 状态码
func HandleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrQuestionNotFound), errors.Is(err, ErrBlobNotFound):
		Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrImportInProgress):
		Conflict(c, err.Error())
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrNoQuestions),
		errors.Is(err, ErrInvalidIssueType), errors.Is(err, ErrUnsupportedFile),
		errors.Is(err, ErrInvalidChoice),
		errors.Is(err, ErrEmptyInput), errors.Is(err, ErrUndecodable),
		errors.Is(err, ErrMissingCSV), errors.Is(err, ErrImportFailed),
		errors.Is(err, ErrUnsafeArchivePath), errors.Is(err, ErrNoRows):
		BadRequest(c, err.Error())
	default:
		LogInternalError(c, err)
	}
}

// Text 以纯文本返回，如导入报告
func Text(c *gin.Context, code int, body string) {
	c.String(code, body)
}
