// Package response 统一的 HTTP JSON 响应格式
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/optionspricing/pkg/logger"
)

// Body 响应体
type Body struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Detail  string `json:"detail,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// Success 200 响应
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Body{
		Code:    0,
		Message: "success",
		Data:    data,
		TraceID: logger.TraceID(c.Request.Context()),
	})
}

// ErrorWithStatus 错误响应，code 与 HTTP 状态码一致
func ErrorWithStatus(c *gin.Context, status int, message, detail string) {
	c.AbortWithStatusJSON(status, Body{
		Code:    status,
		Message: message,
		Detail:  detail,
		TraceID: logger.TraceID(c.Request.Context()),
	})
}
