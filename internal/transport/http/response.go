package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一 JSON 响应结构
type Response struct {
	Code int         `json:"code"`           // 业务状态码
	Msg  string      `json:"msg"`            // 提示信息
	Data interface{} `json:"data,omitempty"` // 数据载荷
}

// 业务状态码定义
const (
	CodeSuccess       = 200 // 成功
	CodeUnauthorized  = 401 // 未认证
	CodeConflict      = 409 // 已有运行进行中
	CodeInternalError = 500 // 运行失败
)

// Success 成功响应（200）
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: CodeSuccess,
		Msg:  "ok",
		Data: data,
	})
}

// Error 通用错误响应
func Error(c *gin.Context, httpCode int, msg string, data interface{}) {
	c.JSON(httpCode, Response{
		Code: httpCode,
		Msg:  msg,
		Data: data,
	})
}

// Text 纯文本响应
func Text(c *gin.Context, httpCode int, body string) {
	c.Data(httpCode, "text/plain; charset=utf-8", []byte(body))
}
