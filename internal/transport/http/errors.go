package httptransport

import (
	"errors"
	"net/http"

	"mailtriage/backend/internal/service"
)

// 通用错误消息
const (
	MsgRunInProgress = "A triage run is already in progress"
	MsgRunFailed     = "Triage run failed"
	MsgInternalError = "Internal server error"
)

// statusFor 把运行错误映射为 HTTP 状态码
//
// 已有运行进行中返回 409，其余运行级错误（令牌、未读列表）返回 500。
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, service.ErrRunInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
