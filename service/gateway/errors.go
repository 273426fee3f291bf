package gateway

import (
	"errors"

	"github.com/Infinite-Chess/infinitechess.org-sub008/tools/errs"
)

// 准入拒绝：Code 即关闭码，Msg 即关闭原因
var (
	ErrNotSecure      = errs.NewCodeError(CodeTooBig, "Not Secure")
	ErrOrigin         = errs.NewCodeError(CodeTooBig, "Origin Error")
	ErrNoClientIP     = errs.NewCodeError(CodePolicy, "Unable to identify client IP address")
	ErrTooManySockets = errs.NewCodeError(CodeTooBig, "Too Many Sockets")
	ErrAuthNeeded     = errs.NewCodeError(CodePolicy, "Authentication needed")
	ErrServerRestart  = errs.NewCodeError(CodeGoingAway, "Server restarting")
)

// 协议错误：连接保持打开，客户端收到 protocolerror
var (
	ErrInvalidJSON    = errs.NewCodeError(4000, "Invalid JSON")
	ErrUnknownRoute   = errs.NewCodeError(4001, "Unknown route")
	ErrUnknownAction  = errs.NewCodeError(4002, "Unknown action")
	ErrInvalidValue   = errs.NewCodeError(4003, "Invalid value")
	ErrMissingID      = errs.NewCodeError(4004, "Missing message id")
	ErrInternal       = errs.NewCodeError(errs.ServerInternalError, "Internal error")
	ErrFeatureMissing = errs.NewCodeError(4005, "Feature unavailable")
)

var (
	ErrConnClosed   = errors.New("connection closed")
	ErrConnNotFound = errors.New("connection not found")
)

var errCollaboratorMissing = ErrFeatureMissing.WrapMsg("no collaborator configured")

// hostile 这些协议错误记审计日志
func hostile(err error) bool {
	ce, ok := errs.AsCode(err)
	if !ok {
		return false
	}
	return ce.Code >= 4000 && ce.Code < 4005
}
