package errs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	pkgerrs "github.com/pkg/errors"
)

// CodeError carries a numeric code next to the message. For the gateway the
// code is usually a websocket close code and Msg the close reason.
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) CodeError {
	return CodeError{
		Code: code,
		Msg:  msg,
	}
}

func (e *CodeError) clone() *CodeError {
	return &CodeError{
		Code:   e.Code,
		Msg:    e.Msg,
		Detail: e.Detail,
	}
}

func (e *CodeError) WrapMsg(msg string, kv ...any) error {
	retErr := e.clone()
	if msg != "" || len(kv) > 0 {
		detail := toString(msg, kv)
		if retErr.Detail == "" {
			retErr.Detail = detail
		} else {
			retErr.Detail += ", " + detail
		}
	}
	return pkgerrs.WithStack(retErr)
}

// Is 只比较 code；errors.Is 沿链比较时也走这里
func (e *CodeError) Is(err error) bool {
	var codeErr *CodeError
	if !errors.As(err, &codeErr) {
		return err == nil && e == nil
	}
	if e == nil || codeErr == nil {
		return false
	}
	return e.Code == codeErr.Code
}

const initialCapacity = 3

func (e *CodeError) Error() string {
	v := make([]string, 0, initialCapacity)
	v = append(v, strconv.Itoa(e.Code), e.Msg)

	if e.Detail != "" {
		v = append(v, e.Detail)
	}

	return strings.Join(v, " ")
}

// AsCode extracts the CodeError from a wrapped chain.
func AsCode(err error) (*CodeError, bool) {
	var codeErr *CodeError
	if errors.As(err, &codeErr) {
		return codeErr, true
	}
	return nil, false
}

func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return pkgerrs.Wrap(err, toString(msg, kv))
}

func toString(msg string, kv []any) string {
	if len(kv) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		b.WriteString(", ")
		b.WriteString(anyString(kv[i]))
		b.WriteString("=")
		if i+1 < len(kv) {
			b.WriteString(anyString(kv[i+1]))
		} else {
			b.WriteString("MISSING")
		}
	}
	return b.String()
}

func anyString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case error:
		return x.Error()
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return "<nil>"
	default:
		return fmt.Sprint(x)
	}
}
