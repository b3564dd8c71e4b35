package provider

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindTransport 网络错误、超时
	KindTransport
	// KindDecode 响应不是 JSON 或缺少必要字段
	KindDecode
	// KindRejected 接口返回 code != 0
	KindRejected
	// KindUnauthenticated 接口返回未登录（-101）
	KindUnauthenticated
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	case KindRejected:
		return "rejected"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// CodeNotLoggedIn is the status code the platform returns for an invalid session.
const CodeNotLoggedIn = -101

type APIError struct {
	Kind    ErrorKind
	Op      string
	Code    int
	Message string
	Err     error
}

// Error returns the remote message for rejections and the underlying error text otherwise,
// since both end up verbatim in task reasons.
func (e *APIError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
}

func (e *APIError) Unwrap() error { return e.Err }

func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

func Transport(op string, err error) *APIError {
	return &APIError{Kind: KindTransport, Op: op, Err: err}
}

func Decode(op string, err error) *APIError {
	return &APIError{Kind: KindDecode, Op: op, Err: err}
}

func Rejected(op string, code int, message string) *APIError {
	if code == CodeNotLoggedIn {
		return &APIError{Kind: KindUnauthenticated, Op: op, Code: code, Message: message}
	}
	return &APIError{Kind: KindRejected, Op: op, Code: code, Message: message}
}
