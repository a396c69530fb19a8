package service

import (
	"errors"
	"net/http"
)

// Kind 请求失败的分类
type Kind int

const (
	KindInternal Kind = iota
	KindMissingInput
	KindTooLarge
	KindDecodeFailure
	KindModelInvocationFailure
	KindNotConfigured
)

var (
	ErrMissingInput           = &Error{Kind: KindMissingInput, Err: errors.New("no image provided")}
	ErrTooLarge               = &Error{Kind: KindTooLarge, Err: errors.New("image too large")}
	ErrDecodeFailure          = &Error{Kind: KindDecodeFailure, Err: errors.New("invalid image")}
	ErrModelInvocationFailure = &Error{Kind: KindModelInvocationFailure, Err: errors.New("background removal failed")}
	ErrNotConfigured          = &Error{Kind: KindNotConfigured, Err: errors.New("background removal not configured")}
	ErrInternal               = &Error{Kind: KindInternal, Err: errors.New("internal server error")}
)

// Error 带分类的错误，errors.Is 只比较 Kind
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// KindOf 非 *Error 一律视为 Internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Status 分类对应的 HTTP 状态码和对外提示
func (k Kind) Status() (int, string) {
	switch k {
	case KindMissingInput:
		return http.StatusBadRequest, "No image provided"
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge, "Image too large"
	case KindDecodeFailure:
		return http.StatusBadRequest, "Invalid image"
	case KindModelInvocationFailure:
		return http.StatusInternalServerError, "Background removal failed"
	case KindNotConfigured:
		return http.StatusServiceUnavailable, "Background removal not configured"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func (k Kind) String() string {
	switch k {
	case KindMissingInput:
		return "missing_input"
	case KindTooLarge:
		return "too_large"
	case KindDecodeFailure:
		return "decode_failure"
	case KindModelInvocationFailure:
		return "model_invocation_failure"
	case KindNotConfigured:
		return "not_configured"
	default:
		return "internal"
	}
}
