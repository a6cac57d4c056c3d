package service

import (
	"errors"
	"fmt"
)

// ErrorKind 区分流水线错误的类别，决定对外的提示与状态码
type ErrorKind string

const (
	KindDecode            ErrorKind = "decode"
	KindModelInvocation   ErrorKind = "model_invocation"
	KindDimensionMismatch ErrorKind = "dimension_mismatch"
	KindEncode            ErrorKind = "encode"
	KindInvalidInput      ErrorKind = "invalid_input"
)

// 哨兵错误，配合 errors.Is 使用
var (
	ErrDecode            = &Error{Kind: KindDecode}
	ErrModelInvocation   = &Error{Kind: KindModelInvocation}
	ErrDimensionMismatch = &Error{Kind: KindDimensionMismatch}
	ErrEncode            = &Error{Kind: KindEncode}
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}

	ErrSessionNotFound = errors.New("session not found")
)

type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 按类别匹配，使 errors.Is(err, ErrDecode) 对任何 decode 错误成立
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf 返回错误链中第一个流水线错误的类别
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

var (
	errEmptyInput = errors.New("empty input")
	errEmptyImage = errors.New("empty image")
)
