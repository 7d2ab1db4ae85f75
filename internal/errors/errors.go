// Package errors 定义系统内统一的错误码与错误类型。
package errors

import (
	stdErrors "errors"
	"fmt"
)

// Code 表示系统内的统一错误码。
type Code string

const (
	CodeUnknown       Code = "UNKNOWN"
	CodeConfiguration Code = "CONFIGURATION_FAILURE"
	CodeValidation    Code = "VALIDATION_FAILURE"
	CodeExecution     Code = "EXECUTION_FAILURE"
	CodeNetwork       Code = "NETWORK_FAILURE"
	CodeTimeout       Code = "TIMEOUT"
	CodeStorage       Code = "STORAGE_FAILURE"
	CodeSession       Code = "SESSION_FAILURE"
	CodeNotFound      Code = "NOT_FOUND"
	CodeCancelled     Code = "CANCELLED"
)

// Severity 描述错误的严重程度，用于日志与审计。
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// codeTraits 给出每个错误码的默认文案、严重程度与可重试性。
// 已提交的交易永远不会自动重试，Retryable 只约束查询与存储类操作。
var codeTraits = map[Code]struct {
	message   string
	severity  Severity
	retryable bool
}{
	CodeUnknown:       {"unknown error", SeverityCritical, false},
	CodeConfiguration: {"invalid configuration", SeverityCritical, false},
	CodeValidation:    {"argument validation failed", SeverityInfo, false},
	CodeExecution:     {"ledger rejected the transaction", SeverityWarning, false},
	CodeNetwork:       {"network failure", SeverityWarning, true},
	CodeTimeout:       {"operation timed out", SeverityWarning, true},
	CodeStorage:       {"storage failure", SeverityCritical, true},
	CodeSession:       {"session state failure", SeverityWarning, false},
	CodeNotFound:      {"resource not found", SeverityInfo, false},
	CodeCancelled:     {"operation cancelled", SeverityInfo, false},
}

// Severity 返回错误码的默认严重程度。
func (c Code) Severity() Severity {
	if t, ok := codeTraits[c]; ok {
		return t.severity
	}
	return SeverityCritical
}

// Retryable 返回该错误码是否允许调用方重试。
func (c Code) Retryable() bool {
	return codeTraits[c].retryable
}

func (c Code) defaultMessage() string {
	if t, ok := codeTraits[c]; ok {
		return t.message
	}
	return codeTraits[CodeUnknown].message
}

// Error 是系统内统一的错误类型，携带错误码与可选的底层原因。
type Error struct {
	code     Code
	message  string
	cause    error
	metadata map[string]string
}

// Option 在构造时附加可选信息。
type Option func(*Error)

// WithMetadata 附加键值形式的上下文信息。
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = map[string]string{}
		}
		e.metadata[key] = value
	}
}

// New 创建一个新的错误实例，message 为空时使用错误码的默认文案。
func New(code Code, message string, opts ...Option) *Error {
	if message == "" {
		message = code.defaultMessage()
	}
	e := &Error{code: code, message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Wrap 在底层错误之上附加统一错误码。
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is 让 errors.Is 按错误码匹配。
func (e *Error) Is(target error) bool {
	var other *Error
	if e == nil || !stdErrors.As(target, &other) {
		return false
	}
	return e.code == other.code
}

// Code 返回错误码。
func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

// Message 返回面向用户的错误文案。
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Metadata 返回构造时附加的上下文信息。
func (e *Error) Metadata() map[string]string {
	if e == nil {
		return nil
	}
	return e.metadata
}

// CodeOf 从任意 error 中提取统一错误码，非统一错误返回 UNKNOWN。
func CodeOf(err error) Code {
	var e *Error
	if stdErrors.As(err, &e) {
		return e.Code()
	}
	return CodeUnknown
}
