package errs

import (
	"fmt"
	"runtime"
	"strings"
)

const (
	CodeParamRequired = -1*iota - 1
	CodeParamInvalid
	CodeRunTime
	CodeIOReadFail
	CodeIOWriteFail
	CodeMarshalFail
	CodeUnmarshalFail
	CodeNetFail
	CodeNetTimeout
	CodeNetTemporary
	CodeNotSupport
)

var codeNames = map[int]string{
	CodeParamRequired: "ParamRequired",
	CodeParamInvalid:  "ParamInvalid",
	CodeRunTime:       "RunTime",
	CodeIOReadFail:    "IOReadFail",
	CodeIOWriteFail:   "IOWriteFail",
	CodeMarshalFail:   "MarshalFail",
	CodeUnmarshalFail: "UnmarshalFail",
	CodeNetFail:       "NetFail",
	CodeNetTimeout:    "NetTimeout",
	CodeNetTemporary:  "NetTemporary",
	CodeNotSupport:    "NotSupport",
}

// Error carries an int code beside the wrapped cause so callers can
// branch on failure class without string matching.
type Error struct {
	Code  int
	msg   string
	cause error
	stack string
}

// RegCodeNames 注册其他包定义的错误码名称
func RegCodeNames(names map[int]string) {
	for code, name := range names {
		codeNames[code] = name
	}
}

func CodeName(code int) string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", code)
}

func New(code int, err error) *Error {
	if err == nil {
		return NewMsg(code, "")
	}
	return &Error{Code: code, cause: err, stack: callStack(2)}
}

func NewMsg(code int, format string, args ...interface{}) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Code: code, msg: msg, stack: callStack(2)}
}

// NewFull 同时携带原始错误和附加消息
func NewFull(code int, err error, format string, args ...interface{}) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Code: code, msg: msg, cause: err, stack: callStack(2)}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Short())
	if e.stack != "" {
		b.WriteString("\n")
		b.WriteString(e.stack)
	}
	return b.String()
}

// Short returns the one-line form without the call stack.
func (e *Error) Short() string {
	if e == nil {
		return ""
	}
	if e.msg != "" {
		return fmt.Sprintf("[%s] %s", CodeName(e.Code), e.msg)
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %v", CodeName(e.Code), e.cause)
	}
	return fmt.Sprintf("[%s]", CodeName(e.Code))
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	if e.msg != "" {
		return e.msg
	}
	if e.cause != nil {
		return e.cause.Error()
	}
	return ""
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func callStack(skip int) string {
	pcs := make([]uintptr, 8)
	num := runtime.Callers(skip+1, pcs)
	if num == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:num])
	var b strings.Builder
	for {
		frame, more := frames.Next()
		if strings.Contains(frame.File, "runtime/") {
			break
		}
		b.WriteString(fmt.Sprintf("  %s:%d\n", frame.File, frame.Line))
		if !more {
			break
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
