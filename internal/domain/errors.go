package domain

import (
	"errors"
	"fmt"
)

// ErrDetached is returned when a request instance is used after its geocoder
// was released.
var ErrDetached = errors.New("geocoder detached: request instance can no longer execute")

// ErrAlreadyResolved is returned when a request's query is resolved a second
// time. A request instance executes at most once.
var ErrAlreadyResolved = errors.New("query already resolved: request instance already executed")

// ErrorKind classifies why a request was rejected before dispatch.
type ErrorKind int

const (
	// KindParameter is an out-of-range or malformed request parameter.
	KindParameter ErrorKind = iota + 1
	// KindConsistency is a query that is internally inconsistent under the
	// engine's rules.
	KindConsistency
)

func (k ErrorKind) String() string {
	switch k {
	case KindParameter:
		return "parameter"
	case KindConsistency:
		return "consistency"
	default:
		return "unknown"
	}
}

// RequestError rejects a whole request. It never reaches the projector.
type RequestError struct {
	Kind    ErrorKind
	Param   string
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	msg := e.Message
	if e.Param != "" {
		msg = fmt.Sprintf("%s: %s", e.Param, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// ParamError builds a parameter error for param.
func ParamError(param, message string, err error) *RequestError {
	return &RequestError{Kind: KindParameter, Param: param, Message: message, Err: err}
}

// ConsistencyError builds a query consistency error.
func ConsistencyError(param, message string) *RequestError {
	return &RequestError{Kind: KindConsistency, Param: param, Message: message}
}

// IsParameterError reports whether err is a rejected request parameter.
func IsParameterError(err error) bool {
	return kindOf(err) == KindParameter
}

// IsConsistencyError reports whether err is a query consistency failure.
func IsConsistencyError(err error) bool {
	return kindOf(err) == KindConsistency
}

// ErrorLabel names the failure class of err for logs and metrics.
func ErrorLabel(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDetached):
		return "detached"
	case errors.Is(err, ErrAlreadyResolved):
		return "resolved"
	case IsParameterError(err):
		return "parameter"
	case IsConsistencyError(err):
		return "consistency"
	default:
		return "geocoder"
	}
}

func kindOf(err error) ErrorKind {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind
	}
	return 0
}
