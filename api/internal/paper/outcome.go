package paper

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrorKind is the stable failure taxonomy returned to gateway callers.
type ErrorKind string

const (
	RateLimited       ErrorKind = "RateLimited"
	InvalidRequest    ErrorKind = "InvalidRequest"
	BackendError      ErrorKind = "BackendError"
	MalformedResponse ErrorKind = "MalformedResponse"
	SchemaViolation   ErrorKind = "SchemaViolation"
)

// Transient reports whether a caller may retry the same request unchanged.
func (k ErrorKind) Transient() bool {
	return k == RateLimited || k == BackendError
}

type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	// RetryAfter is only set for RateLimited.
	RetryAfter time.Duration `json:"-"`
}

// MarshalJSON adds "retryable" so callers can tell transient kinds from
// permanent ones without a table of their own.
func (f *Failure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind      ErrorKind `json:"kind"`
		Message   string    `json:"message"`
		Retryable bool      `json:"retryable"`
	}{f.Kind, f.Message, f.Kind.Transient()})
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

func Fail(kind ErrorKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the failure kind from err, or "" when err is not a *Failure.
func KindOf(err error) ErrorKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// Outcome is either a paper or a failure, never both.
type Outcome struct {
	Paper *QuestionPaper
	// Raw is the validated document as the backend sent it, when known.
	Raw     json.RawMessage
	Failure *Failure
}

func Success(p QuestionPaper) Outcome { return Outcome{Paper: &p} }

// SuccessJSON is Success carrying the validated document bytes.
func SuccessJSON(p QuestionPaper, raw json.RawMessage) Outcome {
	return Outcome{Paper: &p, Raw: raw}
}

func Failed(f *Failure) Outcome { return Outcome{Failure: f} }

func (o Outcome) OK() bool { return o.Failure == nil && o.Paper != nil }
