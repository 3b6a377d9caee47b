// Package etlerr provides the error taxonomy of the login ETL job.
// Every failure that reaches the driver carries a Kind so callers can branch
// with errors.Is against the exported sentinels, while errors.As still
// reaches the underlying cause (for example a *pgconn.PgError).
package etlerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the pipeline stage that produced it.
type Kind string

const (
	KindMalformedPayload     Kind = "MALFORMED_PAYLOAD"
	KindInvalidVersionFormat Kind = "INVALID_VERSION_FORMAT"
	KindSchema               Kind = "SCHEMA_ERROR"
	KindLoad                 Kind = "LOAD_ERROR"
	KindUpsert               Kind = "UPSERT_ERROR"
	KindSinkConnection       Kind = "SINK_CONNECTION_ERROR"
	KindSource               Kind = "SOURCE_ERROR"
	KindConfig               Kind = "CONFIG_ERROR"
)

// Sentinels for errors.Is. They carry only a Kind.
var (
	MalformedPayload     = &Error{Kind: KindMalformedPayload}
	InvalidVersionFormat = &Error{Kind: KindInvalidVersionFormat}
	SchemaError          = &Error{Kind: KindSchema}
	LoadError            = &Error{Kind: KindLoad}
	UpsertError          = &Error{Kind: KindUpsert}
	SinkConnectionError  = &Error{Kind: KindSinkConnection}
	SourceError          = &Error{Kind: KindSource}
	ConfigError          = &Error{Kind: KindConfig}
)

// Error is the structured error type used across the job.
type Error struct {
	Kind  Kind
	Op    string // operation that failed, e.g. "create staging table"
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New builds an Error without a cause.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause under kind. A nil cause yields nil.
func Wrap(kind Kind, op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" when the
// chain carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
