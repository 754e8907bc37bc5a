// Package failure assigns backend errors to a small set of categories that
// decide whether an operation is worth retrying and what the caller should be
// told about it.
//
// Classification prefers structured signals (HTTP status codes, SQLSTATE
// classes, MySQL error numbers, network error types) and only falls back to
// matching the error text when none is present.
package failure

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Category is the class a failure belongs to.
type Category string

const (
	CategoryTransient     Category = "transient-network"
	CategoryNotFound      Category = "not-found"
	CategoryAuthorization Category = "authorization"
	CategoryDataIntegrity Category = "data-integrity"
	CategoryValidation    Category = "validation"
	CategoryUnknown       Category = "unknown"
)

// Retryable reports whether failures of this category are worth another attempt.
// Unknown failures are retried so unrecognised errors err toward resilience.
func (c Category) Retryable() bool {
	return c == CategoryTransient || c == CategoryUnknown
}

func (c Category) userMessage() string {
	switch c {
	case CategoryTransient:
		return "The service is temporarily unreachable. Please try again shortly."
	case CategoryNotFound:
		return "The requested content could not be found."
	case CategoryAuthorization:
		return "Your session has expired. Please sign in again."
	case CategoryDataIntegrity:
		return "The content store is misconfigured. Please contact an administrator."
	case CategoryValidation:
		return "The submitted data is not valid."
	default:
		return "An unexpected error occurred."
	}
}

// Sentinel errors that classify without inspecting text.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
)

// Validationf returns a validation error carrying a human-readable constraint.
func Validationf(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }
func (e *validationError) Unwrap() error { return ErrValidation }

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	HTTPStatus() int
}

// ClassifiedError is a raw error together with its category.
type ClassifiedError struct {
	Category    Category
	Retryable   bool
	UserMessage string
	Err         error
}

func (e *ClassifiedError) Error() string {
	if e.Err == nil {
		return string(e.Category)
	}
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Classify assigns err to a category. It never panics, returns nil for a nil
// error and returns an already classified error unchanged.
func Classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}

	category, ok := fromStructured(err)
	if !ok {
		category = fromText(err.Error())
	}

	msg := category.userMessage()
	var ve *validationError
	if errors.As(err, &ve) {
		msg = ve.msg
	}

	return &ClassifiedError{
		Category:    category,
		Retryable:   category.Retryable(),
		UserMessage: msg,
		Err:         err,
	}
}

// Is reports whether err classifies into category.
func Is(err error, category Category) bool {
	ce := Classify(err)
	return ce != nil && ce.Category == category
}

func fromStructured(err error) (Category, bool) {
	switch {
	case errors.Is(err, ErrValidation):
		return CategoryValidation, true
	case errors.Is(err, ErrNotFound), errors.Is(err, sql.ErrNoRows):
		return CategoryNotFound, true
	case errors.Is(err, ErrUnauthorized):
		return CategoryAuthorization, true
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return CategoryTransient, true
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return fromStatus(sc.HTTPStatus())
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fromSQLState(string(pqErr.Code))
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return fromMySQLNumber(myErr.Number)
	}

	switch {
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, mysql.ErrInvalidConn):
		return CategoryTransient, true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return CategoryTransient, true
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.EPIPE):
		return CategoryTransient, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return CategoryTransient, true
	}

	return "", false
}

func fromStatus(status int) (Category, bool) {
	switch {
	case status == 404 || status == 410:
		return CategoryNotFound, true
	case status == 401 || status == 403:
		return CategoryAuthorization, true
	case status == 400 || status == 413 || status == 415 || status == 422:
		return CategoryValidation, true
	case status == 409:
		return CategoryDataIntegrity, true
	case status == 408 || status == 429 || status >= 500:
		return CategoryTransient, true
	}
	return "", false
}

// fromSQLState maps PostgreSQL SQLSTATE classes.
func fromSQLState(code string) (Category, bool) {
	if len(code) < 2 {
		return "", false
	}
	switch code[:2] {
	case "08", "40", "53", "57", "58":
		return CategoryTransient, true
	case "28":
		return CategoryAuthorization, true
	case "23", "42":
		return CategoryDataIntegrity, true
	case "22":
		return CategoryValidation, true
	}
	return "", false
}

func fromMySQLNumber(n uint16) (Category, bool) {
	switch n {
	case 1040, 1053, 1205, 1213, 2006, 2013:
		return CategoryTransient, true
	case 1044, 1045, 1142, 1227:
		return CategoryAuthorization, true
	case 1054, 1062, 1146, 1451, 1452:
		return CategoryDataIntegrity, true
	}
	return "", false
}

var textRules = []struct {
	category Category
	needles  []string
}{
	{CategoryNotFound, []string{"404", "not found", "no rows", "pgrst116"}},
	{CategoryAuthorization, []string{"jwt", "token", "401", "403", "unauthorized", "forbidden", "permission denied", "pgrst301"}},
	{CategoryDataIntegrity, []string{"relation", "does not exist", "schema", "no such table", "no such column", "violates"}},
	{CategoryTransient, []string{"500", "502", "503", "504", "timeout", "timed out", "connection reset", "connection refused", "network", "eof", "temporarily unavailable"}},
}

func fromText(msg string) Category {
	msg = strings.ToLower(msg)
	for _, rule := range textRules {
		for _, needle := range rule.needles {
			if strings.Contains(msg, needle) {
				return rule.category
			}
		}
	}
	return CategoryUnknown
}
