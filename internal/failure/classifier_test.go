package failure

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr int

func (s statusErr) Error() string   { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) HTTPStatus() int { return int(s) }

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		category  Category
		retryable bool
	}{
		{"http 503", statusErr(503), CategoryTransient, true},
		{"http 500 text", errors.New("request failed with status 500"), CategoryTransient, true},
		{"timeout text", errors.New("upstream timeout while reading"), CategoryTransient, true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), CategoryTransient, true},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), CategoryTransient, true},
		{"eof", io.ErrUnexpectedEOF, CategoryTransient, true},
		{"http 404", statusErr(404), CategoryNotFound, false},
		{"no rows", fmt.Errorf("get post: %w", sql.ErrNoRows), CategoryNotFound, false},
		{"sentinel not found", fmt.Errorf("post %q: %w", "x", ErrNotFound), CategoryNotFound, false},
		{"jwt expired", errors.New("JWT expired"), CategoryAuthorization, false},
		{"http 401", statusErr(401), CategoryAuthorization, false},
		{"relation missing", errors.New(`relation "posts" does not exist`), CategoryDataIntegrity, false},
		{"pq undefined table", &pq.Error{Code: "42P01", Message: "relation missing"}, CategoryDataIntegrity, false},
		{"pq connection", &pq.Error{Code: "08006"}, CategoryTransient, true},
		{"pq auth", &pq.Error{Code: "28P01"}, CategoryAuthorization, false},
		{"mysql missing table", &mysql.MySQLError{Number: 1146, Message: "Table 'portal.posts' doesn't exist"}, CategoryDataIntegrity, false},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213}, CategoryTransient, true},
		{"validation", Validationf("file too large"), CategoryValidation, false},
		{"unknown", errors.New("something odd happened"), CategoryUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.retryable, got.Retryable)
			assert.NotEmpty(t, got.UserMessage)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	assert.Nil(t, Classify(nil))
}

func TestClassify_Deterministic(t *testing.T) {
	a := Classify(errors.New("service returned 503"))
	b := Classify(errors.New("service returned 503"))
	assert.Equal(t, a.Category, b.Category)
	assert.Equal(t, a.Retryable, b.Retryable)
	assert.Equal(t, a.UserMessage, b.UserMessage)
}

func TestClassify_AlreadyClassified(t *testing.T) {
	first := Classify(statusErr(404))
	again := Classify(fmt.Errorf("wrapped: %w", first))
	assert.Same(t, first, again)
}

func TestClassify_StructuredBeatsText(t *testing.T) {
	// The message mentions a timeout but SQLSTATE 42P01 is an undefined table.
	err := &pq.Error{Code: "42P01", Message: "timeout while looking up relation"}
	assert.Equal(t, CategoryDataIntegrity, Classify(err).Category)
}

func TestClassify_ValidationMessage(t *testing.T) {
	got := Classify(Validationf("file exceeds %s", "5.0 MB"))
	assert.Equal(t, "file exceeds 5.0 MB", got.UserMessage)
	assert.True(t, Is(got, CategoryValidation))
}
