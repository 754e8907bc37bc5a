package apierror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"portal-rest-api/internal/failure"

	"github.com/stretchr/testify/assert"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"api error passes through", Conflict("slug taken"), http.StatusConflict, "CONFLICT"},
		{"not found", fmt.Errorf("post x: %w", failure.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"unauthorized", failure.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"validation", failure.Validationf("file exceeds 5.2 MB"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"timeout", context.DeadlineExceeded, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"permission text", errors.New("permission denied for table posts"), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"schema text", errors.New(`relation "posts" does not exist`), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			assert.Equal(t, tt.status, got.StatusCode)
			assert.Equal(t, tt.code, got.Code)
		})
	}

	assert.Nil(t, FromError(nil))
}

func TestFromError_HidesRawText(t *testing.T) {
	got := FromError(errors.New("pq: password authentication failed for user \"admin\" at 10.0.0.3"))
	assert.NotContains(t, got.Message, "10.0.0.3")
}

func TestFromError_ValidationKeepsConstraint(t *testing.T) {
	got := FromError(failure.Validationf("file is 10 MB, limit is 5.2 MB"))
	assert.Equal(t, "file is 10 MB, limit is 5.2 MB", got.Message)
}
