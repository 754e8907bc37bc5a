// Package storage provides the object stores uploaded images are written to.
package storage

import (
	"context"
	"fmt"
	"strings"
)

// ObjectStore writes an object and returns its public URL.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, name string, data []byte, contentType string) (string, error)
}

// HTTPError is a non-2xx reply from a remote store.
type HTTPError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200]
	}
	if body == "" {
		return fmt.Sprintf("storage %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("storage %s: status %d: %s", e.Op, e.StatusCode, body)
}

// HTTPStatus exposes the status code to the failure classifier.
func (e *HTTPError) HTTPStatus() int {
	return e.StatusCode
}

func validName(name string) error {
	if name == "" || strings.Contains(name, "..") || strings.HasPrefix(name, "/") || strings.ContainsAny(name, `\`) {
		return fmt.Errorf("invalid object name %q", name)
	}
	return nil
}
