package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// HTTPStore talks to a hosted storage REST API:
//
//	POST {base}/storage/v1/object/{bucket}/{name}
//	GET  {base}/storage/v1/object/public/{bucket}/{name}
type HTTPStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPStore creates a store against baseURL. A nil client uses
// http.DefaultClient; deadlines come from the request context.
func NewHTTPStore(baseURL, apiKey string, client *http.Client) *HTTPStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

// PublicURL returns the public address of an object.
func (s *HTTPStore) PublicURL(bucket, name string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, url.PathEscape(bucket), escapeName(name))
}

// Upload writes data with upsert semantics, so retrying the same name is safe.
func (s *HTTPStore) Upload(ctx context.Context, bucket, name string, data []byte, contentType string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, url.PathEscape(bucket), escapeName(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", "max-age=3600")
	req.Header.Set("x-upsert", "true")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
		req.Header.Set("apikey", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &HTTPError{Op: "upload", StatusCode: resp.StatusCode, Body: string(body)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return s.PublicURL(bucket, name), nil
}

func escapeName(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

var _ ObjectStore = (*HTTPStore)(nil)
