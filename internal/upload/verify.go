package upload

import (
	"context"
	"io"
	"net/http"

	"portal-rest-api/internal/storage"
)

// Verifier checks that an uploaded object is publicly fetchable.
type Verifier interface {
	Verify(ctx context.Context, url string) error
}

// HEADVerifier issues a HEAD request and accepts any 2xx reply.
type HEADVerifier struct {
	Client *http.Client
}

// Verify implements Verifier.
func (v HEADVerifier) Verify(ctx context.Context, url string) error {
	client := v.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &storage.HTTPError{Op: "verify", StatusCode: resp.StatusCode}
	}
	return nil
}
