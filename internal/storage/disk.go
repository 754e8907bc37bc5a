package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore writes objects under a local directory that the API serves
// statically. Used in development and when no hosted store is configured.
type DiskStore struct {
	root    string
	baseURL string
}

// NewDiskStore creates the root directory if needed. baseURL is the public
// prefix objects are served under, e.g. "http://localhost:8080/media".
func NewDiskStore(root, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &DiskStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root returns the directory objects are written to.
func (s *DiskStore) Root() string {
	return s.root
}

// Upload writes data to root/bucket/name, replacing any previous object.
func (s *DiskStore) Upload(ctx context.Context, bucket, name string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validName(name); err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create bucket directory: %w", err)
	}

	// Write to a temp file first so readers never see a partial object.
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write object: %w", err)
	}

	target := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to create object directory: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to store object: %w", err)
	}

	return s.baseURL + "/" + bucket + "/" + name, nil
}

var _ ObjectStore = (*DiskStore)(nil)
