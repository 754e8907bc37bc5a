// Package upload ingests images: validate, upload to the object store,
// verify the public URL and degrade to an inline data URL when any remote
// step fails.
package upload

import (
	"context"
	"fmt"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"portal-rest-api/internal/failure"
	"portal-rest-api/internal/metrics"
	"portal-rest-api/internal/model"
	"portal-rest-api/internal/repository"
	"portal-rest-api/internal/retry"
	"portal-rest-api/internal/storage"
	"portal-rest-api/pkg/uid"

	"github.com/dustin/go-humanize"
)

// Config holds the pipeline limits.
type Config struct {
	Bucket        string
	MaxBytes      int64
	AllowedTypes  []string
	Timeout       time.Duration
	VerifyTimeout time.Duration
	MaxWidth      int
	MaxHeight     int
	Quality       int

	// MaxPixels bounds width×height of an image decoded for the inline
	// fallback. Larger images are inlined as uploaded.
	MaxPixels int64

	// MaxInlineBytes bounds the length of a re-encoded inline data URL.
	MaxInlineBytes int
}

// DefaultConfig returns the production limits.
func DefaultConfig() Config {
	return Config{
		Bucket:         "images",
		MaxBytes:       5 << 20,
		AllowedTypes:   []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
		Timeout:        30 * time.Second,
		VerifyTimeout:  10 * time.Second,
		MaxWidth:       1200,
		MaxHeight:      1600,
		Quality:        80,
		MaxPixels:      40_000_000,
		MaxInlineBytes: 1 << 20,
	}
}

// File is one image handed to the pipeline.
type File struct {
	Name        string
	ContentType string
	Data        []byte
	UploadedBy  string
}

// Pipeline runs the ingestion state machine.
type Pipeline struct {
	store    storage.ObjectStore
	executor *retry.Executor
	verifier Verifier
	logs     repository.UploadLogRepository
	config   Config
	now      func() time.Time

	wg sync.WaitGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithUploadLog records every attempt to logs.
func WithUploadLog(logs repository.UploadLogRepository) Option {
	return func(p *Pipeline) { p.logs = logs }
}

// WithClock overrides the clock used for object names.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a pipeline. Zero config fields take the defaults.
func NewPipeline(store storage.ObjectStore, executor *retry.Executor, verifier Verifier, config Config, opts ...Option) *Pipeline {
	def := DefaultConfig()
	if config.Bucket == "" {
		config.Bucket = def.Bucket
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = def.MaxBytes
	}
	if len(config.AllowedTypes) == 0 {
		config.AllowedTypes = def.AllowedTypes
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.VerifyTimeout <= 0 {
		config.VerifyTimeout = def.VerifyTimeout
	}
	if config.MaxWidth <= 0 {
		config.MaxWidth = def.MaxWidth
	}
	if config.MaxHeight <= 0 {
		config.MaxHeight = def.MaxHeight
	}
	if config.MaxPixels <= 0 {
		config.MaxPixels = def.MaxPixels
	}
	if config.MaxInlineBytes <= 0 {
		config.MaxInlineBytes = def.MaxInlineBytes
	}
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = def.Quality
	}
	if executor == nil {
		executor = retry.New(retry.Config{Name: "Upload"})
	}

	p := &Pipeline{
		store:    store,
		executor: executor,
		verifier: verifier,
		config:   config,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Upload always returns a usable URL, remote or inline, unless f fails
// validation. Only validation failures report Success false.
func (p *Pipeline) Upload(ctx context.Context, f File) model.UploadResult {
	start := time.Now()

	contentType, err := p.validate(f)
	if err != nil {
		metrics.Uploads.WithLabelValues("none", "rejected").Inc()
		p.record(f, contentType, 0, "", err, start)
		return model.UploadResult{Success: false, Error: failure.Classify(err).UserMessage}
	}

	url, err := p.uploadRemote(ctx, f, contentType)
	if err == nil {
		err = p.verify(ctx, url)
	}
	if err == nil {
		metrics.Uploads.WithLabelValues(model.StorageRemote, "success").Inc()
		p.record(f, contentType, int64(len(f.Data)), model.StorageRemote, nil, start)
		return model.UploadResult{Success: true, URL: url, StorageMedium: model.StorageRemote}
	}

	ce := failure.Classify(err)
	log.Printf("[Upload] Remote storage failed for %q (%s), falling back to inline: %v", f.Name, ce.Category, err)

	dataURL, size := p.degrade(f.Data, contentType)
	metrics.Uploads.WithLabelValues(model.StorageInline, "success").Inc()
	p.record(f, contentType, int64(size), model.StorageInline, err, start)
	return model.UploadResult{Success: true, URL: dataURL, StorageMedium: model.StorageInline}
}

// Wait blocks until pending upload log writes finish.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.config
}

// SizeLimitMessage describes the upload size ceiling.
func (p *Pipeline) SizeLimitMessage() string {
	return fmt.Sprintf("the maximum size is %s.", humanize.IBytes(uint64(p.config.MaxBytes)))
}

func (p *Pipeline) validate(f File) (string, error) {
	size := int64(len(f.Data))
	if size == 0 {
		return "", failure.Validationf("The file is empty.")
	}
	if size > p.config.MaxBytes {
		return "", failure.Validationf("The file is %s; %s", humanize.IBytes(uint64(size)), p.SizeLimitMessage())
	}

	contentType := normalizeType(f.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = normalizeType(http.DetectContentType(f.Data))
	}
	for _, allowed := range p.config.AllowedTypes {
		if contentType == allowed {
			return contentType, nil
		}
	}
	return contentType, failure.Validationf("Files of type %q are not accepted; allowed types are %s.",
		contentType, strings.Join(p.config.AllowedTypes, ", "))
}

func (p *Pipeline) uploadRemote(ctx context.Context, f File, contentType string) (string, error) {
	if p.store == nil {
		return "", fmt.Errorf("no object store configured")
	}

	name := p.objectName(f.Name, contentType)

	// One deadline for every attempt; expiry cancels the in-flight request.
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	return retry.Run(ctx, p.executor, func(ctx context.Context) (string, error) {
		return p.store.Upload(ctx, p.config.Bucket, name, f.Data, contentType)
	})
}

func (p *Pipeline) verify(ctx context.Context, url string) error {
	if p.verifier == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.config.VerifyTimeout)
	defer cancel()
	return p.verifier.Verify(ctx, url)
}

// objectName is <unix millis>-<8 random hex>.<ext>.
func (p *Pipeline) objectName(original, contentType string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" || len(ext) > 6 {
		ext = extensionFor(contentType)
	}
	return fmt.Sprintf("%d-%s%s", p.now().UnixMilli(), uid.Short(8), ext)
}

func (p *Pipeline) record(f File, contentType string, sizeOut int64, medium string, err error, start time.Time) {
	if p.logs == nil {
		return
	}

	entry := &model.UploadLog{
		FileName:        f.Name,
		ContentType:     contentType,
		SizeIn:          int64(len(f.Data)),
		SizeOut:         sizeOut,
		StorageMedium:   medium,
		Status:          "success",
		ExecutionTimeMs: time.Since(start).Milliseconds(),
		UploadedBy:      f.UploadedBy,
		CreatedAt:       time.Now(),
	}
	if medium == "" {
		entry.Status = "failed"
	}
	if err != nil {
		entry.ErrorMessage = err.Error()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.logs.InsertUploadLog(ctx, entry); err != nil {
			log.Printf("[Upload] Failed to write upload log: %v", err)
		}
	}()
}

func normalizeType(ct string) string {
	if ct == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	if mediaType == "image/jpg" || mediaType == "image/pjpeg" {
		return "image/jpeg"
	}
	return mediaType
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ".bin"
}
