package service

import (
	"context"
	"strings"
	"time"

	"portal-rest-api/internal/failure"
	"portal-rest-api/internal/model"
	"portal-rest-api/internal/repository"
	"portal-rest-api/internal/retry"
)

// GalleryService manages gallery photos.
type GalleryService struct {
	repo  repository.GalleryRepository
	reads *retry.Executor
}

// NewGalleryService creates a new gallery service.
func NewGalleryService(repo repository.GalleryRepository, reads *retry.Executor) *GalleryService {
	if reads == nil {
		reads = retry.New(retry.Config{Name: "Backend"})
	}
	return &GalleryService{repo: repo, reads: reads}
}

// ListPhotos returns the newest photos.
func (s *GalleryService) ListPhotos(ctx context.Context, limit int) ([]model.Photo, error) {
	photos, err := retry.Run(ctx, s.reads, func(ctx context.Context) ([]model.Photo, error) {
		return s.repo.ListPhotos(ctx, clampLimit(limit, 50, 200))
	})
	if err != nil {
		return nil, failure.Classify(err)
	}
	return photos, nil
}

// AddPhoto records a photo whose image came back from the upload pipeline.
func (s *GalleryService) AddPhoto(ctx context.Context, photo *model.Photo) error {
	photo.Title = strings.TrimSpace(photo.Title)
	photo.ImageURL = strings.TrimSpace(photo.ImageURL)
	if photo.Title == "" {
		return failure.Validationf("title is required")
	}
	if !isImageURL(photo.ImageURL) {
		return failure.Validationf("image_url must be an http(s) URL or an inline image")
	}
	photo.StorageMedium = mediumOf(photo.ImageURL)

	if err := s.repo.CreatePhoto(ctx, photo); err != nil {
		return failure.Classify(err)
	}
	return nil
}

// DeletePhoto removes a photo record.
func (s *GalleryService) DeletePhoto(ctx context.Context, id int64) error {
	if err := s.repo.DeletePhoto(ctx, id); err != nil {
		return failure.Classify(err)
	}
	return nil
}

// EventService manages calendar events.
type EventService struct {
	repo  repository.GalleryRepository
	reads *retry.Executor
	now   func() time.Time
}

// NewEventService creates a new event service.
func NewEventService(repo repository.GalleryRepository, reads *retry.Executor) *EventService {
	if reads == nil {
		reads = retry.New(retry.Config{Name: "Backend"})
	}
	return &EventService{repo: repo, reads: reads, now: time.Now}
}

// ListUpcoming returns events that have not started yet, soonest first.
func (s *EventService) ListUpcoming(ctx context.Context, limit int) ([]model.Event, error) {
	from := s.now()
	events, err := retry.Run(ctx, s.reads, func(ctx context.Context) ([]model.Event, error) {
		return s.repo.ListUpcomingEvents(ctx, from, clampLimit(limit, 20, 100))
	})
	if err != nil {
		return nil, failure.Classify(err)
	}
	return events, nil
}

// CreateEvent validates and stores an event.
func (s *EventService) CreateEvent(ctx context.Context, event *model.Event) error {
	event.Title = strings.TrimSpace(event.Title)
	event.ImageURL = strings.TrimSpace(event.ImageURL)
	switch {
	case event.Title == "":
		return failure.Validationf("title is required")
	case event.StartsAt.IsZero():
		return failure.Validationf("starts_at is required")
	case event.EndsAt != nil && event.EndsAt.Before(event.StartsAt):
		return failure.Validationf("ends_at must not be before starts_at")
	case event.ImageURL != "" && !isImageURL(event.ImageURL):
		return failure.Validationf("image_url must be an http(s) URL or an inline image")
	}

	if err := s.repo.CreateEvent(ctx, event); err != nil {
		return failure.Classify(err)
	}
	return nil
}

// DeleteEvent removes an event.
func (s *EventService) DeleteEvent(ctx context.Context, id int64) error {
	if err := s.repo.DeleteEvent(ctx, id); err != nil {
		return failure.Classify(err)
	}
	return nil
}

func mediumOf(url string) string {
	if strings.HasPrefix(url, "data:") {
		return model.StorageInline
	}
	return model.StorageRemote
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
