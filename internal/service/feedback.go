package service

import (
	"context"
	"log"
	"net/mail"
	"strings"

	"portal-rest-api/internal/cache"
	"portal-rest-api/internal/failure"
	"portal-rest-api/internal/model"
	"portal-rest-api/internal/repository"
	"portal-rest-api/internal/retry"
)

// FeedbackBuffer is the write-behind buffer feedback is queued in.
type FeedbackBuffer interface {
	Add(ctx context.Context, fb model.Feedback) error
	Count(ctx context.Context) (int64, error)
}

// FeedbackCategories lists the accepted submission categories.
var FeedbackCategories = []string{"general", "infrastructure", "services", "events", "website"}

// FeedbackService handles citizen feedback.
type FeedbackService struct {
	repo   repository.FeedbackRepository
	buffer FeedbackBuffer
	reads  *retry.Executor
}

// NewFeedbackService creates a feedback service writing straight to repo.
func NewFeedbackService(repo repository.FeedbackRepository, reads *retry.Executor) *FeedbackService {
	if reads == nil {
		reads = retry.New(retry.Config{Name: "Backend"})
	}
	return &FeedbackService{repo: repo, reads: reads}
}

// SetBuffer routes submissions through a write-behind buffer.
func (s *FeedbackService) SetBuffer(buffer FeedbackBuffer) {
	s.buffer = buffer
}

// Submit validates and stores a submission. With a buffer configured the
// submission is queued and flushed in batches; if queueing fails it is
// written directly.
func (s *FeedbackService) Submit(ctx context.Context, fb model.Feedback) (*model.Feedback, error) {
	fb.Name = strings.TrimSpace(fb.Name)
	fb.Email = strings.TrimSpace(fb.Email)
	fb.Message = strings.TrimSpace(fb.Message)
	fb.Category = strings.ToLower(strings.TrimSpace(fb.Category))
	if fb.Category == "" {
		fb.Category = "general"
	}
	fb.Status = model.FeedbackNew
	fb.ID = 0

	if err := validateFeedback(fb); err != nil {
		return nil, err
	}

	if s.buffer != nil {
		err := s.buffer.Add(ctx, fb)
		if err == nil {
			return &fb, nil
		}
		log.Printf("[FeedbackService] Buffer unavailable, writing directly: %v", err)
	}

	if err := s.repo.CreateFeedback(ctx, &fb); err != nil {
		return nil, failure.Classify(err)
	}
	return &fb, nil
}

// List returns submissions for the admin console.
func (s *FeedbackService) List(ctx context.Context, status string, limit, offset int) ([]model.Feedback, int64, error) {
	if status != "" && !validStatus(status) {
		return nil, 0, failure.Validationf("unknown status %q", status)
	}
	type page struct {
		items []model.Feedback
		total int64
	}
	p, err := retry.Run(ctx, s.reads, func(ctx context.Context) (page, error) {
		items, total, err := s.repo.ListFeedback(ctx, status, limit, offset)
		return page{items, total}, err
	})
	if err != nil {
		return nil, 0, failure.Classify(err)
	}
	return p.items, p.total, nil
}

// UpdateStatus moves a submission through review.
func (s *FeedbackService) UpdateStatus(ctx context.Context, id int64, status string) error {
	if !validStatus(status) {
		return failure.Validationf("status must be one of %s, %s, %s", model.FeedbackNew, model.FeedbackReviewed, model.FeedbackResolved)
	}
	if err := s.repo.UpdateFeedbackStatus(ctx, id, status); err != nil {
		return failure.Classify(err)
	}
	return nil
}

// Pending returns the number of buffered submissions, or -1 without a buffer.
func (s *FeedbackService) Pending(ctx context.Context) (int64, error) {
	if s.buffer == nil {
		return -1, nil
	}
	return s.buffer.Count(ctx)
}

// CreateFeedbackFlushFunc creates a flush function for the Redis buffer.
func CreateFeedbackFlushFunc(repo repository.FeedbackRepository) cache.FlushFunc {
	return func(ctx context.Context, items []*model.BufferedFeedback) error {
		batch := make([]model.Feedback, len(items))
		for i, item := range items {
			batch[i] = item.Feedback
			batch[i].CreatedAt = item.ReceivedAt
		}
		return repo.BatchCreateFeedback(ctx, batch)
	}
}

func validateFeedback(fb model.Feedback) error {
	switch {
	case fb.Name == "":
		return failure.Validationf("name is required")
	case len(fb.Name) > 100:
		return failure.Validationf("name must be at most 100 characters")
	case fb.Message == "":
		return failure.Validationf("message is required")
	case len(fb.Message) > 5000:
		return failure.Validationf("message must be at most 5000 characters")
	}
	if fb.Email != "" {
		if _, err := mail.ParseAddress(fb.Email); err != nil {
			return failure.Validationf("email is not a valid address")
		}
	}
	for _, c := range FeedbackCategories {
		if fb.Category == c {
			return nil
		}
	}
	return failure.Validationf("category must be one of %s", strings.Join(FeedbackCategories, ", "))
}

func validStatus(status string) bool {
	switch status {
	case model.FeedbackNew, model.FeedbackReviewed, model.FeedbackResolved:
		return true
	}
	return false
}
