package repository

import (
	"context"
	"time"

	"portal-rest-api/internal/model"
)

// PostRepository defines article data access methods.
type PostRepository interface {
	// ListPublished returns published posts, newest first.
	ListPublished(ctx context.Context, limit int) ([]model.Post, error)

	// ListPopular returns published posts ordered by view count.
	ListPopular(ctx context.Context, limit int) ([]model.Post, error)

	// ListRelatedCandidates returns published posts other than excludeID,
	// posts in category first.
	ListRelatedCandidates(ctx context.Context, category string, excludeID int64, limit int) ([]model.Post, error)

	// ListAllPosts returns drafts and published posts for the admin console.
	ListAllPosts(ctx context.Context, limit, offset int) ([]model.Post, int64, error)

	// GetPostBySlug returns failure.ErrNotFound when no post has the slug.
	GetPostBySlug(ctx context.Context, slug string) (*model.Post, error)

	// GetPostByID returns failure.ErrNotFound when no post has the id.
	GetPostByID(ctx context.Context, id int64) (*model.Post, error)

	CreatePost(ctx context.Context, in model.PostInput) (*model.Post, error)
	UpdatePost(ctx context.Context, id int64, in model.PostInput) (*model.Post, error)
	SetPostCover(ctx context.Context, id int64, url string) error
	DeletePost(ctx context.Context, id int64) error
	IncrementPostViews(ctx context.Context, slug string) error
}

// GalleryRepository defines photo and event data access methods.
type GalleryRepository interface {
	ListPhotos(ctx context.Context, limit int) ([]model.Photo, error)
	CreatePhoto(ctx context.Context, photo *model.Photo) error
	DeletePhoto(ctx context.Context, id int64) error

	ListUpcomingEvents(ctx context.Context, from time.Time, limit int) ([]model.Event, error)
	CreateEvent(ctx context.Context, event *model.Event) error
	DeleteEvent(ctx context.Context, id int64) error
}

// FeedbackRepository defines citizen-feedback data access methods.
type FeedbackRepository interface {
	CreateFeedback(ctx context.Context, fb *model.Feedback) error

	// BatchCreateFeedback inserts several submissions in one transaction.
	BatchCreateFeedback(ctx context.Context, items []model.Feedback) error

	// ListFeedback filters by status when status is not empty.
	ListFeedback(ctx context.Context, status string, limit, offset int) ([]model.Feedback, int64, error)

	UpdateFeedbackStatus(ctx context.Context, id int64, status string) error

	// DeleteResolvedFeedback removes resolved submissions created before cutoff.
	DeleteResolvedFeedback(ctx context.Context, cutoff time.Time) (int64, error)
}

// ContentRepository is the full records backend.
type ContentRepository interface {
	PostRepository
	GalleryRepository
	FeedbackRepository

	// GetStats returns statistics about the backend.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Ping checks backend reachability.
	Ping(ctx context.Context) error

	// Close closes the repository connection.
	Close() error
}

// UploadLogRepository stores the upload audit trail.
type UploadLogRepository interface {
	InsertUploadLog(ctx context.Context, log *model.UploadLog) error
	GetUploadLogs(ctx context.Context, limit, offset int) ([]model.UploadLog, int64, error)
	Close() error
}
