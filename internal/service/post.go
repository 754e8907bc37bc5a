package service

import (
	"context"
	"log"
	"regexp"
	"sort"
	"strings"

	"portal-rest-api/internal/cache"
	"portal-rest-api/internal/failure"
	"portal-rest-api/internal/model"
	"portal-rest-api/internal/repository"
	"portal-rest-api/internal/retry"
)

// PostConfig holds list sizes for the public post views.
type PostConfig struct {
	ListLimit         int
	PopularLimit      int
	RelatedLimit      int
	RelatedCandidates int
}

// DefaultPostConfig returns the default list sizes.
func DefaultPostConfig() PostConfig {
	return PostConfig{
		ListLimit:         20,
		PopularLimit:      5,
		RelatedLimit:      4,
		RelatedCandidates: 30,
	}
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// PostService serves posts through the read-through caches. Reads go through
// the retry executor; writes run once and invalidate the affected entries.
type PostService struct {
	repo   repository.PostRepository
	caches *cache.PostCaches
	reads  *retry.Executor
	config PostConfig
}

// NewPostService creates a new post service.
func NewPostService(repo repository.PostRepository, caches *cache.PostCaches, reads *retry.Executor, config PostConfig) *PostService {
	def := DefaultPostConfig()
	if config.ListLimit <= 0 {
		config.ListLimit = def.ListLimit
	}
	if config.PopularLimit <= 0 {
		config.PopularLimit = def.PopularLimit
	}
	if config.RelatedLimit <= 0 {
		config.RelatedLimit = def.RelatedLimit
	}
	if config.RelatedCandidates <= 0 {
		config.RelatedCandidates = def.RelatedCandidates
	}
	if reads == nil {
		reads = retry.New(retry.Config{Name: "Backend"})
	}
	return &PostService{repo: repo, caches: caches, reads: reads, config: config}
}

// Caches returns the caches the service reads through.
func (s *PostService) Caches() *cache.PostCaches {
	return s.caches
}

// ListPublished returns the newest published posts.
func (s *PostService) ListPublished(ctx context.Context) ([]model.Post, error) {
	posts, err := s.caches.Published.Get(ctx, cache.ListKey, func(ctx context.Context) ([]model.Post, error) {
		return retry.Run(ctx, s.reads, func(ctx context.Context) ([]model.Post, error) {
			return s.repo.ListPublished(ctx, s.config.ListLimit)
		})
	})
	return nonNil(posts), err
}

// ListPopular returns the most viewed published posts.
func (s *PostService) ListPopular(ctx context.Context) ([]model.Post, error) {
	posts, err := s.caches.Popular.Get(ctx, cache.ListKey, func(ctx context.Context) ([]model.Post, error) {
		return retry.Run(ctx, s.reads, func(ctx context.Context) ([]model.Post, error) {
			return s.repo.ListPopular(ctx, s.config.PopularLimit)
		})
	})
	return nonNil(posts), err
}

// GetBySlug returns the published post with slug, or nil when there is none.
func (s *PostService) GetBySlug(ctx context.Context, slug string) (*model.Post, error) {
	return s.caches.Detail.Get(ctx, slug, func(ctx context.Context) (*model.Post, error) {
		return retry.Run(ctx, s.reads, func(ctx context.Context) (*model.Post, error) {
			post, err := s.repo.GetPostBySlug(ctx, slug)
			if err != nil {
				return nil, err
			}
			if !post.Published {
				return nil, failure.ErrNotFound
			}
			return post, nil
		})
	})
}

// Related returns published posts ranked by shared category, tags and
// keywords with the post identified by slug.
func (s *PostService) Related(ctx context.Context, slug string) ([]model.Post, error) {
	posts, err := s.caches.Related.Get(ctx, slug, func(ctx context.Context) ([]model.Post, error) {
		post, err := s.GetBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		if post == nil {
			return nil, failure.ErrNotFound
		}

		candidates, err := retry.Run(ctx, s.reads, func(ctx context.Context) ([]model.Post, error) {
			return s.repo.ListRelatedCandidates(ctx, post.Category, post.ID, s.config.RelatedCandidates)
		})
		if err != nil {
			return nil, err
		}
		return rankRelated(post, candidates, s.config.RelatedLimit), nil
	})
	return nonNil(posts), err
}

// ListAll returns drafts and published posts for the admin console.
func (s *PostService) ListAll(ctx context.Context, limit, offset int) ([]model.Post, int64, error) {
	type page struct {
		posts []model.Post
		total int64
	}
	p, err := retry.Run(ctx, s.reads, func(ctx context.Context) (page, error) {
		posts, total, err := s.repo.ListAllPosts(ctx, limit, offset)
		return page{posts, total}, err
	})
	if err != nil {
		return nil, 0, failure.Classify(err)
	}
	return p.posts, p.total, nil
}

// GetByID returns a post regardless of its published state.
func (s *PostService) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	post, err := retry.Run(ctx, s.reads, func(ctx context.Context) (*model.Post, error) {
		return s.repo.GetPostByID(ctx, id)
	})
	if err != nil {
		return nil, failure.Classify(err)
	}
	return post, nil
}

// Create validates and inserts a post.
func (s *PostService) Create(ctx context.Context, in model.PostInput) (*model.Post, error) {
	in = normalizePostInput(in)
	if err := validatePostInput(in); err != nil {
		return nil, err
	}

	post, err := s.repo.CreatePost(ctx, in)
	if err != nil {
		return nil, failure.Classify(err)
	}
	s.caches.InvalidatePost(post.Slug)
	log.Printf("[PostService] Created post %d (%s)", post.ID, post.Slug)
	return post, nil
}

// Update replaces the writable fields of a post.
func (s *PostService) Update(ctx context.Context, id int64, in model.PostInput) (*model.Post, error) {
	in = normalizePostInput(in)
	if err := validatePostInput(in); err != nil {
		return nil, err
	}

	old, err := s.repo.GetPostByID(ctx, id)
	if err != nil {
		return nil, failure.Classify(err)
	}

	post, err := s.repo.UpdatePost(ctx, id, in)
	if err != nil {
		return nil, failure.Classify(err)
	}
	s.caches.InvalidatePost(old.Slug, post.Slug)
	return post, nil
}

// SetCover stores an upload result URL as the post's cover image.
func (s *PostService) SetCover(ctx context.Context, id int64, url string) (*model.Post, error) {
	url = strings.TrimSpace(url)
	if !isImageURL(url) {
		return nil, failure.Validationf("cover must be an http(s) URL or an inline image")
	}

	if err := s.repo.SetPostCover(ctx, id, url); err != nil {
		return nil, failure.Classify(err)
	}
	post, err := s.repo.GetPostByID(ctx, id)
	if err != nil {
		return nil, failure.Classify(err)
	}
	s.caches.InvalidatePost(post.Slug)
	return post, nil
}

// Delete removes a post.
func (s *PostService) Delete(ctx context.Context, id int64) error {
	old, err := s.repo.GetPostByID(ctx, id)
	if err != nil {
		return failure.Classify(err)
	}
	if err := s.repo.DeletePost(ctx, id); err != nil {
		return failure.Classify(err)
	}
	s.caches.InvalidatePost(old.Slug)
	log.Printf("[PostService] Deleted post %d (%s)", id, old.Slug)
	return nil
}

// RecordView bumps the view counter. Cached lists are left alone; the
// popular list catches up when its entry expires.
func (s *PostService) RecordView(ctx context.Context, slug string) error {
	if err := s.repo.IncrementPostViews(ctx, slug); err != nil {
		return failure.Classify(err)
	}
	return nil
}

func normalizePostInput(in model.PostInput) model.PostInput {
	in.Slug = strings.ToLower(strings.TrimSpace(in.Slug))
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.CoverImage = strings.TrimSpace(in.CoverImage)
	if strings.TrimSpace(in.Excerpt) == "" {
		in.Excerpt = Excerpt(in.Content)
	}
	return in
}

func validatePostInput(in model.PostInput) error {
	switch {
	case in.Title == "":
		return failure.Validationf("title is required")
	case len(in.Title) > 200:
		return failure.Validationf("title must be at most 200 characters")
	case !slugPattern.MatchString(in.Slug):
		return failure.Validationf("slug must contain only lowercase letters, digits and single hyphens")
	case in.CoverImage != "" && !isImageURL(in.CoverImage):
		return failure.Validationf("cover must be an http(s) URL or an inline image")
	}
	return nil
}

func isImageURL(u string) bool {
	return strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "data:image/")
}

func nonNil(posts []model.Post) []model.Post {
	if posts == nil {
		return []model.Post{}
	}
	return posts
}

type scoredPost struct {
	post  model.Post
	score int
}

// rankRelated scores candidates against post: 3 for the same category, 2 per
// shared tag, 1 per shared keyword (capped at 5). Zero scores are dropped.
func rankRelated(post *model.Post, candidates []model.Post, limit int) []model.Post {
	tags := make(map[string]bool, len(post.Tags))
	for _, t := range post.Tags {
		tags[t] = true
	}
	keywords := Keywords(post.Title + " " + PlainText(post.Content))

	scored := make([]scoredPost, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == post.ID {
			continue
		}
		score := 0
		if c.Category != "" && c.Category == post.Category {
			score += 3
		}
		for _, t := range c.Tags {
			if tags[t] {
				score += 2
			}
		}
		shared := 0
		for w := range Keywords(c.Title + " " + PlainText(c.Content)) {
			if keywords[w] {
				shared++
			}
		}
		if shared > 5 {
			shared = 5
		}
		score += shared
		if score > 0 {
			scored = append(scored, scoredPost{post: c, score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	out := make([]model.Post, len(scored))
	for i, sp := range scored {
		out[i] = sp.post
	}
	return out
}
