package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"portal-rest-api/internal/cache"
	"portal-rest-api/internal/failure"
	"portal-rest-api/internal/model"
	"portal-rest-api/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePostRepo is an in-memory PostRepository that counts remote calls and
// can be told to fail.
type fakePostRepo struct {
	mu     sync.Mutex
	posts  map[int64]*model.Post
	nextID int64
	calls  map[string]int
	fail   error
}

func newFakePostRepo(posts ...model.Post) *fakePostRepo {
	r := &fakePostRepo{posts: make(map[int64]*model.Post), calls: make(map[string]int)}
	for _, p := range posts {
		p := p
		r.nextID++
		p.ID = r.nextID
		r.posts[p.ID] = &p
	}
	return r
}

func (r *fakePostRepo) call(name string) error {
	r.calls[name]++
	return r.fail
}

func (r *fakePostRepo) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[name]
}

func (r *fakePostRepo) setFail(err error) {
	r.mu.Lock()
	r.fail = err
	r.mu.Unlock()
}

func (r *fakePostRepo) published() []model.Post {
	var out []model.Post
	for id := int64(1); id <= r.nextID; id++ {
		if p, ok := r.posts[id]; ok && p.Published {
			out = append(out, *p)
		}
	}
	return out
}

func (r *fakePostRepo) ListPublished(ctx context.Context, limit int) ([]model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("ListPublished"); err != nil {
		return nil, err
	}
	return r.published(), nil
}

func (r *fakePostRepo) ListPopular(ctx context.Context, limit int) ([]model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("ListPopular"); err != nil {
		return nil, err
	}
	return r.published(), nil
}

func (r *fakePostRepo) ListRelatedCandidates(ctx context.Context, category string, excludeID int64, limit int) ([]model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("ListRelatedCandidates"); err != nil {
		return nil, err
	}
	var out []model.Post
	for _, p := range r.published() {
		if p.ID != excludeID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePostRepo) ListAllPosts(ctx context.Context, limit, offset int) ([]model.Post, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("ListAllPosts"); err != nil {
		return nil, 0, err
	}
	var out []model.Post
	for _, p := range r.posts {
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (r *fakePostRepo) GetPostBySlug(ctx context.Context, slug string) (*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("GetPostBySlug"); err != nil {
		return nil, err
	}
	for _, p := range r.posts {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("post %q: %w", slug, failure.ErrNotFound)
}

func (r *fakePostRepo) GetPostByID(ctx context.Context, id int64) (*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("GetPostByID"); err != nil {
		return nil, err
	}
	p, ok := r.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %d: %w", id, failure.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (r *fakePostRepo) CreatePost(ctx context.Context, in model.PostInput) (*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("CreatePost"); err != nil {
		return nil, err
	}
	r.nextID++
	p := &model.Post{ID: r.nextID, Slug: in.Slug, Title: in.Title, Excerpt: in.Excerpt, Content: in.Content,
		Category: in.Category, Tags: in.Tags, Published: in.Published, CoverImage: in.CoverImage}
	r.posts[p.ID] = p
	cp := *p
	return &cp, nil
}

func (r *fakePostRepo) UpdatePost(ctx context.Context, id int64, in model.PostInput) (*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("UpdatePost"); err != nil {
		return nil, err
	}
	p, ok := r.posts[id]
	if !ok {
		return nil, failure.ErrNotFound
	}
	p.Slug, p.Title, p.Excerpt, p.Content = in.Slug, in.Title, in.Excerpt, in.Content
	p.Category, p.Tags, p.Published, p.CoverImage = in.Category, in.Tags, in.Published, in.CoverImage
	cp := *p
	return &cp, nil
}

func (r *fakePostRepo) SetPostCover(ctx context.Context, id int64, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("SetPostCover"); err != nil {
		return err
	}
	p, ok := r.posts[id]
	if !ok {
		return failure.ErrNotFound
	}
	p.CoverImage = url
	return nil
}

func (r *fakePostRepo) DeletePost(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("DeletePost"); err != nil {
		return err
	}
	if _, ok := r.posts[id]; !ok {
		return failure.ErrNotFound
	}
	delete(r.posts, id)
	return nil
}

func (r *fakePostRepo) IncrementPostViews(ctx context.Context, slug string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("IncrementPostViews"); err != nil {
		return err
	}
	for _, p := range r.posts {
		if p.Slug == slug {
			p.Views++
			return nil
		}
	}
	return failure.ErrNotFound
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestPostService(repo *fakePostRepo) (*PostService, *testClock, *[]time.Duration) {
	clock := &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	var delays []time.Duration
	reads := retry.New(retry.Config{
		Name: "Backend",
		Sleep: func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
	})
	caches := cache.NewPostCaches(cache.DefaultPostTTLs(), clock.Now)
	return NewPostService(repo, caches, reads, DefaultPostConfig()), clock, &delays
}

func examplePost() model.Post {
	return model.Post{
		Slug:      "example-post",
		Title:     "Harbour festival returns",
		Content:   "<p>The harbour festival returns this summer with music and boats.</p>",
		Category:  "events",
		Tags:      []string{"harbour", "summer"},
		Published: true,
	}
}

func TestPostService_DetailIsServedFromCache(t *testing.T) {
	repo := newFakePostRepo(examplePost())
	svc, clock, _ := newTestPostService(repo)
	ctx := context.Background()

	first, err := svc.GetBySlug(ctx, "example-post")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, repo.count("GetPostBySlug"))

	clock.Advance(5 * time.Minute)
	second, err := svc.GetBySlug(ctx, "example-post")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, repo.count("GetPostBySlug"))
}

func TestPostService_ExpiredDetailFailureServesPrevious(t *testing.T) {
	repo := newFakePostRepo(examplePost())
	svc, clock, delays := newTestPostService(repo)
	ctx := context.Background()

	first, err := svc.GetBySlug(ctx, "example-post")
	require.NoError(t, err)

	clock.Advance(11 * time.Minute)
	repo.setFail(errors.New("503 Service Unavailable"))

	second, err := svc.GetBySlug(ctx, "example-post")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1+retry.DefaultMaxAttempts, repo.count("GetPostBySlug"))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, *delays)
}

func TestPostService_AuthorizationFailureIsNotRetried(t *testing.T) {
	repo := newFakePostRepo(examplePost())
	svc, _, delays := newTestPostService(repo)
	repo.setFail(errors.New("JWT expired"))

	_, err := svc.ListPublished(context.Background())
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.CategoryAuthorization))
	assert.Equal(t, 1, repo.count("ListPublished"))
	assert.Empty(t, *delays)
}

func TestPostService_MissingSlugIsEmpty(t *testing.T) {
	repo := newFakePostRepo(examplePost())
	svc, _, _ := newTestPostService(repo)

	post, err := svc.GetBySlug(context.Background(), "no-such-post")
	require.NoError(t, err)
	assert.Nil(t, post)
	assert.Equal(t, 1, repo.count("GetPostBySlug"))
}

func TestPostService_DraftIsHidden(t *testing.T) {
	draft := examplePost()
	draft.Published = false
	svc, _, _ := newTestPostService(newFakePostRepo(draft))

	post, err := svc.GetBySlug(context.Background(), "example-post")
	require.NoError(t, err)
	assert.Nil(t, post)
}

func TestPostService_WritesInvalidate(t *testing.T) {
	repo := newFakePostRepo(examplePost())
	svc, _, _ := newTestPostService(repo)
	ctx := context.Background()

	list, err := svc.ListPublished(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	_, err = svc.GetBySlug(ctx, "example-post")
	require.NoError(t, err)

	created, err := svc.Create(ctx, model.PostInput{
		Slug:      "Second-Post",
		Title:     "Second post",
		Content:   "<p>More news from the harbour.</p>",
		Published: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "second-post", created.Slug)
	assert.Equal(t, "More news from the harbour.", created.Excerpt)

	list, err = svc.ListPublished(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 2, repo.count("ListPublished"))

	updated, err := svc.SetCover(ctx, 1, "data:image/jpeg;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, "data:image/jpeg;base64,AAAA", updated.CoverImage)

	post, err := svc.GetBySlug(ctx, "example-post")
	require.NoError(t, err)
	assert.Equal(t, "data:image/jpeg;base64,AAAA", post.CoverImage)
	assert.Equal(t, 2, repo.count("GetPostBySlug"))

	require.NoError(t, svc.Delete(ctx, 1))
	post, err = svc.GetBySlug(ctx, "example-post")
	require.NoError(t, err)
	assert.Nil(t, post)
}

func TestPostService_UpdateInvalidatesOldSlug(t *testing.T) {
	repo := newFakePostRepo(examplePost())
	svc, _, _ := newTestPostService(repo)
	ctx := context.Background()

	_, err := svc.GetBySlug(ctx, "example-post")
	require.NoError(t, err)

	in := model.PostInput{Slug: "renamed-post", Title: "Renamed", Content: "<p>x</p>", Published: true}
	_, err = svc.Update(ctx, 1, in)
	require.NoError(t, err)

	_, ok := svc.Caches().Detail.Peek("example-post")
	assert.False(t, ok)

	post, err := svc.GetBySlug(ctx, "renamed-post")
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, "Renamed", post.Title)
}

func TestPostService_WriteValidation(t *testing.T) {
	repo := newFakePostRepo()
	svc, _, _ := newTestPostService(repo)

	_, err := svc.Create(context.Background(), model.PostInput{Slug: "bad slug!", Title: "x"})
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.CategoryValidation))

	_, err = svc.Create(context.Background(), model.PostInput{Slug: "ok"})
	assert.True(t, failure.Is(err, failure.CategoryValidation))

	_, err = svc.SetCover(context.Background(), 1, "javascript:alert(1)")
	assert.True(t, failure.Is(err, failure.CategoryValidation))
	assert.Equal(t, 0, repo.count("CreatePost"))
	assert.Equal(t, 0, repo.count("SetPostCover"))
}

func TestPostService_WritesAreNotRetried(t *testing.T) {
	repo := newFakePostRepo()
	svc, _, delays := newTestPostService(repo)
	repo.setFail(errors.New("connection reset by peer"))

	_, err := svc.Create(context.Background(), model.PostInput{Slug: "a", Title: "A"})
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.CategoryTransient))
	assert.Equal(t, 1, repo.count("CreatePost"))
	assert.Empty(t, *delays)
}

func TestPostService_Related(t *testing.T) {
	base := examplePost()
	sameCategory := model.Post{Slug: "boat-parade", Title: "Boat parade", Category: "events", Published: true}
	sharedTag := model.Post{Slug: "summer-hours", Title: "Library summer hours", Category: "services", Tags: []string{"summer"}, Published: true}
	keyword := model.Post{Slug: "harbour-works", Title: "Harbour repairs", Category: "infrastructure", Published: true}
	unrelated := model.Post{Slug: "council-minutes", Title: "Council minutes", Category: "government", Published: true}

	repo := newFakePostRepo(base, sameCategory, sharedTag, keyword, unrelated)
	svc, _, _ := newTestPostService(repo)
	ctx := context.Background()

	related, err := svc.Related(ctx, "example-post")
	require.NoError(t, err)

	slugs := make([]string, len(related))
	for i, p := range related {
		slugs[i] = p.Slug
	}
	assert.Equal(t, []string{"boat-parade", "summer-hours", "harbour-works"}, slugs)

	again, err := svc.Related(ctx, "example-post")
	require.NoError(t, err)
	assert.Equal(t, related, again)
	assert.Equal(t, 1, repo.count("ListRelatedCandidates"))
}

func TestPostService_RelatedOfMissingPostIsEmpty(t *testing.T) {
	svc, _, _ := newTestPostService(newFakePostRepo())

	related, err := svc.Related(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, related)
	assert.NotNil(t, related)
}

func TestPostService_RecordView(t *testing.T) {
	repo := newFakePostRepo(examplePost())
	svc, _, _ := newTestPostService(repo)

	require.NoError(t, svc.RecordView(context.Background(), "example-post"))
	err := svc.RecordView(context.Background(), "missing")
	assert.True(t, failure.Is(err, failure.CategoryNotFound))
}
