package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"portal-rest-api/internal/failure"
	"portal-rest-api/internal/model"
)

const postColumns = `id, slug, title, excerpt, content, cover_image, category, tags,
	published, views, published_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*model.Post, error) {
	var (
		p           model.Post
		tags        string
		publishedAt sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Excerpt, &p.Content, &p.CoverImage,
		&p.Category, &tags, &p.Published, &p.Views, &publishedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Tags = splitTags(tags)
	if publishedAt.Valid {
		t := publishedAt.Time
		p.PublishedAt = &t
	}
	return &p, nil
}

func (s *SQLStore) queryPosts(ctx context.Context, query string, args ...any) ([]model.Post, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

// ListPublished returns published posts, newest first.
func (s *SQLStore) ListPublished(ctx context.Context, limit int) ([]model.Post, error) {
	return s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts
		WHERE published = ? ORDER BY published_at DESC, id DESC LIMIT ?`, true, limit)
}

// ListPopular returns published posts ordered by view count.
func (s *SQLStore) ListPopular(ctx context.Context, limit int) ([]model.Post, error) {
	return s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts
		WHERE published = ? ORDER BY views DESC, published_at DESC LIMIT ?`, true, limit)
}

// ListRelatedCandidates returns published posts other than excludeID, posts
// sharing category first.
func (s *SQLStore) ListRelatedCandidates(ctx context.Context, category string, excludeID int64, limit int) ([]model.Post, error) {
	return s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts
		WHERE published = ? AND id <> ?
		ORDER BY CASE WHEN category = ? THEN 0 ELSE 1 END, published_at DESC LIMIT ?`,
		true, excludeID, category, limit)
}

// ListAllPosts returns drafts and published posts for the admin console.
func (s *SQLStore) ListAllPosts(ctx context.Context, limit, offset int) ([]model.Post, int64, error) {
	posts, err := s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts
		ORDER BY updated_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return posts, total, nil
}

// GetPostBySlug retrieves a post by slug.
func (s *SQLStore) GetPostBySlug(ctx context.Context, slug string) (*model.Post, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+postColumns+` FROM posts WHERE slug = ?`), slug)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %q: %w", slug, failure.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return p, nil
}

// GetPostByID retrieves a post by id.
func (s *SQLStore) GetPostByID(ctx context.Context, id int64) (*model.Post, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+postColumns+` FROM posts WHERE id = ?`), id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %d: %w", id, failure.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return p, nil
}

// CreatePost inserts a post. PublishedAt is set when it is created published.
func (s *SQLStore) CreatePost(ctx context.Context, in model.PostInput) (*model.Post, error) {
	now := time.Now().UTC()
	var publishedAt sql.NullTime
	if in.Published {
		publishedAt = sql.NullTime{Time: now, Valid: true}
	}

	id, err := s.insert(ctx, s.db, `INSERT INTO posts
		(slug, title, excerpt, content, cover_image, category, tags, published, views, published_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		in.Slug, in.Title, in.Excerpt, in.Content, in.CoverImage, in.Category, joinTags(in.Tags),
		in.Published, publishedAt, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	return s.GetPostByID(ctx, id)
}

// UpdatePost replaces the writable fields of a post. PublishedAt is set the
// first time the post is published and kept afterwards.
func (s *SQLStore) UpdatePost(ctx context.Context, id int64, in model.PostInput) (*model.Post, error) {
	current, err := s.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var publishedAt sql.NullTime
	switch {
	case current.PublishedAt != nil:
		publishedAt = sql.NullTime{Time: *current.PublishedAt, Valid: true}
	case in.Published:
		publishedAt = sql.NullTime{Time: now, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`UPDATE posts SET
		slug = ?, title = ?, excerpt = ?, content = ?, cover_image = ?, category = ?, tags = ?,
		published = ?, published_at = ?, updated_at = ?
		WHERE id = ?`),
		in.Slug, in.Title, in.Excerpt, in.Content, in.CoverImage, in.Category, joinTags(in.Tags),
		in.Published, publishedAt, now, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	return s.GetPostByID(ctx, id)
}

// SetPostCover stores an image reference (remote URL or inline data URL).
func (s *SQLStore) SetPostCover(ctx context.Context, id int64, url string) error {
	return s.execAffecting(ctx, fmt.Sprintf("post %d", id),
		`UPDATE posts SET cover_image = ?, updated_at = ? WHERE id = ?`, url, time.Now().UTC(), id)
}

// DeletePost removes a post.
func (s *SQLStore) DeletePost(ctx context.Context, id int64) error {
	return s.execAffecting(ctx, fmt.Sprintf("post %d", id), `DELETE FROM posts WHERE id = ?`, id)
}

// IncrementPostViews bumps the view counter of a published post.
func (s *SQLStore) IncrementPostViews(ctx context.Context, slug string) error {
	return s.execAffecting(ctx, fmt.Sprintf("post %q", slug),
		`UPDATE posts SET views = views + 1 WHERE slug = ? AND published = ?`, slug, true)
}

// execAffecting runs a statement that must touch at least one row.
func (s *SQLStore) execAffecting(ctx context.Context, what, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, failure.ErrNotFound)
	}
	return nil
}

func joinTags(tags []string) string {
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(strings.ToLower(t))
		if t != "" && !strings.Contains(t, ",") {
			clean = append(clean, t)
		}
	}
	return strings.Join(clean, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
