package model

import "time"

// Post is a published or draft article.
type Post struct {
	ID          int64      `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Excerpt     string     `json:"excerpt"`
	Content     string     `json:"content"`
	CoverImage  string     `json:"cover_image,omitempty"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags"`
	Published   bool       `json:"published"`
	Views       int64      `json:"views"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// PostInput is the writable subset of a post.
type PostInput struct {
	Slug       string   `json:"slug"`
	Title      string   `json:"title"`
	Excerpt    string   `json:"excerpt"`
	Content    string   `json:"content"`
	CoverImage string   `json:"cover_image"`
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
	Published  bool     `json:"published"`
}
