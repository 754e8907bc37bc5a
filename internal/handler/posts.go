package handler

import (
	"net/http"

	"portal-rest-api/internal/model"
	"portal-rest-api/internal/service"
	"portal-rest-api/pkg/apierror"
	"portal-rest-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// PostHandler serves posts to the site and the admin console.
type PostHandler struct {
	posts   *service.PostService
	maxBody int64
}

// NewPostHandler creates a new post handler. maxBody bounds write bodies,
// which may carry an inline cover image; see ImageBodyLimit.
func NewPostHandler(posts *service.PostService, maxBody int64) *PostHandler {
	return &PostHandler{posts: posts, maxBody: maxBody}
}

// List handles GET /api/v1/posts
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ListPublished(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, posts)
}

// Popular handles GET /api/v1/posts/popular
func (h *PostHandler) Popular(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ListPopular(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, posts)
}

// Get handles GET /api/v1/posts/{slug}
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		response.Error(w, err)
		return
	}
	if post == nil {
		response.Error(w, apierror.NotFound("Post not found"))
		return
	}
	response.OK(w, post)
}

// Related handles GET /api/v1/posts/{slug}/related
func (h *PostHandler) Related(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.Related(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, posts)
}

// RecordView handles POST /api/v1/posts/{slug}/view
func (h *PostHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	if err := h.posts.RecordView(r.Context(), chi.URLParam(r, "slug")); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// AdminList handles GET /api/v1/admin/posts
func (h *PostHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := pagination(r, 20, 100)
	posts, total, err := h.posts.ListAll(r.Context(), limit, offset)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSONWithMeta(w, http.StatusOK, posts, page, limit, total)
}

// AdminGet handles GET /api/v1/admin/posts/{id}
func (h *PostHandler) AdminGet(w http.ResponseWriter, r *http.Request) {
	id, apiErr := pathID(r)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}
	post, err := h.posts.GetByID(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, post)
}

// Create handles POST /api/v1/admin/posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.PostInput
	if apiErr := decodeJSONLimit(w, r, &in, h.maxBody); apiErr != nil {
		response.Error(w, apiErr)
		return
	}
	post, err := h.posts.Create(r.Context(), in)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, post)
}

// Update handles PUT /api/v1/admin/posts/{id}
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, apiErr := pathID(r)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}
	var in model.PostInput
	if apiErr := decodeJSONLimit(w, r, &in, h.maxBody); apiErr != nil {
		response.Error(w, apiErr)
		return
	}
	post, err := h.posts.Update(r.Context(), id, in)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, post)
}

// CoverRequest carries the URL returned by an upload.
type CoverRequest struct {
	URL string `json:"url"`
}

// SetCover handles PUT /api/v1/admin/posts/{id}/cover
func (h *PostHandler) SetCover(w http.ResponseWriter, r *http.Request) {
	id, apiErr := pathID(r)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}
	var req CoverRequest
	if apiErr := decodeJSONLimit(w, r, &req, h.maxBody); apiErr != nil {
		response.Error(w, apiErr)
		return
	}
	post, err := h.posts.SetCover(r.Context(), id, req.URL)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, post)
}

// Delete handles DELETE /api/v1/admin/posts/{id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, apiErr := pathID(r)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}
	if err := h.posts.Delete(r.Context(), id); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}
