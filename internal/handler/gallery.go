package handler

import (
	"net/http"
	"strconv"

	"portal-rest-api/internal/model"
	"portal-rest-api/internal/service"
	"portal-rest-api/pkg/response"
)

// GalleryHandler serves photos and events.
type GalleryHandler struct {
	gallery *service.GalleryService
	events  *service.EventService
	maxBody int64
}

// NewGalleryHandler creates a new gallery handler.
func NewGalleryHandler(gallery *service.GalleryService, events *service.EventService, maxBody int64) *GalleryHandler {
	return &GalleryHandler{gallery: gallery, events: events, maxBody: maxBody}
}

// ListPhotos handles GET /api/v1/gallery
func (h *GalleryHandler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	photos, err := h.gallery.ListPhotos(r.Context(), limit)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, photos)
}

// AddPhoto handles POST /api/v1/admin/gallery
func (h *GalleryHandler) AddPhoto(w http.ResponseWriter, r *http.Request) {
	var photo model.Photo
	if apiErr := decodeJSONLimit(w, r, &photo, h.maxBody); apiErr != nil {
		response.Error(w, apiErr)
		return
	}
	if err := h.gallery.AddPhoto(r.Context(), &photo); err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, photo)
}

// DeletePhoto handles DELETE /api/v1/admin/gallery/{id}
func (h *GalleryHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	id, apiErr := pathID(r)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}
	if err := h.gallery.DeletePhoto(r.Context(), id); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// ListEvents handles GET /api/v1/events
func (h *GalleryHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.events.ListUpcoming(r.Context(), limit)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, events)
}

// CreateEvent handles POST /api/v1/admin/events
func (h *GalleryHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var event model.Event
	if apiErr := decodeJSONLimit(w, r, &event, h.maxBody); apiErr != nil {
		response.Error(w, apiErr)
		return
	}
	if err := h.events.CreateEvent(r.Context(), &event); err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, event)
}

// DeleteEvent handles DELETE /api/v1/admin/events/{id}
func (h *GalleryHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, apiErr := pathID(r)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}
	if err := h.events.DeleteEvent(r.Context(), id); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}
