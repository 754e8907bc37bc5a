package handler

import (
	"net/http"

	"portal-rest-api/internal/model"
	"portal-rest-api/internal/service"
	"portal-rest-api/pkg/response"
)

// FeedbackHandler accepts citizen feedback and serves it to reviewers.
type FeedbackHandler struct {
	feedback *service.FeedbackService
}

// NewFeedbackHandler creates a new feedback handler.
func NewFeedbackHandler(feedback *service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedback: feedback}
}

// FeedbackRequest is the public submission body.
type FeedbackRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Submit handles POST /api/v1/feedback
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	fb, err := h.feedback.Submit(r.Context(), model.Feedback{
		Name:     req.Name,
		Email:    req.Email,
		Category: req.Category,
		Message:  req.Message,
	})
	if err != nil {
		response.Error(w, err)
		return
	}

	response.JSON(w, http.StatusAccepted, map[string]interface{}{
		"status":   "received",
		"category": fb.Category,
	})
}

// List handles GET /api/v1/admin/feedback
func (h *FeedbackHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := pagination(r, 20, 100)
	items, total, err := h.feedback.List(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSONWithMeta(w, http.StatusOK, items, page, limit, total)
}

// StatusRequest moves a submission through review.
type StatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PUT /api/v1/admin/feedback/{id}/status
func (h *FeedbackHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, apiErr := pathID(r)
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}
	var req StatusRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		response.Error(w, apiErr)
		return
	}
	if err := h.feedback.UpdateStatus(r.Context(), id, req.Status); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]interface{}{"id": id, "status": req.Status})
}
