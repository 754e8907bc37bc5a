package handler

import (
	"errors"
	"io"
	"log"
	"net/http"

	"portal-rest-api/internal/middleware"
	"portal-rest-api/internal/upload"
	"portal-rest-api/pkg/apierror"
	"portal-rest-api/pkg/response"
)

// multipartOverhead is the slack allowed on top of the file limit for
// multipart boundaries and headers.
const multipartOverhead = 64 << 10

// UploadHandler accepts image uploads from the admin console.
type UploadHandler struct {
	pipeline *upload.Pipeline
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(pipeline *upload.Pipeline) *UploadHandler {
	return &UploadHandler{pipeline: pipeline}
}

// Upload handles POST /api/v1/admin/uploads (multipart field "file").
//
// Oversized files are a validation error carrying the pipeline's size limit,
// whether the body limit or the pipeline catches them.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.pipeline.Config().MaxBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, apierror.ValidationError("The file is too large; "+h.pipeline.SizeLimitMessage()))
			return
		}
		response.Error(w, apierror.BadRequest("multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		log.Printf("[Upload] Failed to read %q: %v", header.Filename, err)
		response.Error(w, apierror.BadRequest("failed to read upload"))
		return
	}

	var uploadedBy string
	if identity := middleware.GetIdentity(r.Context()); identity != nil {
		uploadedBy = identity.Subject
	}

	result := h.pipeline.Upload(r.Context(), upload.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		UploadedBy:  uploadedBy,
	})
	if !result.Success {
		response.Error(w, apierror.ValidationError(result.Error))
		return
	}
	response.OK(w, result)
}
