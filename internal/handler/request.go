package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"portal-rest-api/internal/upload"
	"portal-rest-api/pkg/apierror"

	"github.com/go-chi/chi/v5"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// ImageBodyLimit bounds JSON bodies that may carry an image URL returned by
// the upload pipeline, inline data URLs included.
func ImageBodyLimit(config upload.Config) int64 {
	return int64(upload.MaxDataURLLength(config)) + maxJSONBody
}

// decodeJSON reads a JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) *apierror.Error {
	return decodeJSONLimit(w, r, v, maxJSONBody)
}

// decodeJSONLimit is decodeJSON with a body limit of its own; limits below
// maxJSONBody are raised to it.
func decodeJSONLimit(w http.ResponseWriter, r *http.Request, v interface{}, limit int64) *apierror.Error {
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, max(limit, maxJSONBody)))
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return apierror.BadRequest("request body is required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apierror.PayloadTooLarge("request body is too large")
		}
		return apierror.BadRequest("invalid request body")
	}
	return nil
}

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (int64, *apierror.Error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.BadRequest("id must be a positive integer")
	}
	return id, nil
}

// pagination reads page and limit query parameters.
func pagination(r *http.Request, defaultLimit, maxLimit int) (page, limit, offset int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > maxLimit {
		limit = defaultLimit
	}
	return page, limit, (page - 1) * limit
}
