// Package handlers implements the HTTP endpoints of the MathsIA API.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mathsia/mathsia/cmd/mathsia/internal/apperrors"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/constants"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set(constants.HeaderContentType, constants.MIMEApplicationJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON decodes a request body, returning a 400 error on failure.
func decodeJSON(r *http.Request, dst any) *apperrors.APIError {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.NewBadRequest(apperrors.CodeValidationError, "invalid request body").Wrap(err)
	}
	return nil
}

// pathObjectID parses the {id} path segment as a MongoDB ObjectID.
func pathObjectID(r *http.Request) (primitive.ObjectID, *apperrors.APIError) {
	raw := r.PathValue("id")
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperrors.NewBadRequest(
			apperrors.CodeInvalidID, "invalid object id").Wrap(err)
	}
	return id, nil
}

// pagination parses skip and limit query parameters with defaults and
// an upper bound on limit.
func pagination(r *http.Request) (skip, limit int64) {
	skip = 0
	limit = constants.DefaultPageSize

	if raw := r.URL.Query().Get("skip"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v >= 0 {
			skip = v
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > constants.MaxPageSize {
		limit = constants.MaxPageSize
	}
	return skip, limit
}
