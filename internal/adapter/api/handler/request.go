package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/V4T54L/vetclinic/internal/adapter/api/respond"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON object from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.Error(w, http.StatusRequestEntityTooLarge, respond.CodeBadRequest, fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
			return false
		}
		respond.Error(w, http.StatusBadRequest, respond.CodeBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// pathID parses the named URL parameter as a UUID.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeBadRequest, name+" must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
