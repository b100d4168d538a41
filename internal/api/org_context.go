package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/projectinsight/insight/internal/pkg/httputil"
)

// orgID extracts and validates the organization ID from the URL. Writes a
// 400 and returns false if the parameter is not a UUID.
func orgID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return urlUUID(w, r, "orgID")
}

func urlUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httputil.BadRequest(w, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}
