package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/freightdoc/internal/pipeline"
	"github.com/dgallion1/freightdoc/internal/retriever"
)

// writeError maps pipeline errors to status codes. Unclassified errors are
// logged and reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		contentErr    *pipeline.ContentError
		notFoundErr   *pipeline.NotFoundError
		validationErr *pipeline.ValidationError
	)
	switch {
	case errors.As(err, &contentErr):
		jsonError(w, contentErr.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &notFoundErr):
		jsonError(w, notFoundErr.Error(), http.StatusNotFound)
	case errors.As(err, &validationErr):
		jsonError(w, validationErr.Error(), http.StatusBadRequest)
	case errors.Is(err, retriever.ErrEmbeddingMismatch):
		jsonError(w, "document was indexed with a different embedding model; re-upload it", http.StatusConflict)
	default:
		s.log.Error("request failed", "path", r.URL.Path, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
