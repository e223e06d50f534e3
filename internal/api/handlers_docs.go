package api

import (
	"encoding/json"
	"net/http"

	"github.com/dgallion1/freightdoc/internal/extract"
	"github.com/go-chi/chi/v5"
)

const maxJSONBody = 1 << 20

type askRequest struct {
	DocumentID string `json:"document_id"`
	Question   string `json:"question"`
}

type extractRequest struct {
	DocumentID string `json:"document_id"`
}

type extractResponse struct {
	DocumentID string `json:"document_id"`
	extract.Record
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !s.decode(w, r, &req) {
		return
	}
	ans, err := s.svc.Ask(r.Context(), req.DocumentID, req.Question)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.DocumentID == "" {
		jsonError(w, "document_id is required", http.StatusBadRequest)
		return
	}
	rec, err := s.svc.Extract(r.Context(), req.DocumentID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, extractResponse{DocumentID: req.DocumentID, Record: rec})
}

// handleListDocuments lists ingested documents, newest first.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.svc.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "count": len(docs)})
}

// handleDeleteDocument deletes a document and its vectors.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if err := s.svc.Delete(r.Context(), docID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document_id": docID, "deleted": true})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
