package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/freightdoc/internal/parser"
	"github.com/dgallion1/freightdoc/internal/pipeline"
)

type uploadResponse struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	NumChunks  int    `json:"num_chunks"`
	Message    string `json:"message"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %q", filepath.Ext(filename)), http.StatusUnprocessableEntity)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	text, err := parser.ExtractText(bytes.NewReader(data), filename, parser.Options{
		PDFFallbackPdftotext: s.cfg.PDFFallbackPdftotext,
	})
	if err != nil {
		if errors.Is(err, parser.ErrUnsupported) {
			jsonError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		s.log.Warn("text extraction failed", "filename", filename, "error", err)
		s.writeError(w, r, &pipeline.ContentError{Reason: "could not extract text from " + filename})
		return
	}

	doc, err := s.svc.Ingest(r.Context(), filename, text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		NumChunks:  doc.NumChunks,
		Message:    "Document processed successfully",
	})
}

func sanitizeFilename(name string) string {
	// Browsers may send Windows paths.
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
