// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kadirpekel/docgateway/pkg/rag"
)

func (s *Server) handleAggregateRAGStats(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]any, len(s.backends))
	for name, b := range s.backends {
		stats, err := b.Stats(r.Context())
		if err != nil {
			out[name] = map[string]string{"error": err.Error()}
			continue
		}
		out[name] = stats
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBackendRAGStats(w http.ResponseWriter, r *http.Request) {
	backend, err := backendByName(s.backends, chi.URLParam(r, "backend"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	stats, err := backend.Stats(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type ingestTextRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

func (s *Server) handleUnifiedIngestText(w http.ResponseWriter, r *http.Request) {
	var req ingestTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" || req.Source == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text and source are required"})
		return
	}

	results := s.unified.IngestText(r.Context(), req.Text, req.Source)
	writeJSON(w, http.StatusOK, ingestResultsJSON(results))
}

func (s *Server) handleUnifiedIngestFile(w http.ResponseWriter, r *http.Request) {
	filename, data, err := readUploadedFile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	results := s.unified.IngestFile(r.Context(), filename, data)
	writeJSON(w, http.StatusOK, ingestResultsJSON(results))
}

func (s *Server) handleBackendIngestText(w http.ResponseWriter, r *http.Request) {
	backend, err := backendByName(s.backends, chi.URLParam(r, "backend"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	var req ingestTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" || req.Source == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text and source are required"})
		return
	}

	if err := backend.IngestText(r.Context(), req.Text, req.Source); err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ingested", "backend": backend.Name()})
}

func (s *Server) handleBackendIngestFile(w http.ResponseWriter, r *http.Request) {
	backend, err := backendByName(s.backends, chi.URLParam(r, "backend"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	filename, data, err := readUploadedFile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := backend.IngestFile(r.Context(), filename, data); err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ingested", "backend": backend.Name()})
}

type previewRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleBackendPreview(w http.ResponseWriter, r *http.Request) {
	backend, err := backendByName(s.backends, chi.URLParam(r, "backend"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"chunks": backend.Preview(req.Text)})
}

type ingestOutcome struct {
	Backend string `json:"backend"`
	Error   string `json:"error,omitempty"`
}

func ingestResultsJSON(results []rag.IngestResult) []ingestOutcome {
	out := make([]ingestOutcome, len(results))
	for i, r := range results {
		out[i] = ingestOutcome{Backend: r.Backend}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}
	return out
}

// readUploadedFile accepts either a multipart/form-data body with a
// "file" field, or a raw request body carrying the filename in the
// X-Filename header.
func readUploadedFile(r *http.Request) (filename string, data []byte, err error) {
	if isMultipart(r) {
		if parseErr := r.ParseMultipartForm(32 << 20); parseErr == nil {
			if file, header, ferr := r.FormFile("file"); ferr == nil {
				defer file.Close()
				data, err = io.ReadAll(file)
				return header.Filename, data, err
			}
		}
	}

	filename = r.Header.Get("X-Filename")
	if filename == "" {
		filename = "upload.txt"
	}
	data, err = io.ReadAll(r.Body)
	return filename, data, err
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}
