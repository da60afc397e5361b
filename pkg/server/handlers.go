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
	"net/http"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"generation_model": s.currentGenModel,
		"embedding_model":  s.currentEmbedModel,
	})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	live, err := s.llm.ListModels(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"catalog":   s.cfg.GenerationModelCatalog,
			"available": []string{},
			"warning":   "could not reach LLM runtime: " + err.Error(),
		})
		return
	}

	names := make([]string, len(live))
	for i, m := range live {
		names[i] = m.Name
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"catalog":   s.cfg.GenerationModelCatalog,
		"available": names,
	})
}

type loadModelRequest struct {
	Model string `json:"model"`
}

func (s *Server) handleLoadModel(w http.ResponseWriter, r *http.Request) {
	var req loadModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Model == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "model is required"})
		return
	}

	if err := s.llm.PullModel(r.Context(), req.Model); err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "loaded", "model": req.Model})
}

func (s *Server) handleSystemCurrent(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]string{
		"generation_model": s.currentGenModel,
		"embedding_model":  s.currentEmbedModel,
	})
}

type switchModelRequest struct {
	Model string `json:"model"`
}

func (s *Server) handleSystemSwitch(w http.ResponseWriter, r *http.Request) {
	var req switchModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Model == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "model is required"})
		return
	}

	if err := s.llm.PullModel(r.Context(), req.Model); err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	s.mu.Lock()
	s.currentGenModel = req.Model
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "switched", "generation_model": req.Model})
}

func (s *Server) handleAgentInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "agent1",
		"description": "reason-act agent backed by the gateway's tool registry",
	})
}

func (s *Server) handleAgentTools(w http.ResponseWriter, r *http.Request) {
	descriptors := s.agent.ToolDescriptors()
	out := make([]map[string]any, len(descriptors))
	for i, d := range descriptors {
		out[i] = map[string]any{
			"name":        d.Name,
			"description": d.Description,
			"schema":      d.Schema,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type agentQueryRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleAgentQuery(w http.ResponseWriter, r *http.Request) {
	var req agentQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}

	result, err := s.agent.Run(r.Context(), req.Message)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAgentReset(w http.ResponseWriter, r *http.Request) {
	s.agent.Reset()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
