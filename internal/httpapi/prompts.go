package httpapi

import (
	"net/http"
	"strings"
)

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	names, err := s.registry.ListPrompts(r.Context())
	if err != nil {
		respondDetail(w, http.StatusInternalServerError, "Failed to fetch prompts: "+err.Error())
		return
	}
	if names == nil {
		names = []string{}
	}
	respondJSON(w, http.StatusOK, names)
}

func (s *Server) handlePromptVariables(w http.ResponseWriter, r *http.Request) {
	promptID := strings.TrimSpace(r.URL.Query().Get("prompt_id"))
	if promptID == "" {
		respondDetail(w, http.StatusBadRequest, "Query parameter prompt_id is required.")
		return
	}

	tmpl, err := s.registry.Pull(r.Context(), promptID)
	if err != nil {
		respondDetail(w, http.StatusInternalServerError, "Failed to extract variables: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string][]string{"variables": tmpl.FreeVariables()})
}
