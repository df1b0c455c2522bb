package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chatcc/evalsim/internal/chat"
)

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.ListDatasetNames(r.Context())
	s.metrics.ObserveStoreOp("list_datasets", err)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	respondJSON(w, http.StatusOK, names)
}

func (s *Server) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)

	// The store does not check for duplicates itself; the gateway does,
	// accepting the race under concurrent callers.
	existing, err := s.store.ListDatasetNames(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	for _, name := range existing {
		if name == req.Name {
			respondDetail(w, http.StatusBadRequest, "A dataset with this name already exists.")
			return
		}
	}

	err = s.store.CreateDataset(r.Context(), req.Name)
	s.metrics.ObserveStoreOp("create_dataset", err)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
}

func (s *Server) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteDataset(r.Context(), chi.URLParam(r, "name"))
	s.metrics.ObserveStoreOp("delete_dataset", err)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleRenameDataset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewName string `json:"new_name"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	err := s.store.RenameDataset(r.Context(), chi.URLParam(r, "name"), strings.TrimSpace(req.NewName))
	s.metrics.ObserveStoreOp("rename_dataset", err)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"name": req.NewName})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convos, err := s.store.LoadConversations(r.Context(), chi.URLParam(r, "name"))
	s.metrics.ObserveStoreOp("load_conversations", err)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if convos == nil {
		convos = []chat.Conversation{}
	}
	respondJSON(w, http.StatusOK, convos)
}

// handleUploadConversation records a new conversation document. A
// missing conversation id gets a generated one; a missing report date
// gets the upload time.
func (s *Server) handleUploadConversation(w http.ResponseWriter, r *http.Request) {
	var convo chat.Conversation
	if err := decodeJSONBody(r, &convo); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid conversation JSON: "+err.Error())
		return
	}
	if err := chat.ValidateMessages(convo.Content); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid conversation content: "+err.Error())
		return
	}
	if convo.ConversationID == "" {
		convo.ConversationID = uuid.NewString()
	}
	if convo.DateOfReport == "" {
		convo.DateOfReport = time.Now().UTC().Format(time.RFC3339)
	}
	if convo.Results == nil {
		convo.Results = []chat.SimulationResult{}
	}

	err := s.store.SaveConversation(r.Context(), convo, chi.URLParam(r, "name"))
	s.metrics.ObserveStoreOp("save_conversation", err)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, convo)
}

func (s *Server) handleSaveConversation(w http.ResponseWriter, r *http.Request) {
	var convo chat.Conversation
	if err := decodeJSONBody(r, &convo); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid conversation JSON: "+err.Error())
		return
	}
	if err := chat.ValidateMessages(convo.Content); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid conversation content: "+err.Error())
		return
	}
	convo.ConversationID = chi.URLParam(r, "id")

	err := s.store.SaveConversation(r.Context(), convo, chi.URLParam(r, "name"))
	s.metrics.ObserveStoreOp("save_conversation", err)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, convo)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteConversation(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "id"))
	s.metrics.ObserveStoreOp("delete_conversation", err)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleDuplicateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetDataset string `json:"target_dataset"`
		ClearResults  bool   `json:"clear_results"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	convo, err := s.store.GetConversation(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	err = s.store.DuplicateConversation(r.Context(), convo, strings.TrimSpace(req.TargetDataset), req.ClearResults)
	s.metrics.ObserveStoreOp("duplicate_conversation", err)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"conversation_id": convo.ConversationID,
		"dataset":         req.TargetDataset,
	})
}

// simulateParams is the prompt/model/variables triple shared by the
// stored-conversation and batch simulation endpoints.
type simulateParams struct {
	PromptID      string            `json:"prompt_id"`
	ModelName     string            `json:"model_name"`
	Variables     map[string]string `json:"variables"`
	VariablesJSON string            `json:"variables_json"`
}

func (p *simulateParams) validate() (string, bool) {
	p.PromptID = strings.TrimSpace(p.PromptID)
	p.ModelName = strings.TrimSpace(p.ModelName)
	if p.PromptID == "" {
		return "Prompt ID is missing. Please enter a prompt ID.", false
	}
	if p.ModelName == "" {
		return "Model is not selected.", false
	}
	if p.Variables == nil && p.VariablesJSON != "" {
		vars, err := parseVariablesJSON(p.VariablesJSON)
		if err != nil {
			return "Invalid variables JSON: " + err.Error(), false
		}
		p.Variables = vars
	}
	return "", true
}

func (s *Server) handleSimulateConversation(w http.ResponseWriter, r *http.Request) {
	var params simulateParams
	if err := decodeJSONBody(r, &params); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if detail, ok := params.validate(); !ok {
		respondDetail(w, http.StatusBadRequest, detail)
		return
	}

	result, err := s.sim.SimulateConversation(r.Context(),
		chi.URLParam(r, "name"), chi.URLParam(r, "id"),
		params.PromptID, params.ModelName, params.Variables)
	if err != nil {
		respondSimulationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSimulateDataset(w http.ResponseWriter, r *http.Request) {
	var params simulateParams
	if err := decodeJSONBody(r, &params); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if detail, ok := params.validate(); !ok {
		respondDetail(w, http.StatusBadRequest, detail)
		return
	}

	report, err := s.sim.SimulateDataset(r.Context(), chi.URLParam(r, "name"),
		params.PromptID, params.ModelName, params.Variables, nil)
	if err != nil {
		respondSimulationError(w, err)
		return
	}
	// Per-conversation failures are part of the report, not an HTTP
	// error: the batch itself ran to completion.
	respondJSON(w, http.StatusOK, report)
}
