package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/chatcc/evalsim/internal/chat"
)

// maxUploadBytes bounds a transcript upload. Real transcripts are a
// few kilobytes; this guards against accidental large files.
const maxUploadBytes = 8 << 20

// handleSimulate replays an uploaded transcript through a prompt/model
// pair. Validation order is fixed: file presence and extension, prompt
// id, model name, message array, variables object. Each failure names
// exactly the check that tripped.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondDetail(w, http.StatusBadRequest, "Request must be multipart form data.")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondDetail(w, http.StatusBadRequest, "No file uploaded. Please upload a chat JSON file.")
		return
	}
	defer file.Close()
	if !strings.HasSuffix(header.Filename, ".json") {
		respondDetail(w, http.StatusBadRequest, "Only .json files are accepted. Please upload a valid JSON file.")
		return
	}

	promptID := strings.TrimSpace(r.FormValue("prompt_id"))
	if promptID == "" {
		respondDetail(w, http.StatusBadRequest, "Prompt ID is missing. Please enter a prompt ID.")
		return
	}

	modelName := strings.TrimSpace(r.FormValue("model_name"))
	if modelName == "" {
		respondDetail(w, http.StatusBadRequest, "Model is not selected.")
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		respondDetail(w, http.StatusBadRequest, "Uploaded file could not be read: "+err.Error())
		return
	}
	msgs, err := chat.ParseTranscript(content)
	if err != nil {
		respondDetail(w, http.StatusBadRequest,
			"Uploaded JSON must be a list of messages with 'role' ('human' or 'ai') and non-empty 'content'. Error: "+err.Error())
		return
	}

	extraVars, err := parseVariablesJSON(r.FormValue("variables_json"))
	if err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid variables JSON: "+err.Error())
		return
	}

	result, err := s.sim.Simulate(r.Context(), msgs, promptID, modelName, extraVars)
	if err != nil {
		respondSimulationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// parseVariablesJSON decodes the operator-supplied variables mapping.
// An empty form value means "no variables".
func parseVariablesJSON(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "{}"
	}
	vars := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &vars); err != nil {
		return nil, err
	}
	return vars, nil
}
