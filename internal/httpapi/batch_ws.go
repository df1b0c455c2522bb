package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/chatcc/evalsim/internal/simulate"
)

const wsWriteTimeout = 10 * time.Second

// batchEvent is one progress frame of a streaming simulate-all run.
type batchEvent struct {
	Type           string                `json:"type"`
	Dataset        string                `json:"dataset,omitempty"`
	ConversationID string                `json:"conversation_id,omitempty"`
	Error          string                `json:"error,omitempty"`
	Report         *simulate.BatchReport `json:"report,omitempty"`
}

// handleSimulateDatasetWS streams per-conversation progress while a
// simulate-all batch runs, then a final report frame. The batch runs
// in this goroutine, so the connection has a single writer.
func (s *Server) handleSimulateDatasetWS(w http.ResponseWriter, r *http.Request) {
	params := simulateParams{
		PromptID:      r.URL.Query().Get("prompt_id"),
		ModelName:     r.URL.Query().Get("model_name"),
		VariablesJSON: strings.TrimSpace(r.URL.Query().Get("variables_json")),
	}
	if detail, ok := params.validate(); !ok {
		respondDetail(w, http.StatusBadRequest, detail)
		return
	}
	dataset := chi.URLParam(r, "name")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	writeEvent := func(ev batchEvent) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(ev) == nil
	}

	if !writeEvent(batchEvent{Type: "batch_started", Dataset: dataset}) {
		return
	}

	report, err := s.sim.SimulateDataset(r.Context(), dataset,
		params.PromptID, params.ModelName, params.Variables,
		func(conversationID string, convErr error) {
			ev := batchEvent{Type: "conversation_done", ConversationID: conversationID}
			if convErr != nil {
				ev.Type = "conversation_failed"
				ev.Error = convErr.Error()
			}
			writeEvent(ev)
		})
	if err != nil {
		writeEvent(batchEvent{Type: "batch_failed", Dataset: dataset, Error: err.Error()})
		return
	}

	writeEvent(batchEvent{Type: "batch_completed", Dataset: dataset, Report: &report})
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "batch complete"))
}
