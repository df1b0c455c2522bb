// Package simulate replays stored transcripts through a prompt/model
// pipeline and produces fresh assistant turns.
package simulate

import (
	"context"
	"strings"

	"github.com/chatcc/evalsim/internal/chat"
	"github.com/chatcc/evalsim/internal/registry"
)

// Invoker is the invocable side of a pipeline: render inputs, call the
// backend, return assistant text.
type Invoker interface {
	Invoke(ctx context.Context, inputs map[string]string) (string, error)
}

// Run replays the human turns of a transcript through the pipeline.
//
// Each human turn is appended to a running transcript, then the
// pipeline is invoked with the running history and that turn's text;
// the reply is appended as a fresh ai turn. Recorded ai turns in the
// input are discarded: history is rebuilt purely from human turns and
// generated replies. The first pipeline failure aborts the run and the
// partial transcript is dropped.
//
// extraVars are merged into the pipeline inputs but can never shadow
// the engine-supplied chat_history and question values.
func Run(ctx context.Context, msgs []chat.Message, pipeline Invoker, extraVars map[string]string) ([]chat.Message, error) {
	history := make([]chat.Message, 0, 2*chat.CountHumanTurns(msgs))
	for _, m := range msgs {
		if m.Role != chat.RoleHuman {
			continue
		}
		history = append(history, m)

		inputs := make(map[string]string, len(extraVars)+2)
		for k, v := range extraVars {
			if k == registry.VarChatHistory || k == registry.VarQuestion {
				continue
			}
			inputs[k] = v
		}
		inputs[registry.VarChatHistory] = FormatHistory(history)
		inputs[registry.VarQuestion] = m.Content

		reply, err := pipeline.Invoke(ctx, inputs)
		if err != nil {
			return nil, err
		}
		history = append(history, chat.Message{Role: chat.RoleAI, Content: reply})
	}
	return history, nil
}

// FormatHistory serializes the running transcript the way templates
// expect their chat_history variable: one "Human:"/"AI:"-prefixed line
// per turn.
func FormatHistory(msgs []chat.Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		if m.Role == chat.RoleAI {
			b.WriteString("AI: ")
		} else {
			b.WriteString("Human: ")
		}
		b.WriteString(m.Content)
	}
	return b.String()
}
