package simulate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/chatcc/evalsim/internal/chat"
)

// scriptedPipeline replies with a canned answer per invocation and
// records the inputs it saw.
type scriptedPipeline struct {
	calls  []map[string]string
	failAt int // 1-based call number to fail on; 0 means never
}

func (p *scriptedPipeline) Invoke(_ context.Context, inputs map[string]string) (string, error) {
	cp := make(map[string]string, len(inputs))
	for k, v := range inputs {
		cp[k] = v
	}
	p.calls = append(p.calls, cp)
	if p.failAt > 0 && len(p.calls) == p.failAt {
		return "", errors.New("quota exceeded")
	}
	return fmt.Sprintf("reply-%d", len(p.calls)), nil
}

func TestRunOutputLength(t *testing.T) {
	msgs := []chat.Message{
		{Role: chat.RoleHuman, Content: "first"},
		{Role: chat.RoleAI, Content: "recorded answer"},
		{Role: chat.RoleHuman, Content: "second"},
		{Role: chat.RoleHuman, Content: "third"},
	}
	p := &scriptedPipeline{}
	out, err := Run(context.Background(), msgs, p, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	humans := chat.CountHumanTurns(msgs)
	if len(out) != 2*humans {
		t.Fatalf("len(out) = %d, want %d", len(out), 2*humans)
	}
	for i, m := range out {
		wantRole := chat.RoleHuman
		if i%2 == 1 {
			wantRole = chat.RoleAI
		}
		if m.Role != wantRole {
			t.Fatalf("out[%d].Role = %q, want %q", i, m.Role, wantRole)
		}
	}
}

func TestRunDiscardsRecordedAITurns(t *testing.T) {
	msgs := []chat.Message{
		{Role: chat.RoleHuman, Content: "q"},
		{Role: chat.RoleAI, Content: "stale recorded answer"},
	}
	p := &scriptedPipeline{}
	out, err := Run(context.Background(), msgs, p, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, m := range out {
		if m.Content == "stale recorded answer" {
			t.Fatalf("recorded ai turn leaked into output: %+v", out)
		}
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
}

func TestRunReservedVariablesNotOverridable(t *testing.T) {
	msgs := []chat.Message{{Role: chat.RoleHuman, Content: "the real question"}}
	p := &scriptedPipeline{}
	_, err := Run(context.Background(), msgs, p, map[string]string{
		"chat_history": "forged history",
		"question":     "forged question",
		"tone":         "formal",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := p.calls[0]
	if got["question"] != "the real question" {
		t.Fatalf("question = %q, engine value must win", got["question"])
	}
	if got["chat_history"] == "forged history" {
		t.Fatalf("chat_history override must be ignored")
	}
	if got["tone"] != "formal" {
		t.Fatalf("non-reserved extra var dropped: %v", got)
	}
}

func TestRunHistoryAccumulates(t *testing.T) {
	msgs := []chat.Message{
		{Role: chat.RoleHuman, Content: "one"},
		{Role: chat.RoleHuman, Content: "two"},
	}
	p := &scriptedPipeline{}
	if _, err := Run(context.Background(), msgs, p, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	second := p.calls[1]["chat_history"]
	for _, want := range []string{"Human: one", "AI: reply-1", "Human: two"} {
		if !strings.Contains(second, want) {
			t.Fatalf("second chat_history missing %q:\n%s", want, second)
		}
	}
}

func TestRunAbortsOnPipelineError(t *testing.T) {
	msgs := []chat.Message{
		{Role: chat.RoleHuman, Content: "one"},
		{Role: chat.RoleHuman, Content: "two"},
		{Role: chat.RoleHuman, Content: "three"},
	}
	p := &scriptedPipeline{failAt: 2}
	out, err := Run(context.Background(), msgs, p, nil)
	if err == nil {
		t.Fatalf("expected pipeline error")
	}
	if out != nil {
		t.Fatalf("partial transcript must not be returned, got %+v", out)
	}
	if len(p.calls) != 2 {
		t.Fatalf("remaining turns should not run after a failure, calls = %d", len(p.calls))
	}
}

func TestFormatHistory(t *testing.T) {
	got := FormatHistory([]chat.Message{
		{Role: chat.RoleHuman, Content: "hi"},
		{Role: chat.RoleAI, Content: "hello"},
	})
	want := "Human: hi\nAI: hello"
	if got != want {
		t.Fatalf("FormatHistory = %q, want %q", got, want)
	}
}
