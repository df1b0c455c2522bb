package store

import (
	"context"
	"errors"
	"testing"

	"github.com/chatcc/evalsim/internal/chat"
)

func testConvo(id, date string) chat.Conversation {
	return chat.Conversation{
		ConversationID: id,
		Username:       "user-" + id,
		DateOfReport:   date,
		Content: []chat.Message{
			{Role: chat.RoleHuman, Content: "hello"},
			{Role: chat.RoleAI, Content: "hi there"},
		},
		Results: []chat.SimulationResult{},
	}
}

func TestCreateDatasetRejectsEmptyName(t *testing.T) {
	s := NewInMemoryStore()
	if err := s.CreateDataset(context.Background(), ""); !errors.Is(err, ErrInvalid) {
		t.Fatalf("CreateDataset(\"\") error = %v, want ErrInvalid", err)
	}
}

func TestLoadConversationsSortsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	if err := s.CreateDataset(ctx, "A"); err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}
	for _, c := range []chat.Conversation{
		testConvo("old", "2024-01-01T00:00:00Z"),
		testConvo("new", "2025-01-01T00:00:00Z"),
		testConvo("undated", ""),
	} {
		if err := s.SaveConversation(ctx, c, "A"); err != nil {
			t.Fatalf("SaveConversation(%s): %v", c.ConversationID, err)
		}
	}

	convos, err := s.LoadConversations(ctx, "A")
	if err != nil {
		t.Fatalf("LoadConversations: %v", err)
	}
	if len(convos) != 3 {
		t.Fatalf("len = %d, want 3", len(convos))
	}
	if convos[0].ConversationID != "new" {
		t.Fatalf("first = %q, want %q", convos[0].ConversationID, "new")
	}
	if convos[1].ConversationID != "old" {
		t.Fatalf("second = %q, want %q", convos[1].ConversationID, "old")
	}
	if convos[2].ConversationID != "undated" {
		t.Fatalf("missing timestamp should sort last, got %q", convos[2].ConversationID)
	}
}

func TestSaveConversationOverwrites(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	c := testConvo("c1", "2024-01-01T00:00:00Z")
	if err := s.SaveConversation(ctx, c, "A"); err != nil {
		t.Fatalf("save: %v", err)
	}
	c.Username = "renamed"
	if err := s.SaveConversation(ctx, c, "A"); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err := s.GetConversation(ctx, "A", "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Username != "renamed" {
		t.Fatalf("Username = %q, want last-writer value", got.Username)
	}
}

func TestRenameDatasetConflictLeavesSourceIntact(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	if err := s.CreateDataset(ctx, "A"); err != nil {
		t.Fatalf("create A: %v", err)
	}
	if err := s.CreateDataset(ctx, "B"); err != nil {
		t.Fatalf("create B: %v", err)
	}
	if err := s.SaveConversation(ctx, testConvo("c1", "2024-01-01T00:00:00Z"), "A"); err != nil {
		t.Fatalf("save: %v", err)
	}

	err := s.RenameDataset(ctx, "A", "B")
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("RenameDataset onto existing = %v, want ErrInvalid", err)
	}

	convos, err := s.LoadConversations(ctx, "A")
	if err != nil {
		t.Fatalf("load A: %v", err)
	}
	if len(convos) != 1 || convos[0].ConversationID != "c1" {
		t.Fatalf("dataset A should be untouched, got %+v", convos)
	}
}

func TestRenameDatasetMovesConversations(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	if err := s.CreateDataset(ctx, "A"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SaveConversation(ctx, testConvo("c1", "2024-01-01T00:00:00Z"), "A"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.RenameDataset(ctx, "A", "B"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	names, err := s.ListDatasetNames(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 1 || names[0] != "B" {
		t.Fatalf("datasets = %v, want [B]", names)
	}
	if _, err := s.GetConversation(ctx, "B", "c1"); err != nil {
		t.Fatalf("conversation should exist under B: %v", err)
	}
}

func TestDuplicateConversationClearResults(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	src := testConvo("c1", "2024-01-01T00:00:00Z")
	src.Results = []chat.SimulationResult{{PromptID: "p", Output: []chat.Message{{Role: chat.RoleAI, Content: "x"}}}}
	if err := s.SaveConversation(ctx, src, "A"); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := s.DuplicateConversation(ctx, src, "B", true); err != nil {
		t.Fatalf("duplicate: %v", err)
	}

	dup, err := s.GetConversation(ctx, "B", "c1")
	if err != nil {
		t.Fatalf("get duplicate: %v", err)
	}
	if dup.ConversationID != src.ConversationID {
		t.Fatalf("conversation id changed: %q", dup.ConversationID)
	}
	if len(dup.Content) != len(src.Content) {
		t.Fatalf("content not copied")
	}
	if len(dup.Results) != 0 {
		t.Fatalf("results = %d entries, want cleared", len(dup.Results))
	}

	orig, err := s.GetConversation(ctx, "A", "c1")
	if err != nil {
		t.Fatalf("get source: %v", err)
	}
	if len(orig.Results) != 1 {
		t.Fatalf("source results mutated")
	}
}

func TestDeleteConversationMissingIsSilent(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	if err := s.DeleteConversation(ctx, "A", "nope"); err != nil {
		t.Fatalf("delete of missing conversation should be a no-op, got %v", err)
	}
}

func TestDeleteDatasetRemovesConversations(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	if err := s.CreateDataset(ctx, "A"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SaveConversation(ctx, testConvo("c1", ""), "A"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.DeleteDataset(ctx, "A"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	names, _ := s.ListDatasetNames(ctx)
	for _, n := range names {
		if n == "A" {
			t.Fatalf("dataset A still listed after delete")
		}
	}
	if _, err := s.GetConversation(ctx, "A", "c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetConversation after delete = %v, want ErrNotFound", err)
	}
}

func TestFactoryFallsBackToInMemory(t *testing.T) {
	s, err := New(context.Background(), "   ")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := s.(*InMemoryStore); !ok {
		t.Fatalf("expected in-memory store when DATABASE_URL is empty, got %T", s)
	}
}
