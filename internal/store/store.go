package store

import (
	"context"
	"errors"
	"sort"

	"github.com/chatcc/evalsim/internal/chat"
)

var (
	// ErrInvalid marks caller mistakes: empty names, rename conflicts.
	ErrInvalid = errors.New("invalid store request")
	// ErrNotFound marks lookups for datasets or conversations that do
	// not exist.
	ErrNotFound = errors.New("not found in store")
)

// Store persists datasets of conversations. Datasets are named
// partitions; conversations are keyed by conversation id within one.
//
// Multi-document operations (DeleteDataset, RenameDataset) are not
// atomic: a crash mid-way can leave a partial dataset behind. That
// matches the document-store contract this service was built against
// and is accepted for a single-operator tool.
type Store interface {
	ListDatasetNames(ctx context.Context) ([]string, error)
	CreateDataset(ctx context.Context, name string) error
	DeleteDataset(ctx context.Context, name string) error
	RenameDataset(ctx context.Context, oldName, newName string) error

	// LoadConversations returns every conversation in the dataset,
	// sorted by date_of_report descending; empty timestamps sort last.
	LoadConversations(ctx context.Context, dataset string) ([]chat.Conversation, error)
	GetConversation(ctx context.Context, dataset, conversationID string) (chat.Conversation, error)
	// SaveConversation upserts by conversation id with full-document
	// overwrite semantics (last writer wins).
	SaveConversation(ctx context.Context, convo chat.Conversation, dataset string) error
	// DeleteConversation is a silent no-op when the id is absent.
	DeleteConversation(ctx context.Context, dataset, conversationID string) error
	// DuplicateConversation copies the conversation into another
	// dataset, optionally resetting results. The source is untouched.
	DuplicateConversation(ctx context.Context, convo chat.Conversation, targetDataset string, clearResults bool) error

	Close() error
}

// sortByReportDate orders newest-first using the ISO-8601 string's
// natural lexicographic order. Conversations without a timestamp go
// last.
func sortByReportDate(convos []chat.Conversation) {
	sort.SliceStable(convos, func(i, j int) bool {
		a, b := convos[i].DateOfReport, convos[j].DateOfReport
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a > b
	})
}
