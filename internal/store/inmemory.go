package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/chatcc/evalsim/internal/chat"
)

// InMemoryStore is a simple in-process store for local/dev use and
// tests. It mirrors the document layout of the durable store: dataset
// metadata plus a map of conversations per dataset.
type InMemoryStore struct {
	mu       sync.RWMutex
	datasets map[string]map[string]chat.Conversation
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{datasets: make(map[string]map[string]chat.Conversation)}
}

func (s *InMemoryStore) ListDatasetNames(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.datasets))
	for name := range s.datasets {
		names = append(names, name)
	}
	return names, nil
}

func (s *InMemoryStore) CreateDataset(_ context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%w: dataset name cannot be empty", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[name]; !ok {
		s.datasets[name] = make(map[string]chat.Conversation)
	}
	return nil
}

func (s *InMemoryStore) DeleteDataset(_ context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%w: dataset name cannot be empty", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.datasets, name)
	return nil
}

func (s *InMemoryStore) RenameDataset(_ context.Context, oldName, newName string) error {
	if oldName == "" || newName == "" {
		return fmt.Errorf("%w: both old and new dataset names are required", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.datasets[newName]; exists {
		return fmt.Errorf("%w: dataset %q already exists", ErrInvalid, newName)
	}
	src, ok := s.datasets[oldName]
	if !ok {
		return fmt.Errorf("%w: dataset %q", ErrNotFound, oldName)
	}
	dst := make(map[string]chat.Conversation, len(src))
	for id, convo := range src {
		dst[id] = convo.Clone()
	}
	s.datasets[newName] = dst
	delete(s.datasets, oldName)
	return nil
}

func (s *InMemoryStore) LoadConversations(_ context.Context, dataset string) ([]chat.Conversation, error) {
	if dataset == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	convos := make([]chat.Conversation, 0, len(s.datasets[dataset]))
	for _, convo := range s.datasets[dataset] {
		convos = append(convos, convo.Clone())
	}
	sortByReportDate(convos)
	return convos, nil
}

func (s *InMemoryStore) GetConversation(_ context.Context, dataset, conversationID string) (chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	convo, ok := s.datasets[dataset][conversationID]
	if !ok {
		return chat.Conversation{}, fmt.Errorf("%w: conversation %q in dataset %q", ErrNotFound, conversationID, dataset)
	}
	return convo.Clone(), nil
}

func (s *InMemoryStore) SaveConversation(_ context.Context, convo chat.Conversation, dataset string) error {
	if dataset == "" {
		return fmt.Errorf("%w: dataset is required to save a conversation", ErrInvalid)
	}
	if convo.ConversationID == "" {
		return fmt.Errorf("%w: conversation id is required", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[dataset]; !ok {
		s.datasets[dataset] = make(map[string]chat.Conversation)
	}
	s.datasets[dataset][convo.ConversationID] = convo.Clone()
	return nil
}

func (s *InMemoryStore) DeleteConversation(_ context.Context, dataset, conversationID string) error {
	if dataset == "" || conversationID == "" {
		return fmt.Errorf("%w: both dataset and conversation id are required", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if convos, ok := s.datasets[dataset]; ok {
		delete(convos, conversationID)
	}
	return nil
}

func (s *InMemoryStore) DuplicateConversation(_ context.Context, convo chat.Conversation, targetDataset string, clearResults bool) error {
	if targetDataset == "" {
		return fmt.Errorf("%w: target dataset is required", ErrInvalid)
	}
	if convo.ConversationID == "" {
		return fmt.Errorf("%w: conversation id is required", ErrInvalid)
	}
	cp := convo.Clone()
	if clearResults {
		cp.Results = []chat.SimulationResult{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[targetDataset]; !ok {
		s.datasets[targetDataset] = make(map[string]chat.Conversation)
	}
	s.datasets[targetDataset][cp.ConversationID] = cp
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
