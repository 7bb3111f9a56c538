// Package memory is the in-memory history store for the local backend.
// It is NOT persistent and is only suitable for development / local mode.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/agrimitra/agrimitra/internal/domain"
)

type HistoryStore struct {
	mu            sync.RWMutex
	conversations map[domain.ConversationID]*domain.ConversationSummary
	messages      map[domain.ConversationID][]*domain.Message
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		conversations: make(map[domain.ConversationID]*domain.ConversationSummary),
		messages:      make(map[domain.ConversationID][]*domain.Message),
	}
}

func (s *HistoryStore) CreateConversation(_ context.Context, conv *domain.ConversationSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[conv.ID]; exists {
		return errors.New("memory: conversation already exists")
	}

	copied := *conv
	s.conversations[conv.ID] = &copied
	return nil
}

func (s *HistoryStore) TouchConversation(_ context.Context, conv *domain.ConversationSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[conv.ID]; !exists {
		return domain.ErrNotFound
	}

	copied := *conv
	s.conversations[conv.ID] = &copied
	return nil
}

func (s *HistoryStore) AppendMessage(_ context.Context, id domain.ConversationID, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[id]; !exists {
		return domain.ErrNotFound
	}

	copied := *msg
	s.messages[id] = append(s.messages[id], &copied)
	return nil
}

func (s *HistoryStore) GetConversation(_ context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.conversations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	msgs := make([]*domain.Message, 0, len(s.messages[id]))
	for _, m := range s.messages[id] {
		copied := *m
		msgs = append(msgs, &copied)
	}

	return &domain.Conversation{
		ID:          summary.ID,
		Title:       summary.Title,
		LastMessage: summary.LastMessage,
		UpdatedAt:   summary.UpdatedAt,
		Messages:    msgs,
	}, nil
}

// ListConversations returns summaries ordered by last update, newest
// first.
func (s *HistoryStore) ListConversations(_ context.Context, limit int) ([]domain.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ConversationSummary, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, *conv)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
