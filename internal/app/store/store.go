// Package store owns the conversation-list cache and the active
// conversation's ordered message timeline. It is pure state with owned
// mutation methods; the dispatcher is its single logical writer.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/agrimitra/agrimitra/internal/app/locale"
	"github.com/agrimitra/agrimitra/internal/domain"
	"github.com/agrimitra/agrimitra/internal/observability"
)

type Store struct {
	reader domain.ConversationReader
	locale *locale.Selector
	now    func() time.Time

	mu        sync.RWMutex
	summaries []domain.ConversationSummary
	activeID  domain.ConversationID
	messages  []*domain.Message
	nextID    domain.MessageID
	epoch     uint64
}

// NewStore builds a store seeded with a fresh thread (welcome message,
// no conversation id).
func NewStore(reader domain.ConversationReader, sel *locale.Selector) *Store {
	s := &Store{
		reader: reader,
		locale: sel,
		now:    time.Now,
	}
	s.StartNew()
	return s
}

// NextMessageID hands out the next creation ordinal. Ordinals are never
// reused, including across thread switches.
func (s *Store) NextMessageID() domain.MessageID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.nextID
}

// Append adds msg to the end of the active timeline. Order is insertion
// order only; nothing is ever re-sorted or deduplicated by content.
func (s *Store) Append(msg *domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == 0 {
		s.nextID++
		msg.ID = s.nextID
	}
	s.messages = append(s.messages, msg)
}

// UpdateContent rewrites the display text of an existing message in
// place. Used for the voice transcription phase; no new message is
// created. Reports whether the message was found.
func (s *Store) UpdateContent(id domain.MessageID, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages {
		if m.ID == id {
			m.Content = content
			return true
		}
	}
	return false
}

// SetStatus promotes or demotes a message's delivery status.
func (s *Store) SetStatus(id domain.MessageID, status domain.MessageStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages {
		if m.ID == id {
			m.Status = status
			return true
		}
	}
	return false
}

// Messages returns the active timeline in insertion order.
func (s *Store) Messages() []*domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Store) ActiveID() domain.ConversationID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// SetActiveID records the backend-assigned conversation id. The backend
// is authoritative, so this runs on every successful exchange; repeated
// calls with the same id are idempotent.
func (s *Store) SetActiveID(id domain.ConversationID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeID == id {
		return
	}
	if s.activeID == "" {
		observability.Logger().Info("conversation id assigned", "conversation_id", string(id))
	}
	s.activeID = id
}

// Epoch identifies the current thread generation. StartNew and
// LoadConversation bump it; the dispatcher uses it to detect a thread
// switch that happened while an exchange was in flight.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// StartNew clears the active conversation id and resets the timeline to
// a single welcome message in the current locale.
func (s *Store) StartNew() {
	welcome := s.locale.WelcomeText()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeID = ""
	s.epoch++
	s.nextID++
	s.messages = []*domain.Message{{
		ID:        s.nextID,
		Role:      domain.RoleAssistant,
		Type:      domain.TypeText,
		Content:   welcome,
		Timestamp: s.now(),
		Status:    domain.StatusDelivered,
	}}
}

// LoadConversation fetches the full history for id and atomically
// replaces the active conversation; the prior timeline is discarded, not
// merged. Fetched messages get fresh local ordinals in backend order:
// ordinals are never reused, so two loads of the same thread agree on
// role, type, content and order, but not on message ids.
func (s *Store) LoadConversation(ctx context.Context, id domain.ConversationID) error {
	conv, err := s.reader.GetConversation(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]*domain.Message, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		copied := *m
		s.nextID++
		copied.ID = s.nextID
		if copied.Status == "" {
			copied.Status = domain.StatusDelivered
		}
		msgs = append(msgs, &copied)
	}

	s.activeID = conv.ID
	s.messages = msgs
	s.epoch++
	return nil
}

// Summaries returns the last known conversation list. It may be stale
// between refreshes; the dispatcher refreshes it after each successful
// exchange, never on a timer.
func (s *Store) Summaries() []domain.ConversationSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ConversationSummary, len(s.summaries))
	copy(out, s.summaries)
	return out
}

// RefreshSummaries re-fetches the conversation list from the backend.
func (s *Store) RefreshSummaries(ctx context.Context) error {
	list, err := s.reader.ListConversations(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = list
	return nil
}
