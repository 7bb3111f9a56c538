package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/agrimitra/agrimitra/internal/adapters/storage/memory"
	"github.com/agrimitra/agrimitra/internal/domain"
)

func TestCreateAppendGet(t *testing.T) {
	ctx := context.Background()
	s := memory.NewHistoryStore()

	conv := &domain.ConversationSummary{ID: "c1", Title: "Wheat", UpdatedAt: time.Now()}
	if err := s.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if err := s.CreateConversation(ctx, conv); err == nil {
		t.Fatalf("expected duplicate create to fail")
	}

	for i, text := range []string{"q1", "a1", "q2"} {
		err := s.AppendMessage(ctx, "c1", &domain.Message{
			ID:      domain.MessageID(i + 1),
			Role:    domain.RoleUser,
			Type:    domain.TypeText,
			Content: text,
		})
		if err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	}

	got, err := s.GetConversation(ctx, "c1")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if len(got.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got.Messages))
	}
	if got.Messages[2].Content != "q2" {
		t.Fatalf("messages out of order: %q", got.Messages[2].Content)
	}
}

func TestGetUnknownConversation(t *testing.T) {
	s := memory.NewHistoryStore()
	if _, err := s.GetConversation(context.Background(), "nope"); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.AppendMessage(context.Background(), "nope", &domain.Message{ID: 1}); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListOrderedByUpdateDesc(t *testing.T) {
	ctx := context.Background()
	s := memory.NewHistoryStore()
	base := time.Now()

	for i, id := range []domain.ConversationID{"old", "mid", "new"} {
		err := s.CreateConversation(ctx, &domain.ConversationSummary{
			ID:        id,
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("CreateConversation failed: %v", err)
		}
	}

	list, err := s.ListConversations(ctx, 2)
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected limit 2, got %d", len(list))
	}
	if list[0].ID != "new" || list[1].ID != "mid" {
		t.Fatalf("wrong order: %v, %v", list[0].ID, list[1].ID)
	}
}

func TestTouchUpdatesSummary(t *testing.T) {
	ctx := context.Background()
	s := memory.NewHistoryStore()

	if err := s.CreateConversation(ctx, &domain.ConversationSummary{ID: "c1", Title: "t"}); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	err := s.TouchConversation(ctx, &domain.ConversationSummary{
		ID: "c1", Title: "t", LastMessage: "latest advice", UpdatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("TouchConversation failed: %v", err)
	}

	got, err := s.GetConversation(ctx, "c1")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if got.LastMessage != "latest advice" {
		t.Fatalf("summary not updated: %q", got.LastMessage)
	}

	if err := s.TouchConversation(ctx, &domain.ConversationSummary{ID: "ghost"}); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
