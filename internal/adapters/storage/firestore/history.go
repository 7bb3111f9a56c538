// Package firestore persists local-backend conversation history in
// Cloud Firestore: one document per conversation in the "conversations"
// collection with a "messages" subcollection.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/agrimitra/agrimitra/internal/domain"
)

type HistoryStore struct {
	client *firestore.Client
}

// NewHistoryStore creates a Firestore-backed history store for the given
// project (AGRI_GCP_PROJECT).
func NewHistoryStore(ctx context.Context, projectID string) (*HistoryStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firestore: projectID is required")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore: creating client: %w", err)
	}

	return &HistoryStore{client: client}, nil
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *HistoryStore) conversationsCol() *firestore.CollectionRef {
	return s.client.Collection("conversations")
}

func (s *HistoryStore) conversationDoc(id domain.ConversationID) *firestore.DocumentRef {
	return s.conversationsCol().Doc(string(id))
}

func (s *HistoryStore) messagesCol(id domain.ConversationID) *firestore.CollectionRef {
	return s.conversationDoc(id).Collection("messages")
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type conversationDoc struct {
	Title       string    `firestore:"title"`
	LastMessage string    `firestore:"last_message"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

type sourceDoc struct {
	Category  string  `firestore:"category"`
	Relevance float64 `firestore:"relevance"`
}

type messageDoc struct {
	Ordinal    int64       `firestore:"ordinal"`
	Role       string      `firestore:"role"`
	Type       string      `firestore:"type"`
	Content    string      `firestore:"content"`
	CreatedAt  time.Time   `firestore:"created_at"`
	Confidence *float64    `firestore:"confidence"`
	Analysis   string      `firestore:"analysis"`
	AudioRef   string      `firestore:"audio_ref"`
	Sources    []sourceDoc `firestore:"sources"`
}

// ─────────────────────────────────────────
// HistoryStore implementation
// ─────────────────────────────────────────

func (s *HistoryStore) CreateConversation(ctx context.Context, conv *domain.ConversationSummary) error {
	doc := conversationDoc{
		Title:       conv.Title,
		LastMessage: conv.LastMessage,
		UpdatedAt:   conv.UpdatedAt,
	}

	_, err := s.conversationDoc(conv.ID).Create(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore CreateConversation: %w", err)
	}
	return nil
}

func (s *HistoryStore) TouchConversation(ctx context.Context, conv *domain.ConversationSummary) error {
	doc := map[string]interface{}{
		"title":        conv.Title,
		"last_message": conv.LastMessage,
		"updated_at":   conv.UpdatedAt,
	}

	_, err := s.conversationDoc(conv.ID).Set(ctx, doc, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("firestore TouchConversation: %w", err)
	}
	return nil
}

func (s *HistoryStore) AppendMessage(ctx context.Context, id domain.ConversationID, msg *domain.Message) error {
	doc := messageDoc{
		Ordinal:    int64(msg.ID),
		Role:       string(msg.Role),
		Type:       string(msg.Type),
		Content:    msg.Content,
		CreatedAt:  msg.Timestamp,
		Confidence: msg.Confidence,
		Analysis:   msg.Analysis,
	}
	if msg.Attachment != nil && msg.Attachment.Kind == "audio" {
		doc.AudioRef = msg.Attachment.Ref
	}
	for _, src := range msg.Sources {
		doc.Sources = append(doc.Sources, sourceDoc{Category: src.Category, Relevance: src.Relevance})
	}

	docID := fmt.Sprintf("%08d", msg.ID)
	_, err := s.messagesCol(id).Doc(docID).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore AppendMessage: %w", err)
	}
	return nil
}

func (s *HistoryStore) GetConversation(ctx context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	snap, err := s.conversationDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("firestore GetConversation: %w", err)
	}

	var doc conversationDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetConversation decode: %w", err)
	}

	conv := &domain.Conversation{
		ID:          id,
		Title:       doc.Title,
		LastMessage: doc.LastMessage,
		UpdatedAt:   doc.UpdatedAt,
	}

	iter := s.messagesCol(id).OrderBy("ordinal", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	for {
		msnap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore GetConversation messages: %w", err)
		}

		var mdoc messageDoc
		if err := msnap.DataTo(&mdoc); err != nil {
			return nil, fmt.Errorf("firestore decode messageDoc: %w", err)
		}
		conv.Messages = append(conv.Messages, toMessage(mdoc))
	}
	return conv, nil
}

func (s *HistoryStore) ListConversations(ctx context.Context, limit int) ([]domain.ConversationSummary, error) {
	q := s.conversationsCol().OrderBy("updated_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []domain.ConversationSummary
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListConversations: %w", err)
		}

		var doc conversationDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("firestore decode conversationDoc: %w", err)
		}

		out = append(out, domain.ConversationSummary{
			ID:          domain.ConversationID(snap.Ref.ID),
			Title:       doc.Title,
			LastMessage: doc.LastMessage,
			UpdatedAt:   doc.UpdatedAt,
		})
	}
	return out, nil
}

func toMessage(doc messageDoc) *domain.Message {
	msg := &domain.Message{
		ID:         domain.MessageID(doc.Ordinal),
		Role:       domain.Role(doc.Role),
		Type:       domain.MessageType(doc.Type),
		Content:    doc.Content,
		Timestamp:  doc.CreatedAt,
		Status:     domain.StatusDelivered,
		Confidence: doc.Confidence,
		Analysis:   doc.Analysis,
	}
	if doc.AudioRef != "" {
		msg.Attachment = &domain.Attachment{Kind: "audio", Ref: doc.AudioRef}
	}
	for _, src := range doc.Sources {
		msg.Sources = append(msg.Sources, domain.Source{Category: src.Category, Relevance: src.Relevance})
	}
	return msg
}
