package assist

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agrimitra/agrimitra/internal/domain"
	"github.com/agrimitra/agrimitra/internal/observability"
)

const (
	titleMaxLen      = 40
	listLimit        = 50
	voiceTitlePrefix = "Voice: "
)

var newConversationID = func() string {
	return uuid.NewString()
}

// LocalBackend serves the exchange and reader ports in-process. It owns
// the server-side responsibilities the remote backend would have:
// assigning conversation ids on the first exchange, persisting history,
// and keeping summary fields (title, lastMessage, updatedAt) current.
type LocalBackend struct {
	replier Replier
	history domain.HistoryStore
	now     func() time.Time

	// One exchange at a time reaches this backend (dispatcher invariant),
	// but the reader side is hit concurrently by the summary refresh.
	mu sync.Mutex
}

func NewLocalBackend(replier Replier, history domain.HistoryStore) *LocalBackend {
	return &LocalBackend{
		replier: replier,
		history: history,
		now:     time.Now,
	}
}

func (b *LocalBackend) SendText(ctx context.Context, in domain.TextExchange) (*domain.ExchangeResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	conv, err := b.ensureConversation(ctx, in.ConversationID, in.Message)
	if err != nil {
		return nil, err
	}

	userMsg := b.message(len(conv.Messages)+1, domain.RoleUser, domain.TypeText, in.Message)
	if err := b.history.AppendMessage(ctx, conv.ID, userMsg); err != nil {
		return nil, domain.NewError(domain.ErrorServerRejected, "history_write_failed", err)
	}

	reply, err := b.replier.Reply(ctx, in.Message, conv.Messages, in.Language)
	if err != nil {
		return nil, domain.NewError(domain.ErrorServerRejected, "assistant_failed", err)
	}

	if err := b.finishExchange(ctx, conv, len(conv.Messages)+2, domain.TypeText, reply, ""); err != nil {
		return nil, err
	}

	return &domain.ExchangeResult{
		Response:       reply,
		ConversationID: conv.ID,
	}, nil
}

func (b *LocalBackend) SendImage(ctx context.Context, in domain.ImageExchange) (*domain.ExchangeResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	conv, err := b.ensureConversation(ctx, in.ConversationID, in.Question)
	if err != nil {
		return nil, err
	}

	userMsg := b.message(len(conv.Messages)+1, domain.RoleUser, domain.TypeImage, in.Question)
	if err := b.history.AppendMessage(ctx, conv.ID, userMsg); err != nil {
		return nil, domain.NewError(domain.ErrorServerRejected, "history_write_failed", err)
	}

	analysis, reply, err := b.replier.AnalyzeImage(ctx, in.Image, in.Question, in.Language)
	if err != nil {
		return nil, domain.NewError(domain.ErrorServerRejected, "assistant_failed", err)
	}

	replyType := domain.TypeText
	if analysis != "" {
		replyType = domain.TypeImageAnalysis
	}
	if err := b.finishExchange(ctx, conv, len(conv.Messages)+2, replyType, reply, analysis); err != nil {
		return nil, err
	}

	return &domain.ExchangeResult{
		Response:       reply,
		ConversationID: conv.ID,
		ImageAnalysis:  analysis,
	}, nil
}

func (b *LocalBackend) SendVoice(ctx context.Context, in domain.VoiceExchange) (*domain.VoiceResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	transcription, err := b.replier.Transcribe(ctx, in.Audio, in.Language)
	if err != nil {
		return nil, domain.NewError(domain.ErrorServerRejected, "transcription_failed", err)
	}

	conv, err := b.ensureConversation(ctx, in.ConversationID, voiceTitlePrefix+transcription)
	if err != nil {
		return nil, err
	}

	userMsg := b.message(len(conv.Messages)+1, domain.RoleUser, domain.TypeVoice, transcription)
	if err := b.history.AppendMessage(ctx, conv.ID, userMsg); err != nil {
		return nil, domain.NewError(domain.ErrorServerRejected, "history_write_failed", err)
	}

	reply, err := b.replier.Reply(ctx, transcription, conv.Messages, in.Language)
	if err != nil {
		return nil, domain.NewError(domain.ErrorServerRejected, "assistant_failed", err)
	}

	if err := b.finishExchange(ctx, conv, len(conv.Messages)+2, domain.TypeVoiceResponse, reply, ""); err != nil {
		return nil, err
	}

	return &domain.VoiceResult{
		Transcription:  transcription,
		Response:       reply,
		ConversationID: conv.ID,
	}, nil
}

func (b *LocalBackend) ListConversations(ctx context.Context) ([]domain.ConversationSummary, error) {
	list, err := b.history.ListConversations(ctx, listLimit)
	if err != nil {
		return nil, domain.NewError(domain.ErrorServerRejected, "history_list_failed", err)
	}
	return list, nil
}

func (b *LocalBackend) GetConversation(ctx context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	conv, err := b.history.GetConversation(ctx, id)
	if err != nil {
		return nil, domain.NewError(domain.ErrorServerRejected, "history_read_failed", err)
	}
	return conv, nil
}

// ensureConversation loads the thread, lazily creating it with a
// backend-assigned id when the exchange carries none. The first user
// message seeds the title.
func (b *LocalBackend) ensureConversation(ctx context.Context, id domain.ConversationID, seed string) (*domain.Conversation, error) {
	if id == "" {
		created := &domain.ConversationSummary{
			ID:        domain.ConversationID(newConversationID()),
			Title:     titleFrom(seed),
			UpdatedAt: b.now(),
		}
		if err := b.history.CreateConversation(ctx, created); err != nil {
			return nil, domain.NewError(domain.ErrorServerRejected, "history_create_failed", err)
		}
		observability.Logger().Info("conversation created", "conversation_id", string(created.ID))
		return &domain.Conversation{ID: created.ID, Title: created.Title}, nil
	}

	conv, err := b.history.GetConversation(ctx, id)
	if err != nil {
		return nil, domain.NewError(domain.ErrorServerRejected, "history_read_failed", err)
	}
	return conv, nil
}

func (b *LocalBackend) finishExchange(
	ctx context.Context,
	conv *domain.Conversation,
	ordinal int,
	replyType domain.MessageType,
	reply, analysis string,
) error {
	assistantMsg := b.message(ordinal, domain.RoleAssistant, replyType, reply)
	assistantMsg.Analysis = analysis
	if err := b.history.AppendMessage(ctx, conv.ID, assistantMsg); err != nil {
		return domain.NewError(domain.ErrorServerRejected, "history_write_failed", err)
	}

	summary := &domain.ConversationSummary{
		ID:          conv.ID,
		Title:       conv.Title,
		LastMessage: titleFrom(reply),
		UpdatedAt:   b.now(),
	}
	if err := b.history.TouchConversation(ctx, summary); err != nil {
		return domain.NewError(domain.ErrorServerRejected, "history_touch_failed", err)
	}
	return nil
}

func (b *LocalBackend) message(ordinal int, role domain.Role, typ domain.MessageType, content string) *domain.Message {
	return &domain.Message{
		ID:        domain.MessageID(ordinal),
		Role:      role,
		Type:      typ,
		Content:   content,
		Timestamp: b.now(),
		Status:    domain.StatusDelivered,
	}
}

func titleFrom(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= titleMaxLen {
		return text
	}
	return strings.TrimSpace(string(runes[:titleMaxLen])) + "…"
}
