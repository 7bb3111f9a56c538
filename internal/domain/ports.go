package domain

import "context"

// TextExchange carries one typed message to the backend.
type TextExchange struct {
	Message        string
	ConversationID ConversationID // empty for a brand-new thread
	Language       LanguageCode
}

// ImageExchange carries one uploaded image plus its question.
type ImageExchange struct {
	Image          ImageUpload
	Question       string
	Language       LanguageCode
	ConversationID ConversationID
}

// VoiceExchange carries one finalized audio capture.
type VoiceExchange struct {
	Audio          AudioPayload
	Language       LanguageCode
	ConversationID ConversationID
}

// ExchangeResult is the reconciled outcome of a text or image exchange.
type ExchangeResult struct {
	Response       string
	ConversationID ConversationID
	Confidence     *float64
	Sources        []Source
	ImageAnalysis  string
}

// VoiceResult is the outcome of a voice exchange. Transcription replaces
// the optimistic user message's content; AudioResponse, when present,
// references synthesized speech for the reply.
type VoiceResult struct {
	Transcription  string
	Response       string
	ConversationID ConversationID
	AudioResponse  string
	Confidence     *float64
}

// ExchangeClient is the send side of the chatbot backend. Exactly one
// exchange is in flight at a time; serialization is the dispatcher's job,
// not the client's.
type ExchangeClient interface {
	SendText(ctx context.Context, in TextExchange) (*ExchangeResult, error)
	SendImage(ctx context.Context, in ImageExchange) (*ExchangeResult, error)
	SendVoice(ctx context.Context, in VoiceExchange) (*VoiceResult, error)
}

// ConversationReader is the read side of the chatbot backend.
type ConversationReader interface {
	ListConversations(ctx context.Context) ([]ConversationSummary, error)
	GetConversation(ctx context.Context, id ConversationID) (*Conversation, error)
}

// AudioDevice is the platform's exclusive audio-input resource. Start
// acquires the device and delivers raw chunks to sink until Stop releases
// it. A stream that dies before Stop is reported through fail exactly
// once; Stop stays safe to call after such a report (idempotent release).
type AudioDevice interface {
	Start(ctx context.Context, sink func(chunk []byte), fail func(err error)) error
	Stop() error
}

// SpeechPlayer speaks an assistant reply aloud. Best effort only.
type SpeechPlayer interface {
	Speak(ctx context.Context, text string, lang LanguageCode) error
}

// HistoryStore persists conversations for the in-process (local) backend.
type HistoryStore interface {
	CreateConversation(ctx context.Context, conv *ConversationSummary) error
	TouchConversation(ctx context.Context, conv *ConversationSummary) error
	AppendMessage(ctx context.Context, id ConversationID, msg *Message) error
	GetConversation(ctx context.Context, id ConversationID) (*Conversation, error)
	ListConversations(ctx context.Context, limit int) ([]ConversationSummary, error)
}
