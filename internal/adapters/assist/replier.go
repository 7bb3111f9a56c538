// Package assist is the in-process chatbot backend used in local mode:
// it implements the same exchange/reader ports as the remote REST client,
// generating replies with Gemini (or a mock) and keeping conversation
// history in a pluggable store.
package assist

import (
	"context"

	"github.com/agrimitra/agrimitra/internal/domain"
)

// Replier is the assistant brain behind the local backend.
type Replier interface {
	Reply(ctx context.Context, question string, history []*domain.Message, lang domain.LanguageCode) (string, error)
	Transcribe(ctx context.Context, audio domain.AudioPayload, lang domain.LanguageCode) (string, error)
	AnalyzeImage(ctx context.Context, img domain.ImageUpload, question string, lang domain.LanguageCode) (analysis string, reply string, err error)
}
