package assist

import (
	"context"
	"fmt"

	"github.com/agrimitra/agrimitra/internal/domain"
)

// MockReplier answers with canned farming advice. Used in local mode
// without GCP credentials and throughout the tests.
type MockReplier struct {
	ReplyText     string
	Transcription string
	AnalysisText  string
	Err           error
}

func NewMockReplier() *MockReplier {
	return &MockReplier{}
}

func (m *MockReplier) Reply(_ context.Context, question string, _ []*domain.Message, _ domain.LanguageCode) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if m.ReplyText != "" {
		return m.ReplyText, nil
	}
	return fmt.Sprintf("You asked %q. For most crops, check soil moisture first and act early in the morning.", question), nil
}

func (m *MockReplier) Transcribe(_ context.Context, _ domain.AudioPayload, _ domain.LanguageCode) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if m.Transcription != "" {
		return m.Transcription, nil
	}
	return "how is my crop doing", nil
}

func (m *MockReplier) AnalyzeImage(ctx context.Context, _ domain.ImageUpload, question string, lang domain.LanguageCode) (string, string, error) {
	if m.Err != nil {
		return "", "", m.Err
	}
	analysis := m.AnalysisText
	if analysis == "" {
		analysis = "healthy crop, no visible disease"
	}
	reply, err := m.Reply(ctx, question, nil, lang)
	return analysis, reply, err
}
