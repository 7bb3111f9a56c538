package assist

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/agrimitra/agrimitra/internal/domain"
)

type GeminiReplier struct {
	client    *genai.Client
	modelName string
}

// NewGeminiReplier creates a Replier backed by Vertex AI (Gemini).
func NewGeminiReplier(ctx context.Context, projectID, location, modelName string) (*GeminiReplier, error) {
	if projectID == "" || location == "" {
		return nil, fmt.Errorf("assist: project id and location are required for Gemini")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("assist: creating Vertex AI client: %w", err)
	}

	return &GeminiReplier{
		client:    client,
		modelName: modelName,
	}, nil
}

func (g *GeminiReplier) Reply(
	ctx context.Context,
	question string,
	history []*domain.Message,
	lang domain.LanguageCode,
) (string, error) {
	var contents []*genai.Content
	for _, m := range history {
		role := genai.Role(genai.RoleUser)
		if m.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(question, genai.RoleUser))

	return g.generate(ctx, contents, BuildSystemPrompt(lang))
}

func (g *GeminiReplier) Transcribe(
	ctx context.Context,
	audio domain.AudioPayload,
	lang domain.LanguageCode,
) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(transcribePrompt),
		genai.NewPartFromBytes(audio.Data, audio.MIMEType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	text, err := g.generate(ctx, contents, BuildSystemPrompt(lang))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (g *GeminiReplier) AnalyzeImage(
	ctx context.Context,
	img domain.ImageUpload,
	question string,
	lang domain.LanguageCode,
) (string, string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(imageAnalysisPrompt + "\nFarmer's question: " + question),
		genai.NewPartFromBytes(img.Data, img.MIMEType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	text, err := g.generate(ctx, contents, BuildSystemPrompt(lang))
	if err != nil {
		return "", "", err
	}

	analysis, reply := splitAnalysis(text)
	return analysis, reply, nil
}

func (g *GeminiReplier) generate(ctx context.Context, contents []*genai.Content, system string) (string, error) {
	temp := float32(0.7)
	topP := float32(0.9)
	outputTokens := int32(8192)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       &temp,
		TopP:              &topP,
		MaxOutputTokens:   outputTokens,
	}

	res, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("assist: generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("assist: model returned empty text")
	}
	return text, nil
}

// splitAnalysis separates the "ANALYSIS: ..." first line the image prompt
// asks for from the advice that follows. When the model did not follow
// the format, the whole text becomes the reply.
func splitAnalysis(text string) (analysis, reply string) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "ANALYSIS:") {
		return "", trimmed
	}
	line, rest, found := strings.Cut(trimmed, "\n")
	analysis = strings.TrimSpace(strings.TrimPrefix(line, "ANALYSIS:"))
	if !found {
		return analysis, ""
	}
	return analysis, strings.TrimSpace(rest)
}
