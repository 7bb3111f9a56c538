// Package api is the REST client for the chatbot backend. It implements
// the exchange and reader ports over the five-endpoint surface:
//
//	POST /api/chatbot/message
//	POST /api/chatbot/image
//	POST /api/chatbot/voice
//	GET  /api/chatbot/conversations
//	GET  /api/chatbot/conversation/{id}
//
// Responses share the {success, message?, data} envelope. A transport
// error or non-2xx status maps to NetworkFailure; success:false maps to
// ServerRejected.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/agrimitra/agrimitra/internal/domain"
)

type Client struct {
	baseURL string
	token   string // optional; anonymous chat is allowed
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type textRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
	Language       string `json:"language"`
}

type exchangeData struct {
	Response       string       `json:"response"`
	ConversationID string       `json:"conversationId"`
	Confidence     *float64     `json:"confidence,omitempty"`
	Sources        []sourceData `json:"sources,omitempty"`
	ImageAnalysis  string       `json:"imageAnalysis,omitempty"`
}

type voiceData struct {
	Transcription  string   `json:"transcription"`
	Response       string   `json:"response"`
	ConversationID string   `json:"conversationId"`
	AudioResponse  string   `json:"audioResponse,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"`
}

type sourceData struct {
	Category  string  `json:"category"`
	Relevance float64 `json:"relevance"`
}

type conversationListData struct {
	Conversations []conversationSummaryData `json:"conversations"`
}

type conversationSummaryData struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	LastMessage string    `json:"lastMessage"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type conversationDetailData struct {
	ID       string        `json:"_id"`
	Title    string        `json:"title"`
	Messages []messageData `json:"messages"`
}

type messageData struct {
	Role          string       `json:"role"`
	Type          string       `json:"type"`
	Content       string       `json:"content"`
	Timestamp     time.Time    `json:"timestamp"`
	Confidence    *float64     `json:"confidence,omitempty"`
	Sources       []sourceData `json:"sources,omitempty"`
	ImageAnalysis string       `json:"imageAnalysis,omitempty"`
	AudioResponse string       `json:"audioResponse,omitempty"`
}

// ─────────────────────────────────────────────
// ExchangeClient implementation
// ─────────────────────────────────────────────

func (c *Client) SendText(ctx context.Context, in domain.TextExchange) (*domain.ExchangeResult, error) {
	body, err := json.Marshal(textRequest{
		Message:        in.Message,
		ConversationID: string(in.ConversationID),
		Language:       string(in.Language),
	})
	if err != nil {
		return nil, fmt.Errorf("api: encode text request: %w", err)
	}

	data, err := c.post(ctx, "/api/chatbot/message", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var out exchangeData
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, domain.NewError(domain.ErrorNetworkFailure, "malformed_response", err)
	}
	return toExchangeResult(out), nil
}

func (c *Client) SendImage(ctx context.Context, in domain.ImageExchange) (*domain.ExchangeResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	name := in.Image.Name
	if name == "" {
		name = "image"
	}
	part, err := mw.CreateFormFile("image", name)
	if err != nil {
		return nil, fmt.Errorf("api: build image part: %w", err)
	}
	if _, err := part.Write(in.Image.Data); err != nil {
		return nil, fmt.Errorf("api: write image part: %w", err)
	}
	if err := writeFields(mw, map[string]string{
		"question":       in.Question,
		"language":       string(in.Language),
		"conversationId": string(in.ConversationID),
	}); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("api: finalize multipart: %w", err)
	}

	data, err := c.post(ctx, "/api/chatbot/image", mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}

	var out exchangeData
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, domain.NewError(domain.ErrorNetworkFailure, "malformed_response", err)
	}
	return toExchangeResult(out), nil
}

func (c *Client) SendVoice(ctx context.Context, in domain.VoiceExchange) (*domain.VoiceResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("audio", "recording")
	if err != nil {
		return nil, fmt.Errorf("api: build audio part: %w", err)
	}
	if _, err := part.Write(in.Audio.Data); err != nil {
		return nil, fmt.Errorf("api: write audio part: %w", err)
	}
	if err := writeFields(mw, map[string]string{
		"language":       string(in.Language),
		"conversationId": string(in.ConversationID),
	}); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("api: finalize multipart: %w", err)
	}

	data, err := c.post(ctx, "/api/chatbot/voice", mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}

	var out voiceData
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, domain.NewError(domain.ErrorNetworkFailure, "malformed_response", err)
	}
	return &domain.VoiceResult{
		Transcription:  out.Transcription,
		Response:       out.Response,
		ConversationID: domain.ConversationID(out.ConversationID),
		AudioResponse:  out.AudioResponse,
		Confidence:     out.Confidence,
	}, nil
}

// ─────────────────────────────────────────────
// ConversationReader implementation
// ─────────────────────────────────────────────

func (c *Client) ListConversations(ctx context.Context) ([]domain.ConversationSummary, error) {
	data, err := c.get(ctx, "/api/chatbot/conversations")
	if err != nil {
		return nil, err
	}

	var out conversationListData
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, domain.NewError(domain.ErrorNetworkFailure, "malformed_response", err)
	}

	list := make([]domain.ConversationSummary, 0, len(out.Conversations))
	for _, conv := range out.Conversations {
		list = append(list, domain.ConversationSummary{
			ID:          domain.ConversationID(conv.ID),
			Title:       conv.Title,
			LastMessage: conv.LastMessage,
			UpdatedAt:   conv.UpdatedAt,
		})
	}
	return list, nil
}

func (c *Client) GetConversation(ctx context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	data, err := c.get(ctx, "/api/chatbot/conversation/"+string(id))
	if err != nil {
		return nil, err
	}

	var out conversationDetailData
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, domain.NewError(domain.ErrorNetworkFailure, "malformed_response", err)
	}

	conv := &domain.Conversation{
		ID:    domain.ConversationID(out.ID),
		Title: out.Title,
	}
	for _, m := range out.Messages {
		conv.Messages = append(conv.Messages, toMessage(m))
	}
	return conv, nil
}

// ─────────────────────────────────────────────
// Transport helpers
// ─────────────────────────────────────────────

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("api: build request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.NewError(domain.ErrorNetworkFailure, "transport", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, domain.NewError(domain.ErrorNetworkFailure, "read_body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.NewError(domain.ErrorNetworkFailure,
			fmt.Sprintf("http_status_%d", resp.StatusCode), nil)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, domain.NewError(domain.ErrorNetworkFailure, "malformed_envelope", err)
	}
	if !env.Success {
		reason := env.Message
		if reason == "" {
			reason = "rejected"
		}
		return nil, domain.NewError(domain.ErrorServerRejected, reason, nil)
	}
	return env.Data, nil
}

func writeFields(mw *multipart.Writer, fields map[string]string) error {
	for key, value := range fields {
		if value == "" && key == "conversationId" {
			continue
		}
		if err := mw.WriteField(key, value); err != nil {
			return fmt.Errorf("api: write field %s: %w", key, err)
		}
	}
	return nil
}

func toExchangeResult(d exchangeData) *domain.ExchangeResult {
	res := &domain.ExchangeResult{
		Response:       d.Response,
		ConversationID: domain.ConversationID(d.ConversationID),
		Confidence:     d.Confidence,
		ImageAnalysis:  d.ImageAnalysis,
	}
	for _, s := range d.Sources {
		res.Sources = append(res.Sources, domain.Source{Category: s.Category, Relevance: s.Relevance})
	}
	return res
}

func toMessage(m messageData) *domain.Message {
	msg := &domain.Message{
		Role:       domain.Role(m.Role),
		Type:       domain.MessageType(m.Type),
		Content:    m.Content,
		Timestamp:  m.Timestamp,
		Status:     domain.StatusDelivered,
		Confidence: m.Confidence,
		Analysis:   m.ImageAnalysis,
	}
	for _, s := range m.Sources {
		msg.Sources = append(msg.Sources, domain.Source{Category: s.Category, Relevance: s.Relevance})
	}
	if m.AudioResponse != "" {
		msg.Attachment = &domain.Attachment{Kind: "audio", Ref: m.AudioResponse}
	}
	return msg
}
