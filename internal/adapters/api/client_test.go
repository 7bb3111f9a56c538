package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agrimitra/agrimitra/internal/adapters/api"
	"github.com/agrimitra/agrimitra/internal/domain"
)

func TestSendTextWirePayloadAndBearerToken(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/chatbot/message", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"response":"Use DAP at sowing.","conversationId":"c-1","confidence":0.8,"sources":[{"category":"fertilizer","relevance":0.95}]}}`))
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, "tok-123")
	res, err := client.SendText(context.Background(), domain.TextExchange{
		Message:        "What fertilizer for wheat?",
		ConversationID: "c-1",
		Language:       "hi",
	})
	require.NoError(t, err)

	require.Equal(t, "Bearer tok-123", gotAuth)
	require.Equal(t, "What fertilizer for wheat?", gotBody["message"])
	require.Equal(t, "c-1", gotBody["conversationId"])
	require.Equal(t, "hi", gotBody["language"])

	require.Equal(t, "Use DAP at sowing.", res.Response)
	require.Equal(t, domain.ConversationID("c-1"), res.ConversationID)
	require.NotNil(t, res.Confidence)
	require.InDelta(t, 0.8, *res.Confidence, 1e-9)
	require.Len(t, res.Sources, 1)
	require.Equal(t, "fertilizer", res.Sources[0].Category)
}

func TestSendTextOmitsConversationIDForNewThread(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"success":true,"data":{"response":"ok","conversationId":"c-new"}}`))
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, "")
	_, err := client.SendText(context.Background(), domain.TextExchange{Message: "hi", Language: "en"})
	require.NoError(t, err)

	_, present := gotBody["conversationId"]
	require.False(t, present)
}

func TestSendImageMultipartFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chatbot/image", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(32<<20))

		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "leaf.jpg", header.Filename)

		require.Equal(t, "what is this?", r.FormValue("question"))
		require.Equal(t, "pa", r.FormValue("language"))
		require.Equal(t, "c-2", r.FormValue("conversationId"))

		w.Write([]byte(`{"success":true,"data":{"response":"leaf rust","conversationId":"c-2","imageAnalysis":"rust, moderate"}}`))
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, "")
	res, err := client.SendImage(context.Background(), domain.ImageExchange{
		Image:          domain.ImageUpload{Data: []byte("jpegdata"), Name: "leaf.jpg", MIMEType: "image/jpeg"},
		Question:       "what is this?",
		Language:       "pa",
		ConversationID: "c-2",
	})
	require.NoError(t, err)
	require.Equal(t, "rust, moderate", res.ImageAnalysis)
}

func TestSendVoiceMultipartAndResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chatbot/voice", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(32<<20))

		file, _, err := r.FormFile("audio")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "ur", r.FormValue("language"))

		w.Write([]byte(`{"success":true,"data":{"transcription":"water my crop","response":"evening irrigation","conversationId":"c-3","audioResponse":"https://x/a.mp3"}}`))
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, "")
	res, err := client.SendVoice(context.Background(), domain.VoiceExchange{
		Audio:    domain.AudioPayload{Data: []byte("riff"), MIMEType: "audio/wav"},
		Language: "ur",
	})
	require.NoError(t, err)
	require.Equal(t, "water my crop", res.Transcription)
	require.Equal(t, "evening irrigation", res.Response)
	require.Equal(t, "https://x/a.mp3", res.AudioResponse)
}

func TestListAndGetConversations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chatbot/conversations":
			w.Write([]byte(`{"success":true,"data":{"conversations":[{"_id":"c-9","title":"Wheat rust","lastMessage":"spray now?","updatedAt":"2026-08-30T10:00:00Z"}]}}`))
		case "/api/chatbot/conversation/c-9":
			w.Write([]byte(`{"success":true,"data":{"_id":"c-9","messages":[{"role":"user","type":"text","content":"spray now?","timestamp":"2026-08-30T09:59:00Z"},{"role":"assistant","type":"text","content":"Yes, before rain.","timestamp":"2026-08-30T10:00:00Z"}]}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, "")

	list, err := client.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, domain.ConversationID("c-9"), list[0].ID)
	require.Equal(t, "Wheat rust", list[0].Title)

	conv, err := client.GetConversation(context.Background(), "c-9")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	require.Equal(t, domain.RoleUser, conv.Messages[0].Role)
	require.Equal(t, "Yes, before rain.", conv.Messages[1].Content)
	require.Equal(t, domain.StatusDelivered, conv.Messages[0].Status)
}

func TestNon2xxMapsToNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, "")
	_, err := client.SendText(context.Background(), domain.TextExchange{Message: "hi", Language: "en"})
	require.Error(t, err)

	code, ok := domain.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, domain.ErrorNetworkFailure, code)
}

func TestSuccessFalseMapsToServerRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"quota exceeded"}`))
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, "")
	_, err := client.SendText(context.Background(), domain.TextExchange{Message: "hi", Language: "en"})
	require.Error(t, err)

	code, ok := domain.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, domain.ErrorServerRejected, code)
	require.Contains(t, err.Error(), "quota exceeded")
}

func TestTransportErrorMapsToNetworkFailure(t *testing.T) {
	client := api.NewClient("http://127.0.0.1:1", "")
	_, err := client.ListConversations(context.Background())
	require.Error(t, err)

	code, ok := domain.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, domain.ErrorNetworkFailure, code)
}
