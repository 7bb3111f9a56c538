package dispatch_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/agrimitra/agrimitra/internal/app/dispatch"
	"github.com/agrimitra/agrimitra/internal/app/locale"
	"github.com/agrimitra/agrimitra/internal/app/store"
	"github.com/agrimitra/agrimitra/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeReader struct {
	mu        sync.Mutex
	summaries []domain.ConversationSummary
	listErr   error
	listCalls int
}

func (r *fakeReader) ListConversations(_ context.Context) ([]domain.ConversationSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	return r.summaries, r.listErr
}

func (r *fakeReader) GetConversation(_ context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	return &domain.Conversation{ID: id}, nil
}

func (r *fakeReader) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listCalls
}

type fakeBackend struct {
	mu sync.Mutex

	textRes  *domain.ExchangeResult
	textErr  error
	imageRes *domain.ExchangeResult
	imageErr error
	voiceRes *domain.VoiceResult
	voiceErr error

	delay        time.Duration
	beforeReturn func()

	texts  []domain.TextExchange
	images []domain.ImageExchange
	voices []domain.VoiceExchange
}

func (b *fakeBackend) stall() {
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	if b.beforeReturn != nil {
		b.beforeReturn()
	}
}

func (b *fakeBackend) SendText(_ context.Context, in domain.TextExchange) (*domain.ExchangeResult, error) {
	b.mu.Lock()
	b.texts = append(b.texts, in)
	b.mu.Unlock()
	b.stall()
	return b.textRes, b.textErr
}

func (b *fakeBackend) SendImage(_ context.Context, in domain.ImageExchange) (*domain.ExchangeResult, error) {
	b.mu.Lock()
	b.images = append(b.images, in)
	b.mu.Unlock()
	b.stall()
	return b.imageRes, b.imageErr
}

func (b *fakeBackend) SendVoice(_ context.Context, in domain.VoiceExchange) (*domain.VoiceResult, error) {
	b.mu.Lock()
	b.voices = append(b.voices, in)
	b.mu.Unlock()
	b.stall()
	return b.voiceRes, b.voiceErr
}

func (b *fakeBackend) textCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.texts)
}

type fakeSpeaker struct {
	mu     sync.Mutex
	err    error
	spoken []string
}

func (s *fakeSpeaker) Speak(_ context.Context, text string, _ domain.LanguageCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	return s.err
}

func (s *fakeSpeaker) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spoken)
}

func newTestDispatcher(t *testing.T, backend *fakeBackend, reader *fakeReader, speaker domain.SpeechPlayer) (*dispatch.Dispatcher, *store.Store) {
	t.Helper()
	sel := locale.NewSelector(locale.English)
	st := store.NewStore(reader, sel)
	return dispatch.NewDispatcher(st, backend, sel, speaker), st
}

func confidence(v float64) *float64 { return &v }

func TestSendTextHappyPathAssignsConversationID(t *testing.T) {
	backend := &fakeBackend{
		textRes: &domain.ExchangeResult{
			Response:       "Use urea in split doses after first irrigation.",
			ConversationID: "conv-42",
			Confidence:     confidence(0.92),
			Sources:        []domain.Source{{Category: "fertilizer", Relevance: 0.9}},
		},
	}
	d, st := newTestDispatcher(t, backend, &fakeReader{}, nil)
	defer d.Wait()

	require.Empty(t, st.ActiveID())
	require.NoError(t, d.SendText(context.Background(), "What fertilizer for wheat?"))

	msgs := st.Messages()
	require.Len(t, msgs, 3) // welcome, user, assistant

	user := msgs[1]
	require.Equal(t, domain.RoleUser, user.Role)
	require.Equal(t, "What fertilizer for wheat?", user.Content)
	require.Equal(t, domain.StatusDelivered, user.Status)

	reply := msgs[2]
	require.Equal(t, domain.RoleAssistant, reply.Role)
	require.Equal(t, backend.textRes.Response, reply.Content)
	require.Equal(t, domain.StatusDelivered, reply.Status)
	require.NotNil(t, reply.Confidence)
	require.Len(t, reply.Sources, 1)

	require.Equal(t, domain.ConversationID("conv-42"), st.ActiveID())
	require.Equal(t, domain.LanguageCode("en"), backend.texts[0].Language)
	require.Empty(t, backend.texts[0].ConversationID)
}

func TestSendTextReusesAssignedConversationID(t *testing.T) {
	backend := &fakeBackend{
		textRes: &domain.ExchangeResult{Response: "ok", ConversationID: "conv-7"},
	}
	d, st := newTestDispatcher(t, backend, &fakeReader{}, nil)
	defer d.Wait()

	require.NoError(t, d.SendText(context.Background(), "first"))
	require.NoError(t, d.SendText(context.Background(), "second"))

	require.Equal(t, domain.ConversationID("conv-7"), st.ActiveID())
	require.Equal(t, domain.ConversationID(""), backend.texts[0].ConversationID)
	require.Equal(t, domain.ConversationID("conv-7"), backend.texts[1].ConversationID)
}

func TestSendTextNetworkFailureAppendsApology(t *testing.T) {
	backend := &fakeBackend{
		textErr: domain.NewError(domain.ErrorNetworkFailure, "transport", nil),
	}
	d, st := newTestDispatcher(t, backend, &fakeReader{}, nil)
	defer d.Wait()

	require.NoError(t, d.SendText(context.Background(), "hello"))

	msgs := st.Messages()
	require.Len(t, msgs, 3)

	user := msgs[1]
	require.Equal(t, "hello", user.Content)
	require.Equal(t, domain.StatusErrored, user.Status)

	apology := msgs[2]
	require.Equal(t, domain.RoleAssistant, apology.Role)
	require.Equal(t, domain.StatusErrored, apology.Status)
	require.Equal(t, locale.NewSelector(locale.English).Apology(), apology.Content)
	require.Empty(t, st.ActiveID(), "failed exchange must not assign a conversation id")
}

func TestSendTextEmptyInputIsNoOp(t *testing.T) {
	backend := &fakeBackend{}
	d, st := newTestDispatcher(t, backend, &fakeReader{}, nil)
	defer d.Wait()

	require.NoError(t, d.SendText(context.Background(), "   \n\t"))
	require.Len(t, st.Messages(), 1)
	require.Zero(t, backend.textCalls())
}

func TestSingleConcurrencyBusyRejection(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{
		textRes:      &domain.ExchangeResult{Response: "ok", ConversationID: "c1"},
		beforeReturn: func() { <-release },
	}
	d, st := newTestDispatcher(t, backend, &fakeReader{}, nil)
	defer d.Wait()

	done := make(chan error, 1)
	go func() {
		done <- d.SendText(context.Background(), "slow one")
	}()

	require.Eventually(t, d.Busy, time.Second, time.Millisecond)

	err := d.SendText(context.Background(), "second")
	require.ErrorIs(t, err, domain.ErrBusy)
	err = d.SendImage(context.Background(), domain.ImageUpload{Data: []byte("x")}, "")
	require.ErrorIs(t, err, domain.ErrBusy)
	err = d.SendVoice(context.Background(), &domain.AudioPayload{Data: []byte("x")})
	require.ErrorIs(t, err, domain.ErrBusy)

	// No second optimistic message, no second request.
	require.Len(t, st.Messages(), 2)
	require.Equal(t, 1, backend.textCalls())

	close(release)
	require.NoError(t, <-done)
	require.Len(t, st.Messages(), 3)
}

func TestOrderingUnderSkewedLatency(t *testing.T) {
	delays := []time.Duration{30 * time.Millisecond, time.Millisecond, 15 * time.Millisecond, 0}
	backend := &fakeBackend{}
	d, st := newTestDispatcher(t, backend, &fakeReader{}, nil)
	defer d.Wait()

	for i, delay := range delays {
		backend.delay = delay
		backend.textRes = &domain.ExchangeResult{
			Response:       fmt.Sprintf("reply-%d", i),
			ConversationID: "conv-1",
		}
		require.NoError(t, d.SendText(context.Background(), fmt.Sprintf("question-%d", i)))
	}

	msgs := st.Messages()
	require.Len(t, msgs, 1+2*len(delays))
	for i := range delays {
		require.Equal(t, fmt.Sprintf("question-%d", i), msgs[1+2*i].Content)
		require.Equal(t, fmt.Sprintf("reply-%d", i), msgs[2+2*i].Content)
	}
}

func TestSendVoiceTwoPhaseReconciliation(t *testing.T) {
	backend := &fakeBackend{
		voiceRes: &domain.VoiceResult{
			Transcription:  "water my crop",
			Response:       "Irrigate in the evening to reduce evaporation.",
			ConversationID: "conv-5",
			AudioResponse:  "https://backend/audio/abc.mp3",
		},
	}
	d, st := newTestDispatcher(t, backend, &fakeReader{}, nil)
	defer d.Wait()

	payload := &domain.AudioPayload{Data: []byte("riff"), MIMEType: "audio/wav"}
	require.NoError(t, d.SendVoice(context.Background(), payload))

	msgs := st.Messages()
	require.Len(t, msgs, 3)

	user := msgs[1]
	require.Equal(t, domain.RoleUser, user.Role)
	require.Equal(t, domain.TypeVoice, user.Type)
	require.Equal(t, "water my crop", user.Content, "transcription must replace the optimistic text")
	require.Equal(t, domain.StatusDelivered, user.Status)

	reply := msgs[2]
	require.Equal(t, domain.TypeVoiceResponse, reply.Type)
	require.NotNil(t, reply.Attachment)
	require.Equal(t, "https://backend/audio/abc.mp3", reply.Attachment.Ref)

	// Exactly one user message: the transcription did not append another.
	users := 0
	for _, m := range msgs {
		if m.Role == domain.RoleUser {
			users++
		}
	}
	require.Equal(t, 1, users)
}

func TestSendImageDefaultCaptionAndAnalysis(t *testing.T) {
	backend := &fakeBackend{
		imageRes: &domain.ExchangeResult{
			Response:       "This looks like leaf rust.",
			ConversationID: "conv-9",
			ImageAnalysis:  "Puccinia triticina, severity moderate",
		},
	}
	d, st := newTestDispatcher(t, backend, &fakeReader{}, nil)
	defer d.Wait()

	img := domain.ImageUpload{Data: []byte("jpeg"), Name: "leaf.jpg", MIMEType: "image/jpeg"}
	require.NoError(t, d.SendImage(context.Background(), img, "  "))

	sel := locale.NewSelector(locale.English)
	require.Equal(t, sel.DefaultImageQuestion(), backend.images[0].Question)

	msgs := st.Messages()
	user := msgs[1]
	require.Equal(t, domain.TypeImage, user.Type)
	require.Equal(t, sel.DefaultImageQuestion(), user.Content)
	require.NotNil(t, user.Attachment)
	require.Equal(t, "leaf.jpg", user.Attachment.Name)

	reply := msgs[2]
	require.Equal(t, domain.TypeImageAnalysis, reply.Type)
	require.Equal(t, "Puccinia triticina, severity moderate", reply.Analysis)
}

func TestSendImageRequiresFile(t *testing.T) {
	d, st := newTestDispatcher(t, &fakeBackend{}, &fakeReader{}, nil)
	defer d.Wait()

	require.Error(t, d.SendImage(context.Background(), domain.ImageUpload{}, "caption"))
	require.Len(t, st.Messages(), 1)
}

func TestRefreshFailureDoesNotAffectExchange(t *testing.T) {
	reader := &fakeReader{listErr: domain.NewError(domain.ErrorNetworkFailure, "list_failed", nil)}
	backend := &fakeBackend{
		textRes: &domain.ExchangeResult{Response: "ok", ConversationID: "c1"},
	}
	d, st := newTestDispatcher(t, backend, reader, nil)

	require.NoError(t, d.SendText(context.Background(), "hi"))
	d.Wait()

	require.Equal(t, 1, reader.calls(), "refresh must still be attempted")
	msgs := st.Messages()
	require.Equal(t, domain.StatusDelivered, msgs[len(msgs)-1].Status)
}

func TestRefreshRunsAfterEachSuccess(t *testing.T) {
	reader := &fakeReader{
		summaries: []domain.ConversationSummary{{ID: "c1", Title: "Wheat"}},
	}
	backend := &fakeBackend{
		textRes: &domain.ExchangeResult{Response: "ok", ConversationID: "c1"},
	}
	d, st := newTestDispatcher(t, backend, reader, nil)

	require.NoError(t, d.SendText(context.Background(), "one"))
	require.NoError(t, d.SendText(context.Background(), "two"))
	d.Wait()

	require.Equal(t, 2, reader.calls())
	require.Len(t, st.Summaries(), 1)
}

func TestStaleResultDiscardedAfterThreadSwitch(t *testing.T) {
	var d *dispatch.Dispatcher
	backend := &fakeBackend{
		textRes: &domain.ExchangeResult{Response: "late reply", ConversationID: "conv-old"},
	}
	backend.beforeReturn = func() {
		// The user abandons the thread while the exchange is in flight.
		d.StartNewConversation()
	}
	d, st := newTestDispatcher(t, backend, &fakeReader{}, nil)
	defer d.Wait()

	require.NoError(t, d.SendText(context.Background(), "question"))

	msgs := st.Messages()
	require.Len(t, msgs, 1, "only the fresh welcome message survives")
	require.Empty(t, st.ActiveID(), "stale conversation id must not be adopted")
}

func TestStaleFailureDiscardedAfterThreadSwitch(t *testing.T) {
	var d *dispatch.Dispatcher
	backend := &fakeBackend{
		textErr: domain.NewError(domain.ErrorServerRejected, "rejected", nil),
	}
	backend.beforeReturn = func() {
		d.StartNewConversation()
	}
	d, st := newTestDispatcher(t, backend, &fakeReader{}, nil)
	defer d.Wait()

	require.NoError(t, d.SendText(context.Background(), "question"))
	require.Len(t, st.Messages(), 1, "no apology may leak into the new thread")
}

func TestSpeechIsBestEffort(t *testing.T) {
	speaker := &fakeSpeaker{err: domain.NewError(domain.ErrorDeviceUnavailable, "no_speaker", nil)}
	backend := &fakeBackend{
		textRes: &domain.ExchangeResult{Response: "spoken reply", ConversationID: "c1"},
	}
	d, st := newTestDispatcher(t, backend, &fakeReader{}, speaker)

	require.NoError(t, d.SendText(context.Background(), "speak up"))
	d.Wait()

	require.Equal(t, 1, speaker.count())
	msgs := st.Messages()
	require.Equal(t, domain.StatusDelivered, msgs[len(msgs)-1].Status, "speech failure must not mark the exchange failed")
}
