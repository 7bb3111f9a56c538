// Package dispatch serializes user intents (text, image, captured audio)
// into exchanges against the chatbot backend and reconciles each result
// back into the conversation store. At most one exchange is in flight at
// a time; the busy gate is the only lock over the append sequence.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/agrimitra/agrimitra/internal/app/locale"
	"github.com/agrimitra/agrimitra/internal/app/store"
	"github.com/agrimitra/agrimitra/internal/domain"
	"github.com/agrimitra/agrimitra/internal/observability"
)

const (
	refreshTimeout = 10 * time.Second

	// voicePlaceholder is shown on the optimistic voice message until the
	// server transcription replaces it.
	voicePlaceholder = "[voice message]"
)

var newDispatchID = func() string {
	return uuid.NewString()
}

type Dispatcher struct {
	store   *store.Store
	client  domain.ExchangeClient
	locale  *locale.Selector
	speaker domain.SpeechPlayer // nil when the platform cannot speak
	now     func() time.Time

	busy atomic.Bool
	bg   sync.WaitGroup
}

func NewDispatcher(
	st *store.Store,
	client domain.ExchangeClient,
	sel *locale.Selector,
	speaker domain.SpeechPlayer,
) *Dispatcher {
	return &Dispatcher{
		store:   st,
		client:  client,
		locale:  sel,
		speaker: speaker,
		now:     time.Now,
	}
}

// Busy reports whether an exchange is in flight. Presentation must not
// start a second dispatch while true.
func (d *Dispatcher) Busy() bool {
	return d.busy.Load()
}

// SendText dispatches one typed message. Empty or whitespace-only input
// is a no-op. Returns domain.ErrBusy when another exchange is in flight;
// network and server failures never propagate — they are reconciled into
// the timeline as an errored apology message.
func (d *Dispatcher) SendText(ctx context.Context, rawText string) error {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return nil
	}

	if !d.busy.CompareAndSwap(false, true) {
		return domain.ErrBusy
	}
	defer d.busy.Store(false)

	ctx = observability.WithDispatchID(ctx, newDispatchID())
	log := observability.LoggerFromContext(ctx).With("intent", "text")
	log.Info("dispatch started")

	epoch := d.store.Epoch()
	userMsg := d.optimistic(domain.RoleUser, domain.TypeText, text, nil)
	d.store.Append(userMsg)

	res, err := d.client.SendText(ctx, domain.TextExchange{
		Message:        text,
		ConversationID: d.store.ActiveID(),
		Language:       d.locale.Get(),
	})
	if err != nil {
		d.reconcileFailure(ctx, epoch, userMsg, err)
		return nil
	}
	if d.discardStale(ctx, epoch) {
		return nil
	}

	d.store.SetStatus(userMsg.ID, domain.StatusDelivered)
	reply := d.optimistic(domain.RoleAssistant, domain.TypeText, res.Response, nil)
	reply.Status = domain.StatusDelivered
	reply.Confidence = res.Confidence
	reply.Sources = res.Sources
	d.store.Append(reply)
	d.store.SetActiveID(res.ConversationID)

	log.Info("dispatch reconciled", "conversation_id", string(res.ConversationID))
	d.refreshSummariesAsync()
	d.speakAsync(res.Response)
	return nil
}

// SendImage dispatches one uploaded image. An empty caption is replaced
// with the localized default question so the optimistic message and the
// server-side prompt agree.
func (d *Dispatcher) SendImage(ctx context.Context, img domain.ImageUpload, caption string) error {
	if len(img.Data) == 0 {
		return errors.New("dispatch: image payload required")
	}

	if !d.busy.CompareAndSwap(false, true) {
		return domain.ErrBusy
	}
	defer d.busy.Store(false)

	question := strings.TrimSpace(caption)
	if question == "" {
		question = d.locale.DefaultImageQuestion()
	}

	ctx = observability.WithDispatchID(ctx, newDispatchID())
	log := observability.LoggerFromContext(ctx).With("intent", "image", "image_bytes", len(img.Data))
	log.Info("dispatch started")

	epoch := d.store.Epoch()
	userMsg := d.optimistic(domain.RoleUser, domain.TypeImage, question, &domain.Attachment{
		Kind:     "image",
		Name:     img.Name,
		MIMEType: img.MIMEType,
	})
	d.store.Append(userMsg)

	res, err := d.client.SendImage(ctx, domain.ImageExchange{
		Image:          img,
		Question:       question,
		Language:       d.locale.Get(),
		ConversationID: d.store.ActiveID(),
	})
	if err != nil {
		d.reconcileFailure(ctx, epoch, userMsg, err)
		return nil
	}
	if d.discardStale(ctx, epoch) {
		return nil
	}

	d.store.SetStatus(userMsg.ID, domain.StatusDelivered)

	replyType := domain.TypeText
	if res.ImageAnalysis != "" {
		replyType = domain.TypeImageAnalysis
	}
	reply := d.optimistic(domain.RoleAssistant, replyType, res.Response, nil)
	reply.Status = domain.StatusDelivered
	reply.Confidence = res.Confidence
	reply.Analysis = res.ImageAnalysis
	d.store.Append(reply)
	d.store.SetActiveID(res.ConversationID)

	log.Info("dispatch reconciled", "conversation_id", string(res.ConversationID))
	d.refreshSummariesAsync()
	return nil
}

// SendVoice dispatches a finalized capture payload. Reconciliation is
// two-phase: the optimistic user message's text becomes the server
// transcription (no new user message), then one assistant voice_response
// message is appended.
func (d *Dispatcher) SendVoice(ctx context.Context, payload *domain.AudioPayload) error {
	if payload == nil || len(payload.Data) == 0 {
		return errors.New("dispatch: voice payload required")
	}

	if !d.busy.CompareAndSwap(false, true) {
		return domain.ErrBusy
	}
	defer d.busy.Store(false)

	ctx = observability.WithDispatchID(ctx, newDispatchID())
	log := observability.LoggerFromContext(ctx).With("intent", "voice", "audio_bytes", len(payload.Data))
	log.Info("dispatch started")

	epoch := d.store.Epoch()
	userMsg := d.optimistic(domain.RoleUser, domain.TypeVoice, voicePlaceholder, &domain.Attachment{
		Kind:     "audio",
		MIMEType: payload.MIMEType,
	})
	d.store.Append(userMsg)

	res, err := d.client.SendVoice(ctx, domain.VoiceExchange{
		Audio:          *payload,
		Language:       d.locale.Get(),
		ConversationID: d.store.ActiveID(),
	})
	if err != nil {
		d.reconcileFailure(ctx, epoch, userMsg, err)
		return nil
	}
	if d.discardStale(ctx, epoch) {
		return nil
	}

	if res.Transcription != "" {
		d.store.UpdateContent(userMsg.ID, res.Transcription)
	}
	d.store.SetStatus(userMsg.ID, domain.StatusDelivered)

	reply := d.optimistic(domain.RoleAssistant, domain.TypeVoiceResponse, res.Response, nil)
	reply.Status = domain.StatusDelivered
	reply.Confidence = res.Confidence
	if res.AudioResponse != "" {
		reply.Attachment = &domain.Attachment{Kind: "audio", Ref: res.AudioResponse}
	}
	d.store.Append(reply)
	d.store.SetActiveID(res.ConversationID)

	log.Info("dispatch reconciled", "conversation_id", string(res.ConversationID))
	d.refreshSummariesAsync()
	return nil
}

// StartNewConversation resets the timeline to a fresh thread. The next
// exchange runs without a conversation id until the backend assigns one.
func (d *Dispatcher) StartNewConversation() {
	d.store.StartNew()
}

// LoadConversation switches the active thread, replacing the timeline
// atomically.
func (d *Dispatcher) LoadConversation(ctx context.Context, id domain.ConversationID) error {
	return d.store.LoadConversation(ctx, id)
}

// RefreshConversations synchronously refreshes the sidebar list, e.g. on
// startup.
func (d *Dispatcher) RefreshConversations(ctx context.Context) error {
	return d.store.RefreshSummaries(ctx)
}

// Wait blocks until detached background work (summary refresh, speech)
// has drained. Used on shutdown and in tests.
func (d *Dispatcher) Wait() {
	d.bg.Wait()
}

func (d *Dispatcher) optimistic(role domain.Role, typ domain.MessageType, content string, att *domain.Attachment) *domain.Message {
	return &domain.Message{
		ID:         d.store.NextMessageID(),
		Role:       role,
		Type:       typ,
		Content:    content,
		Timestamp:  d.now(),
		Status:     domain.StatusPending,
		Attachment: att,
	}
}

// reconcileFailure absorbs a dispatch error: the optimistic user message
// stays in place (marked errored, never removed or retried) and a fixed
// apology is appended as an errored assistant message.
func (d *Dispatcher) reconcileFailure(ctx context.Context, epoch uint64, userMsg *domain.Message, err error) {
	log := observability.LoggerFromContext(ctx)
	code, _ := domain.CodeOf(err)
	log.Error("dispatch failed", "code", string(code), "error", err)

	if d.discardStale(ctx, epoch) {
		return
	}

	d.store.SetStatus(userMsg.ID, domain.StatusErrored)
	apology := d.optimistic(domain.RoleAssistant, domain.TypeText, d.locale.Apology(), nil)
	apology.Status = domain.StatusErrored
	d.store.Append(apology)
}

// discardStale drops a result that reconciled after the active thread
// changed. Appending into a thread the user already left would break the
// atomic-replace invariant, and adopting the stale conversation id could
// hijack a brand-new thread.
func (d *Dispatcher) discardStale(ctx context.Context, epoch uint64) bool {
	if d.store.Epoch() == epoch {
		return false
	}
	observability.LoggerFromContext(ctx).Warn("result discarded: active conversation changed mid-flight")
	return true
}

// refreshSummariesAsync keeps the sidebar consistent with the server
// after a successful exchange. Fire and forget; failure is logged and
// never affects the exchange outcome.
func (d *Dispatcher) refreshSummariesAsync() {
	d.bg.Add(1)
	go func() {
		defer d.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if err := d.store.RefreshSummaries(ctx); err != nil {
			observability.Logger().Warn("conversation list refresh failed", "error", err)
		}
	}()
}

// speakAsync reads an assistant text reply aloud when a speaker is
// available. Best effort; errors are swallowed.
func (d *Dispatcher) speakAsync(text string) {
	if d.speaker == nil || text == "" {
		return
	}
	lang := d.locale.Get()
	d.bg.Add(1)
	go func() {
		defer d.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if err := d.speaker.Speak(ctx, text, lang); err != nil {
			observability.Logger().Debug("speech playback failed", "error", err)
		}
	}()
}
