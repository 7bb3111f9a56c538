package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agrimitra/agrimitra/internal/adapters/api"
	"github.com/agrimitra/agrimitra/internal/adapters/assist"
	"github.com/agrimitra/agrimitra/internal/adapters/audio"
	firestorestore "github.com/agrimitra/agrimitra/internal/adapters/storage/firestore"
	memstore "github.com/agrimitra/agrimitra/internal/adapters/storage/memory"
	"github.com/agrimitra/agrimitra/internal/app/capture"
	"github.com/agrimitra/agrimitra/internal/app/dispatch"
	"github.com/agrimitra/agrimitra/internal/app/locale"
	"github.com/agrimitra/agrimitra/internal/app/store"
	"github.com/agrimitra/agrimitra/internal/config"
	"github.com/agrimitra/agrimitra/internal/domain"
)

var rootCmd = &cobra.Command{
	Use:   "agrimitra",
	Short: "AgriMitra - a farming assistant chat client for the terminal",
	Long: `AgriMitra is a conversational assistant for farmers. It talks to the
AgriMitra chatbot API, or runs the assistant in-process against Gemini
(set AGRI_MODE=local). Supports text, crop-image and voice questions in
English, Hindi, Punjabi and Urdu.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

var langCmd = &cobra.Command{
	Use:   "languages",
	Short: "List the supported languages",
	Run: func(cmd *cobra.Command, args []string) {
		for _, code := range locale.Supported() {
			fmt.Println(code)
		}
	},
}

func main() {
	rootCmd.AddCommand(langCmd)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// buildBackend wires either the remote REST client or the in-process
// assistant; both serve the exchange and conversation-reader ports.
func buildBackend(ctx context.Context, cfg *config.Config) (domain.ExchangeClient, domain.ConversationReader) {
	if cfg.Mode == config.ModeRemote {
		log.Printf("[BACKEND] remote API at %s", cfg.APIBaseURL)
		client := api.NewClient(cfg.APIBaseURL, cfg.APIToken)
		return client, client
	}

	var replier assist.Replier
	if cfg.UseMockLLM {
		log.Println("[LLM] using mock replier")
		replier = assist.NewMockReplier()
	} else {
		log.Printf("[LLM] using Gemini (%s)", cfg.ModelName)
		gemini, err := assist.NewGeminiReplier(ctx, cfg.GCPProjectID, cfg.GCPLocation, cfg.ModelName)
		if err != nil {
			log.Fatalf("error initializing Gemini replier: %v", err)
		}
		replier = gemini
	}

	var history domain.HistoryStore
	switch cfg.StorageBackend {
	case "firestore":
		log.Printf("[STORE] Firestore history (project=%s)", cfg.GCPProjectID)
		fs, err := firestorestore.NewHistoryStore(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Fatalf("error initializing Firestore history store: %v", err)
		}
		history = fs
	default:
		log.Println("[STORE] in-memory history")
		history = memstore.NewHistoryStore()
	}

	backend := assist.NewLocalBackend(replier, history)
	return backend, backend
}

func runChat(ctx context.Context) error {
	cfg := config.Load()

	sel := locale.NewSelector(domain.LanguageCode(cfg.Language))
	client, reader := buildBackend(ctx, cfg)
	st := store.NewStore(reader, sel)

	var speaker domain.SpeechPlayer
	if cfg.SpeakCmd != "" {
		speaker = audio.NewCommandSpeaker(cfg.SpeakCmd)
	}

	disp := dispatch.NewDispatcher(st, client, sel, speaker)
	defer disp.Wait()

	var rec *capture.Controller
	if cfg.RecordCmd != "" {
		rec = capture.NewController(audio.NewCommandDevice(cfg.RecordCmd), "audio/wav")
	}

	if err := disp.RefreshConversations(ctx); err != nil {
		log.Printf("could not load conversation list: %v", err)
	}

	ui := &chatUI{disp: disp, st: st, sel: sel, cap: rec}
	ui.printTimeline()
	fmt.Println(`Type a question, or /help for commands.`)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "/quit" || line == "/exit" {
			return nil
		}
		ui.handle(ctx, line)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Terminal presentation
// ─────────────────────────────────────────────────────────────────────────────

type chatUI struct {
	disp *dispatch.Dispatcher
	st   *store.Store
	sel  *locale.Selector
	cap  *capture.Controller

	rendered int
}

func (u *chatUI) handle(ctx context.Context, line string) {
	switch {
	case line == "":
		return
	case line == "/help":
		u.printHelp()
	case line == "/new":
		u.disp.StartNewConversation()
		u.rendered = 0
		u.printTimeline()
	case line == "/list":
		u.printSummaries()
	case strings.HasPrefix(line, "/open "):
		u.openConversation(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/open ")))
	case strings.HasPrefix(line, "/lang "):
		code := domain.LanguageCode(strings.TrimSpace(strings.TrimPrefix(line, "/lang ")))
		if err := u.sel.Set(code); err != nil {
			fmt.Println(err)
			return
		}
		fmt.Printf("language set to %s\n", code)
	case strings.HasPrefix(line, "/image "):
		u.sendImage(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/image ")))
	case line == "/record":
		u.startRecording(ctx)
	case line == "/stop":
		u.stopRecording(ctx)
	case strings.HasPrefix(line, "/"):
		fmt.Printf("unknown command %s, try /help\n", line)
	default:
		u.report(u.disp.SendText(ctx, line))
	}
}

func (u *chatUI) printHelp() {
	fmt.Print(`Commands:
  /new                start a new conversation
  /list               list past conversations
  /open <n>           open conversation number n from /list
  /lang <code>        switch language (en, hi, pa, ur)
  /image <path> [q]   send a crop photo, with an optional question
  /record             start recording a voice question
  /stop               stop recording and send it
  /quit               exit
`)
}

func (u *chatUI) openConversation(ctx context.Context, arg string) {
	fields := strings.Fields(arg)
	if len(fields) == 0 {
		fmt.Println("usage: /open <n>")
		return
	}

	id := domain.ConversationID(fields[0])
	summaries := u.st.Summaries()
	var n int
	if _, err := fmt.Sscanf(fields[0], "%d", &n); err == nil && n >= 1 && n <= len(summaries) {
		id = summaries[n-1].ID
	}

	if err := u.disp.LoadConversation(ctx, id); err != nil {
		fmt.Printf("could not open conversation: %v\n", err)
		return
	}
	u.rendered = 0
	u.printTimeline()
}

func (u *chatUI) printSummaries() {
	summaries := u.st.Summaries()
	if len(summaries) == 0 {
		fmt.Println("no past conversations")
		return
	}
	for i, s := range summaries {
		fmt.Printf("%2d. %s\n    %s\n", i+1, s.Title, s.LastMessage)
	}
}

func (u *chatUI) sendImage(ctx context.Context, arg string) {
	fields := strings.SplitN(arg, " ", 2)
	if fields[0] == "" {
		fmt.Println("usage: /image <path> [question]")
		return
	}

	data, err := os.ReadFile(fields[0])
	if err != nil {
		fmt.Printf("could not read image: %v\n", err)
		return
	}

	caption := ""
	if len(fields) == 2 {
		caption = fields[1]
	}

	img := domain.ImageUpload{
		Data:     data,
		Name:     filepath.Base(fields[0]),
		MIMEType: imageMIME(fields[0]),
	}
	u.report(u.disp.SendImage(ctx, img, caption))
}

func (u *chatUI) startRecording(ctx context.Context) {
	if u.cap == nil {
		fmt.Println("voice input disabled, set AGRI_RECORD_CMD")
		return
	}
	if err := u.cap.StartCapture(ctx); err != nil {
		fmt.Printf("could not start recording: %v\n", err)
		return
	}
	fmt.Println("recording... /stop to send")
}

func (u *chatUI) stopRecording(ctx context.Context) {
	if u.cap == nil {
		fmt.Println("voice input disabled, set AGRI_RECORD_CMD")
		return
	}
	payload, err := u.cap.StopCapture()
	if err != nil {
		fmt.Printf("recording failed: %v\n", err)
		return
	}
	if payload == nil {
		fmt.Println("nothing recorded")
		return
	}
	u.report(u.disp.SendVoice(ctx, payload))
}

func (u *chatUI) report(err error) {
	switch {
	case errors.Is(err, domain.ErrBusy):
		fmt.Println("still waiting on the previous answer...")
		return
	case err != nil:
		fmt.Printf("could not send: %v\n", err)
		return
	}
	u.printTimeline()
}

// printTimeline prints messages added since the last render.
func (u *chatUI) printTimeline() {
	msgs := u.st.Messages()
	if u.rendered > len(msgs) {
		u.rendered = 0
	}
	for _, msg := range msgs[u.rendered:] {
		fmt.Println(formatMessage(msg))
	}
	u.rendered = len(msgs)
}

func imageMIME(path string) string {
	if typ := mime.TypeByExtension(filepath.Ext(path)); typ != "" {
		return typ
	}
	return "image/jpeg"
}

func formatMessage(msg *domain.Message) string {
	label := "AgriMitra"
	if msg.Role == domain.RoleUser {
		label = "You"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", label, msg.Content)
	if msg.Status == domain.StatusErrored {
		b.WriteString(" (failed)")
	}
	if msg.Analysis != "" {
		fmt.Fprintf(&b, "\n    analysis: %s", msg.Analysis)
	}
	for _, src := range msg.Sources {
		fmt.Fprintf(&b, "\n    source: %s", src.Category)
	}
	return b.String()
}
