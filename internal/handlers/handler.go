package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"invysia-calendar/internal/calendar"
	"invysia-calendar/internal/prompts"
	"invysia-calendar/internal/session"
	"invysia-calendar/internal/telegram"
)

// Messenger is the slice of the Telegram client the handlers talk to.
type Messenger interface {
	SendText(chatID int64, text string) error
	SendTyping(chatID int64)
	SendAlbum(chatID int64, paths []string) error
	SendTextWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) (int, error)
	RemoveKeyboard(chatID int64, messageID int, text string) error
	AnswerCallback(callbackID, text string, alert bool) error
}

type PromptWriter interface {
	GeneratePrompts(ctx context.Context, theme string) (string, error)
}

type Runner interface {
	Run(ctx context.Context, list []string, aspectRatio, resolution string) (calendar.Report, error)
}

type Options struct {
	Telegram Messenger
	Prompts  PromptWriter
	Runner   Runner
	Sessions *session.Store
	Logger   *slog.Logger
}

type Handler struct {
	tg       Messenger
	writer   PromptWriter
	runner   Runner
	sessions *session.Store
	logger   *slog.Logger

	mu      sync.Mutex
	running map[int64]bool
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		tg:       opts.Telegram,
		writer:   opts.Prompts,
		runner:   opts.Runner,
		sessions: opts.Sessions,
		logger:   logger,
		running:  make(map[int64]bool),
	}
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}
	if update.Message == nil || update.Message.From == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID
	username := msg.From.UserName

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, userID, username, msg)
	}

	if msg.Text != "" {
		return h.handleText(chatID, userID, username, msg.Text)
	}

	return nil
}

func (h *Handler) handleCommand(ctx context.Context, chatID int64, userID int64, username string, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start", "help":
		return h.tg.SendText(chatID, helpText())
	case "clear":
		h.sessions.Clear(userID)
		return h.tg.SendText(chatID, "✅ Prompts cleared.")
	case "theme":
		theme := strings.TrimSpace(msg.CommandArguments())
		if theme == "" {
			return h.tg.SendText(chatID, "❌ Please describe a theme.\nExample: /theme cozy winter cabin")
		}
		return h.writePrompts(ctx, chatID, userID, username, theme)
	case "prompts":
		list, theme := h.sessions.Prompts(userID)
		return h.tg.SendText(chatID, promptsText(list, theme))
	case "calendar":
		args := strings.Fields(msg.CommandArguments())
		if len(args) == 0 {
			return h.startCalendarWizard(chatID, userID)
		}
		if len(args) != 2 {
			return h.tg.SendText(chatID, "❌ Usage: /calendar <aspect ratio> <resolution>\nExample: /calendar 3:4 2K")
		}
		ar, err := calendar.ParseAspectRatio(args[0])
		if err != nil {
			return h.tg.SendText(chatID, "❌ "+err.Error())
		}
		res, err := calendar.ParseResolution(args[1])
		if err != nil {
			return h.tg.SendText(chatID, "❌ "+err.Error())
		}
		return h.runCalendar(ctx, chatID, userID, ar, res)
	default:
		return h.tg.SendText(chatID, "❌ Unknown command. Use /help.")
	}
}

// handleText stores a pasted prompt list. Anything else gets the help text.
func (h *Handler) handleText(chatID int64, userID int64, username string, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if !looksLikePromptList(text) {
		return h.tg.SendText(chatID, helpText())
	}

	list := prompts.FromText(text)
	h.sessions.SetPrompts(userID, username, "", list)
	return h.tg.SendText(chatID, storedText(len(list)))
}

func (h *Handler) writePrompts(ctx context.Context, chatID int64, userID int64, username, theme string) error {
	h.tg.SendTyping(chatID)

	raw, err := h.writer.GeneratePrompts(ctx, theme)
	if err != nil {
		h.logger.Error("prompt generation failed", "user_id", userID, "err", err)
		return h.tg.SendText(chatID, "❌ Could not write prompts. Please try again.")
	}

	list := prompts.FromText(raw)
	h.sessions.SetPrompts(userID, username, theme, list)
	h.logger.Info("prompts_stored", "user_id", userID, "count", len(list))

	return h.tg.SendText(chatID, promptsText(list, theme)+"\n\n"+storedText(len(list)))
}

func (h *Handler) runCalendar(ctx context.Context, chatID int64, userID int64, aspectRatio, resolution string) error {
	if !h.acquire(userID) {
		return h.tg.SendText(chatID, "⏳ A calendar is already being generated for you.")
	}
	defer h.release(userID)

	list, _ := h.sessions.Prompts(userID)

	h.tg.SendTyping(chatID)
	_ = h.tg.SendText(chatID, fmt.Sprintf("🎨 Generating %d pages (%s, %s), this can take a few minutes...", len(list), aspectRatio, resolution))

	report, err := h.runner.Run(ctx, list, aspectRatio, resolution)
	if err != nil {
		h.logger.Error("calendar run failed", "user_id", userID, "err", err)
		return h.tg.SendText(chatID, calendar.Describe(report, err))
	}

	var paths []string
	for _, o := range report.Outcomes {
		if o.OK() {
			paths = append(paths, o.OutputPath)
		}
	}
	if len(paths) > 0 {
		if err := h.tg.SendAlbum(chatID, paths); err != nil {
			h.logger.Error("album delivery failed", "user_id", userID, "folder", report.Folder, "err", err)
		}
	}

	return h.tg.SendText(chatID, calendar.Describe(report, nil))
}

func (h *Handler) acquire(userID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running[userID] {
		return false
	}
	h.running[userID] = true
	return true
}

func (h *Handler) release(userID int64) {
	h.mu.Lock()
	delete(h.running, userID)
	h.mu.Unlock()
}

func helpText() string {
	return "🗓 Calendar Bot\n\n" +
		"Commands:\n" +
		"/theme <text> - Write 12 monthly prompts for a theme\n" +
		"/prompts - Show the stored prompts\n" +
		"/calendar - Pick a format and generate the calendar\n" +
		"/calendar <aspect ratio> <resolution> - Generate directly, e.g. /calendar 3:4 2K\n" +
		"/clear - Forget the stored prompts\n\n" +
		"You can also paste your own list of 12 prompts."
}

func promptsText(list []string, theme string) string {
	if len(list) == 0 {
		return "No prompts stored yet. Use /theme <text> or paste a list."
	}

	var b strings.Builder
	if theme != "" {
		b.WriteString("Theme: " + theme + "\n\n")
	}
	for i, p := range list {
		fmt.Fprintf(&b, "%d) %s\n", i+1, p)
	}
	return strings.TrimSpace(b.String())
}

func storedText(n int) string {
	if n == prompts.Size {
		return fmt.Sprintf("✅ %d prompts stored. Send /calendar to generate.", n)
	}
	return fmt.Sprintf("⚠️ Stored %d prompts, but a calendar needs exactly %d.", n, prompts.Size)
}
