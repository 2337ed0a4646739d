package telegram

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	maxTextBytes    = 4096
	maxCaptionBytes = 1024
	// Telegram caps a media group at ten items.
	maxAlbumSize = 10
)

type Options struct {
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Debug      bool
}

type Client struct {
	bot    *tgbotapi.BotAPI
	logger *slog.Logger
}

func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if opts.HTTPClient == nil {
		return nil, errors.New("http client is nil")
	}

	bot, err := tgbotapi.NewBotAPIWithClient(opts.Token, tgbotapi.APIEndpoint, opts.HTTPClient)
	if err != nil {
		return nil, err
	}
	bot.Debug = opts.Debug

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		bot:    bot,
		logger: logger,
	}, nil
}

func (c *Client) Username() string {
	return c.bot.Self.UserName
}

type Update = tgbotapi.Update

type UpdatesOptions struct {
	Timeout time.Duration
}

func (c *Client) Updates(opts UpdatesOptions) tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	if opts.Timeout > 0 {
		u.Timeout = int(opts.Timeout.Seconds())
	} else {
		u.Timeout = 30
	}
	return c.bot.GetUpdatesChan(u)
}

func (c *Client) StopUpdates() {
	c.bot.StopReceivingUpdates()
}

func (c *Client) SendTyping(chatID int64) {
	_, _ = c.bot.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatUploadPhoto))
}

func (c *Client) SendText(chatID int64, text string) error {
	for _, p := range splitByBytes(text, maxTextBytes) {
		msg := tgbotapi.NewMessage(chatID, p)
		if _, err := c.bot.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) SendTextWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, truncateByBytes(text, maxTextBytes))
	msg.ReplyMarkup = kb
	sent, err := c.bot.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// RemoveKeyboard replaces a menu message's text and drops its buttons.
func (c *Client) RemoveKeyboard(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, truncateByBytes(text, maxTextBytes))
	_, err := c.bot.Send(edit)
	return err
}

func (c *Client) AnswerCallback(callbackID, text string, alert bool) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	cb.ShowAlert = alert
	_, err := c.bot.Request(cb)
	return err
}

// SendPhotoFile uploads a generated page straight from disk.
func (c *Client) SendPhotoFile(chatID int64, path, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(path))
	if caption != "" {
		photo.Caption = truncateByBytes(caption, maxCaptionBytes)
	}
	_, err := c.bot.Send(photo)
	return err
}

// SendAlbum uploads files as media groups of up to ten photos each. Each
// photo is captioned with its file name.
func (c *Client) SendAlbum(chatID int64, paths []string) error {
	for _, chunk := range chunkPaths(paths, maxAlbumSize) {
		if len(chunk) == 1 {
			if err := c.SendPhotoFile(chatID, chunk[0], filepath.Base(chunk[0])); err != nil {
				return err
			}
			continue
		}

		media := make([]interface{}, 0, len(chunk))
		for _, p := range chunk {
			item := tgbotapi.NewInputMediaPhoto(tgbotapi.FilePath(p))
			item.Caption = filepath.Base(p)
			media = append(media, item)
		}
		if _, err := c.bot.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media)); err != nil {
			c.logger.Warn("send_album_failed", "chat_id", chatID, "count", len(chunk), "err", err)
			return fmt.Errorf("send album: %w", err)
		}
	}
	return nil
}

func chunkPaths(paths []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	var out [][]string
	for start := 0; start < len(paths); start += size {
		end := start + size
		if end > len(paths) {
			end = len(paths)
		}
		out = append(out, paths[start:end])
	}
	return out
}

func splitByBytes(text string, maxBytes int) []string {
	if len(text) <= maxBytes || maxBytes <= 0 {
		return []string{text}
	}

	var out []string
	var buf strings.Builder
	buf.Grow(maxBytes)

	for _, r := range text {
		runeBytes := utf8.RuneLen(r)
		if runeBytes < 0 {
			runeBytes = len(string(r))
		}

		if buf.Len() > 0 && buf.Len()+runeBytes > maxBytes {
			out = append(out, buf.String())
			buf.Reset()
		}
		buf.WriteRune(r)
	}

	if buf.Len() > 0 {
		out = append(out, buf.String())
	}

	return out
}

func truncateByBytes(text string, maxBytes int) string {
	if len(text) <= maxBytes || maxBytes <= 0 {
		return text
	}

	var buf strings.Builder
	buf.Grow(maxBytes)
	for _, r := range text {
		runeBytes := utf8.RuneLen(r)
		if runeBytes < 0 {
			runeBytes = len(string(r))
		}

		if buf.Len()+runeBytes > maxBytes {
			break
		}
		buf.WriteRune(r)
	}
	return buf.String()
}
