package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"invysia-calendar/internal/calendar"
	"invysia-calendar/internal/prompts"
)

const calendarCallbackPrefix = "cal"

func (h *Handler) startCalendarWizard(chatID int64, userID int64) error {
	list, _ := h.sessions.Prompts(userID)
	if len(list) != prompts.Size {
		return h.tg.SendText(chatID, storedText(len(list)))
	}

	_, err := h.tg.SendTextWithKeyboard(chatID, "Choose the page format:", calendarKeyboard(userID))
	return err
}

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q == nil || q.Message == nil || q.From == nil {
		return nil
	}
	data := strings.TrimSpace(q.Data)
	if !strings.HasPrefix(data, calendarCallbackPrefix+":") {
		return nil
	}

	parts := strings.Split(data, ":")
	if len(parts) < 3 {
		return nil
	}

	ownerID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil
	}
	if ownerID != q.From.ID {
		_ = h.tg.AnswerCallback(q.ID, "This menu is not for you.", true)
		return nil
	}

	chatID := q.Message.Chat.ID
	msgID := q.Message.MessageID

	switch parts[2] {
	case "close":
		_ = h.tg.AnswerCallback(q.ID, "OK", false)
		return h.tg.RemoveKeyboard(chatID, msgID, "Closed.")
	case "run":
		if len(parts) != 5 {
			return nil
		}
		ar, err := calendar.ParseAspectRatio(strings.Replace(parts[3], "_", ":", 1))
		if err != nil {
			_ = h.tg.AnswerCallback(q.ID, err.Error(), true)
			return nil
		}
		res, err := calendar.ParseResolution(parts[4])
		if err != nil {
			_ = h.tg.AnswerCallback(q.ID, err.Error(), true)
			return nil
		}

		_ = h.tg.AnswerCallback(q.ID, "Generating…", false)
		_ = h.tg.RemoveKeyboard(chatID, msgID, fmt.Sprintf("Format: %s, %s", ar, res))
		return h.runCalendar(ctx, chatID, ownerID, ar, res)
	default:
		_ = h.tg.AnswerCallback(q.ID, "OK", false)
		return nil
	}
}

func calendarKeyboard(ownerID int64) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, ar := range calendar.AspectRatios {
		var row []tgbotapi.InlineKeyboardButton
		for _, res := range calendar.Resolutions {
			label := ar + " " + res
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cb(ownerID, "run", strings.Replace(ar, ":", "_", 1), res)))
		}
		rows = append(rows, row)
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("Close", cb(ownerID, "close")),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func cb(ownerID int64, parts ...string) string {
	return fmt.Sprintf("%s:%d:%s", calendarCallbackPrefix, ownerID, strings.Join(parts, ":"))
}
