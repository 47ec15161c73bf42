package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"klemz/internal/models"
)

const historyPageSize = 8

// sendHistoryPage renders one page of the appointment history. With a
// messageID it edits the already-sent page in place, so paging back and
// forth reuses a single message.
func (b *Bot) sendHistoryPage(ctx context.Context, chatID int64, messageID, page int, history []models.Appointment) {
	pages := (len(history) + historyPageSize - 1) / historyPageSize
	if page < 0 {
		page = 0
	}
	if page >= pages {
		page = pages - 1
	}
	start := page * historyPageSize
	end := start + historyPageSize
	if end > len(history) {
		end = len(history)
	}

	var sb strings.Builder
	sb.WriteString("🗂 *History* (newest first)\n")
	if pages > 1 {
		fmt.Fprintf(&sb, "Page %d of %d\n", page+1, pages)
	}
	for _, a := range history[start:end] {
		fmt.Fprintf(&sb, "\n%s %s — code %s", a.Date, a.TimeOfDay, a.ID)
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ Newer", fmt.Sprintf("hist:%d", page-1)))
	}
	if end < len(history) {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Older ➡️", fmt.Sprintf("hist:%d", page+1)))
	}

	if messageID != 0 {
		var markup tgbotapi.InlineKeyboardMarkup
		if len(nav) > 0 {
			markup = tgbotapi.NewInlineKeyboardMarkup(nav)
		} else {
			markup = tgbotapi.NewInlineKeyboardMarkup([]tgbotapi.InlineKeyboardButton{})
		}
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, sb.String(), markup)
		edit.ParseMode = tgbotapi.ModeMarkdown
		b.deliver(ctx, edit)
		return
	}

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ParseMode = tgbotapi.ModeMarkdown
	if len(nav) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(nav)
	}
	b.deliver(ctx, msg)
}
