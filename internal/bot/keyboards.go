package bot

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"klemz/internal/models"
)

// slotKeyboard lays out today's hourly slots for a provider, three per row.
// Taken and past slots are shown but not selectable.
func slotKeyboard(p *models.Provider, dayStart, dayEnd time.Time, now time.Time) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton

	for cursor := dayStart; !cursor.After(dayEnd); cursor = cursor.Add(time.Hour) {
		label := models.FormatTimeOfDay(cursor)
		data := "slot:" + cursor.Format("15:04")

		switch {
		case p.Unavailable(label):
			label = "🚫 " + label
			data = "noop"
		case cursor.Before(now):
			label = "— " + label
			data = "noop"
		}

		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, data))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "abort"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// offeringKeyboard lists haircuts with prices, one per row.
func offeringKeyboard(offerings []models.ServiceOffering) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, o := range offerings {
		label := fmt.Sprintf("%s — GHC %.2f", o.Name, o.Price)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "cut:"+o.ID),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "abort"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// confirmKeyboard is the final yes/no step.
func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm booking", "book"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "abort"),
		),
	)
}

// bookingKeyboard offers cancellation and payment for one of today's bookings.
func bookingKeyboard(appointmentID string, payEnabled bool) tgbotapi.InlineKeyboardMarkup {
	row := []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("🗑 Cancel booking", "del:"+appointmentID),
	}
	if payEnabled {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("💳 Pay now", "pay:"+appointmentID))
	}
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(row...))
}

// barberCard renders one provider entry.
func barberCard(p models.Provider) string {
	return fmt.Sprintf("💈 *%s*\n📞 %s\n✉️ %s\n💺 Seat %d", p.FullName, p.Phone, p.Email, p.Seat)
}

// barberKeyboard is the per-provider action row.
func barberKeyboard(p models.Provider, hasBooking bool) tgbotapi.InlineKeyboardMarkup {
	if hasBooking {
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("⛔ Cancel your booking first", "noop"),
			),
		)
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📅 Select date & time", "barber:"+p.ID),
		),
	)
}
