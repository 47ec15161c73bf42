// Package bot is the Telegram front-end driving the booking flow.
package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"klemz/internal/audit"
	"klemz/internal/booking"
	"klemz/internal/directory"
	"klemz/internal/gateway"
	"klemz/internal/ledger"
	"klemz/internal/models"
	"klemz/internal/selector"
	"klemz/internal/session"
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

// OfferingLister fetches the haircut catalog for the confirmation step.
type OfferingLister interface {
	ListOfferings(ctx context.Context) ([]models.ServiceOffering, error)
}

// Deps are the collaborators the bot drives.
type Deps struct {
	Directory *directory.Directory
	Selector  *selector.Selector
	Confirmer *booking.Confirmer
	Ledger    *ledger.Ledger
	Sessions  *session.Manager
	Offerings OfferingLister
	Payments  *gateway.PaymentClient // nil disables the pay button
	// BookingDay maps a day to its bookable window.
	BookingDay func(day time.Time) (time.Time, time.Time)
	// AllowedUserIDs restricts the bot to these Telegram accounts when
	// non-empty.
	AllowedUserIDs []int64
	Logger         *zerolog.Logger
}

// Bot wires Telegram updates to the booking core.
type Bot struct {
	tg        telegramClient
	deps      Deps
	state     *stateStore
	clock     *clock
	reminders *reminderSet
	limiter   *rate.Limiter
	logger    *zerolog.Logger
	now       func() time.Time
}

// New connects to Telegram and builds the bot.
func New(token string, debug bool, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = debug
	return NewWithTelegramClient(&realTelegramClient{api: api}, deps)
}

// NewWithTelegramClient allows injecting a mocked Telegram client for tests.
func NewWithTelegramClient(tg telegramClient, deps Deps) (*Bot, error) {
	if tg == nil {
		return nil, fmt.Errorf("telegram client is nil")
	}
	if deps.BookingDay == nil {
		deps.BookingDay = func(day time.Time) (time.Time, time.Time) {
			y, m, d := day.Date()
			return time.Date(y, m, d, 9, 0, 0, 0, day.Location()),
				time.Date(y, m, d, 19, 0, 0, 0, day.Location())
		}
	}
	return &Bot{
		tg:        tg,
		deps:      deps,
		state:     newStateStore(),
		clock:     &clock{},
		reminders: newReminderSet(),
		limiter:   rate.NewLimiter(rate.Limit(20), 30),
		logger:    deps.Logger,
		now:       time.Now,
	}, nil
}

// Start processes updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	go b.clock.run(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.tg.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		if !b.permitted(update.Message.From) {
			b.send(ctx, update.Message.Chat.ID, "This bot is private.")
			return
		}
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		if !b.permitted(update.CallbackQuery.From) {
			return
		}
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

// permitted applies the account allowlist. An empty list leaves the bot open.
func (b *Bot) permitted(from *tgbotapi.User) bool {
	if len(b.deps.AllowedUserIDs) == 0 {
		return true
	}
	if from == nil {
		return false
	}
	for _, id := range b.deps.AllowedUserIDs {
		if id == from.ID {
			return true
		}
	}
	return false
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start", "help":
		b.send(ctx, msg.Chat.ID, helpText)
	case "barbers":
		b.handleBarbers(ctx, msg.Chat.ID)
	case "bookings":
		b.handleBookings(ctx, msg.Chat.ID)
	case "history":
		b.handleHistory(ctx, msg.Chat.ID)
	case "export":
		b.handleExport(ctx, msg.Chat.ID)
	case "logout":
		b.handleLogout(ctx, msg.Chat.ID, msg.From.ID)
	default:
		b.send(ctx, msg.Chat.ID, "Unknown command. "+helpText)
	}
}

const helpText = "💈 Klemz booking\n\n" +
	"/barbers — browse barbers and book a slot\n" +
	"/bookings — today's bookings (cancel, pay)\n" +
	"/history — full appointment history\n" +
	"/export — download history as Excel\n" +
	"/logout — end the session"

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	_, _ = b.tg.Request(tgbotapi.NewCallback(cq.ID, ""))

	data := cq.Data
	if data == "noop" || cq.Message == nil {
		return
	}
	chatID := cq.Message.Chat.ID
	userID := cq.From.ID

	switch {
	case strings.HasPrefix(data, "barber:"):
		b.handleBarberPick(ctx, chatID, userID, strings.TrimPrefix(data, "barber:"))
	case strings.HasPrefix(data, "slot:"):
		b.handleSlotPick(ctx, chatID, userID, strings.TrimPrefix(data, "slot:"))
	case strings.HasPrefix(data, "cut:"):
		b.handleOfferingPick(ctx, chatID, userID, strings.TrimPrefix(data, "cut:"))
	case data == "book":
		b.handleBook(ctx, chatID, userID)
	case data == "abort":
		b.handleAbort(ctx, chatID, userID)
	case strings.HasPrefix(data, "del:"):
		b.handleCancelBooking(ctx, chatID, strings.TrimPrefix(data, "del:"))
	case strings.HasPrefix(data, "pay:"):
		b.handlePay(ctx, chatID, strings.TrimPrefix(data, "pay:"))
	case strings.HasPrefix(data, "hist:"):
		b.handleHistoryPage(ctx, chatID, cq.Message.MessageID, strings.TrimPrefix(data, "hist:"))
	}
}

// handleBarbers refreshes the directory and lists providers. The ledger
// refresh feeding the one-booking-per-day guard is best-effort.
func (b *Bot) handleBarbers(ctx context.Context, chatID int64) {
	sess, ok := b.requireSession(ctx, chatID)
	if !ok {
		return
	}

	if err := b.deps.Ledger.Refresh(ctx, sess.User.ID); err != nil {
		if b.escalateAuth(ctx, chatID, err) {
			return
		}
		b.logger.Warn().Err(err).Msg("ledger refresh before listing failed")
	}
	hasBooking := b.deps.Ledger.HasBookingToday()

	providers, err := b.deps.Directory.Refresh(ctx)
	if err != nil {
		if b.escalateAuth(ctx, chatID, err) {
			return
		}
		b.send(ctx, chatID, "The booking service is unreachable right now, please try again later.")
		return
	}
	if len(providers) == 0 {
		b.send(ctx, chatID, "No barbers are available right now.")
		return
	}

	b.send(ctx, chatID, b.clock.header())
	if hasBooking {
		b.send(ctx, chatID, "You already have a booking today. Cancel it in /bookings to book again.")
	}
	for _, p := range providers {
		msg := tgbotapi.NewMessage(chatID, barberCard(p))
		msg.ParseMode = tgbotapi.ModeMarkdown
		msg.ReplyMarkup = barberKeyboard(p, hasBooking)
		b.deliver(ctx, msg)
	}
}

func (b *Bot) handleBarberPick(ctx context.Context, chatID, userID int64, providerID string) {
	if b.deps.Ledger.HasBookingToday() {
		b.send(ctx, chatID, "You already have a booking today. Cancel it in /bookings to book again.")
		return
	}

	provider, ok := b.deps.Directory.Provider(providerID)
	if !ok {
		b.send(ctx, chatID, "That barber is no longer listed, run /barbers to refresh.")
		return
	}
	if err := b.deps.Selector.Open(userID, *provider); err != nil {
		b.logger.Warn().Err(err).Msg("open picker failed")
		b.send(ctx, chatID, "Please finish or cancel your current selection first.")
		return
	}

	now := time.Now()
	dayStart, dayEnd := b.deps.BookingDay(now)
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Pick a time with %s (today only):", provider.FullName))
	msg.ReplyMarkup = slotKeyboard(provider, dayStart, dayEnd, now)
	b.deliver(ctx, msg)
}

func (b *Bot) handleSlotPick(ctx context.Context, chatID, userID int64, hhmm string) {
	at, err := parseTodayClock(hhmm)
	if err != nil {
		b.send(ctx, chatID, "That slot looks malformed, run /barbers to start over.")
		return
	}

	d, err := b.deps.Selector.Choose(ctx, userID, at)
	switch {
	case errors.Is(err, selector.ErrSlotTaken):
		b.send(ctx, chatID, "⚠️ This time is already booked. Please choose another time.")
		return
	case errors.Is(err, selector.ErrPastSlot):
		b.send(ctx, chatID, "That time has already passed, pick an upcoming slot.")
		return
	case errors.Is(err, selector.ErrNotPicking):
		b.send(ctx, chatID, "Pick a barber first with /barbers.")
		return
	case err != nil:
		b.logger.Error().Err(err).Msg("staging draft failed")
		b.send(ctx, chatID, "Could not save your selection, please try again.")
		return
	}

	offerings, err := b.deps.Offerings.ListOfferings(ctx)
	if err != nil {
		b.send(ctx, chatID, "Slot reserved, but the haircut list is unreachable. Try again in a moment.")
		return
	}
	if len(offerings) == 0 {
		b.send(ctx, chatID, "Slot reserved, but no haircuts are on offer right now.")
		return
	}

	st := b.state.get(userID)
	st.Offerings = offerings
	st.Chosen = nil

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"✂️ %s at %s on %s.\n⚠️ Note: all bookings are for today.\n\nSelect a haircut:",
		d.Provider.FullName, d.TimeOfDay, d.Date))
	msg.ReplyMarkup = offeringKeyboard(offerings)
	b.deliver(ctx, msg)
}

func (b *Bot) handleOfferingPick(ctx context.Context, chatID, userID int64, offeringID string) {
	st := b.state.get(userID)
	for i := range st.Offerings {
		if st.Offerings[i].ID == offeringID {
			st.Chosen = &st.Offerings[i]
			break
		}
	}
	if st.Chosen == nil {
		b.send(ctx, chatID, "Please select a valid haircut.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"📋 *Booking summary*\n✂️ %s — GHC %.2f\n\nConfirm?",
		st.Chosen.Name, st.Chosen.Price))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = confirmKeyboard()
	b.deliver(ctx, msg)
}

func (b *Bot) handleBook(ctx context.Context, chatID, userID int64) {
	st := b.state.get(userID)

	appt, err := b.deps.Confirmer.Confirm(ctx, st.Chosen)
	if err != nil {
		var vErr *gateway.ValidationError
		switch {
		case errors.Is(err, booking.ErrNoOffering):
			b.send(ctx, chatID, "Please select a valid haircut.")
		case errors.Is(err, booking.ErrNoDraft):
			b.send(ctx, chatID, "Your selection expired, start over with /barbers.")
		case errors.As(err, &vErr):
			// The remote's rejection reason, verbatim. The draft is intact,
			// so the user can pick another slot.
			b.send(ctx, chatID, "⚠️ "+vErr.Message+"\nPick another time with /barbers.")
		case b.escalateAuth(ctx, chatID, err):
		default:
			b.send(ctx, chatID, "Booking failed, please try again later.")
		}
		return
	}

	b.state.reset(userID)
	b.send(ctx, chatID, fmt.Sprintf(
		"✅ Your booking is confirmed. We look forward to seeing you!\nAppointment code: %s", appt.ID))
	b.handleBookings(ctx, chatID)
}

func (b *Bot) handleAbort(ctx context.Context, chatID, userID int64) {
	b.deps.Selector.Close(userID)
	b.state.reset(userID)
	b.send(ctx, chatID, "Cancelled. Start again with /barbers.")
}

func (b *Bot) handleBookings(ctx context.Context, chatID int64) {
	sess, ok := b.requireSession(ctx, chatID)
	if !ok {
		return
	}
	if err := b.deps.Ledger.Refresh(ctx, sess.User.ID); err != nil {
		if b.escalateAuth(ctx, chatID, err) {
			return
		}
		b.send(ctx, chatID, "Could not load your bookings, please try again later.")
		return
	}

	bookings := b.deps.Ledger.Bookings()
	if len(bookings) == 0 {
		b.send(ctx, chatID, "No bookings for today.")
		return
	}
	for _, a := range bookings {
		msg := tgbotapi.NewMessage(chatID, bookingCard(a))
		msg.ParseMode = tgbotapi.ModeMarkdown
		msg.ReplyMarkup = bookingKeyboard(a.ID, b.deps.Payments != nil)
		b.deliver(ctx, msg)
	}
}

func (b *Bot) handleHistory(ctx context.Context, chatID int64) {
	sess, ok := b.requireSession(ctx, chatID)
	if !ok {
		return
	}
	if err := b.deps.Ledger.Refresh(ctx, sess.User.ID); err != nil {
		if b.escalateAuth(ctx, chatID, err) {
			return
		}
		b.send(ctx, chatID, "Could not load your history, please try again later.")
		return
	}

	history := b.deps.Ledger.History()
	if len(history) == 0 {
		b.send(ctx, chatID, "No appointments yet.")
		return
	}
	b.sendHistoryPage(ctx, chatID, 0, 0, history)
}

// handleHistoryPage pages through the last-refreshed history in place.
func (b *Bot) handleHistoryPage(ctx context.Context, chatID int64, messageID int, pageStr string) {
	page, err := strconv.Atoi(pageStr)
	if err != nil {
		return
	}
	history := b.deps.Ledger.History()
	if len(history) == 0 {
		return
	}
	b.sendHistoryPage(ctx, chatID, messageID, page, history)
}

func (b *Bot) handleExport(ctx context.Context, chatID int64) {
	sess, ok := b.requireSession(ctx, chatID)
	if !ok {
		return
	}
	if err := b.deps.Ledger.Refresh(ctx, sess.User.ID); err != nil {
		if b.escalateAuth(ctx, chatID, err) {
			return
		}
		b.send(ctx, chatID, "Could not load your history, please try again later.")
		return
	}

	var buf bytes.Buffer
	if err := audit.ExportHistory(b.deps.Ledger.History(), &buf); err != nil {
		b.logger.Error().Err(err).Msg("history export failed")
		b.send(ctx, chatID, "Export failed, please try again later.")
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  "appointments.xlsx",
		Bytes: buf.Bytes(),
	})
	b.deliver(ctx, doc)
}

func (b *Bot) handleCancelBooking(ctx context.Context, chatID int64, appointmentID string) {
	err := b.deps.Ledger.Cancel(ctx, appointmentID)
	var nfErr *gateway.NotFoundError
	switch {
	case err == nil:
		b.send(ctx, chatID, "🗑 Appointment cancelled.")
	case errors.As(err, &nfErr):
		b.send(ctx, chatID, "That appointment no longer exists. Run /bookings to refresh.")
	case b.escalateAuth(ctx, chatID, err):
	default:
		b.send(ctx, chatID, "Cancellation failed, please try again later.")
	}
}

func (b *Bot) handlePay(ctx context.Context, chatID int64, appointmentID string) {
	if b.deps.Payments == nil {
		return
	}
	sess, ok := b.requireSession(ctx, chatID)
	if !ok {
		return
	}

	var target *models.Appointment
	for _, a := range b.deps.Ledger.Bookings() {
		if a.ID == appointmentID {
			target = &a
			break
		}
	}
	if target == nil {
		b.send(ctx, chatID, "That booking is gone. Run /bookings to refresh.")
		return
	}

	amountMinor := int64(target.Offering.Price * 100)
	url, err := b.deps.Payments.Initialize(ctx, sess.User.Email, amountMinor, "GHS")
	if err != nil {
		b.logger.Warn().Err(err).Msg("payment initialization failed")
		b.send(ctx, chatID, "Payment could not be started, please try again later.")
		return
	}
	b.send(ctx, chatID, "💳 Complete your payment here:\n"+url)
}

func (b *Bot) handleLogout(ctx context.Context, chatID, userID int64) {
	b.deps.Selector.Close(userID)
	b.state.reset(userID)
	if err := b.deps.Sessions.Logout(ctx); err != nil {
		b.send(ctx, chatID, "Logout failed, please try again.")
		return
	}
	b.send(ctx, chatID, "👋 Logged out.")
}

func bookingCard(a models.Appointment) string {
	return fmt.Sprintf(
		"📋 *Appointment code:* %s\n📅 %s at %s\n💈 %s\n✂️ %s\n💰 GHC %.2f",
		a.ID, a.Date, a.TimeOfDay, a.Provider.FullName, a.Offering.Name, a.Offering.Price)
}

// requireSession resolves the session or prompts for login.
func (b *Bot) requireSession(ctx context.Context, chatID int64) (*session.Session, bool) {
	sess, err := b.deps.Sessions.Current(ctx)
	if err != nil {
		b.send(ctx, chatID, "You are not logged in. Sign in from the Klemz app first.")
		return nil, false
	}
	b.state.rememberChat(sess.User.ID, chatID)
	return sess, true
}

// escalateAuth tears down the session on auth failures and prompts for a
// fresh login. Returns true when the error was an auth failure.
func (b *Bot) escalateAuth(ctx context.Context, chatID int64, err error) bool {
	var authErr *gateway.AuthError
	if !errors.As(err, &authErr) && !errors.Is(err, session.ErrNotAuthenticated) {
		return false
	}
	if err := b.deps.Sessions.Logout(ctx); err != nil {
		b.logger.Warn().Err(err).Msg("session teardown failed")
	}
	b.send(ctx, chatID, "Your session has expired. Sign in from the Klemz app and try again.")
	return true
}

func (b *Bot) send(ctx context.Context, chatID int64, text string) {
	b.deliver(ctx, tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) deliver(ctx context.Context, msg tgbotapi.Chattable) {
	if err := b.limiter.Wait(ctx); err != nil {
		return
	}
	if _, err := b.tg.Send(msg); err != nil {
		b.logger.Warn().Err(err).Msg("telegram send failed")
	}
}

// parseTodayClock turns an "HH:MM" callback payload into today's instant.
func parseTodayClock(hhmm string) (time.Time, error) {
	clock, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	now := time.Now()
	y, m, d := now.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, now.Location()), nil
}
