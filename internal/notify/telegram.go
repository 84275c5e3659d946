// Package notify delivers reminders as system notifications through Telegram.
package notify

import (
	"context"
	"errors"
	"net/http"

	"forkcast/internal/meals"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the subset of the Telegram bot API the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
}

// TelegramNotifier sends reminders to one chat while permission is granted.
type TelegramNotifier struct {
	sender      Sender
	chatID      int64
	calendarURL string
	permissions *PermissionStore
	logger      zerolog.Logger
}

func NewTelegramNotifier(sender Sender, chatID int64, calendarURL string, permissions *PermissionStore, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender:      sender,
		chatID:      chatID,
		calendarURL: calendarURL,
		permissions: permissions,
		logger:      logger.With().Str("component", "notify").Logger(),
	}
}

// RequestPermission asks once. If a decision is already stored it is
// returned unchanged. Otherwise the configured chat is resolved: success
// grants, a 400 or 403 from Telegram denies, anything else leaves the
// permission undecided.
func (n *TelegramNotifier) RequestPermission(ctx context.Context) (Permission, error) {
	current, err := n.permissions.Get(ctx)
	if err != nil {
		return PermissionDefault, err
	}
	if current != PermissionDefault {
		return current, nil
	}

	decided := PermissionGranted
	_, err = n.sender.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: n.chatID}})
	if err != nil {
		var apiErr *tgbotapi.Error
		if !errors.As(err, &apiErr) || (apiErr.Code != http.StatusBadRequest && apiErr.Code != http.StatusForbidden) {
			n.logger.Warn().Err(err).Int64("chat_id", n.chatID).Msg("notification permission undecided")
			return PermissionDefault, nil
		}
		decided = PermissionDenied
	}

	if err := n.permissions.Set(ctx, decided); err != nil {
		return decided, err
	}
	n.logger.Info().Str("permission", string(decided)).Int64("chat_id", n.chatID).Msg("notification permission resolved")
	return decided, nil
}

// Notify sends ev to the chat. Without granted permission it does nothing.
func (n *TelegramNotifier) Notify(ctx context.Context, ev meals.ReminderEvent) error {
	perm, err := n.permissions.Get(ctx)
	if err != nil {
		return err
	}
	if perm != PermissionGranted {
		n.logger.Debug().Str("tag", ev.Tag()).Str("permission", string(perm)).Msg("system notification skipped")
		return nil
	}

	msg := tgbotapi.NewMessage(n.chatID, ev.Title()+"\n"+ev.Message())
	if n.calendarURL != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("View Meal Plan", n.calendarURL)),
		)
	}
	if _, err := n.sender.Send(msg); err != nil {
		return err
	}
	n.logger.Debug().Str("tag", ev.Tag()).Int64("chat_id", n.chatID).Msg("system notification sent")
	return nil
}
