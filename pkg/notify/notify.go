// Package notify tells the admin that a new offer is waiting for review.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"gopkg.in/tucnak/telebot.v2"

	"cryptocagua/model"
)

// Nop discards every notification.
type Nop struct{}

func (Nop) OfferSubmitted(context.Context, model.Offer) error { return nil }

// Telegram sends a message to one admin chat through a bot.
type Telegram struct {
	bot  *telebot.Bot
	chat telebot.Recipient
}

type chatID int64

func (c chatID) Recipient() string { return fmt.Sprintf("%d", int64(c)) }

// sendTimeout caps one Bot API call so an abandoned send cannot outlive it.
const sendTimeout = 10 * time.Second

// NewTelegram does not start polling; the bot is used only to send.
func NewTelegram(token string, adminChatID int64) (*Telegram, error) {
	return newTelegram("", token, adminChatID, sendTimeout)
}

func newTelegram(apiURL, token string, adminChatID int64, timeout time.Duration) (*Telegram, error) {
	bot, err := telebot.NewBot(telebot.Settings{
		URL:     apiURL,
		Token:   token,
		Client:  &http.Client{Timeout: timeout},
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return &Telegram{bot: bot, chat: chatID(adminChatID)}, nil
}

// OfferSubmitted returns when the send finishes or ctx ends. The HTTP client
// timeout bounds the send itself either way.
func (t *Telegram) OfferSubmitted(ctx context.Context, o model.Offer) error {
	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(t.chat, Message(o))
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Message is the text sent for a new pending offer.
func Message(o model.Offer) string {
	return fmt.Sprintf("🆕 New offer pending review\n\n🔹 %s (%s)\n🔹 Asset: %s\n🔹 Price: %s\n🔹 Location: %s\n🔹 By: @%s (%s)\n🔹 ID: %s",
		o.Title, o.Type.Label(), o.Asset, o.Price, o.Location, o.Nickname, o.ContactInfo, o.ID)
}
