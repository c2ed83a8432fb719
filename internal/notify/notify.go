// Package notify adapts notification_service.go's Telegram bot (best-effort,
// fire-and-forget) to the engine's position-lifecycle events, and adds a
// Firebase push notifier grounded on push_service.go for the mobile-app
// audience. Per spec.md §7: notifiers are best-effort and never block the
// control cycle.
package notify

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"google.golang.org/api/option"

	"predatorbook/internal/position"
)

// TelegramNotifier sends best-effort alerts for position transitions and
// lifecycle events, mirroring notification_service.go's Notify().
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier builds a notifier, or nil if the token is empty — the
// same "disabled if unconfigured" shape as NewNotificationService.
func NewTelegramNotifier(token, chatIDStr string) *TelegramNotifier {
	if token == "" {
		return nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Printf("notify: failed to init telegram bot: %v", err)
		return nil
	}
	var chatID int64
	fmt.Sscanf(chatIDStr, "%d", &chatID)
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

// Notify sends a plain message, fire-and-forget.
func (n *TelegramNotifier) Notify(msg string) {
	if n == nil || n.bot == nil || n.chatID == 0 {
		return
	}
	go func() {
		m := tgbotapi.NewMessage(n.chatID, msg)
		m.ParseMode = "Markdown"
		if _, err := n.bot.Send(m); err != nil {
			log.Printf("notify: telegram send failed: %v", err)
		}
	}()
}

// OnTransition is a position.Listener that routes HEDGED/EXITING/CLOSED
// transitions to Telegram.
func (n *TelegramNotifier) OnTransition(t position.Transition) {
	switch t.To {
	case position.StateClosed:
		n.Notify(fmt.Sprintf("✅ *Position Closed* `%s`\nReason: %s\nP&L: $%.2f", t.PositionID, t.Reason, t.PnLUsd))
	case position.StateHedged:
		n.Notify(fmt.Sprintf("🛡️ *Hedged* `%s`", t.PositionID))
	case position.StateExiting:
		n.Notify(fmt.Sprintf("🚪 *Exiting* `%s`\nReason: %s", t.PositionID, t.Reason))
	}
}

// NotifyBotStart / NotifyBotStop mirror the teacher's /start, /stop
// commands' confirmations.
func (n *TelegramNotifier) NotifyBotStart() { n.Notify("🚀 Engine started. Monitoring order flow.") }
func (n *TelegramNotifier) NotifyBotStop()  { n.Notify("🛑 Engine stopped.") }

// NotifyLiquidation reports a liquidation-mode forced exit.
func (n *TelegramNotifier) NotifyLiquidation(tokenID string, proceedsUsd float64) {
	n.Notify(fmt.Sprintf("🧯 *Liquidated* `%s`\nProceeds: $%.2f", tokenID, proceedsUsd))
}

// PushNotifier sends mobile push notifications via Firebase Cloud Messaging,
// grounded on push_service.go's firebase.App + messaging.Client wiring.
type PushNotifier struct {
	app    *firebase.App
	client *messaging.Client
	topic  string
}

// NewPushNotifier initializes the Firebase Admin SDK from a service-account
// credentials file, or returns nil if credentialsFile is empty.
func NewPushNotifier(ctx context.Context, credentialsFile, topic string) (*PushNotifier, error) {
	if credentialsFile == "" {
		return nil, nil
	}
	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging client: %w", err)
	}
	return &PushNotifier{app: app, client: client, topic: topic}, nil
}

// PushPositionClosed sends a push alert for a closed position.
func (p *PushNotifier) PushPositionClosed(ctx context.Context, tokenID string, pnlUsd float64) {
	if p == nil || p.client == nil {
		return
	}
	msg := &messaging.Message{
		Topic: p.topic,
		Notification: &messaging.Notification{
			Title: "Position closed",
			Body:  fmt.Sprintf("%s closed, P&L $%.2f", tokenID, pnlUsd),
		},
	}
	if _, err := p.client.Send(ctx, msg); err != nil {
		log.Printf("notify: firebase push failed: %v", err)
	}
}
