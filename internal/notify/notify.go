// Package notify delivers user-facing notifications as outbox events
// consumed by the delivery service. Delivery is fire and forget: a
// failed insert is logged and never fails the business operation.
package notify

import (
	"context"
	"log/slog"

	"github.com/petjoy-vn/petjoy-core/internal/outbox"
)

// EventNotificationRequested is the topic the delivery service consumes.
const EventNotificationRequested = "core.notification.requested.v1"

type Notifier interface {
	Send(ctx context.Context, userID, title, body, link string)
}

type Message struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Link   string `json:"link,omitempty"`
}

type inserter interface {
	InsertOne(ctx context.Context, evt outbox.Event) error
}

type OutboxNotifier struct {
	events inserter
	logger *slog.Logger
}

func NewOutboxNotifier(events inserter, logger *slog.Logger) *OutboxNotifier {
	return &OutboxNotifier{events: events, logger: logger}
}

func (n *OutboxNotifier) Send(ctx context.Context, userID, title, body, link string) {
	evt, err := outbox.NewEvent("notification", userID, EventNotificationRequested, Message{
		UserID: userID,
		Title:  title,
		Body:   body,
		Link:   link,
	})
	if err != nil {
		n.logger.Error("notification encode failed", "user_id", userID, "err", err)
		return
	}
	if err := n.events.InsertOne(ctx, evt); err != nil {
		n.logger.Error("notification enqueue failed", "user_id", userID, "err", err)
	}
}

// Noop discards notifications. Used when the outbox is not configured.
type Noop struct{}

func (Noop) Send(context.Context, string, string, string, string) {}
