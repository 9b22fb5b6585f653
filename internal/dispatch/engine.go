// Package dispatch runs the per-message pipeline: filter out the bot's own
// messages, match trigger phrases, and reply at most once per (user, prompt).
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/heraldbot/herald/internal/deliveries"
	"github.com/heraldbot/herald/internal/prompts"
	"github.com/heraldbot/herald/internal/users"
)

// Message is an inbound chat message as seen by the engine.
type Message struct {
	AuthorID   int64
	AuthorName string
	Content    string
}

// ReplyFunc sends text back to the channel the message arrived on.
type ReplyFunc func(ctx context.Context, text string) error

// UserStore resolves an author to a persistent user record, creating it on
// first contact.
type UserStore interface {
	GetOrCreate(ctx context.Context, discordID int64, username string) (users.User, error)
}

// DeliveryLog records first-time deliveries. Record must return
// deliveries.ErrAlreadyDelivered when the (user, prompt) pair has one.
type DeliveryLog interface {
	Record(ctx context.Context, userID, promptName, trigger, message string) (deliveries.Delivery, error)
}

// Engine processes inbound messages. It holds no mutable state beyond the
// bot's own identity, set once from the gateway ready event; all dedup state
// lives in the delivery log.
type Engine struct {
	set        *prompts.Set
	users      UserStore
	deliveries DeliveryLog
	logger     *slog.Logger
	self       atomic.Int64
}

// NewEngine creates a dispatch engine over the given rule set and stores.
func NewEngine(log *slog.Logger, set *prompts.Set, userStore UserStore, ledger DeliveryLog) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		set:        set,
		users:      userStore,
		deliveries: ledger,
		logger:     log.With(slog.String("service", "dispatch")),
	}
}

// SetSelf records the bot's own user ID. Messages are dropped until it is
// set, and messages authored by it are dropped afterwards.
func (e *Engine) SetSelf(id int64) {
	e.self.Store(id)
}

// HandleMessage runs one message through the pipeline. A storage failure
// aborts the message and is returned to the caller; a reply-send failure
// after the delivery record was written is also returned, but the record
// stands, so a redelivery can never happen on retry.
func (e *Engine) HandleMessage(ctx context.Context, msg Message, reply ReplyFunc) error {
	if e.set == nil {
		return fmt.Errorf("dispatch engine has no rule set")
	}

	self := e.self.Load()
	if self == 0 || msg.AuthorID == self {
		return nil
	}

	matches := e.set.Match(msg.Content)
	if len(matches) == 0 {
		return nil
	}

	user, err := e.users.GetOrCreate(ctx, msg.AuthorID, msg.AuthorName)
	if err != nil {
		return fmt.Errorf("resolve user %d: %w", msg.AuthorID, err)
	}

	for _, match := range matches {
		_, err := e.deliveries.Record(ctx, user.ID, match.Prompt.Name, match.Trigger, msg.Content)
		if errors.Is(err, deliveries.ErrAlreadyDelivered) {
			e.logger.Debug("delivery suppressed",
				slog.Int64("author", msg.AuthorID),
				slog.String("prompt", match.Prompt.Name),
			)
			continue
		}
		if err != nil {
			return fmt.Errorf("record delivery of %s: %w", match.Prompt.Name, err)
		}

		if err := reply(ctx, match.Prompt.Response); err != nil {
			// The record is durable; the notification is lost rather than
			// risked twice.
			e.logger.Error("reply failed after delivery was recorded",
				slog.Int64("author", msg.AuthorID),
				slog.String("prompt", match.Prompt.Name),
				slog.Any("error", err),
			)
			return fmt.Errorf("send reply for %s: %w", match.Prompt.Name, err)
		}

		e.logger.Info("prompt delivered",
			slog.Int64("author", msg.AuthorID),
			slog.String("prompt", match.Prompt.Name),
			slog.String("trigger", match.Trigger),
		)
	}
	return nil
}
