package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/domain/events"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/pkg/broker"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler consumes one decoded habit event
type Handler func(ctx context.Context, event *events.HabitEvent) error

// Bus publishes habit events on the message broker and decodes them for subscribers.
type Bus struct {
	broker broker.MessageBroker
	logger *zap.Logger
}

func New(b broker.MessageBroker, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{broker: b, logger: logger}
}

// Publish implements events.Publisher
func (b *Bus) Publish(ctx context.Context, event *events.HabitEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode habit event: %w", err)
	}
	return b.broker.Publish(ctx, events.TopicHabitEvents, payload, map[string]string{
		"event_type": event.EventType,
		"user_id":    event.UserID.String(),
	})
}

// Subscribe registers handler for every habit event
func (b *Bus) Subscribe(ctx context.Context, handler Handler) (broker.Subscription, error) {
	return b.broker.Subscribe(ctx, events.TopicHabitEvents, func(ctx context.Context, msg *broker.Message) error {
		var event events.HabitEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			b.logger.Warn("Dropping malformed habit event",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			return nil
		}
		return handler(ctx, &event)
	})
}

// Invalidator drops cached views of a user
type Invalidator interface {
	InvalidateUserAnalytics(ctx context.Context, userID uuid.UUID) error
}

// InvalidateAnalytics clears the user's cached analytics on every event.
func InvalidateAnalytics(inv Invalidator) Handler {
	return func(ctx context.Context, event *events.HabitEvent) error {
		return inv.InvalidateUserAnalytics(ctx, event.UserID)
	}
}

// Mirror forwards the event to another publisher, such as the Redis channel
func Mirror(publish func(ctx context.Context, event *events.HabitEvent) error) Handler {
	return func(ctx context.Context, event *events.HabitEvent) error {
		return publish(ctx, event)
	}
}

// LogEvents records each event at debug level
func LogEvents(logger *zap.Logger) Handler {
	return func(ctx context.Context, event *events.HabitEvent) error {
		logger.Debug("Habit event",
			zap.String("event_type", event.EventType),
			zap.String("user_id", event.UserID.String()),
			zap.String("habit_id", event.HabitID.String()))
		return nil
	}
}
