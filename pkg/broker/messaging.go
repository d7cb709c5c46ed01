package broker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Common errors
var (
	ErrTopicNotFound = errors.New("topic not found")
	ErrBrokerClosed  = errors.New("broker is closed")
)

// Message represents a generic message delivered to subscribers
type Message struct {
	ID          string            `json:"id"`
	Topic       string            `json:"topic"`
	Payload     []byte            `json:"payload"`
	PublishedAt time.Time         `json:"published_at"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// MessageHandler is a function that processes messages
type MessageHandler func(context.Context, *Message) error

// MessageBroker defines an interface for a message broker
type MessageBroker interface {
	// Publish publishes a message to a topic
	Publish(ctx context.Context, topic string, payload []byte, attributes map[string]string) error

	// Subscribe subscribes to a topic with a handler function
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// DeleteTopic drops a topic and its subscriptions
	DeleteTopic(ctx context.Context, topic string) error

	// Close closes the message broker
	Close() error
}

// Subscription represents a subscription to a topic
type Subscription interface {
	ID() string
	Topic() string
	Unsubscribe() error
	IsClosed() bool
}

// InMemoryBroker fans every published message out to the topic's current
// subscribers, each on its own goroutine. Messages are not retained.
type InMemoryBroker struct {
	subscriptions map[string]map[string]MessageHandler
	mu            sync.RWMutex
	inflight      sync.WaitGroup
	logger        *logrus.Logger
	closed        bool
}

type subscription struct {
	id     string
	topic  string
	broker *InMemoryBroker
	mu     sync.Mutex
	closed bool
}

// NewInMemoryBroker creates a new in-memory message broker
func NewInMemoryBroker(logger *logrus.Logger) *InMemoryBroker {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &InMemoryBroker{
		subscriptions: make(map[string]map[string]MessageHandler),
		logger:        logger,
	}
}

// DeleteTopic deletes a topic
func (b *InMemoryBroker) DeleteTopic(ctx context.Context, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBrokerClosed
	}
	if _, exists := b.subscriptions[topic]; !exists {
		return ErrTopicNotFound
	}
	delete(b.subscriptions, topic)
	return nil
}

// Publish delivers a message to every subscriber of topic
func (b *InMemoryBroker) Publish(ctx context.Context, topic string, payload []byte, attributes map[string]string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBrokerClosed
	}

	msg := &Message{
		ID:          uuid.New().String(),
		Topic:       topic,
		Payload:     payload,
		PublishedAt: time.Now().UTC(),
		Attributes:  attributes,
	}

	for _, handler := range b.subscriptions[topic] {
		b.inflight.Add(1)
		go b.processMessage(handler, msg)
	}
	return nil
}

// Subscribe subscribes to a topic
func (b *InMemoryBroker) Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrokerClosed
	}

	if _, exists := b.subscriptions[topic]; !exists {
		b.subscriptions[topic] = make(map[string]MessageHandler)
	}

	subID := uuid.New().String()
	b.subscriptions[topic][subID] = handler

	return &subscription{id: subID, topic: topic, broker: b}, nil
}

// processMessage runs a handler detached from the publisher's context
func (b *InMemoryBroker) processMessage(handler MessageHandler, msg *Message) {
	defer b.inflight.Done()

	if err := handler(context.Background(), msg); err != nil {
		b.logger.WithError(err).
			WithField("message_id", msg.ID).
			WithField("topic", msg.Topic).
			Error("Error processing message")
	}
}

// Drain blocks until every handler started so far has returned
func (b *InMemoryBroker) Drain() {
	b.inflight.Wait()
}

// Close stops accepting messages and waits for in-flight handlers
func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.subscriptions = nil
	b.mu.Unlock()

	b.inflight.Wait()
	return nil
}

func (s *subscription) ID() string {
	return s.id
}

func (s *subscription) Topic() string {
	return s.topic
}

func (s *subscription) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Unsubscribe unsubscribes from the topic
func (s *subscription) Unsubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	s.broker.mu.Lock()
	if subs, ok := s.broker.subscriptions[s.topic]; ok {
		delete(subs, s.id)
	}
	s.broker.mu.Unlock()

	s.closed = true
	return nil
}
