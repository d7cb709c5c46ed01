package broker

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestInMemoryBrokerFansOut(t *testing.T) {
	b := NewInMemoryBroker(quietLogger())
	ctx := context.Background()

	var mu sync.Mutex
	received := map[string][]string{}
	handler := func(name string) MessageHandler {
		return func(ctx context.Context, msg *Message) error {
			mu.Lock()
			defer mu.Unlock()
			received[name] = append(received[name], string(msg.Payload))
			return nil
		}
	}

	_, err := b.Subscribe(ctx, "habits", handler("first"))
	require.NoError(t, err)
	_, err = b.Subscribe(ctx, "habits", handler("second"))
	require.NoError(t, err)
	_, err = b.Subscribe(ctx, "other", handler("other"))
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "habits", []byte("checked-in"), map[string]string{"event_type": "habit_checked_in"}))
	b.Drain()

	assert.Equal(t, []string{"checked-in"}, received["first"])
	assert.Equal(t, []string{"checked-in"}, received["second"])
	assert.Empty(t, received["other"])
}

func TestInMemoryBrokerUnsubscribe(t *testing.T) {
	b := NewInMemoryBroker(quietLogger())
	ctx := context.Background()

	var mu sync.Mutex
	count := 0
	sub, err := b.Subscribe(ctx, "habits", func(ctx context.Context, msg *Message) error {
		mu.Lock()
		count++
		mu.Unlock()
		return errors.New("handler errors are only logged")
	})
	require.NoError(t, err)
	assert.Equal(t, "habits", sub.Topic())
	assert.NotEmpty(t, sub.ID())

	require.NoError(t, b.Publish(ctx, "habits", nil, nil))
	b.Drain()
	require.NoError(t, sub.Unsubscribe())
	assert.True(t, sub.IsClosed())
	require.NoError(t, sub.Unsubscribe())

	require.NoError(t, b.Publish(ctx, "habits", nil, nil))
	b.Drain()
	assert.Equal(t, 1, count)
}

func TestInMemoryBrokerClose(t *testing.T) {
	b := NewInMemoryBroker(quietLogger())
	ctx := context.Background()

	assert.True(t, errors.Is(b.DeleteTopic(ctx, "missing"), ErrTopicNotFound))
	_, err := b.Subscribe(ctx, "habits", func(context.Context, *Message) error { return nil })
	require.NoError(t, err)
	require.NoError(t, b.DeleteTopic(ctx, "habits"))

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.True(t, errors.Is(b.Publish(ctx, "habits", nil, nil), ErrBrokerClosed))
	_, err = b.Subscribe(ctx, "habits", func(context.Context, *Message) error { return nil })
	assert.True(t, errors.Is(err, ErrBrokerClosed))
}
