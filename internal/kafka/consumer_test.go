package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testConsumer() *Consumer {
	return &Consumer{workers: 1, attempts: 3, backoff: time.Millisecond, log: zap.NewNop()}
}

func TestProcessRetriesUntilSuccess(t *testing.T) {
	c := testConsumer()
	calls := 0
	err := c.process(context.Background(), func(ctx context.Context, m kafka.Message) error {
		calls++
		if calls < 3 {
			return errors.New("redis down")
		}
		return nil
	}, kafka.Message{Topic: "order.placed"})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestProcessGivesUpAfterAttempts(t *testing.T) {
	c := testConsumer()
	calls := 0
	err := c.process(context.Background(), func(ctx context.Context, m kafka.Message) error {
		calls++
		return errors.New("redis down")
	}, kafka.Message{})

	assert.EqualError(t, err, "redis down")
	assert.Equal(t, 3, calls)
}

func TestProcessStopsOnCancel(t *testing.T) {
	c := testConsumer()
	c.backoff = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := c.process(ctx, func(ctx context.Context, m kafka.Message) error {
		calls++
		cancel()
		return errors.New("redis down")
	}, kafka.Message{})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
