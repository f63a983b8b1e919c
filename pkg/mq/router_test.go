package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRouter(t *testing.T) {
	r := NewRouter(zap.NewNop())
	var got []string
	r.Register("order.placed", func(_ context.Context, msg Message) error {
		got = append(got, string(msg.Body))
		return nil
	})
	r.Register("stock.low", func(context.Context, Message) error {
		return errors.New("rejected")
	})

	assert.True(t, r.Has("order.placed"))
	assert.False(t, r.Has("order.shipped"))
	assert.Equal(t, []string{"order.placed", "stock.low"}, r.RoutingKeys())

	ctx := context.Background()
	assert.NoError(t, r.Handle(ctx, Message{RoutingKey: "order.placed", Body: []byte("1")}))
	assert.Error(t, r.Handle(ctx, Message{RoutingKey: "stock.low"}))
	assert.NoError(t, r.Handle(ctx, Message{RoutingKey: "order.shipped"}))
	assert.Equal(t, []string{"1"}, got)
}
