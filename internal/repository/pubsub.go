package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"

	"tush00nka/phonechat/internal/model"
)

const conversationChannelPrefix = "chat:conversation:"

// EventBroker передает события переписки между инстансами через Redis pub/sub
type EventBroker struct {
	rdb *redis.Client
}

// NewEventBroker создает брокер событий
func NewEventBroker(rdb *redis.Client) *EventBroker {
	return &EventBroker{rdb: rdb}
}

func (b *EventBroker) Publish(ctx context.Context, event model.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return b.rdb.Publish(ctx, conversationChannelPrefix+event.ConversationKey, data).Err()
}

// Run передает события в sink до отмены ctx
func (b *EventBroker) Run(ctx context.Context, sink func(model.Event)) error {
	sub := b.rdb.PSubscribe(ctx, conversationChannelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event model.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("Dropping malformed event on %s: %v", msg.Channel, err)
				continue
			}
			if event.ConversationKey == "" {
				event.ConversationKey = strings.TrimPrefix(msg.Channel, conversationChannelPrefix)
			}
			sink(event)
		}
	}
}
