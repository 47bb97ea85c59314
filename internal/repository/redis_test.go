package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"tush00nka/phonechat/internal/model"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestPresenceRepository(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	presence := NewPresenceRepository(rdb, 2*time.Minute)

	if err := presence.AddConnection(ctx, "alice", "conn-1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := presence.AddConnection(ctx, "alice", "conn-2"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if ttl := mr.TTL("user:alice:online"); ttl != 2*time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}

	online, err := presence.Online(ctx, []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("online: %v", err)
	}
	if !online["alice"] || online["bob"] {
		t.Fatalf("unexpected presence %v", online)
	}

	left, err := presence.RemoveConnection(ctx, "alice", "conn-1")
	if err != nil || left != 1 {
		t.Fatalf("remove: %d, %v", left, err)
	}
	left, err = presence.RemoveConnection(ctx, "alice", "conn-2")
	if err != nil || left != 0 {
		t.Fatalf("remove: %d, %v", left, err)
	}
	if online, _ := presence.Online(ctx, []string{"alice"}); online["alice"] {
		t.Fatal("alice should be offline")
	}
}

func TestPresenceRepository_Expires(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	presence := NewPresenceRepository(rdb, time.Minute)

	if err := presence.AddConnection(ctx, "alice", "conn-1"); err != nil {
		t.Fatalf("add: %v", err)
	}

	mr.FastForward(50 * time.Second)
	if err := presence.Refresh(ctx, "alice"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	mr.FastForward(50 * time.Second)
	if online, _ := presence.Online(ctx, []string{"alice"}); !online["alice"] {
		t.Fatal("refresh should keep alice online")
	}

	mr.FastForward(time.Minute)
	if online, _ := presence.Online(ctx, []string{"alice"}); online["alice"] {
		t.Fatal("presence should expire without refresh")
	}
}

func TestEventBroker_RoundTrip(t *testing.T) {
	_, rdb := newTestRedis(t)
	broker := NewEventBroker(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan model.Event, 8)
	done := make(chan error, 1)
	go func() {
		done <- broker.Run(ctx, func(e model.Event) {
			select {
			case received <- e:
			default:
			}
		})
	}()

	key := model.ConversationKey("b", "a")
	event := model.Event{Type: model.EventConversationDeleted, ConversationKey: key, DeletedCount: 3}

	// Publish until the subscription is in place.
	deadline := time.After(2 * time.Second)
	var got model.Event
wait:
	for {
		if err := broker.Publish(ctx, event); err != nil {
			t.Fatalf("publish: %v", err)
		}
		select {
		case got = <-received:
			break wait
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("event not delivered")
		}
	}

	if got.Type != model.EventConversationDeleted || got.ConversationKey != key || got.DeletedCount != 3 {
		t.Fatalf("unexpected event %+v", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("broker did not stop")
	}
}
