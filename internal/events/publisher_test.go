package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisherPublish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sub := client.Subscribe(context.Background(), Channel)
	defer sub.Close()
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	pub := NewRedisPublisher(client, nil)
	ev := JournalPosted(42, "GL-2024-000001", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), []PostedLine{
		{AccountID: 1, Debit: "100.00", Credit: "0"},
		{AccountID: 2, Debit: "0", Credit: "100.00"},
	}, time.Now())
	pub.Publish(context.Background(), ev)

	select {
	case msg := <-sub.Channel():
		var wire wireEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &wire))
		require.Equal(t, TypeJournalPosted, wire.Type)
		require.Equal(t, ev.ID.String(), wire.ID)
		require.Equal(t, "GL-2024-000001", wire.Payload["number"])
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestNopPublisher(t *testing.T) {
	// must not panic without a client
	NopPublisher{}.Publish(context.Background(), JournalVoided(1, time.Now()))
	var p *RedisPublisher
	p.Publish(context.Background(), JournalVoided(1, time.Now()))
}
