package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// InventoryPubSub fans out "room type inventory changed" notifications
// between instances.
type InventoryPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewInventoryPubSub(rdb *redis.Client) *InventoryPubSub {
	return &InventoryPubSub{
		rdb:     rdb,
		channel: ChannelInventoryChanged(),
	}
}

type inventoryChangedMsg struct {
	Type       string `json:"type"`
	RoomTypeID int64  `json:"room_type_id"`
	TsUnix     int64  `json:"ts_unix"`
}

func (p *InventoryPubSub) PublishInventoryChanged(ctx context.Context, roomTypeID int64) error {
	msg := inventoryChangedMsg{
		Type:       "inventory_changed",
		RoomTypeID: roomTypeID,
		TsUnix:     time.Now().Unix(),
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Subscribe blocks and calls handler for every notification until ctx is done.
func (p *InventoryPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, roomTypeID int64)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg inventoryChangedMsg
			if err := json.Unmarshal([]byte(m.Payload), &msg); err == nil &&
				msg.RoomTypeID != 0 {
				handler(ctx, msg.RoomTypeID)
			}
		}
	}
}
