package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// StreamApproved is the redis stream approved entries are relayed to.
const StreamApproved = "curator.approved"

// StreamPublisher relays entries to a redis stream for downstream consumers.
type StreamPublisher struct {
	rdb    *redis.Client
	stream string
}

func NewStreamPublisher(rdb *redis.Client) *StreamPublisher {
	return &StreamPublisher{rdb: rdb, stream: StreamApproved}
}

func (p *StreamPublisher) Record(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("archive: encode entry: %w", err)
	}
	_, err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"channel_id": strconv.FormatInt(e.ChannelID, 10),
			"message_id": strconv.FormatInt(e.MessageID, 10),
			"outcome":    e.Outcome,
			"entry":      string(payload),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("archive: publish %d/%d: %w", e.ChannelID, e.MessageID, err)
	}
	return nil
}
