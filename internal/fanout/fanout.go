// Package fanout implements the optional cross-replica
// cache-invalidation adjunct described in SPEC_FULL.md §7, generalizing
// the teacher's Redis Pub/Sub relay (server/main.go's rdb.Publish /
// rdb.Subscribe pair) from a full message relay into a narrow
// "document X changed" signal for read-side REST handlers on replicas
// that are not hosting the live Session.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sumanthd032/collabhub/internal/hub"
	"github.com/sumanthd032/collabhub/internal/observability"
)

const channelPrefix = "collabhub:doc-updated:"

// Redis wires hub.ReplicaFanout against a Redis Pub/Sub channel per
// document.
type Redis struct {
	client *redis.Client
}

// New connects a go-redis client to addr. Pass an empty addr to get a
// disabled fanout (hub.NoopFanout) instead of calling this.
func New(addr string) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Ping verifies connectivity at startup, mirroring the teacher's
// rdb.Ping check.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

type notice struct {
	DocumentID string `json:"document_id"`
	Timestamp  int64  `json:"timestamp"`
}

// PublishUpdated publishes a cache-invalidation notice for id. It never
// feeds back into a Session's authoritative state — per SPEC_FULL.md
// §7 that would cross the explicit cross-process-sharing non-goal.
func (r *Redis) PublishUpdated(ctx context.Context, id hub.DocumentId, timestamp int64) {
	payload, err := json.Marshal(notice{DocumentID: id.String(), Timestamp: timestamp})
	if err != nil {
		return
	}
	channel := fmt.Sprintf("%s%s", channelPrefix, id.String())
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		observability.Logger().Warn("replica fanout publish failed", "document_id", id.String(), "error", err)
	}
}

// Subscribe listens for invalidation notices for id until ctx is
// canceled, invoking onUpdated for each one. A read-side REST replica
// can use this to avoid serving stale cached content.
func (r *Redis) Subscribe(ctx context.Context, id hub.DocumentId, onUpdated func(timestamp int64)) {
	sub := r.client.Subscribe(ctx, channelPrefix+id.String())
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var n notice
			if err := json.Unmarshal([]byte(msg.Payload), &n); err == nil {
				onUpdated(n.Timestamp)
			}
		}
	}
}
