package sink

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/use-agent/pricecrawl/models"
)

// RedisOptions configures the Redis stream sink.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Stream   string // default: "pricecrawl:records"
	MaxLen   int64  // approximate cap; 0 keeps every entry
}

// RedisStream publishes one stream entry per row for downstream consumers.
// Each entry carries the run ID and the row as JSON.
type RedisStream struct {
	client *redis.Client
	stream string
	maxLen int64
}

// OpenRedisStream connects to opts.Addr.
func OpenRedisStream(ctx context.Context, opts RedisOptions) (*RedisStream, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, sinkError("ping redis", err)
	}
	stream := opts.Stream
	if stream == "" {
		stream = "pricecrawl:records"
	}
	return newRedisStream(client, stream, opts.MaxLen), nil
}

func newRedisStream(client *redis.Client, stream string, maxLen int64) *RedisStream {
	return &RedisStream{client: client, stream: stream, maxLen: maxLen}
}

// Write adds every row in one pipeline.
func (r *RedisStream) Write(ctx context.Context, runID string, rows []models.OutputRow) error {
	if len(rows) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for _, row := range rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return sinkError("encode row", err)
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: r.stream,
			MaxLen: r.maxLen,
			Approx: r.maxLen > 0,
			Values: map[string]any{
				"run_id": runID,
				"source": string(row.Source),
				"row":    string(payload),
			},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return sinkError("publish rows", err)
	}
	return nil
}

func (r *RedisStream) Close() error {
	return r.client.Close()
}
