package telemetry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

func channelKey(runID string) string { return "crossway:telemetry:" + runID }

// Publisher pushes the record stream onto a redis pub/sub channel named
// crossway:telemetry:<run-id>, for dashboards that already subscribe to
// redis instead of connecting to the live websocket.
type Publisher struct {
	rdb     *redis.Client
	channel string
}

// NewPublisher connects from a redis URL and verifies the server responds.
func NewPublisher(redisURL, runID string) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Publisher{rdb: rdb, channel: channelKey(runID)}, nil
}

func (p *Publisher) publish(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.rdb.Publish(context.Background(), p.channel, b).Err()
}

func (p *Publisher) OnTick(rec *TickRecord) error {
	rec.Type = TypeTick
	return p.publish(rec)
}

func (p *Publisher) OnRoundEnd(rec *RoundRecord) error {
	rec.Type = TypeRound
	return p.publish(rec)
}

func (p *Publisher) OnRunEnd(rec *RunRecord) error {
	rec.Type = TypeRun
	return p.publish(rec)
}

// Close closes the redis connection.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
