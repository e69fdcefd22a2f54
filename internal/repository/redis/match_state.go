package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func stateKey(matchID string) string { return "match:" + matchID + ":state" }

// Snapshots of finished or abandoned matches should not linger.
const snapshotTTL = 24 * time.Hour

// SetMatchState stores the latest match snapshot JSON.
func (c *Client) SetMatchState(ctx context.Context, matchID string, state json.RawMessage) error {
	return c.rdb.Set(ctx, stateKey(matchID), []byte(state), snapshotTTL).Err()
}

// GetMatchState retrieves the latest match snapshot JSON, or nil when absent.
func (c *Client) GetMatchState(ctx context.Context, matchID string) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, stateKey(matchID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get match state: %w", err)
	}
	return json.RawMessage(data), nil
}

// DeleteMatchState removes the snapshot for a match (on match removal).
func (c *Client) DeleteMatchState(ctx context.Context, matchID string) error {
	return c.rdb.Del(ctx, stateKey(matchID)).Err()
}
