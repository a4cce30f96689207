// Redis integration: PUBLISH fanout for the public push channels and a
// small latest-reading cache used when query optimization is enabled.
// The service degrades gracefully when Redis is absent.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/types"
)

const (
	// LatestKeyPrefix namespaces the per-group latest-reading cache.
	LatestKeyPrefix = "scada:latest:"
	// LatestTTL bounds staleness when the service stops ingesting.
	LatestTTL = 1 * time.Hour
)

type Client struct {
	rdb *redis.Client
	ctx context.Context
}

// NewClient connects and pings; an error means the caller should run
// without Redis rather than fail.
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb, ctx: ctx}, nil
}

// Publish sends one envelope to a push channel. Subscribers not
// currently connected simply miss it.
func (c *Client) Publish(channel string, payload []byte) error {
	return c.rdb.Publish(c.ctx, channel, payload).Err()
}

// CacheLatest stores the newest wide reading for a group.
func (c *Client) CacheLatest(wide *types.WideReading) error {
	data, err := json.Marshal(wide)
	if err != nil {
		return fmt.Errorf("failed to marshal wide reading: %w", err)
	}
	return c.rdb.Set(c.ctx, LatestKeyPrefix+wide.Group, data, LatestTTL).Err()
}

// GetLatest returns the cached wide reading for a group, or nil on miss.
func (c *Client) GetLatest(group string) (*types.WideReading, error) {
	data, err := c.rdb.Get(c.ctx, LatestKeyPrefix+group).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var wide types.WideReading
	if err := json.Unmarshal(data, &wide); err != nil {
		return nil, err
	}
	return &wide, nil
}

// Ping checks the connection.
func (c *Client) Ping() error {
	return c.rdb.Ping(c.ctx).Err()
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
