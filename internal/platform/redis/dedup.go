package redis

import (
	"context"
	"fmt"
	"time"
)

// Deduper provides short-lived claim keys used to suppress duplicate work
// across workers. Acquire is atomic (SET NX), so exactly one caller wins a
// given key until it expires or is released.
type Deduper struct {
	client *Client
	prefix string
}

// NewDeduper creates a deduper namespaced under prefix.
func NewDeduper(client *Client, prefix string) *Deduper {
	return &Deduper{client: client, prefix: prefix}
}

// Acquire claims key for ttl. Returns true when this caller won the claim.
func (d *Deduper) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+":"+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire dedup key: %w", err)
	}
	return ok, nil
}

// Release drops a claim early so a later attempt can retry before the TTL.
func (d *Deduper) Release(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, d.prefix+":"+key).Err(); err != nil {
		return fmt.Errorf("release dedup key: %w", err)
	}
	return nil
}
