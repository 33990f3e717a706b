package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/turfbook/ground-reservations/internal/domain"
)

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

// SetSlotLock takes a short-lived lock on the exclusivity key before the
// booking insert hits the database. The partial unique index remains the
// source of truth; the lock just sheds obvious double-clicks early.
func (c *Cache) SetSlotLock(ctx context.Context, key domain.SlotKey, bookingID string, ttl time.Duration) (bool, error) {
	res := c.client.SetNX(ctx, "slot:"+key.String(), bookingID, ttl)
	return res.Val(), res.Err()
}

func (c *Cache) ReleaseSlotLock(ctx context.Context, key domain.SlotKey) error {
	return c.client.Del(ctx, "slot:"+key.String()).Err()
}
