// Package cache is a Redis read-through cache of joined cards.
//
// Redis failures never fail a read: the caller falls back to the store.
// A nil *Cards is valid and caches nothing.
//
// Each card id has a generation counter that Evict bumps. A reader takes
// the generation before loading from the store and Set only writes when
// it is unchanged, so a load that raced a mutation is never cached.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zulandar/boardcore/internal/models"
)

// generationTTL bounds how long an eviction is remembered. It must exceed
// the slowest store read between Generation and Set.
const generationTTL = 10 * time.Minute

var errStale = errors.New("cache: generation changed")

// Generation is the eviction counter of a card id at some instant.
type Generation int64

// Cards caches joined card representations keyed by card id.
type Cards struct {
	redis *redis.Client
	ttl   time.Duration
}

// New wraps client. A nil client or non-positive ttl disables writes.
func New(client *redis.Client, ttl time.Duration) *Cards {
	if ttl < 0 {
		ttl = 0
	}
	return &Cards{redis: client, ttl: ttl}
}

// Open connects to the Redis server at url and pings it.
func Open(ctx context.Context, url string, ttl time.Duration) (*Cards, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping %s: %w", opts.Addr, err)
	}
	return New(client, ttl), nil
}

// Close releases the Redis connection.
func (c *Cards) Close() error {
	if c == nil || c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

// Get returns the cached card, if present and decodable.
func (c *Cards) Get(ctx context.Context, id string) (*models.Card, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, Key(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var card models.Card
	if err := json.Unmarshal(data, &card); err != nil {
		_ = c.redis.Del(ctx, Key(id)).Err()
		return nil, false
	}
	return &card, true
}

// Generation returns the current generation of id. Take it before reading
// the card from the store and pass it to Set.
func (c *Cards) Generation(ctx context.Context, id string) Generation {
	if c == nil || c.redis == nil {
		return 0
	}
	n, err := c.redis.Get(ctx, generationKey(id)).Int64()
	if err != nil {
		return 0
	}
	return Generation(n)
}

// Set stores card under its id unless the id was evicted since gen was
// taken.
func (c *Cards) Set(ctx context.Context, card *models.Card, gen Generation) {
	if c == nil || c.redis == nil || c.ttl == 0 || card == nil {
		return
	}
	data, err := json.Marshal(card)
	if err != nil {
		return
	}
	genKey := generationKey(card.ID)
	_ = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if Generation(cur) != gen {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, Key(card.ID), data, c.ttl)
			return nil
		})
		return err
	}, genKey)
}

// Evict drops the given card ids and bumps their generations.
func (c *Cards) Evict(ctx context.Context, ids ...string) {
	if c == nil || c.redis == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = Key(id)
	}
	_, _ = c.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, keys...)
		for _, id := range ids {
			p.Incr(ctx, generationKey(id))
			p.Expire(ctx, generationKey(id), generationTTL)
		}
		return nil
	})
}

// Key is the Redis key for a card id.
func Key(id string) string {
	return "card:" + id
}

func generationKey(id string) string {
	return "card-gen:" + id
}
