/*
 * BankFeed - Copyright (C) 2026 OpenLedger
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 2, and only
 * version 2 as published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program; if not, write to the Free Software
 * Foundation, Inc., 59 Temple Place, Suite 330, Boston, MA  02111-1307  USA
 */

package ingest

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const seenSetKey = "bankfeed:txn_numbers"

// SeenCache is a Redis set of already-ingested transaction numbers,
// used as an advisory pre-filter in front of the storage dedup query.
// A cache miss always falls through to storage, so a cold or flushed
// cache only costs a lookup, never correctness.
type SeenCache struct {
	rdb *redis.Client
	key string
}

func NewSeenCache(rdb *redis.Client) *SeenCache {
	return &SeenCache{rdb: rdb, key: seenSetKey}
}

// NewSeenCacheFromURL connects from a redis:// URL.
func NewSeenCacheFromURL(url string) (*SeenCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewSeenCache(redis.NewClient(opts)), nil
}

// Known reports which of the given transaction numbers the cache has
// seen before.
func (c *SeenCache) Known(ctx context.Context, keys []string) (map[string]bool, error) {
	if len(keys) == 0 {
		return map[string]bool{}, nil
	}

	members := make([]any, len(keys))
	for i, k := range keys {
		members[i] = k
	}

	results, err := c.rdb.SMIsMember(ctx, c.key, members...).Result()
	if err != nil {
		return nil, err
	}

	known := map[string]bool{}
	for i, hit := range results {
		if hit {
			known[keys[i]] = true
		}
	}
	return known, nil
}

// Add marks transaction numbers as seen after a successful insert.
func (c *SeenCache) Add(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	members := make([]any, len(keys))
	for i, k := range keys {
		members[i] = k
	}

	return c.rdb.SAdd(ctx, c.key, members...).Err()
}
