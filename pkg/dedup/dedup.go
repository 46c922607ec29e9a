// Copyright 2018-2024 CERN
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// In applying this license, CERN does not waive the privileges and immunities
// granted to it by virtue of its status as an Intergovernmental Organization
// or submit itself to any jurisdiction.

// Package dedup evicts entries from the upload-dedup cache kept in redis by
// the upload service. Keys follow <zone-prefix>/<container_code>/<path>;
// the key layout must stay in sync with the upload service.
package dedup

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/pilotdataplatform/filecopy/pkg/models"
)

// Cache wraps the redis instance holding upload-dedup keys.
type Cache struct {
	client *redis.Client
}

// New returns a cache client.
func New(addr, username, password string) *Cache {
	return &Cache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Username: username,
			Password: password,
		}),
	}
}

// Key renders the dedup cache key for a node. Archived nodes are keyed by
// their pre-archive restore path because that is where the upload happened.
func Key(node *models.Node) string {
	prefix := "greenroom"
	if node.Zone == models.ZoneCore {
		prefix = "core"
	}

	path := node.DisplayPath()
	if node.RestorePath != "" {
		path = node.RestorePath + "/" + node.Name
	}
	return prefix + "/" + node.ContainerCode + "/" + path
}

// Evict removes the dedup key of an archived node when present. Missing
// keys are not an error; the cache is best-effort.
func (c *Cache) Evict(ctx context.Context, node *models.Node) error {
	key := Key(node)

	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return errors.Wrapf(err, "could not probe dedup key %q", key)
	}
	if exists == 0 {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(err, "could not evict dedup key %q", key)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}
