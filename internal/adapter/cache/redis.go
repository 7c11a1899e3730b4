// Package cache keeps the last good catalog in Redis so the gallery can
// still start when every upstream source is down.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/niksmo/gallery/internal/core/domain"
	"github.com/niksmo/gallery/internal/core/port"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	_ port.CatalogSource      = (*RedisCatalog)(nil)
	_ port.CatalogSnapshotter = (*RedisCatalog)(nil)
)

const (
	DefaultKey = "gallery:catalog"
	DefaultTTL = 24 * time.Hour
)

type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
	TTL      time.Duration
}

// NewClient opens a client and checks the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	const op = "cache.NewClient"

	cl := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := cl.Ping(ctx).Err(); err != nil {
		cl.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cl, nil
}

// A RedisCatalog stores a catalog snapshot under a single key.
type RedisCatalog struct {
	cl  redis.Cmdable
	key string
	ttl time.Duration
}

// NewRedisCatalog uses cl for snapshots. Empty key and non-positive ttl fall
// back to [DefaultKey] and [DefaultTTL].
func NewRedisCatalog(cl redis.Cmdable, key string, ttl time.Duration) *RedisCatalog {
	if cl == nil {
		panic("NewRedisCatalog: client is nil") // develop mistake
	}
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCatalog{cl: cl, key: key, ttl: ttl}
}

func (*RedisCatalog) Name() string {
	return "cache"
}

func (c *RedisCatalog) Fetch(ctx context.Context) (domain.Catalog, error) {
	const op = "RedisCatalog.Fetch"

	data, err := c.cl.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Catalog{}, fmt.Errorf(
				"%s: %w: no snapshot", op, domain.ErrSourceUnavailable,
			)
		}
		return domain.Catalog{}, fmt.Errorf(
			"%s: %w: %w", op, domain.ErrSourceUnavailable, err,
		)
	}

	var cat domain.Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return domain.Catalog{}, fmt.Errorf(
			"%s: %w: %w", op, domain.ErrInvalidCatalog, err,
		)
	}
	return cat, nil
}

func (c *RedisCatalog) SaveCatalog(ctx context.Context, cat domain.Catalog) error {
	const op = "RedisCatalog.SaveCatalog"

	data, err := json.Marshal(cat)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := c.cl.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
