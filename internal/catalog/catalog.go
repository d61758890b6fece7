// Package catalog serves the public list of active products, cache-aside.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shomere/ICR-Projects/internal/cache"
	"github.com/shomere/ICR-Projects/internal/models"
	"github.com/shomere/ICR-Projects/internal/supabase"
)

// Cache stores the active catalog. cache.RedisClient implements it.
type Cache interface {
	GetProducts(ctx context.Context) ([]models.Product, error)
	SetProducts(ctx context.Context, products []models.Product, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type Catalog struct {
	client *supabase.Client
	cache  Cache // nil disables caching
	ttl    time.Duration
	logger *slog.Logger

	// generation advances on every Invalidate. A fill that started under an
	// older generation must not leave its list in the cache.
	generation atomic.Uint64

	// populated is signalled after each background cache fill; used by tests.
	populated func()
}

func New(client *supabase.Client, c Cache, ttl time.Duration, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{client: client, cache: c, ttl: ttl, logger: logger}
}

// Active returns the active products, newest first. fromCache reports
// whether the list came from the cache.
func (c *Catalog) Active(ctx context.Context) (products []models.Product, fromCache bool, err error) {
	if c.cache != nil {
		products, err := c.cache.GetProducts(ctx)
		if err == nil {
			return products, true, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			c.logger.Warn("catalog cache read failed, falling back to remote", "error", err)
		}
	}

	gen := c.generation.Load()
	products, err = c.fetch(ctx)
	if err != nil {
		return nil, false, err
	}

	if c.cache != nil {
		// Fill the cache off the request path.
		go func(list []models.Product) {
			if c.populated != nil {
				defer c.populated()
			}
			c.fill(gen, list)
		}(products)
	}
	return products, false, nil
}

// fill stores list unless the catalog was invalidated after it was read.
// A fill that loses the race with Invalidate removes what it wrote.
func (c *Catalog) fill(gen uint64, list []models.Product) {
	bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.generation.Load() != gen {
		return
	}
	if err := c.cache.SetProducts(bg, list, c.ttl); err != nil {
		c.logger.Warn("catalog cache fill failed", "error", err)
		return
	}
	if c.generation.Load() != gen {
		c.logger.Debug("dropping catalog fill superseded by invalidation")
		if err := c.cache.Invalidate(bg); err != nil {
			c.logger.Warn("catalog cache invalidation failed", "error", err)
		}
	}
}

// Invalidate drops the cached list after a catalog change.
func (c *Catalog) Invalidate(ctx context.Context) {
	if c.cache == nil {
		return
	}
	c.generation.Add(1)
	if err := c.cache.Invalidate(ctx); err != nil {
		c.logger.Warn("catalog cache invalidation failed", "error", err)
	}
}

func (c *Catalog) fetch(ctx context.Context) ([]models.Product, error) {
	var rows []models.Product
	err := c.client.From("products").Eq("is_active", true).Order("created_at", false).Execute(ctx, &rows)
	if err != nil {
		return nil, err
	}

	products := make([]models.Product, 0, len(rows))
	for _, p := range rows {
		if err := p.Validate(); err != nil {
			c.logger.Warn("dropping invalid product", "id", p.ID, "error", err)
			continue
		}
		products = append(products, p)
	}
	return products, nil
}
