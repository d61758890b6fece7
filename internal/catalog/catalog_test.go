package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shomere/ICR-Projects/internal/cache"
	"github.com/shomere/ICR-Projects/internal/models"
	"github.com/shomere/ICR-Projects/internal/supabase"
	"github.com/shomere/ICR-Projects/internal/supabase/supabasetest"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type memCache struct {
	mu       sync.Mutex
	products []models.Product
	ttl      time.Duration
	getErr   error
	sets     int
}

func (m *memCache) GetProducts(context.Context) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.products == nil {
		return nil, cache.ErrMiss
	}
	return m.products, nil
}

func (m *memCache) SetProducts(_ context.Context, p []models.Product, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products, m.ttl = p, ttl
	m.sets++
	return nil
}

func (m *memCache) Invalidate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = nil
	return nil
}

func setup(t *testing.T, c Cache) (*Catalog, *supabasetest.Server, chan struct{}) {
	t.Helper()
	srv := supabasetest.NewServer(t)
	srv.Seed("products",
		supabasetest.Row{"id": uuid.NewString(), "name": "Vase", "category": "decorative", "is_active": true},
		supabasetest.Row{"id": uuid.NewString(), "name": "Retired mug", "category": "ceramic_mugs", "is_active": false},
		supabasetest.Row{"id": uuid.NewString(), "name": "Broken", "category": "unknown", "is_active": true},
	)
	client, err := supabase.New(supabase.Config{URL: srv.URL, AnonKey: supabasetest.AnonKey})
	require.NoError(t, err)

	cat := New(client, c, time.Minute, quiet)
	done := make(chan struct{}, 4)
	cat.populated = func() { done <- struct{}{} }
	return cat, srv, done
}

func TestActiveWithoutCache(t *testing.T) {
	cat, _, _ := setup(t, nil)

	products, fromCache, err := cat.Active(context.Background())
	require.NoError(t, err)
	assert.False(t, fromCache)
	require.Len(t, products, 1, "inactive and invalid rows are excluded")
	assert.Equal(t, "Vase", products[0].Name)

	cat.Invalidate(context.Background())
}

func TestActiveCacheAside(t *testing.T) {
	mc := &memCache{}
	cat, srv, done := setup(t, mc)
	ctx := context.Background()

	_, fromCache, err := cat.Active(ctx)
	require.NoError(t, err)
	assert.False(t, fromCache)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cache was not populated")
	}
	assert.Equal(t, time.Minute, mc.ttl)

	// Remote changes are not seen until invalidation.
	srv.Seed("products", supabasetest.Row{"id": uuid.NewString(), "name": "Plate", "category": "dinnerware", "is_active": true})

	products, fromCache, err := cat.Active(ctx)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Len(t, products, 1)

	cat.Invalidate(ctx)
	products, fromCache, err = cat.Active(ctx)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Len(t, products, 2)
}

func TestActiveFallsBackOnCacheError(t *testing.T) {
	mc := &memCache{getErr: errors.New("connection refused")}
	cat, _, _ := setup(t, mc)

	products, fromCache, err := cat.Active(context.Background())
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Len(t, products, 1)
}

func TestActiveRemoteFailure(t *testing.T) {
	cat, srv, _ := setup(t, &memCache{})
	srv.DropTable("products")

	_, _, err := cat.Active(context.Background())
	assert.Equal(t, supabase.KindSchemaMissing, supabase.KindOf(err))
}

// gatedCache holds every SetProducts until gate is closed.
type gatedCache struct {
	memCache
	gate chan struct{}
}

func (g *gatedCache) SetProducts(ctx context.Context, p []models.Product, ttl time.Duration) error {
	<-g.gate
	return g.memCache.SetProducts(ctx, p, ttl)
}

func TestInvalidateWinsOverInFlightFill(t *testing.T) {
	gc := &gatedCache{gate: make(chan struct{})}
	cat, srv, done := setup(t, gc)
	ctx := context.Background()

	// The miss starts a fill that is held at the cache.
	products, fromCache, err := cat.Active(ctx)
	require.NoError(t, err)
	assert.False(t, fromCache)
	require.Len(t, products, 1)

	srv.Seed("products", supabasetest.Row{"id": uuid.NewString(), "name": "New tile", "category": "floor_tiles", "is_active": true})
	cat.Invalidate(ctx)
	close(gc.gate)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fill did not finish")
	}

	products, fromCache, err = cat.Active(ctx)
	require.NoError(t, err)
	assert.False(t, fromCache, "the pre-invalidation list must not be served")
	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.Name)
	}
	assert.ElementsMatch(t, []string{"Vase", "New tile"}, names)
}
