// Package dashboard builds the admin and client views. Each view is loaded
// with one parallel batch of reads and rebuilt in full after every mutation.
// Loads are lenient: a failed read leaves its part of the view empty and is
// reported in the view's Errors list instead of failing the whole load.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shomere/ICR-Projects/internal/models"
	"github.com/shomere/ICR-Projects/internal/supabase"
)

// ErrInvalidID is returned before any remote call when an id is not a UUID.
var ErrInvalidID = fmt.Errorf("%w: malformed id", models.ErrInvalid)

// FetchError describes one read of a batch that failed.
type FetchError struct {
	Query   string        `json:"query"`
	Kind    supabase.Kind `json:"kind"`
	Message string        `json:"message"`
}

type record interface {
	Validate() error
}

// batch runs reads in parallel and collects their failures. Member
// failures never cancel the rest of the batch.
type batch struct {
	g      errgroup.Group
	logger *slog.Logger

	mu       sync.Mutex
	errs     []FetchError
	rejected int
}

func newBatch(logger *slog.Logger) *batch {
	return &batch{logger: logger, errs: []FetchError{}}
}

func (b *batch) fail(name string, err error) {
	b.logger.Warn("dashboard read failed", "query", name, "kind", supabase.KindOf(err), "error", err)
	b.mu.Lock()
	b.errs = append(b.errs, FetchError{Query: name, Kind: supabase.KindOf(err), Message: err.Error()})
	b.mu.Unlock()
}

func (b *batch) reject(name string, n int) {
	b.mu.Lock()
	b.rejected += n
	b.mu.Unlock()
}

// wait blocks until every read finished. Only a cancelled ctx is an error.
func (b *batch) wait(ctx context.Context) error {
	_ = b.g.Wait()
	return ctx.Err()
}

// list queues a read of q into dst, dropping rows that fail validation.
// dst is always left non-nil.
func list[T record](ctx context.Context, b *batch, name string, q *supabase.Query, dst *[]T) {
	*dst = []T{}
	b.g.Go(func() error {
		var rows []T
		if err := q.Execute(ctx, &rows); err != nil {
			b.fail(name, err)
			return nil
		}
		valid := make([]T, 0, len(rows))
		for _, r := range rows {
			if err := r.Validate(); err != nil {
				b.logger.Warn("dropping invalid row", "query", name, "error", err)
				b.reject(name, 1)
				continue
			}
			valid = append(valid, r)
		}
		*dst = valid
		return nil
	})
}

// count queues an exact count of q into dst.
func count(ctx context.Context, b *batch, name string, q *supabase.Query, dst *int) {
	b.g.Go(func() error {
		n, err := q.Count(ctx)
		if err != nil {
			b.fail(name, err)
			return nil
		}
		*dst = n
		return nil
	})
}

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
