package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"sourcesage/internal/domain/entity"
)

func limit(parallelism int) int {
	if parallelism < 1 {
		return 1
	}
	return parallelism
}

// forEachRecord runs fn over records with at most parallelism in flight.
// Each invocation owns records[i], so order is preserved. The first error
// cancels the remaining work.
func forEachRecord(ctx context.Context, records []entity.Analysis, parallelism int,
	fn func(ctx context.Context, rec *entity.Analysis) error) error {
	if limit(parallelism) == 1 {
		for i := range records {
			if err := fn(ctx, &records[i]); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit(parallelism))
	for i := range records {
		rec := &records[i]
		g.Go(func() error { return fn(gctx, rec) })
	}
	return g.Wait()
}
