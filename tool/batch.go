package tool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// batch solves problems concurrently, at most h.concurrency at a time.
// Results keep the input order; a problem that fails carries its error
// instead of aborting the others. A cancelled ctx fails the whole batch.
func (h *Handler) batch(ctx context.Context, problems []params) ([]SolveResult, error) {
	results := make([]SolveResult, len(problems))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for i, p := range problems {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := h.solve(p)
			if err != nil {
				results[i] = SolveResult{Error: err.Error()}
				return nil
			}
			results[i] = res.SolveResult
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
