package compile

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// encodeFunc produces the frame for input index i.
type encodeFunc func(ctx context.Context, i int) (rendered, error)

// sinkFunc receives frames strictly in index order.
type sinkFunc func(i int, frame rendered) error

// runPipeline encodes total frames on workers goroutines and hands them to
// sink in order. At most window frames are in flight or buffered at once.
// The first error from encode or sink cancels the rest and is returned.
func runPipeline(ctx context.Context, total, workers int, encode encodeFunc, sink sinkFunc) error {
	if total == 0 {
		return nil
	}
	workers = max(1, min(workers, total))
	window := workers * 4

	type result struct {
		index int
		frame rendered
	}

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan int)
	results := make(chan result, workers)
	tokens := make(chan struct{}, window)

	g.Go(func() error {
		defer close(jobs)
		for i := range total {
			select {
			case tokens <- struct{}{}:
			case <-gctx.Done():
				return nil
			}
			select {
			case jobs <- i:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for i := range jobs {
				frame, err := encode(gctx, i)
				if err != nil {
					return err
				}
				select {
				case results <- result{index: i, frame: frame}:
				case <-gctx.Done():
					return nil
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		wg.Wait()
		close(results)
		return nil
	})

	g.Go(func() error {
		pending := make(map[int]rendered, window)
		next := 0
		for res := range results {
			pending[res.index] = res.frame
			for {
				frame, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				if err := sink(next, frame); err != nil {
					return err
				}
				next++
				<-tokens
			}
		}
		if next < total {
			return gctx.Err()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
