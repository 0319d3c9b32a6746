// Package chunk compresses large buffers as independent fixed-size chunks on a
// bounded worker pool.
//
// Chunks never reference each other, so the concatenated output decodes as a
// single stream. Results are appended strictly in chunk order: the output is
// byte-for-byte the same as compressing each chunk sequentially.
package chunk

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/strm/internal/codec"
)

// EncodeFunc compresses one contiguous buffer.
type EncodeFunc func(ctx context.Context, src []byte, effort int) ([]byte, error)

type config struct {
	workers int
	encode  EncodeFunc
}

// Option configures Compress.
type Option func(*config)

// WithWorkers sets the worker pool size. Values < 1 use GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithEncoder replaces the per-chunk encoder. Nil keeps codec.Encode.
func WithEncoder(fn EncodeFunc) Option {
	return func(c *config) {
		if fn != nil {
			c.encode = fn
		}
	}
}

// Compress encodes src with effort, splitting it into chunkSize pieces when it
// is larger than one chunk. chunkSize <= 0 disables chunking.
func Compress(ctx context.Context, src []byte, effort, chunkSize int, opts ...Option) ([]byte, error) {
	cfg := config{encode: codec.Encode}
	for _, opt := range opts {
		opt(&cfg)
	}
	if chunkSize <= 0 || len(src) <= chunkSize {
		return cfg.encode(ctx, src, effort)
	}

	chunks := split(src, chunkSize)
	workers := cfg.workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, len(chunks))

	// slots[i] is written by exactly one worker before i is sent on readyCh.
	slots := make([][]byte, len(chunks))
	readyCh := make(chan int, len(chunks))
	taskCh := make(chan int)
	eg, gctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		defer close(taskCh)
		for i := range chunks {
			select {
			case taskCh <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for range workers {
		eg.Go(func() error {
			for i := range taskCh {
				out, err := cfg.encode(gctx, chunks[i], effort)
				if err != nil {
					return fmt.Errorf("chunk %d: %w", i, err)
				}
				slots[i] = out
				readyCh <- i
			}
			return nil
		})
	}

	out := make([]byte, 0, len(src)/2)
	eg.Go(func() error {
		filled := make([]bool, len(chunks))
		next := 0
		for next < len(chunks) {
			select {
			case i := <-readyCh:
				filled[i] = true
				out = drain(out, slots, filled, &next)
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// drain appends every filled slot from *next onward, stopping at the first gap.
func drain(out []byte, slots [][]byte, filled []bool, next *int) []byte {
	for *next < len(slots) && filled[*next] {
		out = append(out, slots[*next]...)
		slots[*next] = nil
		*next++
	}
	return out
}

// split cuts src into chunkSize pieces; the last piece may be shorter.
func split(src []byte, chunkSize int) [][]byte {
	chunks := make([][]byte, 0, (len(src)+chunkSize-1)/chunkSize)
	for start := 0; start < len(src); start += chunkSize {
		end := min(start+chunkSize, len(src))
		chunks = append(chunks, src[start:end:end])
	}
	return chunks
}
