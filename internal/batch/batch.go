// Package batch issues rate limited, grouped calls against the remote data
// sources and streams their results one row at a time.
package batch

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"
	"time"
)

// ErrStreamConsumed is yielded when a Stream is ranged over a second time.
var ErrStreamConsumed = errors.New("stream already consumed")

// Fetcher performs one outbound call for a group of keys.
type Fetcher[K any, T any] func(ctx context.Context, keys []K) ([]T, error)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Limiter splits keys into groups of at most GroupSize and waits Delay
// before every group call except the first one.
type Limiter struct {
	GroupSize int
	Delay     time.Duration
	Sleep     SleepFunc
}

func NewLimiter(groupSize int, delay time.Duration) *Limiter {
	return &Limiter{
		GroupSize: groupSize,
		Delay:     delay,
		Sleep:     Sleep,
	}
}

// Sleep is the default SleepFunc, it returns early with the context error.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (l *Limiter) wait(ctx context.Context) error {
	sleep := l.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	return sleep(ctx, l.Delay)
}

// Chunk groups consecutive keys into slices of at most size elements. Each
// yielded slice is freshly allocated.
func Chunk[K any](keys iter.Seq[K], size int) iter.Seq[[]K] {
	if size < 1 {
		size = 1
	}
	return func(yield func([]K) bool) {
		group := make([]K, 0, size)
		for key := range keys {
			group = append(group, key)
			if len(group) == size {
				if !yield(group) {
					return
				}
				group = make([]K, 0, size)
			}
		}
		if len(group) > 0 {
			yield(group)
		}
	}
}

// Stream is a lazy, single use sequence of fetched rows. Ranging over it
// performs the network calls, so it cannot be restarted: a second call to All
// yields ErrStreamConsumed.
type Stream[T any] struct {
	seq      iter.Seq2[T, error]
	consumed atomic.Bool
}

func NewStream[T any](seq iter.Seq2[T, error]) *Stream[T] {
	return &Stream[T]{seq: seq}
}

func (s *Stream[T]) All() iter.Seq2[T, error] {
	if s.consumed.Swap(true) {
		return func(yield func(T, error) bool) {
			var zero T
			yield(zero, ErrStreamConsumed)
		}
	}
	return s.seq
}

// Fetch applies fetch to each group of keys and concatenates the results in
// group order. The first failing call ends the stream with its error and no
// further groups are requested.
func Fetch[K any, T any](ctx context.Context, l *Limiter, keys iter.Seq[K], fetch Fetcher[K, T]) *Stream[T] {
	return NewStream(func(yield func(T, error) bool) {
		var zero T
		first := true
		for group := range Chunk(keys, l.GroupSize) {
			if !first {
				if err := l.wait(ctx); err != nil {
					yield(zero, err)
					return
				}
			} else if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}
			first = false

			rows, err := fetch(ctx, group)
			if err != nil {
				yield(zero, err)
				return
			}
			for _, row := range rows {
				if !yield(row, nil) {
					return
				}
			}
		}
	})
}

// Map converts every row of s with fn. The result shares the single use of s,
// the first error of either s or fn ends it.
func Map[T any, U any](s *Stream[T], fn func(T) (U, error)) *Stream[U] {
	return NewStream(func(yield func(U, error) bool) {
		var zero U
		for v, err := range s.All() {
			if err != nil {
				yield(zero, err)
				return
			}
			u, err := fn(v)
			if err != nil {
				yield(zero, err)
				return
			}
			if !yield(u, nil) {
				return
			}
		}
	})
}

// Collect drains seq, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}
