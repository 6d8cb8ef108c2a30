package s0_data

import (
	"context"
	"fmt"
)

// Resolution is the resolved value of one field
type Resolution[T any] struct {
	Value      T
	Present    bool   // false: both primary and fallback failed (typed "unavailable")
	IsFallback bool   // value came from the default fetcher
	Reason     string // primary failure reason, kept verbatim ("" when primary succeeded)
}

// Ptr returns a pointer to the value, or nil when nothing was resolved
func (r Resolution[T]) Ptr() *T {
	if !r.Present {
		return nil
	}
	v := r.Value
	return &v
}

// OKPtr returns a pointer only when the primary source delivered the value.
// Fallback display defaults never leak into derived computations.
func (r Resolution[T]) OKPtr() *T {
	if !r.Present || r.IsFallback {
		return nil
	}
	v := r.Value
	return &v
}

// AcceptFunc judges a present primary value; ok=false turns it into a failure
type AcceptFunc[T any] func(v T) (ok bool, reason string)

// Resolve tries primary, then fallback.
// ⭐ SSOT: 모든 단일 값 필드는 이 함수로 해석
func Resolve[T any](ctx context.Context, primary, fallback FetchFunc[T]) Resolution[T] {
	return ResolveWith(ctx, primary, fallback, nil)
}

// ResolveWith is Resolve with an insufficiency check on the primary value
// (compound fields: a short headline list is a failure even if the fetch worked)
func ResolveWith[T any](ctx context.Context, primary, fallback FetchFunc[T], accept AcceptFunc[T]) Resolution[T] {
	out := safeFetch(ctx, primary)
	if v, ok := out.Get(); ok {
		if accept == nil {
			return Resolution[T]{Value: v, Present: true}
		}
		good, why := accept(v)
		if good {
			return Resolution[T]{Value: v, Present: true}
		}
		out = Absent[T](why)
	}

	reason := out.Reason()
	if fallback == nil {
		return Resolution[T]{Reason: reason}
	}

	def := safeFetch(ctx, fallback)
	if v, ok := def.Get(); ok {
		return Resolution[T]{Value: v, Present: true, IsFallback: true, Reason: reason}
	}
	return Resolution[T]{Reason: reason}
}

// safeFetch converts a panicking fetcher into an Absent outcome
func safeFetch[T any](ctx context.Context, fetch FetchFunc[T]) (out Outcome[T]) {
	if fetch == nil {
		return Absent[T]("no fetcher configured")
	}
	defer func() {
		if r := recover(); r != nil {
			out = Absent[T](fmt.Sprintf("panic: %v", r))
		}
	}()
	return fetch(ctx)
}
