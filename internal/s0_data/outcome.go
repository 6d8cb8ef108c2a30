package s0_data

import "context"

// ReasonUnavailable is recorded when a fetcher fails without saying why
const ReasonUnavailable = "unavailable"

// Outcome is the two-case result of a field fetch: a present value or an
// absence with the reason the value could not be obtained.
// ⭐ SSOT: 필드 수집 결과는 예외가 아닌 값으로 표현
type Outcome[T any] struct {
	value   T
	present bool
	reason  string
}

// Present wraps a fetched value
func Present[T any](v T) Outcome[T] {
	return Outcome[T]{value: v, present: true}
}

// Absent records a failed fetch and why
func Absent[T any](reason string) Outcome[T] {
	if reason == "" {
		reason = ReasonUnavailable
	}
	return Outcome[T]{reason: reason}
}

// AbsentErr records a failed fetch from an error (nil err still yields Absent)
func AbsentErr[T any](err error) Outcome[T] {
	if err == nil {
		return Absent[T]("")
	}
	return Absent[T](err.Error())
}

// FromResult converts a conventional (value, error) pair
func FromResult[T any](v T, err error) Outcome[T] {
	if err != nil {
		return AbsentErr[T](err)
	}
	return Present(v)
}

// Get returns the value and whether it is present
func (o Outcome[T]) Get() (T, bool) {
	return o.value, o.present
}

// IsPresent reports whether a value was fetched
func (o Outcome[T]) IsPresent() bool {
	return o.present
}

// Reason returns the failure reason ("" when present)
func (o Outcome[T]) Reason() string {
	return o.reason
}

// FetchFunc fetches one field. Implementations must not panic, but the
// resolver recovers if they do.
type FetchFunc[T any] func(ctx context.Context) Outcome[T]
