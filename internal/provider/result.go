// Package provider holds types shared by upstream data adapters.
package provider

// Result is the captured outcome of one provider call: either a value or the
// error that prevented it. The zero Result is a failure with no error set.
type Result[T any] struct {
	Value T
	Err   error
	ok    bool
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v, ok: true}
}

// Fail wraps a failed call.
func Fail[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// From captures the (value, error) return of an adapter call.
func From[T any](v T, err error) Result[T] {
	if err != nil {
		return Fail[T](err)
	}
	return Ok(v)
}

// Get returns the value and whether the call succeeded.
func (r Result[T]) Get() (T, bool) {
	return r.Value, r.ok
}

// Or returns the value, or fallback when the call failed.
func (r Result[T]) Or(fallback T) T {
	if !r.ok {
		return fallback
	}
	return r.Value
}
