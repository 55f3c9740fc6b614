// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

// Package option defines a generic option type as a way of representing
// "nothing" or "something" in a type-safe way. This is useful for
// representing optional values without the need for nil checks or pointers.
package option

// Option defines a generic option type that can either be nothing or something.
type Option[T any] struct {
	value *T
}

// None returns an option that is nothing.
func None[T any]() Option[T] {
	return Option[T]{}
}

// Some returns an option that is something.
func Some[T any](x T) Option[T] {
	return Option[T]{&x}
}

// FromPointer is Some(*p) for a non-nil p and None otherwise.
func FromPointer[T any](p *T) Option[T] {
	if p == nil {
		return None[T]()
	}
	return Some(*p)
}

// IsNone returns true if the option is nothing.
func (x Option[T]) IsNone() bool {
	return x.value == nil
}

// IsSome returns true if the option is something.
func (x Option[T]) IsSome() bool {
	return x.value != nil
}

// Unwrap returns the value of the option. Panics if the option is nothing.
func (x Option[T]) Unwrap() T {
	if x.value == nil {
		panic("unwrap called on a None option")
	}
	return *x.value
}

// UnwrapOr returns the value of the option or the given default.
func (x Option[T]) UnwrapOr(fallback T) T {
	if x.value == nil {
		return fallback
	}
	return *x.value
}
