package multierror

import (
	"fmt"
	"strings"
	"sync"
)

// Error accumulates keyed errors from a fan-out operation, such as closing
// every member of a roster, and combines them into a single error value.
type Error[T comparable] struct {
	mu     sync.Mutex
	errors map[T]error
}

func New[T comparable]() *Error[T] {
	return &Error[T]{
		errors: make(map[T]error),
	}
}

// Error returns a string representation of the error.
func (m *Error[T]) Error() string {
	var msg string
	for k, v := range m.errors {
		msg += fmt.Sprintf("%v:%s; ", k, v)
	}

	return strings.TrimRight(msg, "; ")
}

// Unwrap returns the accumulated errors, making the combined value work
// with errors.Is and errors.As.
func (m *Error[T]) Unwrap() []error {
	errs := make([]error, 0, len(m.errors))
	for _, v := range m.errors {
		errs = append(errs, v)
	}

	return errs
}

// Add records an error under the given key.
func (m *Error[T]) Add(key T, err error) {
	m.mu.Lock()
	m.errors[key] = err
	m.mu.Unlock()
}

// Combined returns the Error if anything was recorded, nil otherwise.
func (m *Error[T]) Combined() error {
	if len(m.errors) == 0 {
		return nil
	}

	return m
}
