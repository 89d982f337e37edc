package utils

import "strings"

func Ptr[T any](v T) *T {
	return &v
}

// OrZero dereferences v, or returns the zero value for nil.
func OrZero[T comparable](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

// Is reports whether p is set and holds v.
func Is[T comparable](p *T, v T) bool {
	return p != nil && *p == v
}

// StringOrNil returns nil on an empty or all whitespace string.
func StringOrNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
