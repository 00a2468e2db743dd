// Package ptr has helpers for the optional fields of the remote APIs.
package ptr

import "strconv"

// To creates a pointer to the given value.
func To[T any](v T) *T {
	return &v
}

// Deref returns *p, or def when p is nil.
func Deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// IDString formats an optional id, returning "" when it is nil.
func IDString(id *int) string {
	if id == nil {
		return ""
	}
	return strconv.Itoa(*id)
}
