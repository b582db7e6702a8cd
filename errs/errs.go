// Copyright (c) 2016 Arista Networks, Inc.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the LICENSE file.

// Package errs defines the structured error kinds that stripedict's public
// operations can return, per spec.md §7.
package errs

import "fmt"

type kind string

const (
	// KindDuplicateKey is returned by Add when the key already has a
	// mapping and the caller did not ask for an overwrite.
	KindDuplicateKey kind = "duplicate-key"
	// KindKeyNotFound is returned by an operation that requires the key
	// to already exist, such as Remove or MustGet.
	KindKeyNotFound kind = "key-not-found"
	// KindCapacityExceeded is returned when an insert would require a
	// segment to grow past primes.MaxCapacity, even after a resize.
	KindCapacityExceeded kind = "capacity-exceeded"
	// KindInvalidArgument is returned for constructor-time and other
	// defensive argument checks.
	KindInvalidArgument kind = "invalid-argument"
)

// Error is the concrete type behind every error stripedict returns. Callers
// that need to branch on the condition should use errors.Is against one of
// the Err* sentinels below rather than a type assertion.
type Error struct {
	Kind    kind
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target has the same Kind as e, so that
// errors.Is(err, errs.ErrDuplicateKey) works regardless of the Message.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Kind == e.Kind
}

// New builds an *Error of the given kind with a formatted message.
func New(k kind, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

// DuplicateKey builds a KindDuplicateKey error for key.
func DuplicateKey(key any) *Error {
	return New(KindDuplicateKey, "key already exists: %v", key)
}

// KeyNotFound builds a KindKeyNotFound error for key.
func KeyNotFound(key any) *Error {
	return New(KindKeyNotFound, "key not found: %v", key)
}

// CapacityExceeded builds a KindCapacityExceeded error, naming the segment
// that could not satisfy the insert after a resize attempt.
func CapacityExceeded(segmentIndex int) *Error {
	return New(KindCapacityExceeded, "segment %d exceeded maximum capacity", segmentIndex)
}

// InvalidArgument builds a KindInvalidArgument error with a free-form
// description of what was invalid.
func InvalidArgument(format string, args ...any) *Error {
	return New(KindInvalidArgument, format, args...)
}

// Sentinels for use with errors.Is; only Kind is compared, so the Message
// field is left empty.
var (
	ErrDuplicateKey     = &Error{Kind: KindDuplicateKey}
	ErrKeyNotFound      = &Error{Kind: KindKeyNotFound}
	ErrCapacityExceeded = &Error{Kind: KindCapacityExceeded}
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument}
)
