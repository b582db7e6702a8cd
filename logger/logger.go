// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package logger

import "os"

// Logger is an interface to pass a generic logger without depending on either golang/glog or
// aristanetworks/glog
type Logger interface {
	// Info logs at the info level
	Info(args ...interface{})
	// Infof logs at the info level, with format
	Infof(format string, args ...interface{})
	// Error logs at the error level
	Error(args ...interface{})
	// Errorf logs at the error level, with format
	Errorf(format string, args ...interface{})
	// Fatal logs at the fatal level
	Fatal(args ...interface{})
	// Fatalf logs at the fatal level, with format
	Fatalf(format string, args ...interface{})
}

// NopLogger discards everything; it is the default Logger for components
// that make logging optional rather than mandatory.
type NopLogger struct{}

// Info implements Logger.
func (NopLogger) Info(args ...interface{}) {}

// Infof implements Logger.
func (NopLogger) Infof(format string, args ...interface{}) {}

// Error implements Logger.
func (NopLogger) Error(args ...interface{}) {}

// Errorf implements Logger.
func (NopLogger) Errorf(format string, args ...interface{}) {}

// Fatal implements Logger. Unlike the other methods it is not a pure
// no-op: Fatal is documented to terminate the program, so NopLogger still
// does, just without printing anything first.
func (NopLogger) Fatal(args ...interface{}) { os.Exit(1) }

// Fatalf implements Logger; see Fatal.
func (NopLogger) Fatalf(format string, args ...interface{}) { os.Exit(1) }
