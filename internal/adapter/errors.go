// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package adapter

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoaded is returned when no script has been loaded yet.
	ErrNotLoaded = errors.New("adapter: no script loaded")
	// ErrFunctionNotFound is returned when the script does not define an entry point.
	ErrFunctionNotFound = errors.New("adapter: function not found")
	// ErrNoResult is returned when the script returned without invoking its callback.
	ErrNoResult = errors.New("adapter: callback not invoked")
	// ErrScript marks errors raised inside the script.
	ErrScript = errors.New("adapter: script error")
	// ErrInterrupted is returned when the call was interrupted by its context.
	ErrInterrupted = errors.New("adapter: interrupted")
)

// ScriptError is a rich error type that wraps the sentinel errors with context.
type ScriptError struct {
	Sentinel   error
	Function   string
	Message    string
	StackTrace string
	Err        error // underlying goja error, if any
}

func (e *ScriptError) Error() string {
	msg := fmt.Sprintf("adapter: %s: %v", e.Function, e.Sentinel)
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil && e.Message == "" {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ScriptError) Unwrap() error {
	return e.Sentinel
}

// Stack returns the script stack trace, if one was captured.
func (e *ScriptError) Stack() string {
	return e.StackTrace
}
