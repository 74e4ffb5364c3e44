// Package xerrors wraps errors with a call-site PC or a full stack so the
// logger can render error_links and stack fields.
package xerrors

import (
	"errors"
	"fmt"
	"runtime"
)

type stacked interface{ StackPCs() []uintptr }

type withStack struct {
	err error
	pcs []uintptr
}

func (w *withStack) Error() string       { return w.err.Error() }
func (w *withStack) Unwrap() error       { return w.err }
func (w *withStack) StackPCs() []uintptr { return w.pcs }

// skip counts frames above the caller of captureStack
func captureStack(skip int) []uintptr {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2+skip, pcs)
	return pcs[:n]
}

func stackSkip(err error, skip int) error {
	if err == nil {
		return nil
	}
	return &withStack{err: err, pcs: captureStack(skip)}
}

// WithStack records the current stack on err.
func WithStack(err error) error { return stackSkip(err, 2) }

// EnsureTrace records a stack only when no error in the chain carries one.
func EnsureTrace(err error) error {
	if err == nil {
		return nil
	}
	var s stacked
	if errors.As(err, &s) && len(s.StackPCs()) > 0 {
		return err
	}
	return stackSkip(err, 2)
}

type wrap struct {
	err error
	msg string
	pc  uintptr
}

func (w *wrap) Error() string { return w.msg + ": " + w.err.Error() }
func (w *wrap) Unwrap() error { return w.err }
func (w *wrap) PC() uintptr   { return w.pc }

func callerPC(skip int) uintptr {
	var pcs [1]uintptr
	if runtime.Callers(2+skip, pcs[:]) == 0 {
		return 0
	}
	return pcs[0]
}

// Wrap annotates err with msg and the caller's position. Nil stays nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrap{err: err, msg: msg, pc: callerPC(1)}
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &wrap{err: err, msg: fmt.Sprintf(format, args...), pc: callerPC(1)}
}

func New(msg string) error             { return stackSkip(errors.New(msg), 2) }
func Newf(f string, args ...any) error { return stackSkip(fmt.Errorf(f, args...), 2) }
