// Copyright 2016 ETH Zurich
// Copyright 2019 ETH Zurich, Anapaya Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package serrors provides errors that carry key value context and a stack
// trace. Errors created with serrors support errors.Is and errors.As: for an
// error err created by Wrap(msg, cause), errors.Is(err, cause) is true, and for
// an error created by Join(base, cause), errors.Is(err, base) and
// errors.Is(err, cause) are both true.
//
// The stack trace is captured once, by the innermost serrors error of a chain.
// Wrapping an error that already carries a stack does not capture another one.
package serrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxPair struct {
	Key   string
	Value any
}

// info is shared by both error implementations of this package.
type info struct {
	ctx   []ctxPair
	cause error
	stack *stack
}

func newInfo(cause error, withStack bool, errCtx []any) info {
	pairs := make([]ctxPair, 0, len(errCtx)/2)
	for i := 0; i+1 < len(errCtx); i += 2 {
		pairs = append(pairs, ctxPair{Key: fmt.Sprint(errCtx[i]), Value: errCtx[i+1]})
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].Key < pairs[b].Key })

	i := info{ctx: pairs, cause: cause}
	if withStack && !hasStack(cause) {
		i.stack = callers()
	}
	return i
}

func hasStack(err error) bool {
	if err == nil {
		return false
	}
	var st interface{ StackTrace() StackTrace }
	return errors.As(err, &st) && st.StackTrace() != nil
}

func (i info) suffix() string {
	var sb strings.Builder
	if len(i.ctx) != 0 {
		sb.WriteString(" {")
		for n, p := range i.ctx {
			if n != 0 {
				sb.WriteString("; ")
			}
			fmt.Fprintf(&sb, "%s=%v", p.Key, p.Value)
		}
		sb.WriteString("}")
	}
	if i.cause != nil {
		sb.WriteString(": ")
		sb.WriteString(i.cause.Error())
	}
	return sb.String()
}

func (i info) marshalLogObject(enc zapcore.ObjectEncoder) error {
	if i.cause != nil {
		if m, ok := i.cause.(zapcore.ObjectMarshaler); ok {
			if err := enc.AddObject("cause", m); err != nil {
				return err
			}
		} else {
			enc.AddString("cause", i.cause.Error())
		}
	}
	if i.stack != nil {
		if err := enc.AddArray("stacktrace", i.stack); err != nil {
			return err
		}
	}
	for _, p := range i.ctx {
		zap.Any(p.Key, p.Value).AddTo(enc)
	}
	return nil
}

// StackTrace returns the stack trace attached to the error, or the one of the
// innermost cause that has one.
func (i info) StackTrace() StackTrace {
	if i.stack != nil {
		return i.stack.StackTrace()
	}
	var st interface{ StackTrace() StackTrace }
	if i.cause != nil && errors.As(i.cause, &st) {
		return st.StackTrace()
	}
	return nil
}

// basicError is an error with a message, an optional cause and context.
type basicError struct {
	info
	msg string
}

func (e *basicError) Error() string {
	return e.msg + e.info.suffix()
}

func (e *basicError) Unwrap() error {
	return e.cause
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (e *basicError) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("msg", e.msg)
	return e.info.marshalLogObject(enc)
}

// joinedError attaches a cause and context to a base error, typically a
// sentinel.
type joinedError struct {
	info
	base error
}

func (e *joinedError) Error() string {
	return e.base.Error() + e.info.suffix()
}

func (e *joinedError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.base}
	}
	return []error{e.base, e.cause}
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (e *joinedError) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("msg", e.base.Error())
	return e.info.marshalLogObject(enc)
}

// New creates an error with the given message and context and attaches a
// stack trace. Sentinel errors should use errors.New instead.
func New(msg string, errCtx ...any) error {
	return &basicError{info: newInfo(nil, true, errCtx), msg: msg}
}

// Wrap returns an error with the given message that wraps cause and carries
// the given context. A stack trace is attached unless cause already has one.
func Wrap(msg string, cause error, errCtx ...any) error {
	return &basicError{info: newInfo(cause, true, errCtx), msg: msg}
}

// WrapNoStack is like Wrap but never captures a stack trace.
func WrapNoStack(msg string, cause error, errCtx ...any) error {
	return &basicError{info: newInfo(cause, false, errCtx), msg: msg}
}

// Join returns an error that is both base and cause, with additional context.
// Join returns nil if base and cause are both nil.
func Join(base, cause error, errCtx ...any) error {
	if base == nil && cause == nil {
		return nil
	}
	if base == nil {
		return Wrap("error", cause, errCtx...)
	}
	return &joinedError{info: newInfo(cause, true, errCtx), base: base}
}

// JoinNoStack is like Join but never captures a stack trace.
func JoinNoStack(base, cause error, errCtx ...any) error {
	if base == nil && cause == nil {
		return nil
	}
	if base == nil {
		return WrapNoStack("error", cause, errCtx...)
	}
	return &joinedError{info: newInfo(cause, false, errCtx), base: base}
}

// IsTimeout returns whether err is or is caused by a timeout error.
func IsTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// List is a slice of errors.
type List []error

// Error implements the error interface.
func (e List) Error() string {
	s := make([]string, 0, len(e))
	for _, err := range e {
		s = append(s, err.Error())
	}
	return fmt.Sprintf("[ %s ]", strings.Join(s, "; "))
}

// Unwrap returns the errors in the list.
func (e List) Unwrap() []error {
	return e
}

// ToError returns the list as error, or nil if it is empty.
func (e List) ToError() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// MarshalLogArray implements zapcore.ArrayMarshaler.
func (e List) MarshalLogArray(ae zapcore.ArrayEncoder) error {
	for _, err := range e {
		if m, ok := err.(zapcore.ObjectMarshaler); ok {
			if err := ae.AppendObject(m); err != nil {
				return err
			}
			continue
		}
		ae.AppendString(err.Error())
	}
	return nil
}
