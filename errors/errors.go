// Package errors provides error types and utilities for the tubecheck library.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common conditions
var (
	ErrNotConnected      = errors.New("not connected")
	ErrTubeNotFound      = errors.New("tube not found")
	ErrJobNotFound       = errors.New("job not found")
	ErrTimeout           = errors.New("operation timed out")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrEmptyStrategyName = errors.New("strategy name cannot be empty")
	ErrNilFactory        = errors.New("strategy factory cannot be nil")
	ErrUnknownStrategy   = errors.New("unknown strategy")
	ErrNotImplemented    = errors.New("not implemented")
	ErrMemberUnreachable = errors.New("pool member unreachable")
	ErrInvalidMatchKey   = errors.New("invalid match key")
	ErrInvalidCondition  = errors.New("invalid condition")
	ErrDuplicateMember   = errors.New("duplicate pool member name")
	ErrUnknownMember     = errors.New("job belongs to no member of this pool")
)

// UnknownStrategyError is returned when a strategy identifier does not
// resolve against a registry.
type UnknownStrategyError struct {
	Name  string   // identifier as supplied by the caller
	Known []string // every registered identifier, sorted
}

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("unknown strategy %q (known strategies: %s)", e.Name, strings.Join(e.Known, ", "))
}

func (e *UnknownStrategyError) Is(target error) bool {
	return target == ErrUnknownStrategy
}

// NotImplementedError is returned by capabilities a strategy does not provide
type NotImplementedError struct {
	Strategy string
	Op       string
}

func (e *NotImplementedError) Error() string {
	if e.Strategy == "" {
		return fmt.Sprintf("%s: not implemented", e.Op)
	}
	return fmt.Sprintf("strategy %s: %s: not implemented", e.Strategy, e.Op)
}

func (e *NotImplementedError) Is(target error) bool {
	return target == ErrNotImplemented
}

// MemberError represents a failure talking to one pool member while an
// aggregate operation was in flight.
type MemberError struct {
	Member string // member name (usually its address)
	Op     string // operation being performed
	Err    error  // underlying error
}

func (e *MemberError) Error() string {
	return fmt.Sprintf("pool member %s: %s: %v", e.Member, e.Op, e.Err)
}

func (e *MemberError) Unwrap() error {
	return e.Err
}

func (e *MemberError) Is(target error) bool {
	return target == ErrMemberUnreachable
}

// InvalidMatchKeyError reports a predicate key outside the matchable catalog
type InvalidMatchKeyError struct {
	Key     string
	Allowed []string
}

func (e *InvalidMatchKeyError) Error() string {
	return fmt.Sprintf("invalid match key %q (allowed: %s)", e.Key, strings.Join(e.Allowed, ", "))
}

func (e *InvalidMatchKeyError) Is(target error) bool {
	return target == ErrInvalidMatchKey
}

// ConnectionError represents connection-related errors
type ConnectionError struct {
	URI string // connection URI (may be redacted)
	Err error  // underlying error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s: %v", e.URI, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) Temporary() bool {
	if t, ok := e.Err.(interface{ Temporary() bool }); ok {
		return t.Temporary()
	}
	return false
}

func (e *ConnectionError) Timeout() bool {
	if t, ok := e.Err.(interface{ Timeout() bool }); ok {
		return t.Timeout()
	}
	return false
}

// Helper functions for creating errors

// NewMemberError wraps err as a pool member failure. A nil err yields nil.
func NewMemberError(member, op string, err error) error {
	if err == nil {
		return nil
	}
	var me *MemberError
	if errors.As(err, &me) && me.Member == member {
		return err
	}
	return &MemberError{Member: member, Op: op, Err: err}
}

// NewConnectionError creates a new connection error
func NewConnectionError(uri string, err error) error {
	return &ConnectionError{URI: uri, Err: err}
}

// NewNotImplementedError creates a new not-implemented error
func NewNotImplementedError(strategy, op string) error {
	return &NotImplementedError{Strategy: strategy, Op: op}
}

// IsNotFound reports whether err is one of the member "absent" signals
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTubeNotFound) || errors.Is(err, ErrJobNotFound)
}

// IsTimeout checks if an error is a timeout
func IsTimeout(err error) bool {
	if t, ok := err.(interface{ Timeout() bool }); ok {
		return t.Timeout()
	}
	return errors.Is(err, ErrTimeout)
}
