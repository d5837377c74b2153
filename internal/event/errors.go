package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for the instrumentation bus.
var (
	// ErrBusClosed is returned when subscribing to a bus that has been torn down.
	ErrBusClosed = errors.New("instrumentation bus is closed")

	// ErrSubscriberClosed is returned when subscribing through a closed Subscriber.
	ErrSubscriberClosed = errors.New("subscriber is closed")

	// ErrInvalidNamespace is returned for an empty namespace.
	ErrInvalidNamespace = errors.New("invalid namespace")

	// ErrInvalidSubscription is returned when a subscription handle is nil or foreign.
	ErrInvalidSubscription = errors.New("invalid subscription")

	// ErrSubscriptionNotFound is returned when unsubscribing an unknown subscription.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrHandlerPanic is matched by PanicError.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrWorkPanic is matched by WorkPanicError.
	ErrWorkPanic = errors.New("instrumented work panicked")

	// ErrNilHandler is returned when a nil callback is registered.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrNilWork is returned when Instrument or Time is given nil work.
	ErrNilWork = errors.New("work cannot be nil")

	// ErrUnsupportedArity is matched by InvalidSubscriberError.
	ErrUnsupportedArity = errors.New("unsupported subscriber arity")

	// ErrUnknownPolicy is returned for an unrecognised failure policy name.
	ErrUnknownPolicy = errors.New("unknown failure policy")
)

// ConfigurationError reports a malformed namespace, tag, target or callback
// at subscribe or instrument time. It is never retried.
type ConfigurationError struct {
	// Field names the offending argument ("namespace", "tag", "target", "handler", "work").
	Field string

	// Value is the rejected value, when there is one worth reporting.
	Value any

	// Err is the underlying validation error.
	Err error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Value == nil {
		return "invalid " + e.Field + ": " + e.Err.Error()
	}
	return fmt.Sprintf("invalid %s %v: %v", e.Field, e.Value, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// InvalidSubscriberError reports a callback whose invocation shape is
// neither single- nor dual-argument.
type InvalidSubscriberError struct {
	// Namespace the callback was being attached to.
	Namespace Namespace

	// Arity is the declared parameter count, or -1 when it cannot be known.
	Arity int

	// Reason is an optional detail such as "variadic".
	Reason string
}

// Error implements the error interface.
func (e *InvalidSubscriberError) Error() string {
	msg := fmt.Sprintf("invalid subscriber for namespace %s: arity %d", e.Namespace, e.Arity)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

// Is allows errors.Is to match ErrUnsupportedArity.
func (e *InvalidSubscriberError) Is(target error) bool {
	return target == ErrUnsupportedArity
}

// HandlerError wraps an error returned by a subscriber callback.
type HandlerError struct {
	// SubscriptionID is the ID of the failing subscription.
	SubscriptionID string

	// Namespace is the namespace being notified.
	Namespace Namespace

	// Err is the error the callback returned.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return "handler error for subscription " + e.SubscriptionID + " on namespace " + string(e.Namespace) + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError wraps a panic recovered from a subscriber callback.
type PanicError struct {
	// SubscriptionID is the ID of the panicking subscription.
	SubscriptionID string

	// Namespace is the namespace being notified.
	Namespace Namespace

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the panic site.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic for subscription %s on namespace %s: %v", e.SubscriptionID, e.Namespace, e.Value)
}

// Is allows errors.Is to match ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}

// WorkPanicError is the failure recorded in a payload's error field when the
// instrumented work panics. The original panic value is re-panicked to the
// caller after notification.
type WorkPanicError struct {
	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the panic site.
	Stack string
}

// Error implements the error interface.
func (e *WorkPanicError) Error() string {
	return fmt.Sprintf("instrumented work panicked: %v", e.Value)
}

// Is allows errors.Is to match ErrWorkPanic.
func (e *WorkPanicError) Is(target error) bool {
	return target == ErrWorkPanic
}

// Unwrap exposes a panic value that is itself an error.
func (e *WorkPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func configError(field string, value any, err error) error {
	return &ConfigurationError{Field: field, Value: value, Err: err}
}
