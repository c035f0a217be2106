// Package debug is the optional instrumentation layer. Tracers observe
// registry misses, unresolved expressions, hidden nodes and middleware
// invocations; they never change what a resolution pass produces.
package debug

import (
	"context"
	"fmt"
	"sync"
)

// Kind classifies an event.
type Kind string

const (
	KindRegistryMiss     Kind = "registry_miss"
	KindExpressionMiss   Kind = "expression_unresolved"
	KindNodeHidden       Kind = "node_hidden"
	KindMiddleware       Kind = "middleware"
	KindMiddlewareError  Kind = "middleware_error"
	KindValidationIssue  Kind = "validation_issue"
	KindPassStarted      Kind = "pass_started"
	KindPassFinished     Kind = "pass_finished"
	KindComponentCreated Kind = "component_created"
)

// Severity orders diagnostics.
type Severity string

const (
	SeverityDebug   Severity = "debug"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is one instrumentation record.
type Event struct {
	PassID    string
	Kind      Kind
	Path      string
	Component string
	Detail    string
	Index     int
	Err       error
}

// Severity returns the default severity of the event kind.
func (e Event) Severity() Severity {
	switch e.Kind {
	case KindMiddlewareError:
		return SeverityError
	case KindRegistryMiss, KindValidationIssue:
		return SeverityWarning
	default:
		if e.Err != nil {
			return SeverityError
		}
		return SeverityDebug
	}
}

// Message renders a human readable summary.
func (e Event) Message() string {
	switch e.Kind {
	case KindRegistryMiss:
		return fmt.Sprintf("component %q is not registered", e.Component)
	case KindExpressionMiss:
		return fmt.Sprintf("expression %s did not resolve", e.Detail)
	case KindNodeHidden:
		return "node hidden by visibility rule"
	case KindMiddleware:
		return fmt.Sprintf("middleware #%d applied", e.Index)
	case KindMiddlewareError:
		return fmt.Sprintf("middleware #%d failed: %v", e.Index, e.Err)
	}
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

// Diagnostic converts the event into a value suitable for surfacing to
// callers.
func (e Event) Diagnostic() Diagnostic {
	return Diagnostic{
		Severity:  e.Severity(),
		Kind:      e.Kind,
		Path:      e.Path,
		Component: e.Component,
		Message:   e.Message(),
	}
}

// Diagnostic is the value form of a non-fatal problem.
type Diagnostic struct {
	Severity  Severity `json:"severity"`
	Kind      Kind     `json:"kind"`
	Path      string   `json:"path,omitempty"`
	Component string   `json:"component,omitempty"`
	Message   string   `json:"message"`
}

func (d Diagnostic) String() string {
	out := fmt.Sprintf("[%s] %s", d.Severity, d.Message)
	if d.Path != "" {
		out += fmt.Sprintf(" (at %s)", d.Path)
	}
	return out
}

// Tracer receives events. Implementations must be safe for concurrent use
// and must not panic.
type Tracer interface {
	Trace(ctx context.Context, event Event)
}

// TracerFunc adapts a function into a Tracer.
type TracerFunc func(ctx context.Context, event Event)

// Trace calls the wrapped function.
func (fn TracerFunc) Trace(ctx context.Context, event Event) {
	if fn != nil {
		fn(ctx, event)
	}
}

// Nop discards every event.
var Nop Tracer = TracerFunc(func(context.Context, Event) {})

type multi []Tracer

// Multi fans events out to every tracer in order.
func Multi(tracers ...Tracer) Tracer {
	out := make(multi, 0, len(tracers))
	for _, t := range tracers {
		if t != nil {
			out = append(out, t)
		}
	}
	switch len(out) {
	case 0:
		return Nop
	case 1:
		return out[0]
	}
	return out
}

func (m multi) Trace(ctx context.Context, event Event) {
	for _, t := range m {
		t.Trace(ctx, event)
	}
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Trace implements Tracer.
func (r *Recorder) Trace(_ context.Context, event Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kind returns the recorded events of one kind.
func (r *Recorder) Kind(kind Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// Reset drops every recorded event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
