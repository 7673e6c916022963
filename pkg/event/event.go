// Package event provides the workspace event system using the Observer pattern.
package event

import (
	"time"
)

// EventType categorizes workspace events.
type EventType string

const (
	// Workspace lifecycle events
	EventWorkspaceHydrated EventType = "workspace.hydrated"
	EventWorkspaceClosed   EventType = "workspace.closed"
	EventSandboxCreated    EventType = "sandbox.created"
	EventSandboxDestroyed  EventType = "sandbox.destroyed"
	EventSandboxReconciled EventType = "sandbox.reconciled"

	// Command events
	EventCommandStarted  EventType = "command.started"
	EventCommandComplete EventType = "command.complete"
	EventCommandError    EventType = "command.error"

	// File events
	EventFileEdited  EventType = "file.edited"
	EventFileCreated EventType = "file.created"
	EventFileRead    EventType = "file.read"
	EventFileDeleted EventType = "file.deleted"
)

// Event represents a workspace event.
type Event struct {
	// Type categorizes the event.
	Type EventType

	// WorkspaceRoot is the logical root of the workspace that generated
	// the event.
	WorkspaceRoot string

	// Timestamp when the event occurred.
	Timestamp time.Time

	// Data contains event-specific payload.
	Data any

	// Error is set for error events.
	Error error

	// Metadata contains additional context.
	Metadata map[string]any
}

// NewEvent creates a new event.
func NewEvent(eventType EventType, workspaceRoot string, data any) *Event {
	return &Event{
		Type:          eventType,
		WorkspaceRoot: workspaceRoot,
		Timestamp:     time.Now(),
		Data:          data,
		Metadata:      make(map[string]any),
	}
}

// NewErrorEvent creates an error event.
func NewErrorEvent(eventType EventType, workspaceRoot string, err error) *Event {
	return &Event{
		Type:          eventType,
		WorkspaceRoot: workspaceRoot,
		Timestamp:     time.Now(),
		Error:         err,
		Metadata:      make(map[string]any),
	}
}

// WithMetadata adds metadata to the event and returns it for chaining.
func (e *Event) WithMetadata(key string, value any) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

// EventHandler processes events.
type EventHandler func(event *Event)

// Emitter publishes events to subscribers.
type Emitter interface {
	// Emit sends an event to all relevant subscribers.
	Emit(event *Event)

	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()

	// SubscribeAll registers a handler for all events.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
}

// CommandData contains data for command events.
type CommandData struct {
	Command  string
	ExitCode int
	Duration time.Duration
}

// FileData contains data for file events.
type FileData struct {
	Path string
	Size int
}

// SyncData contains data for sandbox reconcile events.
type SyncData struct {
	Added   int
	Updated int
	Removed int
}
