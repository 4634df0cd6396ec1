// Package types defines the data model shared between the debug engine and
// its callers: session state, breakpoint records, stack frames, rendered
// variable trees, and the debug event stream.
package types

import "fmt"

// SessionState is the engine's lifecycle state. It is set by the engine
// package's commands as they start and complete.
type SessionState string

const (
	StateIdle    SessionState = "idle"
	StateRunning SessionState = "running"
	StateStopped SessionState = "stopped"
	StateExited  SessionState = "exited"
)

// BreakpointHandle is an opaque reference to a native FunctionBreakpoint.
// It is borrowed from the runtime capability surface and lives only as
// long as the owning session.
type BreakpointHandle interface{}

// BreakpointRecord is one breakpoint the engine knows about. It is pending
// while NativeHandle is nil (the owning module has not loaded yet) and
// active once resolved against a loaded module.
type BreakpointRecord struct {
	ID           uint32
	DLLBasename  string
	MethodToken  uint32
	ILOffset     uint32
	NativeHandle BreakpointHandle
	Enabled      bool
}

// Pending reports whether the record is still waiting for its owning
// module to load.
func (b *BreakpointRecord) Pending() bool {
	return b.NativeHandle == nil
}

// ModuleHandle is an opaque reference to a loaded module, borrowed from
// the runtime for the duration of a single command.
type ModuleHandle interface{}

// LoadedModuleEntry records a module the runtime has told the engine about
// via the LoadModule callback.
type LoadedModuleEntry struct {
	Path   string
	Handle ModuleHandle
}

// StackFrame is the engine's rendering of one frame in a call stack. It is
// ephemeral: built fresh for each stacktrace call and never cached across
// commands.
type StackFrame struct {
	Index         uint32
	MethodDisplay string
	SourceFile    string // empty if unknown
	SourceLine    uint32 // 0 if unknown
	ILOffset      uint32
	HasSource     bool
}

// VariableNode is a single node in a rendered value tree. Value is always a
// human-readable string; Children is populated for arrays (bounded),
// structs, and dereferenced reference types.
type VariableNode struct {
	Name     string
	TypeName string
	Value    string
	Children []VariableNode
}

// Rendering sentinels used as VariableNode.Value for special cases. Kept as
// named constants so the value reader and its tests agree on exact text.
const (
	RenderNull        = "null"
	RenderCircular    = "<circular>"
	RenderMaxDepth    = "<max depth>"
	RenderUnsupported = "<unsupported>"
)

// RenderError formats a per-field read failure the way the value reader
// does: recovered locally, never propagated.
func RenderError(err error) string {
	return fmt.Sprintf("<error: %v>", err)
}

// EventKind discriminates the DebugEvent sum type.
type EventKind string

const (
	EventStopped       EventKind = "stopped"
	EventBreakpointHit EventKind = "breakpoint_hit"
	EventException     EventKind = "exception"
	EventExited        EventKind = "exited"
	EventOutput        EventKind = "output"
)

// Stop reasons, a closed set per spec.
const (
	ReasonEntry          = "entry"
	ReasonProcessCreated = "process_created"
	ReasonBreakpoint     = "breakpoint"
	ReasonStep           = "step"
	ReasonPause          = "pause"
)

// DebugEvent is the closed sum of events the engine publishes on the event
// channel. Exactly one of the Kind-specific fields is meaningful for a
// given Kind.
type DebugEvent struct {
	Kind EventKind

	// Stopped / BreakpointHit
	Reason       string
	ThreadID     int32
	TopFrame     *StackFrame // nil if no frame could be read
	BreakpointID uint32      // meaningful only for EventBreakpointHit

	// Exception
	ExceptionType    string
	ExceptionMessage string
	IsUnhandled      bool

	// Exited
	ExitCode int32

	// Output
	OutputCategory string
	OutputText     string
}

// EvalResult is the outcome of a simple dot-chain expression evaluation.
type EvalResult struct {
	Success bool
	Value   string
	Error   string
}
