// Package clr defines the Runtime Capability Surface: a typed,
// language-neutral view of CoreCLR's native debugging interface. This
// package is purely a contract — concrete implementations bind to the
// native vtables handed back by the runtime helper library (see
// internal/ffi and the native binding in native_linux.go).
//
// The engine depends only on these interfaces; it does not depend on any
// particular binding mechanism. Every method here must be called from the
// engine's dedicated dispatch thread — see the "same thread" invariant in
// internal/engine.
package clr

import "time"

// ElementType tags the runtime representation of a value, mirroring the
// CoreCLR CorElementType enumeration closely enough to dispatch value
// rendering (internal/value) without depending on the full enumeration.
type ElementType int

const (
	ElementBoolean ElementType = iota
	ElementChar
	ElementI1
	ElementU1
	ElementI2
	ElementU2
	ElementI4
	ElementU4
	ElementI8
	ElementU8
	ElementR4
	ElementR8
	ElementString
	ElementSzArray
	ElementArray
	ElementValueType
	ElementClass
	ElementObject
	ElementOther
)

// HResult is the raw status code the native surface returns from every
// call; zero is success, matching the reference environment's ABI.
type HResult int32

func (h HResult) Failed() bool { return h != 0 }

// Root is the debug root capability: the entry point handed back by
// register_for_runtime_startup (internal/ffi) once wrapped in the typed
// surface.
type Root interface {
	Initialize() error
	SetManagedCallback(sink CallbackSink) error
	// ReleaseManagedCallback tears down whatever bridge the last
	// SetManagedCallback installed. Called when a session ends so the
	// bridge does not outlive it (spec §4.1's callback-lifetime contract).
	// Safe to call with no bridge installed.
	ReleaseManagedCallback()
	DebugActiveProcess(pid int) (Process, error)
	GetProcess(pid int) (Process, error)
}

// Controller is embedded by Process; it is the base capability set shared
// across appdomain/process-scoped controllers in the real ICorDebug
// hierarchy.
type Controller interface {
	Stop(timeout time.Duration) error
	Continue(outOfBand bool) error
	EnumerateThreads() ([]Thread, error)
	SetAllThreadsDebugState(stepping bool) error
	Detach() error
	Terminate(exitCode int32) error
}

// Process is a live debuggee.
type Process interface {
	Controller
	GetID() int
	GetThread(id int32) (Thread, error)
	ReadMemory(addr uint64, size int) ([]byte, error)
	WriteMemory(addr uint64, data []byte) error
}

// Thread is one managed thread in the debuggee.
type Thread interface {
	GetID() int32
	GetActiveFrame() (Frame, error)
	EnumerateChains() ([]Chain, error)
	CreateStepper() (Stepper, error)
	GetCurrentException() (Value, error)
}

// Chain is one unwind chain of a thread's call stack; most callers only
// care about its frames.
type Chain interface {
	EnumerateFrames() ([]Frame, error)
}

// Frame is a single activation record. Only IL frames expose locals,
// arguments, and a function; native/internal frames implement only
// GetStackRange and report IsILFrame() == false.
type Frame interface {
	IsILFrame() bool
	GetFunction() (Function, error)
	GetStackRange() (start, end uint64, err error)
	GetIP() (uint32, error) // IL offset
	GetLocalVariable(slot uint32) (Value, error)
	GetArgument(slot uint32) (Value, error)
}

// Function identifies a method definition within a loaded module.
type Function interface {
	GetModule() (Module, error)
	GetClass() (Class, error)
	GetToken() (uint32, error) // method token, 0x06xxxxxx
	CreateBreakpoint() (FunctionBreakpoint, error)
	GetILCode() (Code, error)
}

// Code is a method's IL body; breakpoints must be created through it at a
// specific offset — creating one directly on a Function binds at offset 0
// under modern JITs and must never be used (spec §4.2).
type Code interface {
	CreateBreakpoint(ilOffset uint32) (FunctionBreakpoint, error)
}

// Module is a loaded assembly.
type Module interface {
	GetName() (string, error)
	GetFunctionFromToken(token uint32) (Function, error)
	GetClassFromToken(token uint32) (Class, error)
	// GetMetadataInterface is intentionally absent: on this platform the
	// runtime's in-process metadata interface is unavailable, so all
	// metadata reads go through internal/pdb against the file on disk
	// instead (spec §4.3).
}

// Class is a loaded type.
type Class interface {
	GetModule() (Module, error)
	GetToken() (uint32, error) // typedef token
	GetStaticFieldValue(fieldToken uint32, frame Frame) (Value, error)
}

// Value is the base capability shared by every runtime value handle.
type Value interface {
	GetType() ElementType
	GetSize() (uint64, error)
	GetAddress() (uint64, error)
}

// GenericValue is a fixed-size primitive value (bool, char, integers,
// floats) addressable as raw bytes.
type GenericValue interface {
	Value
	GetBytes() ([]byte, error)
}

// ReferenceValue is a value holding a pointer to a heap object (string,
// array, or boxed class instance).
type ReferenceValue interface {
	Value
	IsNull() (bool, error)
	Dereference() (Value, error)
}

// ObjectValue is a dereferenced class/struct instance.
type ObjectValue interface {
	Value
	GetClass() (Class, error)
	GetFieldValue(cls Class, fieldToken uint32) (Value, error)
}

// StringValue is a dereferenced System.String.
type StringValue interface {
	Value
	GetString() (string, error)
}

// ArrayValue is a dereferenced SZArray or multi-dimensional array.
type ArrayValue interface {
	Value
	GetCount() (uint32, error)
	GetElementType() (ElementType, error)
	GetElement(index uint32) (Value, error)
}

// Breakpoint is the base capability shared by all breakpoint kinds.
type Breakpoint interface {
	Activate(active bool) error
	IsActive() (bool, error)
}

// FunctionBreakpoint is a breakpoint bound to a specific method + IL
// offset via Code.CreateBreakpoint.
type FunctionBreakpoint interface {
	Breakpoint
	GetFunction() (Function, error)
	GetOffset() (uint32, error)
}

// Stepper drives single-thread execution control. step_range is mandatory
// for step-over/into; the argument-less step() primitive must never be
// used (spec §4.6.5) because it degenerates to single-instruction stepping
// when the runtime's own source mapping is unavailable on this platform.
type Stepper interface {
	SetInterceptMaskNone() error
	SetUnmappedStopMaskNone() error
	StepRange(into bool, ranges []StepRange) error
	StepOut() error
}

// StepRange is a half-open [Start, End) IL-offset span the stepper will
// not stop within.
type StepRange struct {
	Start uint32
	End   uint32
}

// CallbackSink is implemented by the engine (internal/engine/sink.go) and
// registered via Root.SetManagedCallback. The runtime invokes its methods
// on its own internal thread, one at a time, with the debuggee always
// stopped on entry. See spec §4.5 for the full stopping/informational
// classification; this interface lists every method the runtime surface
// requires a sink to implement.
type CallbackSink interface {
	Breakpoint(proc Process, thread Thread, bp Breakpoint)
	StepComplete(proc Process, thread Thread, stepper Stepper, reason int)
	Break(proc Process, thread Thread)
	Exception(proc Process, thread Thread, unhandled bool)
	ExceptionV2(proc Process, thread Thread, eventType int)
	CreateProcess(proc Process)
	ExitProcess(proc Process)

	LoadModule(proc Process, module Module)
	UnloadModule(proc Process, module Module)
	LoadClass(proc Process, class Class)
	UnloadClass(proc Process, class Class)
	CreateThread(proc Process, thread Thread)
	ExitThread(proc Process, thread Thread)
	LoadAssembly(proc Process)
	UnloadAssembly(proc Process)
	CreateAppDomain(proc Process)
	ExitAppDomain(proc Process)
	LogMessage(proc Process, thread Thread, message string)
	LogSwitch(proc Process, thread Thread)
	NameChange(proc Process, thread Thread)
	UpdateModuleSymbols(proc Process, module Module)
	BreakpointSetError(proc Process, thread Thread, bp Breakpoint)
	FunctionRemap(proc Process, thread Thread)
	CreateConnection(proc Process)
	ChangeConnection(proc Process)
	DestroyConnection(proc Process)
	ExceptionUnwind(proc Process, thread Thread)
	MDANotification(proc Process, thread Thread)
	ControlCTrap(proc Process)
	DebuggerError(proc Process, hresult HResult)
	EvalComplete(proc Process, thread Thread)
	EvalException(proc Process, thread Thread)
}
