// Package errors provides structured error types for the debug engine.
// Every failure the engine can produce carries a machine-readable code plus
// a hint aimed at the calling agent, so a wrapping MCP tool can surface
// actionable guidance without re-deriving it.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode categorizes a failure for programmatic handling.
type ErrorCode string

const (
	// Configuration — fatal for engine construction.
	CodeHelperNotFound ErrorCode = "HELPER_NOT_FOUND"

	// Build — non-fatal, Idle is preserved.
	CodeBuildFailed ErrorCode = "BUILD_FAILED"

	// WrongState — non-fatal, no runtime contact made.
	CodeWrongState ErrorCode = "WRONG_STATE"

	// BreakpointLocationUnknown — non-fatal.
	CodeBreakpointLocationUnknown ErrorCode = "BREAKPOINT_LOCATION_UNKNOWN"

	// Runtime — any nonzero HRESULT from a capability call.
	CodeRuntimeError ErrorCode = "RUNTIME_ERROR"

	// Timeout — enforced only by the agent-facing wrapper.
	CodeTimeout ErrorCode = "TIMEOUT"

	// Parameter errors from the MCP tool layer.
	CodeMissingParameter ErrorCode = "MISSING_PARAMETER"
	CodeInvalidParameter ErrorCode = "INVALID_PARAMETER"
)

// EngineError is a structured error type carrying enough context for a
// caller (human or agent) to understand what went wrong and how to
// recover, without inspecting engine internals.
type EngineError struct {
	Code    ErrorCode
	Message string
	Hint    string
	Details map[string]interface{}
	Cause   error
}

func (e *EngineError) Error() string {
	if e.Hint == "" {
		return e.Message
	}
	return fmt.Sprintf("%s | hint: %s", e.Message, e.Hint)
}

func (e *EngineError) Unwrap() error { return e.Cause }

// WithDetails attaches a diagnostic key/value pair.
func (e *EngineError) WithDetails(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying cause for error-chain inspection.
func (e *EngineError) WithCause(err error) *EngineError {
	e.Cause = err
	return e
}

// HelperNotFound reports that the runtime helper library could not be
// located; carries the full list of attempted paths (spec §4.1).
func HelperNotFound(attempted []string) *EngineError {
	return &EngineError{
		Code:    CodeHelperNotFound,
		Message: "could not locate the CoreCLR debug helper library",
		Hint:    "set DBGSHIM_PATH, DOTNET_ROOT, or NETCOREDBG_PATH, or pass an explicit path",
		Details: map[string]interface{}{"attempted": attempted},
	}
}

// BuildFailed reports a nonzero `dotnet build` exit.
func BuildFailed(stdout, stderr string, code int) *EngineError {
	return &EngineError{
		Code:    CodeBuildFailed,
		Message: fmt.Sprintf("dotnet build exited with code %d", code),
		Hint:    "inspect stdout/stderr for the compiler diagnostics",
		Details: map[string]interface{}{"stdout": stdout, "stderr": stderr, "exitCode": code},
	}
}

// WrongState reports a command issued in a state that forbids it.
func WrongState(command string, have, want string) *EngineError {
	return &EngineError{
		Code:    CodeWrongState,
		Message: fmt.Sprintf("cannot %s while session state is %s", command, have),
		Hint:    fmt.Sprintf("this command requires state %s", want),
		Details: map[string]interface{}{"command": command, "state": have, "required": want},
	}
}

// BreakpointLocationUnknown reports that the PDB had no sequence point
// matching the requested (file, line).
func BreakpointLocationUnknown(dll, file string, line uint32) *EngineError {
	return &EngineError{
		Code:    CodeBreakpointLocationUnknown,
		Message: fmt.Sprintf("no sequence point for %s:%d in %s", file, line, dll),
		Hint:    "the line may be blank, a comment, or outside any method body",
		Details: map[string]interface{}{"dll": dll, "file": file, "line": line},
	}
}

// RuntimeError wraps a nonzero HRESULT from the capability surface.
func RuntimeError(operation string, hresult int32) *EngineError {
	return &EngineError{
		Code:    CodeRuntimeError,
		Message: fmt.Sprintf("%s failed with HRESULT 0x%08X", operation, uint32(hresult)),
		Hint:    "the session state is preserved; retry or inspect with debug_status",
		Details: map[string]interface{}{"operation": operation, "hresult": hresult},
	}
}

// Timeout reports a wait-for-event timeout enforced by an agent-facing
// wrapper; the engine itself never times out a wait on its own.
func Timeout(operation string, seconds int) *EngineError {
	return &EngineError{
		Code:    CodeTimeout,
		Message: fmt.Sprintf("%s timed out after %ds", operation, seconds),
		Hint:    "the debuggee may be blocked; try debug_pause to interrupt it",
		Details: map[string]interface{}{"operation": operation, "timeoutSeconds": seconds},
	}
}

// MissingParameter reports a required MCP tool argument that was omitted.
func MissingParameter(name string) *EngineError {
	return &EngineError{
		Code:    CodeMissingParameter,
		Message: fmt.Sprintf("required parameter %q is missing", name),
	}
}

// InvalidParameter reports a malformed MCP tool argument.
func InvalidParameter(name string, value interface{}, expected string) *EngineError {
	return &EngineError{
		Code:    CodeInvalidParameter,
		Message: fmt.Sprintf("invalid value for %q: %v", name, value),
		Hint:    fmt.Sprintf("expected %s", expected),
	}
}

// FromError preserves an existing EngineError, or wraps a generic one.
func FromError(err error) *EngineError {
	var ee *EngineError
	if stderrors.As(err, &ee) {
		return ee
	}
	return &EngineError{Code: "UNKNOWN_ERROR", Message: err.Error(), Cause: err}
}
