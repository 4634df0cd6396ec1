package engine

import (
	"log"

	"github.com/tacitsys/dncdbg-mcp/internal/clr"
	"github.com/tacitsys/dncdbg-mcp/internal/pdb"
	"github.com/tacitsys/dncdbg-mcp/pkg/types"
)

// sink implements clr.CallbackSink. The runtime invokes its methods on its
// own internal thread, always with the debuggee stopped on entry; every
// method here must either emit a stopping event and return without
// continuing, or call Continue before returning (spec §4.5). Failing
// either rule either freezes the debuggee or loses a stop.
type sink struct {
	engine *Engine
}

func (s *sink) publish(ev types.DebugEvent) {
	s.engine.mu.Lock()
	q := s.engine.events
	s.engine.mu.Unlock()
	q.push(ev)
}

func (s *sink) recordStoppedThread(thread clr.Thread) {
	if thread == nil {
		return
	}
	s.engine.mu.Lock()
	s.engine.currentThread = thread.GetID()
	s.engine.mu.Unlock()
}

func (s *sink) stoppedEvent(reason string, thread clr.Thread) types.DebugEvent {
	ev := types.DebugEvent{Kind: types.EventStopped, Reason: reason}
	if thread != nil {
		ev.ThreadID = thread.GetID()
		ev.TopFrame = topFrameOf(thread)
	}
	return ev
}

// Breakpoint resolves the fired breakpoint's (method_token, il_offset) and
// reports BreakpointHit with its stable id, falling back to a generic
// Stopped if the lookup fails for any reason (spec §4.5 and §4.6.4's
// composite-key note on identity not being stable).
func (s *sink) Breakpoint(proc clr.Process, thread clr.Thread, bp clr.Breakpoint) {
	s.recordStoppedThread(thread)

	fbp, ok := bp.(clr.FunctionBreakpoint)
	if !ok {
		s.publish(s.stoppedEvent(types.ReasonBreakpoint, thread))
		return
	}
	fn, err := fbp.GetFunction()
	if err != nil {
		s.publish(s.stoppedEvent(types.ReasonBreakpoint, thread))
		return
	}
	tok, err := fn.GetToken()
	if err != nil {
		s.publish(s.stoppedEvent(types.ReasonBreakpoint, thread))
		return
	}
	offset, err := fbp.GetOffset()
	if err != nil {
		s.publish(s.stoppedEvent(types.ReasonBreakpoint, thread))
		return
	}

	id, ok := s.engine.lookupBreakpointID(tok, offset)
	if !ok {
		s.publish(s.stoppedEvent(types.ReasonBreakpoint, thread))
		return
	}

	ev := s.stoppedEvent(types.ReasonBreakpoint, thread)
	ev.Kind = types.EventBreakpointHit
	ev.BreakpointID = id
	s.publish(ev)
}

func (s *sink) StepComplete(proc clr.Process, thread clr.Thread, stepper clr.Stepper, reason int) {
	s.recordStoppedThread(thread)
	s.publish(s.stoppedEvent(types.ReasonStep, thread))
}

func (s *sink) Break(proc clr.Process, thread clr.Thread) {
	s.recordStoppedThread(thread)
	s.publish(s.stoppedEvent(types.ReasonPause, thread))
}

// Exception is the v1 callback. Only unhandled exceptions, or first-chance
// ones when the session opted in, stop the debuggee; the v1 stop also sets
// exceptionStopPending so the matching v2 UNHANDLED callback can suppress
// its duplicate report (spec §4.5).
func (s *sink) Exception(proc clr.Process, thread clr.Thread, unhandled bool) {
	if !unhandled {
		s.engine.mu.Lock()
		notifyFirstChance := s.engine.notifyFirstChance
		s.engine.mu.Unlock()
		if !notifyFirstChance {
			s.continueProcess(proc)
			return
		}
	}

	s.recordStoppedThread(thread)
	typeName, message := readExceptionInfo(thread)

	if unhandled {
		s.engine.mu.Lock()
		s.engine.exceptionStopPending = true
		s.engine.mu.Unlock()
	}

	s.publish(types.DebugEvent{
		Kind:             types.EventException,
		ThreadID:         threadIDOf(thread),
		ExceptionType:    typeName,
		ExceptionMessage: message,
		IsUnhandled:      unhandled,
	})
}

// ExceptionV2 carries a richer event-type enum in the real surface;
// eventType 1 stands in for UNHANDLED, the only value the dedup rule
// cares about (spec §4.5).
const exceptionV2Unhandled = 1

func (s *sink) ExceptionV2(proc clr.Process, thread clr.Thread, eventType int) {
	if eventType == exceptionV2Unhandled {
		s.engine.mu.Lock()
		pending := s.engine.exceptionStopPending
		s.engine.exceptionStopPending = false
		s.engine.mu.Unlock()
		if pending {
			s.continueProcess(proc)
			return
		}
		s.recordStoppedThread(thread)
		typeName, message := readExceptionInfo(thread)
		s.publish(types.DebugEvent{
			Kind:             types.EventException,
			ThreadID:         threadIDOf(thread),
			ExceptionType:    typeName,
			ExceptionMessage: message,
			IsUnhandled:      true,
		})
		return
	}
	s.continueProcess(proc)
}

// CreateProcess fires once the runtime has initialized enough for the
// engine to act; with stop_at_create_process set (fresh launches), this
// is the stop Launch awaits. Attach leaves it running.
func (s *sink) CreateProcess(proc clr.Process) {
	s.engine.mu.Lock()
	s.engine.process = proc
	stop := s.engine.stopAtCreateProcess
	s.engine.mu.Unlock()

	// Both launch and attach wait on this event to learn the process is
	// ready; only launch's stop_at_create_process flag leaves it paused.
	s.publish(types.DebugEvent{Kind: types.EventStopped, Reason: types.ReasonProcessCreated})
	if !stop {
		s.continueProcess(proc)
	}
}

// ExitProcess closes the event channel for the session that owned this
// process — unless it belongs to a stale session (relaunch raced an async
// debuggee death: the exiting process is not the current session's one) or
// suppressExitProcess is set during a deliberate disconnect-before-relaunch
// (spec §4.5, §4.6.2's relaunch rule).
func (s *sink) ExitProcess(proc clr.Process) {
	s.engine.mu.Lock()
	suppress := s.engine.suppressExitProcess
	cur := s.engine.process
	q := s.engine.events
	s.engine.mu.Unlock()

	if suppress {
		return
	}
	if cur == nil || (proc != nil && proc.GetID() != cur.GetID()) {
		return
	}

	q.push(types.DebugEvent{Kind: types.EventExited})
	q.close()
}

func (s *sink) continueProcess(proc clr.Process) {
	if proc == nil {
		return
	}
	if err := proc.Continue(false); err != nil {
		log.Printf("engine: continue after informational callback failed: %v", err)
	}
}

// --- Informational callbacks: each must call continue exactly once. ---

func (s *sink) LoadModule(proc clr.Process, module clr.Module) {
	if path, err := module.GetName(); err == nil {
		s.engine.registerModule(path, module)
		s.engine.resolvePendingBreakpoints(path, module)
	}
	s.continueProcess(proc)
}

func (s *sink) UnloadModule(proc clr.Process, module clr.Module) { s.continueProcess(proc) }
func (s *sink) LoadClass(proc clr.Process, class clr.Class)      { s.continueProcess(proc) }
func (s *sink) UnloadClass(proc clr.Process, class clr.Class)    { s.continueProcess(proc) }

func (s *sink) CreateThread(proc clr.Process, thread clr.Thread) {
	s.engine.setThreadKnown(threadIDOf(thread), true)
	s.continueProcess(proc)
}

func (s *sink) ExitThread(proc clr.Process, thread clr.Thread) {
	s.engine.setThreadKnown(threadIDOf(thread), false)
	s.continueProcess(proc)
}

func (s *sink) LoadAssembly(proc clr.Process)               { s.continueProcess(proc) }
func (s *sink) UnloadAssembly(proc clr.Process)              { s.continueProcess(proc) }
func (s *sink) CreateAppDomain(proc clr.Process)             { s.continueProcess(proc) }
func (s *sink) ExitAppDomain(proc clr.Process)                { s.continueProcess(proc) }
func (s *sink) LogMessage(proc clr.Process, thread clr.Thread, message string) {
	s.continueProcess(proc)
}
func (s *sink) LogSwitch(proc clr.Process, thread clr.Thread)            { s.continueProcess(proc) }
func (s *sink) NameChange(proc clr.Process, thread clr.Thread)           { s.continueProcess(proc) }
func (s *sink) UpdateModuleSymbols(proc clr.Process, module clr.Module) { s.continueProcess(proc) }
func (s *sink) BreakpointSetError(proc clr.Process, thread clr.Thread, bp clr.Breakpoint) {
	s.continueProcess(proc)
}
func (s *sink) FunctionRemap(proc clr.Process, thread clr.Thread)   { s.continueProcess(proc) }
func (s *sink) CreateConnection(proc clr.Process)                  { s.continueProcess(proc) }
func (s *sink) ChangeConnection(proc clr.Process)                  { s.continueProcess(proc) }
func (s *sink) DestroyConnection(proc clr.Process)                 { s.continueProcess(proc) }
func (s *sink) ExceptionUnwind(proc clr.Process, thread clr.Thread) { s.continueProcess(proc) }
func (s *sink) MDANotification(proc clr.Process, thread clr.Thread) { s.continueProcess(proc) }
func (s *sink) ControlCTrap(proc clr.Process)                       { s.continueProcess(proc) }
func (s *sink) DebuggerError(proc clr.Process, hresult clr.HResult) {
	log.Printf("engine: DebuggerError callback: hresult=%d", hresult)
	s.continueProcess(proc)
}
func (s *sink) EvalComplete(proc clr.Process, thread clr.Thread)   { s.continueProcess(proc) }
func (s *sink) EvalException(proc clr.Process, thread clr.Thread) { s.continueProcess(proc) }

func threadIDOf(thread clr.Thread) int32 {
	if thread == nil {
		return 0
	}
	return thread.GetID()
}

// readExceptionInfo implements the exception-info read (spec §4.5): get
// the thread's current exception, resolve its declared type through the
// PDB, and walk the inheritance chain for the instance field "_message".
// Any failure anywhere in this chain falls back to the documented sentinel
// rather than propagating — this runs before any continue call, so it must
// not itself block indefinitely.
func readExceptionInfo(thread clr.Thread) (string, string) {
	const unknownType = "<unknown>"
	const unknownMessage = "Exception info unavailable"

	if thread == nil {
		return unknownType, unknownMessage
	}
	v, err := thread.GetCurrentException()
	if err != nil || v == nil {
		return unknownType, unknownMessage
	}

	obj, err := asObjectValue(v)
	if err != nil {
		return unknownType, unknownMessage
	}

	class, err := obj.GetClass()
	if err != nil {
		return unknownType, unknownMessage
	}
	module, err := class.GetModule()
	if err != nil {
		return unknownType, unknownMessage
	}
	modulePath, err := module.GetName()
	if err != nil {
		return unknownType, unknownMessage
	}
	typeTok, err := class.GetToken()
	if err != nil {
		return unknownType, unknownMessage
	}

	reader, err := pdb.Open(modulePath)
	if err != nil {
		return unknownType, unknownMessage
	}
	typeName, err := reader.GetTypeName(typeTok)
	if err != nil {
		return unknownType, unknownMessage
	}

	message, ok := findMessageField(reader, module, obj, typeTok)
	if !ok {
		return typeName, unknownMessage
	}
	return typeName, message
}

func asObjectValue(v clr.Value) (clr.ObjectValue, error) {
	if ov, ok := v.(clr.ObjectValue); ok {
		return ov, nil
	}
	rv, ok := v.(clr.ReferenceValue)
	if !ok {
		return nil, errNotObject
	}
	isNull, err := rv.IsNull()
	if err != nil || isNull {
		return nil, errNotObject
	}
	deref, err := rv.Dereference()
	if err != nil {
		return nil, err
	}
	ov, ok := deref.(clr.ObjectValue)
	if !ok {
		return nil, errNotObject
	}
	return ov, nil
}

var errNotObject = &sinkError{"value does not resolve to an object"}

type sinkError struct{ msg string }

func (e *sinkError) Error() string { return e.msg }

// findMessageField walks the inheritance chain looking for the instance
// field "_message", reading it through the correct level's class handle
// per field (spec's inheritance-walk rule — the same constraint §4.4
// describes for ordinary rendering).
func findMessageField(reader *pdb.Reader, module clr.Module, obj clr.ObjectValue, declaredTok uint32) (string, bool) {
	for tok := declaredTok; tok != 0; {
		fields, err := reader.ReadInstanceFields(tok)
		if err != nil {
			return "", false
		}
		for _, f := range fields {
			if f.Name != "_message" {
				continue
			}
			levelClass, err := module.GetClassFromToken(tok)
			if err != nil {
				return "", false
			}
			fv, err := obj.GetFieldValue(levelClass, f.Token)
			if err != nil {
				return "", false
			}
			return stringFieldValue(fv)
		}
		next, err := reader.GetBaseTypeToken(tok)
		if err != nil || next == 0 {
			return "", false
		}
		tok = next
	}
	return "", false
}

func stringFieldValue(v clr.Value) (string, bool) {
	if sv, ok := v.(clr.StringValue); ok {
		s, err := sv.GetString()
		return s, err == nil
	}
	rv, ok := v.(clr.ReferenceValue)
	if !ok {
		return "", false
	}
	isNull, err := rv.IsNull()
	if err != nil || isNull {
		return "", false
	}
	deref, err := rv.Dereference()
	if err != nil {
		return "", false
	}
	sv, ok := deref.(clr.StringValue)
	if !ok {
		return "", false
	}
	s, err := sv.GetString()
	return s, err == nil
}
