package engine

import (
	"context"
	"fmt"

	"github.com/tacitsys/dncdbg-mcp/internal/clr"
	dbgerrors "github.com/tacitsys/dncdbg-mcp/internal/errors"
	"github.com/tacitsys/dncdbg-mcp/internal/pdb"
	"github.com/tacitsys/dncdbg-mcp/internal/value"
	"github.com/tacitsys/dncdbg-mcp/pkg/types"
)

// localVariableNotAvailable is the HRESULT the reference environment
// returns once slot enumeration runs past the last local/argument; it is
// the end-of-list signal, not an error (spec §4.6.7).
const localVariableNotAvailable = -2146233596 // 0x80131304 as int32

// frameInfo derives a StackFrame for a single activation record, used both
// by GetStackTrace and by the callback sink to populate TopFrame on
// stopping events. Source resolution is best-effort: a PDB miss still
// yields a frame, just without file/line.
func frameInfo(index uint32, frame clr.Frame) types.StackFrame {
	sf := types.StackFrame{Index: index}
	if !frame.IsILFrame() {
		sf.MethodDisplay = "<native frame>"
		return sf
	}

	fn, err := frame.GetFunction()
	if err != nil {
		sf.MethodDisplay = "<unknown>"
		return sf
	}
	tok, err := fn.GetToken()
	if err != nil {
		sf.MethodDisplay = "<unknown>"
		return sf
	}
	ip, _ := frame.GetIP()
	sf.ILOffset = ip
	sf.MethodDisplay = fmt.Sprintf("0x%08x", tok)

	module, err := fn.GetModule()
	if err != nil {
		return sf
	}
	modulePath, err := module.GetName()
	if err != nil {
		return sf
	}
	reader, err := pdb.Open(modulePath)
	if err != nil {
		return sf
	}
	if file, line, ok := reader.ReverseLookup(tok, ip); ok {
		sf.SourceFile = file
		sf.SourceLine = line
		sf.HasSource = true
	}
	return sf
}

// topFrameOf is a convenience for the callback sink: the active frame of a
// thread, or nil if unavailable.
func topFrameOf(thread clr.Thread) *types.StackFrame {
	if thread == nil {
		return nil
	}
	frame, err := thread.GetActiveFrame()
	if err != nil {
		return nil
	}
	sf := frameInfo(0, frame)
	return &sf
}

// GetStackTrace walks one or every known thread's call stack. Threads are
// walked one frame at a time (spec §4.6.7 — bulk fetching is unreliable on
// this platform), via the thread's chains.
func (e *Engine) GetStackTrace(ctx context.Context, threadID *int32) (map[int32][]types.StackFrame, error) {
	if err := e.requireState("get_stack_trace", types.StateStopped); err != nil {
		return nil, err
	}

	out := make(map[int32][]types.StackFrame)
	err := e.dispatch(ctx, func() {
		ids := e.threadIDsToWalk(threadID)
		for _, id := range ids {
			thread, err := e.process.GetThread(id)
			if err != nil {
				continue
			}
			out[id] = e.walkThreadFrames(thread)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) threadIDsToWalk(threadID *int32) []int32 {
	if threadID != nil {
		return []int32{*threadID}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]int32, 0, len(e.knownThreads))
	for id := range e.knownThreads {
		ids = append(ids, id)
	}
	return ids
}

func (e *Engine) walkThreadFrames(thread clr.Thread) []types.StackFrame {
	var frames []types.StackFrame
	chains, err := thread.EnumerateChains()
	if err != nil {
		return frames
	}
	idx := uint32(0)
	for _, chain := range chains {
		chainFrames, err := chain.EnumerateFrames()
		if err != nil {
			continue
		}
		for _, f := range chainFrames {
			frames = append(frames, frameInfo(idx, f))
			idx++
		}
	}
	return frames
}

// GetLocals reads the active frame's locals and arguments for the selected
// thread (or the current stopped thread when threadID is nil).
func (e *Engine) GetLocals(ctx context.Context, threadID *int32) ([]types.VariableNode, error) {
	if err := e.requireState("get_locals", types.StateStopped); err != nil {
		return nil, err
	}

	var out []types.VariableNode
	err := e.dispatch(ctx, func() {
		id := e.selectedThreadID(threadID)
		thread, err := e.process.GetThread(id)
		if err != nil {
			return
		}
		frame, err := thread.GetActiveFrame()
		if err != nil || !frame.IsILFrame() {
			return
		}
		out = append(out, e.readSlots(frame, true)...)
		out = append(out, e.readSlots(frame, false)...)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) selectedThreadID(threadID *int32) int32 {
	if threadID != nil {
		return *threadID
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentThread
}

// readSlots enumerates either locals or arguments by slot, starting at 0,
// until the runtime reports "not available" — the end-of-list signal
// (spec §4.6.7). Names come from the PDB when available, else "local_N".
func (e *Engine) readSlots(frame clr.Frame, locals bool) []types.VariableNode {
	var names map[uint32]string
	if locals {
		if tok, modulePath, ok := frameMethodInfo(frame); ok {
			if reader, err := pdb.Open(modulePath); err == nil {
				names, _ = reader.GetLocalNames(tok)
			}
		}
	}

	var out []types.VariableNode
	for slot := uint32(0); ; slot++ {
		var v clr.Value
		var err error
		if locals {
			v, err = frame.GetLocalVariable(slot)
		} else {
			v, err = frame.GetArgument(slot)
		}
		if err != nil {
			if de, ok := err.(*dbgerrors.EngineError); ok && de.Code == dbgerrors.CodeRuntimeError {
				if hr, ok := de.Details["hresult"].(int32); ok && hr == localVariableNotAvailable {
					break
				}
			}
			break
		}
		name := names[slot]
		if name == "" {
			prefix := "local_"
			if !locals {
				prefix = "arg_"
			}
			name = fmt.Sprintf("%s%d", prefix, slot)
		}
		out = append(out, value.Render(name, v))
	}
	return out
}

func frameMethodInfo(frame clr.Frame) (uint32, string, bool) {
	fn, err := frame.GetFunction()
	if err != nil {
		return 0, "", false
	}
	tok, err := fn.GetToken()
	if err != nil {
		return 0, "", false
	}
	module, err := fn.GetModule()
	if err != nil {
		return 0, "", false
	}
	modulePath, err := module.GetName()
	if err != nil {
		return 0, "", false
	}
	return tok, modulePath, true
}

// Evaluate resolves a simple dotted identifier against the current frame:
// a local named in the PDB, then a static field of the current method's
// type, with any further dotted names walked as a field chain. Arguments
// are not matched by name: no argument names are read, so the argument
// lookup never matches. Arbitrary expressions are out of scope.
func (e *Engine) Evaluate(ctx context.Context, expression string) (types.EvalResult, error) {
	if err := e.requireState("evaluate", types.StateStopped); err != nil {
		return types.EvalResult{}, err
	}

	parts := splitDotChain(expression)
	if len(parts) == 0 {
		return types.EvalResult{Success: false, Error: "empty expression"}, nil
	}

	var result types.EvalResult
	err := e.dispatch(ctx, func() {
		thread, err := e.process.GetThread(e.currentThread)
		if err != nil {
			result = notFound(parts[0])
			return
		}
		frame, err := thread.GetActiveFrame()
		if err != nil || !frame.IsILFrame() {
			result = notFound(parts[0])
			return
		}

		if v, ok := lookupLocalOrArgument(frame, parts[0], true); ok {
			result = evalChain(parts[0], v, parts[1:])
			return
		}
		if v, ok := lookupLocalOrArgument(frame, parts[0], false); ok {
			result = evalChain(parts[0], v, parts[1:])
			return
		}
		if v, ok := lookupStaticField(frame, parts[0]); ok {
			result = evalChain(parts[0], v, parts[1:])
			return
		}
		result = notFound(parts[0])
	})
	if err != nil {
		return types.EvalResult{}, err
	}
	return result, nil
}

func notFound(name string) types.EvalResult {
	return types.EvalResult{Success: false, Error: fmt.Sprintf("Variable %q not found in current scope", name)}
}

func splitDotChain(expr string) []string {
	var parts []string
	cur := ""
	for _, r := range expr {
		if r == '.' {
			if cur != "" {
				parts = append(parts, cur)
			}
			cur = ""
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		parts = append(parts, cur)
	}
	return parts
}

func lookupLocalOrArgument(frame clr.Frame, name string, locals bool) (clr.Value, bool) {
	var names map[uint32]string
	if locals {
		if tok, modulePath, ok := frameMethodInfo(frame); ok {
			if reader, err := pdb.Open(modulePath); err == nil {
				names, _ = reader.GetLocalNames(tok)
			}
		}
	}
	for slot := uint32(0); slot < 256; slot++ {
		var v clr.Value
		var err error
		if locals {
			v, err = frame.GetLocalVariable(slot)
		} else {
			v, err = frame.GetArgument(slot)
		}
		if err != nil {
			break
		}
		if names[slot] == name {
			return v, true
		}
	}
	return nil, false
}

func lookupStaticField(frame clr.Frame, name string) (clr.Value, bool) {
	fn, err := frame.GetFunction()
	if err != nil {
		return nil, false
	}
	class, err := fn.GetClass()
	if err != nil {
		return nil, false
	}
	module, err := fn.GetModule()
	if err != nil {
		return nil, false
	}
	modulePath, err := module.GetName()
	if err != nil {
		return nil, false
	}
	typeTok, err := class.GetToken()
	if err != nil {
		return nil, false
	}
	reader, err := pdb.Open(modulePath)
	if err != nil {
		return nil, false
	}
	fields, err := reader.ReadStaticFields(typeTok)
	if err != nil {
		return nil, false
	}
	for _, f := range fields {
		if f.Name == name {
			v, err := class.GetStaticFieldValue(f.Token, frame)
			if err != nil {
				return nil, false
			}
			return v, true
		}
	}
	return nil, false
}

// evalChain renders root, then walks any remaining dotted field names
// against the rendered tree's children — the "field chain" lookup path.
// It reuses the value package's one recursive renderer rather than a
// second bespoke field walker.
func evalChain(name string, root clr.Value, rest []string) types.EvalResult {
	node := value.Render(name, root)
	for _, field := range rest {
		found := false
		for _, child := range node.Children {
			if child.Name == field {
				node = child
				found = true
				break
			}
		}
		if !found {
			return notFound(field)
		}
	}
	return types.EvalResult{Success: true, Value: node.Value}
}
