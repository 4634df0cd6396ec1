package engine

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/tacitsys/dncdbg-mcp/internal/clr"
	dbgerrors "github.com/tacitsys/dncdbg-mcp/internal/errors"
	"github.com/tacitsys/dncdbg-mcp/internal/pdb"
	"github.com/tacitsys/dncdbg-mcp/pkg/types"
)

// registerModule records a loaded module under its full path. basename
// matching against pending breakpoints is done against this same path.
func (e *Engine) registerModule(path string, module clr.Module) {
	e.mu.Lock()
	e.modules[path] = module
	e.mu.Unlock()
}

func (e *Engine) setThreadKnown(id int32, known bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if known {
		e.knownThreads[id] = true
	} else {
		delete(e.knownThreads, id)
	}
}

func (e *Engine) lookupBreakpointID(methodToken, ilOffset uint32) (uint32, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.reverseMap[breakpointKey{methodToken, ilOffset}]
	return id, ok
}

// SetBreakpoint resolves (dllPath, sourceFile, line) to a method token and
// IL offset via the PDB, then either binds it immediately (if the owning
// module is already loaded) or parks it in the pending queue (spec
// §4.6.4).
func (e *Engine) SetBreakpoint(ctx context.Context, dllPath, sourceFile string, line uint32) (*types.BreakpointRecord, error) {
	if err := e.requireState("set_breakpoint", types.StateStopped, types.StateRunning); err != nil {
		return nil, err
	}

	reader, err := pdb.Open(dllPath)
	if err != nil {
		return nil, dbgerrors.BreakpointLocationUnknown(dllPath, sourceFile, line)
	}
	methodTok, ilOffset, err := reader.FindLocation(sourceFile, line)
	if err != nil {
		return nil, dbgerrors.BreakpointLocationUnknown(dllPath, sourceFile, line)
	}

	var record *types.BreakpointRecord
	err = e.dispatch(ctx, func() {
		e.mu.Lock()
		e.nextBreakpointID++
		id := e.nextBreakpointID
		e.mu.Unlock()

		record = &types.BreakpointRecord{
			ID:          id,
			DLLBasename: filepath.Base(dllPath),
			MethodToken: methodTok,
			ILOffset:    ilOffset,
			Enabled:     true,
		}

		e.mu.Lock()
		e.breakpoints[id] = record
		module, loaded := e.findLoadedModule(record.DLLBasename)
		e.mu.Unlock()

		if loaded {
			e.bindBreakpoint(record, module)
		} else {
			e.mu.Lock()
			e.pending = append(e.pending, record)
			e.mu.Unlock()
		}
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// findLoadedModule must be called with e.mu held.
func (e *Engine) findLoadedModule(basename string) (clr.Module, bool) {
	for path, module := range e.modules {
		if strings.HasSuffix(filepath.ToSlash(path), "/"+filepath.ToSlash(basename)) || filepath.Base(path) == basename {
			return module, true
		}
	}
	return nil, false
}

// bindBreakpoint creates and activates the native breakpoint handle and
// registers the (method_token, il_offset) -> id mapping the sink's
// Breakpoint callback depends on. Must run on the dispatch thread.
func (e *Engine) bindBreakpoint(record *types.BreakpointRecord, module clr.Module) error {
	fn, err := module.GetFunctionFromToken(record.MethodToken)
	if err != nil {
		return err
	}
	code, err := fn.GetILCode()
	if err != nil {
		return err
	}
	bp, err := code.CreateBreakpoint(record.ILOffset)
	if err != nil {
		return err
	}
	if err := bp.Activate(true); err != nil {
		return err
	}

	e.mu.Lock()
	record.NativeHandle = bp
	e.reverseMap[breakpointKey{record.MethodToken, record.ILOffset}] = record.ID
	e.mu.Unlock()
	return nil
}

// resolvePendingBreakpoints runs from the sink's LoadModule handler: any
// pending record whose basename matches the newly loaded module's path is
// bound and moved out of the pending queue.
func (e *Engine) resolvePendingBreakpoints(modulePath string, module clr.Module) {
	base := filepath.Base(modulePath)

	e.mu.Lock()
	var stillPending []*types.BreakpointRecord
	var toResolve []*types.BreakpointRecord
	for _, r := range e.pending {
		if r.DLLBasename == base {
			toResolve = append(toResolve, r)
		} else {
			stillPending = append(stillPending, r)
		}
	}
	e.pending = stillPending
	e.mu.Unlock()

	for _, r := range toResolve {
		e.bindBreakpoint(r, module)
	}
}

// RemoveBreakpoint deactivates and forgets a breakpoint id. A missing id
// is not an error (spec §4.6.4).
func (e *Engine) RemoveBreakpoint(ctx context.Context, id uint32) error {
	return e.dispatch(ctx, func() {
		e.mu.Lock()
		record, ok := e.breakpoints[id]
		if ok {
			delete(e.breakpoints, id)
			delete(e.reverseMap, breakpointKey{record.MethodToken, record.ILOffset})
		}
		var stillPending []*types.BreakpointRecord
		for _, r := range e.pending {
			if r.ID != id {
				stillPending = append(stillPending, r)
			}
		}
		e.pending = stillPending
		e.mu.Unlock()

		if ok {
			if bp, ok := record.NativeHandle.(clr.Breakpoint); ok {
				bp.Activate(false)
			}
		}
	})
}
