package engine

import (
	"context"
	"fmt"

	"github.com/tacitsys/dncdbg-mcp/internal/clr"
	"github.com/tacitsys/dncdbg-mcp/internal/pdb"
	"github.com/tacitsys/dncdbg-mcp/pkg/types"
)

// stepKind selects which of StepOver/StepInto/StepOut a doStep call
// performs; all three share the same setup and the same await-next-event
// tail (spec §4.6.5).
type stepKind int

const (
	stepOver stepKind = iota
	stepInto
	stepOut
)

// StepOver steps the selected thread over the next source line without
// descending into called methods.
func (e *Engine) StepOver(ctx context.Context, threadID *int32) (*types.DebugEvent, error) {
	return e.doStep(ctx, threadID, stepOver)
}

// StepInto steps the selected thread into the next call, if any, on the
// current source line.
func (e *Engine) StepInto(ctx context.Context, threadID *int32) (*types.DebugEvent, error) {
	return e.doStep(ctx, threadID, stepInto)
}

// StepOut runs the selected thread until its current method returns to its
// caller.
func (e *Engine) StepOut(ctx context.Context, threadID *int32) (*types.DebugEvent, error) {
	return e.doStep(ctx, threadID, stepOut)
}

func (e *Engine) doStep(ctx context.Context, threadID *int32, kind stepKind) (*types.DebugEvent, error) {
	if err := e.requireState("step", types.StateStopped); err != nil {
		return nil, err
	}

	var evQueue *eventQueue
	var stepErr error
	err := e.dispatch(ctx, func() {
		e.mu.Lock()
		evQueue = e.events
		e.mu.Unlock()

		id := e.selectedThreadID(threadID)
		thread, err := e.process.GetThread(id)
		if err != nil {
			stepErr = err
			return
		}
		stepper, err := thread.CreateStepper()
		if err != nil {
			stepErr = err
			return
		}
		stepper.SetInterceptMaskNone()
		stepper.SetUnmappedStopMaskNone()

		if kind == stepOut {
			if err := stepper.StepOut(); err != nil {
				stepErr = err
				return
			}
		} else {
			ranges, into, err := e.stepRanges(thread, kind)
			if err != nil {
				stepErr = err
				return
			}
			if err := stepper.StepRange(into, ranges); err != nil {
				stepErr = err
				return
			}
		}

		if err := e.process.Continue(false); err != nil {
			stepErr = err
		}
	})
	if err != nil {
		return nil, err
	}
	if stepErr != nil {
		return nil, stepErr
	}

	ev, ok := evQueue.next(ctx)
	if !ok {
		return nil, fmt.Errorf("engine: step aborted before a stop event")
	}
	return &ev, nil
}

// stepRanges derives the IL range covering the frame's current offset, so
// StepRange knows where "still on this line" ends (spec §4.6.5). into is
// true for StepInto, false for StepOver.
func (e *Engine) stepRanges(thread clr.Thread, kind stepKind) ([]clr.StepRange, bool, error) {
	into := kind == stepInto

	frame, err := thread.GetActiveFrame()
	if err != nil || !frame.IsILFrame() {
		return nil, into, err
	}
	tok, modulePath, ok := frameMethodInfo(frame)
	if !ok {
		return nil, into, fmt.Errorf("engine: step: current frame has no resolvable method")
	}
	ip, err := frame.GetIP()
	if err != nil {
		return nil, into, err
	}
	reader, err := pdb.Open(modulePath)
	if err != nil {
		return nil, into, err
	}
	start, end, err := reader.StepRangeForOffset(tok, ip)
	if err != nil {
		return nil, into, err
	}
	return []clr.StepRange{{Start: start, End: end}}, into, nil
}

// Continue resumes the process and awaits the next stop (spec §4.6.6). It
// does not dispatch a fresh event-channel swap; the existing queue is used
// since no session reset happens here.
func (e *Engine) Continue(ctx context.Context) (*types.DebugEvent, error) {
	if err := e.requireState("continue", types.StateStopped); err != nil {
		return nil, err
	}

	var evQueue *eventQueue
	var continueErr error
	err := e.dispatch(ctx, func() {
		e.mu.Lock()
		evQueue = e.events
		e.mu.Unlock()
		if err := e.process.Continue(false); err != nil {
			continueErr = err
		}
	})
	if err != nil {
		return nil, err
	}
	if continueErr != nil {
		return nil, continueErr
	}

	e.setState(types.StateRunning)
	ev, ok := evQueue.next(ctx)
	if !ok {
		return nil, fmt.Errorf("engine: continue aborted before a stop event")
	}
	if ev.Kind == types.EventExited {
		e.setState(types.StateExited)
	} else {
		e.setState(types.StateStopped)
	}
	return &ev, nil
}

// Pause stops a running process and awaits the resulting Stopped{pause}
// event. It is valid from Running as well as Stopped, since its entire
// purpose is to interrupt a running target (spec §4.6.6).
func (e *Engine) Pause(ctx context.Context) (*types.DebugEvent, error) {
	if err := e.requireState("pause", types.StateRunning, types.StateStopped); err != nil {
		return nil, err
	}

	var evQueue *eventQueue
	var pauseErr error
	err := e.dispatch(ctx, func() {
		e.mu.Lock()
		evQueue = e.events
		e.mu.Unlock()
		if err := e.process.Stop(0); err != nil {
			pauseErr = err
		}
	})
	if err != nil {
		return nil, err
	}
	if pauseErr != nil {
		return nil, pauseErr
	}

	ev, ok := evQueue.next(ctx)
	if !ok {
		return nil, fmt.Errorf("engine: pause aborted before a stop event")
	}
	e.setState(types.StateStopped)
	return &ev, nil
}
