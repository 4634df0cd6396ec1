// Package engine is the process-wide debug engine: one dispatch thread
// that owns every call into the runtime capability surface (internal/clr),
// a callback sink that turns runtime notifications into session events,
// and the public async API the MCP tool layer drives. There is exactly
// one Engine per process — the "same thread for every runtime call" rule
// plus CoreCLR's one-debugger-per-process relationship make per-request
// session isolation meaningless here.
package engine

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"path/filepath"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/tacitsys/dncdbg-mcp/internal/clr"
	"github.com/tacitsys/dncdbg-mcp/internal/config"
	dbgerrors "github.com/tacitsys/dncdbg-mcp/internal/errors"
	"github.com/tacitsys/dncdbg-mcp/internal/ffi"
	"github.com/tacitsys/dncdbg-mcp/pkg/types"
)

// breakpointKey is the reverse-map key the callback sink uses to resolve a
// fired breakpoint back to its id: (method_token, il_offset), since two
// distinct breakpoints can share a method when two lines fall in it.
type breakpointKey struct {
	methodToken uint32
	ilOffset    uint32
}

// Engine owns the dispatch thread, the current session's runtime handles,
// and every piece of state the callback sink and the public API share.
type Engine struct {
	cfg    *config.Config
	helper *ffi.Helper

	cmdCh chan func()

	mu                   sync.Mutex
	state                types.SessionState
	sessionID            uint64
	suppressExitProcess  bool
	stopAtCreateProcess  bool
	notifyFirstChance    bool
	root                 clr.Root
	process              clr.Process
	debuggeePID          int
	resumeHandle         uintptr
	unregisterToken      uintptr
	exceptionStopPending bool

	events *eventQueue

	breakpoints      map[uint32]*types.BreakpointRecord
	nextBreakpointID uint32
	reverseMap       map[breakpointKey]uint32
	pending          []*types.BreakpointRecord
	modules          map[string]clr.Module // path -> module
	knownThreads     map[int32]bool
	currentThread    int32

	sink *sink
}

// New constructs the process-wide engine. The helper library must already
// be located (internal/ffi.Locate) — its absence is a construction-time
// failure per the design's configuration error kind.
func New(cfg *config.Config, helper *ffi.Helper) *Engine {
	e := &Engine{
		cfg:         cfg,
		helper:      helper,
		cmdCh:       make(chan func(), 64),
		state:       types.StateIdle,
		events:      newEventQueue(),
		breakpoints: make(map[uint32]*types.BreakpointRecord),
		reverseMap:  make(map[breakpointKey]uint32),
		modules:     make(map[string]clr.Module),
		knownThreads: make(map[int32]bool),
	}
	e.sink = &sink{engine: e}
	go e.dispatchLoop()
	return e
}

// dispatchLoop is the single long-lived thread every runtime capability
// call must originate from. Closures run straight-line: they never
// suspend, so the debuggee-running wait always happens on the event
// queue, not here.
func (e *Engine) dispatchLoop() {
	for fn := range e.cmdCh {
		fn()
	}
}

// dispatch enqueues fn and blocks until it has run or ctx is cancelled.
// Cancellation unwinds the wait without aborting fn on the dispatch
// thread, matching the "commands in flight are not interruptible" rule.
func (e *Engine) dispatch(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	e.cmdCh <- func() {
		fn()
		close(done)
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) getState() types.SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s types.SessionState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Status is the read model behind debug_status.
type Status struct {
	State types.SessionState
}

func (e *Engine) Status() Status {
	return Status{State: e.getState()}
}

func (e *Engine) requireState(command string, want ...types.SessionState) error {
	have := e.getState()
	for _, w := range want {
		if have == w {
			return nil
		}
	}
	return dbgerrors.WrongState(command, string(have), fmt.Sprintf("%v", want))
}

// resetSessionLocked is the shared "tear down whatever came before" step
// used by both Launch and Attach (spec's launch step 2a). Caller must hold
// e.mu.
func (e *Engine) resetSessionLocked() {
	if e.process != nil {
		e.process.Stop(0)
		e.process.Terminate(0)
	}
	if e.debuggeePID != 0 {
		killProcessGroup(e.debuggeePID)
	}
	if e.unregisterToken != 0 {
		if err := e.helper.UnregisterRuntimeStartup(e.unregisterToken); err != nil {
			log.Printf("engine: UnregisterRuntimeStartup: %v", err)
		}
		e.unregisterToken = 0
	}
	if e.root != nil {
		e.root.ReleaseManagedCallback()
	}
	e.suppressExitProcess = true
	e.sessionID++
	e.events.close()
	e.events = newEventQueue()
	e.breakpoints = make(map[uint32]*types.BreakpointRecord)
	e.nextBreakpointID = 0
	e.reverseMap = make(map[breakpointKey]uint32)
	e.pending = nil
	e.modules = make(map[string]clr.Module)
	e.knownThreads = make(map[int32]bool)
	e.currentThread = 0
	e.exceptionStopPending = false
	e.process = nil
	e.root = nil
	e.debuggeePID = 0
}

// killProcessGroup is the forceful fallback used once the capability
// surface's own Stop/Terminate has had a chance to run: it sends SIGKILL
// to the process group whose id is the debuggee's pid. Nothing here starts
// the debuggee in its own process group, so the signal reaches it and its
// children only when it leads one. ESRCH (no such group, or already gone
// after a clean Terminate) is ignored.
func killProcessGroup(pid int) {
	if err := unix.Kill(-pid, unix.SIGKILL); err != nil && err != unix.ESRCH {
		log.Printf("engine: killProcessGroup(%d): %v", pid, err)
	}
}

// LaunchRequest carries the arguments of debug_launch / debug_launch_test.
type LaunchRequest struct {
	ProjectPath           string
	AppDLLPath            string
	FirstChanceExceptions bool
	// RunCommand overrides the default "dotnet <AppDLLPath>" launch
	// command, used by debug_launch_test to run the xUnit console runner
	// instead of the built app directly.
	RunCommand []string
}

// Launch builds the target project, launches it suspended, and waits for
// the runtime to report the process created — spec's launch sequence.
func (e *Engine) Launch(ctx context.Context, req LaunchRequest) (*types.DebugEvent, error) {
	if req.AppDLLPath == "" {
		return nil, dbgerrors.MissingParameter("app_dll_path")
	}

	if req.ProjectPath != "" {
		cmd := exec.CommandContext(ctx, "dotnet", "build", "-c", e.cfg.BuildConfiguration, req.ProjectPath)
		out, err := cmd.CombinedOutput()
		if err != nil {
			exitCode := -1
			if ee, ok := err.(*exec.ExitError); ok {
				exitCode = ee.ExitCode()
			}
			return nil, dbgerrors.BuildFailed(string(out), "", exitCode)
		}
	}

	runCmd := req.RunCommand
	if len(runCmd) == 0 {
		runCmd = []string{"dotnet", req.AppDLLPath}
	}

	var evQueue *eventQueue
	var launchErr error

	err := e.dispatch(ctx, func() {
		e.mu.Lock()
		e.resetSessionLocked()
		e.suppressExitProcess = false
		e.stopAtCreateProcess = true
		e.notifyFirstChance = req.FirstChanceExceptions
		evQueue = e.events
		mySession := e.sessionID
		e.mu.Unlock()

		result, err := e.helper.LaunchSuspended(runCmd, filepath.Dir(req.AppDLLPath))
		if err != nil {
			launchErr = err
			return
		}

		e.mu.Lock()
		e.debuggeePID = int(result.PID)
		e.mu.Unlock()

		unregister, err := e.helper.RegisterRuntimeStartup(result.PID, func(pCordb unsafe.Pointer, hr int32) {
			e.onRuntimeStartup(mySession, pCordb, hr)
		})
		if err != nil {
			launchErr = err
			e.helper.CloseResumeHandle(result.ResumeHandle)
			return
		}

		e.mu.Lock()
		e.unregisterToken = unregister
		e.mu.Unlock()

		if err := e.helper.ResumeProcess(result.ResumeHandle); err != nil {
			launchErr = err
		}
		e.helper.CloseResumeHandle(result.ResumeHandle)
	})
	if err != nil {
		return nil, err
	}
	if launchErr != nil {
		return nil, launchErr
	}

	ev, ok := evQueue.next(ctx)
	if !ok {
		return nil, fmt.Errorf("engine: launch aborted before process_created")
	}
	e.setState(types.StateStopped)
	return &ev, nil
}

// onRuntimeStartup runs on the runtime's own thread (per the dbgshim
// contract) once the target's CLR is initialized far enough to hand back
// a debug root. It wraps the raw pointer, initializes it, and installs the
// callback sink — after this, CreateProcess fires on the same thread.
func (e *Engine) onRuntimeStartup(session uint64, pCordb unsafe.Pointer, hr int32) {
	e.mu.Lock()
	if session != e.sessionID {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	if hr != 0 || pCordb == nil {
		log.Printf("engine: runtime startup callback failed: hresult=%d", hr)
		return
	}

	root := clr.NewRoot(pCordb)
	if err := root.Initialize(); err != nil {
		log.Printf("engine: root.Initialize failed: %v", err)
		return
	}
	if err := root.SetManagedCallback(e.sink); err != nil {
		log.Printf("engine: SetManagedCallback failed: %v", err)
		return
	}

	e.mu.Lock()
	e.root = root
	e.mu.Unlock()
}

// AttachResult is returned by Attach.
type AttachResult struct {
	PID         int
	ProcessName string
}

// Attach opens a debug connection to an already-running process. Unlike
// Launch, the target is not stopped — attach only confirms the runtime is
// ready; the caller uses Pause to actually stop it (spec's attach
// semantics).
func (e *Engine) Attach(ctx context.Context, pid int) (*AttachResult, error) {
	var evQueue *eventQueue
	var attachErr error

	err := e.dispatch(ctx, func() {
		e.mu.Lock()
		e.resetSessionLocked()
		e.suppressExitProcess = false
		e.stopAtCreateProcess = false
		e.debuggeePID = pid
		mySession := e.sessionID
		evQueue = e.events
		e.mu.Unlock()

		unregister, err := e.helper.RegisterRuntimeStartup(uint64(pid), func(pCordb unsafe.Pointer, hr int32) {
			e.onRuntimeStartup(mySession, pCordb, hr)
		})
		if err != nil {
			attachErr = err
			return
		}
		e.mu.Lock()
		e.unregisterToken = unregister
		e.mu.Unlock()
	})
	if err != nil {
		return nil, err
	}
	if attachErr != nil {
		return nil, attachErr
	}

	if _, ok := evQueue.next(ctx); !ok {
		return nil, fmt.Errorf("engine: attach aborted before process_created")
	}
	e.setState(types.StateRunning)

	name, _ := processName(pid)
	return &AttachResult{PID: pid, ProcessName: name}, nil
}

func processName(pid int) (string, error) {
	out, err := exec.Command("ps", "-p", fmt.Sprintf("%d", pid), "-o", "comm=").CombinedOutput()
	if err != nil {
		return "", err
	}
	name := ""
	for _, b := range out {
		if b == '\n' {
			break
		}
		name += string(b)
	}
	return name, nil
}

// Disconnect is idempotent: it tears down the live process (best-effort)
// and drops the runtime capability, but leaves the dispatch thread and
// engine reusable for a future Launch/Attach.
func (e *Engine) Disconnect(ctx context.Context) error {
	err := e.dispatch(ctx, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.suppressExitProcess = true
		if e.process != nil {
			e.process.Stop(0)
			e.process.Terminate(0)
		}
		if e.debuggeePID != 0 {
			killProcessGroup(e.debuggeePID)
			e.debuggeePID = 0
		}
		if e.unregisterToken != 0 {
			if err := e.helper.UnregisterRuntimeStartup(e.unregisterToken); err != nil {
				log.Printf("engine: UnregisterRuntimeStartup: %v", err)
			}
			e.unregisterToken = 0
		}
		if e.root != nil {
			e.root.ReleaseManagedCallback()
		}
		e.process = nil
		e.root = nil
		e.events.close()
	})
	if err != nil {
		return err
	}
	e.setState(types.StateIdle)
	return nil
}

// waitForTimeout bounds an await-next-event wait with the configured
// default; the engine itself imposes no timeout (spec §5) — this is the
// agent-layer wrapper's enforcement point, kept here since this is the
// only place both the config and the queue are in scope together.
func (e *Engine) waitForTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.EventWaitTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.EventWaitTimeout)
}
