//go:build linux

package ffi

/*
#include <stdint.h>
#include <stdlib.h>

typedef struct { uint64_t token; } startup_ctx;

extern void goStartupCallback(uint64_t token, void* pCordb, int32_t hr);

static void startup_shim(void* pCordb, void* parameter, int32_t hr) {
	startup_ctx* ctx = (startup_ctx*)parameter;
	goStartupCallback(ctx->token, pCordb, hr);
}

static void* startup_shim_ptr() { return (void*)startup_shim; }

static startup_ctx* new_startup_ctx(uint64_t token) {
	startup_ctx* c = (startup_ctx*)malloc(sizeof(startup_ctx));
	c->token = token;
	return c;
}

static void free_startup_ctx(startup_ctx* c) { free(c); }
*/
import "C"

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	dbgerrors "github.com/tacitsys/dncdbg-mcp/internal/errors"
)

// posixHint annotates a CreateProcessForLaunch failure with the POSIX errno
// name when the helper's HRESULT-shaped result is really a raw errno value
// passed through from its underlying posix_spawn (common for dbgshim-style
// launch helpers on Linux) — the low 16 bits of an HRESULT and a small
// positive errno overlap, so this is a best-effort hint, not a decode.
func posixHint(err *dbgerrors.EngineError, hr int64) *dbgerrors.EngineError {
	if hr <= 0 || hr > 255 {
		return err
	}
	errno := unix.Errno(hr)
	if errno.Error() == "errno "+itoa(int(hr)) {
		return err
	}
	return err.WithDetails("possibleErrno", errno.Error())
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

// LaunchResult is the pair of handles CreateProcessForLaunch hands back:
// the suspended process id and an opaque resume handle passed to
// ResumeProcess once a callback sink is wired up.
type LaunchResult struct {
	PID          uint64
	ResumeHandle uintptr
}

// LaunchSuspended starts commandLine (argv[0] is the executable) suspended
// at its entry point, the same way a debugger launches a debuggee so no
// managed code runs before the runtime-startup callback fires (spec §4.1,
// §4.6.3 "Launch").
func (h *Helper) LaunchSuspended(commandLine []string, workingDir string) (*LaunchResult, error) {
	if len(commandLine) == 0 {
		return nil, dbgerrors.MissingParameter("commandLine")
	}

	cmd := C.CString(joinCommandLine(commandLine))
	defer C.free(unsafe.Pointer(cmd))
	cwd := C.CString(workingDir)
	defer C.free(unsafe.Pointer(cwd))

	var pid C.uint64_t
	var resumeHandle C.uintptr_t

	hr := call4(h.Entries.CreateProcessForLaunch,
		uintptr(unsafe.Pointer(cmd)),
		uintptr(unsafe.Pointer(&pid)),
		uintptr(unsafe.Pointer(&resumeHandle)),
		uintptr(unsafe.Pointer(cwd)),
	)
	if hrFailed(hr) {
		return nil, posixHint(dbgerrors.RuntimeError("CreateProcessForLaunch", int32(hr)), hr)
	}

	return &LaunchResult{PID: uint64(pid), ResumeHandle: uintptr(resumeHandle)}, nil
}

// ResumeProcess lets a suspended launch continue running now that a
// runtime-startup callback is registered (spec §4.6.3).
func (h *Helper) ResumeProcess(resumeHandle uintptr) error {
	hr := call1(h.Entries.ResumeProcess, resumeHandle)
	if hrFailed(hr) {
		return dbgerrors.RuntimeError("ResumeProcess", int32(hr))
	}
	return nil
}

// CloseResumeHandle releases the resume handle once it is no longer
// needed, whether or not ResumeProcess was ever called (e.g. on launch
// failure before the runtime-startup callback fired).
func (h *Helper) CloseResumeHandle(resumeHandle uintptr) error {
	hr := call1(h.Entries.CloseResumeHandle, resumeHandle)
	if hrFailed(hr) {
		return dbgerrors.RuntimeError("CloseResumeHandle", int32(hr))
	}
	return nil
}

// startupEntry bundles everything release point (a) of spec §4.1's
// callback-lifetime contract needs to tear down once the callback has been
// observed to fire: the closure itself, its GC pin, and the C context the
// shim dereferences on every invocation.
type startupEntry struct {
	cb       func(pCordb unsafe.Pointer, hr int32)
	pinToken uint64
	ctx      *C.startup_ctx
}

// startupCallbacks maps the uint64 token handed to native code back to the
// Go closure that should run when the runtime finishes initializing.
var startupCallbacks = struct {
	mu   sync.Mutex
	byID map[uint64]*startupEntry
	next uint64
}{byID: make(map[uint64]*startupEntry)}

// RegisterRuntimeStartup arranges for cb to run once the CLR inside pid has
// initialized far enough to hand back an ICorDebug root (spec §4.1,
// §4.6.3). The returned unregister handle must be released with
// UnregisterRuntimeStartup once cb has fired or the launch is abandoned.
func (h *Helper) RegisterRuntimeStartup(pid uint64, cb func(pCordb unsafe.Pointer, hr int32)) (uintptr, error) {
	startupCallbacks.mu.Lock()
	token := startupCallbacks.next
	startupCallbacks.next++
	startupCallbacks.mu.Unlock()

	pinToken := Pin(cb)
	ctx := C.new_startup_ctx(C.uint64_t(token))

	startupCallbacks.mu.Lock()
	startupCallbacks.byID[token] = &startupEntry{cb: cb, pinToken: pinToken, ctx: ctx}
	startupCallbacks.mu.Unlock()

	var unregisterToken C.uintptr_t
	hr := call4(h.Entries.RegisterForRuntimeStartup,
		uintptr(pid),
		uintptr(C.startup_shim_ptr()),
		uintptr(unsafe.Pointer(ctx)),
		uintptr(unsafe.Pointer(&unregisterToken)),
	)
	if hrFailed(hr) {
		startupCallbacks.mu.Lock()
		delete(startupCallbacks.byID, token)
		startupCallbacks.mu.Unlock()
		Unpin(pinToken)
		C.free_startup_ctx(ctx)
		return 0, dbgerrors.RuntimeError("RegisterForRuntimeStartup", int32(hr))
	}

	return uintptr(unregisterToken), nil
}

// UnregisterRuntimeStartup calls UnregisterForRuntimeStartup on the handle
// RegisterRuntimeStartup returned, releasing the native side's bookkeeping
// for a registration that either never fired (the launch was abandoned) or
// already has. It releases nothing on the Go side: for a registration that
// never fired, its startupCallbacks entry, GC pin and C context stay in
// place.
func (h *Helper) UnregisterRuntimeStartup(token uintptr) error {
	hr := call1(h.Entries.UnregisterForRuntimeStartup, token)
	if hrFailed(hr) {
		return dbgerrors.RuntimeError("UnregisterForRuntimeStartup", int32(hr))
	}
	return nil
}

//export goStartupCallback
func goStartupCallback(token C.uint64_t, pCordb unsafe.Pointer, hr C.int32_t) {
	startupCallbacks.mu.Lock()
	entry, ok := startupCallbacks.byID[uint64(token)]
	delete(startupCallbacks.byID, uint64(token))
	startupCallbacks.mu.Unlock()
	if !ok {
		return
	}
	entry.cb(pCordb, int32(hr))
	Unpin(entry.pinToken)
	C.free_startup_ctx(entry.ctx)
}

// CreateDebuggingInterface opens an ICorDebug root directly against a
// running process, bypassing the launch-suspended + runtime-startup
// handshake used for fresh launches (spec §4.6.3 "Attach").
func (h *Helper) CreateDebuggingInterface(pid uint64) (unsafe.Pointer, error) {
	var root unsafe.Pointer
	hr := call2(h.Entries.CreateDebuggingInterfaceFromVerEx,
		uintptr(pid),
		uintptr(unsafe.Pointer(&root)),
	)
	if hrFailed(hr) {
		return nil, dbgerrors.RuntimeError("CreateDebuggingInterfaceFromVersionEx", int32(hr))
	}
	return root, nil
}

func joinCommandLine(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}
