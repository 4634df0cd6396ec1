//go:build linux

package clr

/*
#include <stdint.h>
#include <stdlib.h>

// The runtime invokes managed-callback methods through a vtable exactly
// like any other COM interface, except the vtable here is one this binding
// constructs itself (rather than one the runtime hands back), backed by
// small C shims that recover the Go-side sink from the object's first
// field and call back into Go via cgo-exported functions. Itanium C++ ABI,
// same as every other interface in this package.
typedef struct {
	void* vtable;
	uint64_t token;
} bridgeObj;

extern int32_t goDispatchCallback(uint64_t token, int32_t method, void* a0, void* a1, void* a2);

static int32_t shim0(void* self, int32_t m) {
	bridgeObj* b = (bridgeObj*)self;
	return goDispatchCallback(b->token, m, 0, 0, 0);
}
static int32_t shim1(void* self, int32_t m, void* a0) {
	bridgeObj* b = (bridgeObj*)self;
	return goDispatchCallback(b->token, m, a0, 0, 0);
}
static int32_t shim2(void* self, int32_t m, void* a0, void* a1) {
	bridgeObj* b = (bridgeObj*)self;
	return goDispatchCallback(b->token, m, a0, a1, 0);
}
static int32_t shim3(void* self, int32_t m, void* a0, void* a1, void* a2) {
	bridgeObj* b = (bridgeObj*)self;
	return goDispatchCallback(b->token, m, a0, a1, a2);
}

static bridgeObj* newBridgeObj(uint64_t token) {
	bridgeObj* b = (bridgeObj*)malloc(sizeof(bridgeObj));
	b->vtable = 0;
	b->token = token;
	return b;
}
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/tacitsys/dncdbg-mcp/internal/ffi"
)

// callbackMethod numbers the CallbackSink methods in the order the native
// side will present them; it is intentionally independent of Go method
// declaration order so the wire contract stays stable.
type callbackMethod int32

const (
	cbBreakpoint callbackMethod = iota
	cbStepComplete
	cbBreak
	cbException
	cbExceptionV2
	cbCreateProcess
	cbExitProcess
	cbLoadModule
	cbUnloadModule
	cbLoadClass
	cbUnloadClass
	cbCreateThread
	cbExitThread
	cbLoadAssembly
	cbUnloadAssembly
	cbCreateAppDomain
	cbExitAppDomain
	cbLogMessage
	cbLogSwitch
	cbNameChange
	cbUpdateModuleSymbols
	cbBreakpointSetError
	cbFunctionRemap
	cbCreateConnection
	cbChangeConnection
	cbDestroyConnection
	cbExceptionUnwind
	cbMDANotification
	cbControlCTrap
	cbDebuggerError
	cbEvalComplete
	cbEvalException
)

var bridges = struct {
	mu   sync.Mutex
	byID map[uint64]*callbackBridge
}{byID: make(map[uint64]*callbackBridge)}

// callbackBridge is the Go-side half of the native-to-Go callback path:
// one per Root.SetManagedCallback call, pinned until a fresh sink
// replaces it or ReleaseManagedCallback tears it down, since the runtime
// may invoke it at any point until then (spec §4.1, §4.5).
type callbackBridge struct {
	sink     CallbackSink
	token    uint64
	pinToken uint64
	cObj     *C.bridgeObj
}

func newCallbackBridge(sink CallbackSink) *callbackBridge {
	b := &callbackBridge{sink: sink}

	bridges.mu.Lock()
	b.token = uint64(len(bridges.byID)) + 1
	for bridges.byID[b.token] != nil {
		b.token++
	}
	bridges.byID[b.token] = b
	bridges.mu.Unlock()

	b.pinToken = ffi.Pin(b)
	b.cObj = C.newBridgeObj(C.uint64_t(b.token))
	return b
}

func (b *callbackBridge) nativePtr() unsafe.Pointer {
	return unsafe.Pointer(b.cObj)
}

// release unroots the bridge, drops its dispatch-table entry, and frees its
// C allocation. Called once a fresh SetManagedCallback replaces this bridge
// or the session it belongs to is torn down (spec §4.1's callback-lifetime
// contract applies to this bridge the same way it applies to the
// runtime-startup callback in internal/ffi). Safe to call at most once.
func (b *callbackBridge) release() {
	if b.cObj == nil {
		return
	}
	bridges.mu.Lock()
	delete(bridges.byID, b.token)
	bridges.mu.Unlock()
	ffi.Unpin(b.pinToken)
	C.free(unsafe.Pointer(b.cObj))
	b.cObj = nil
}

// wrap constructs lightweight Process/Thread/Module/Breakpoint handles from
// raw native pointers handed to a callback. The native surface always
// passes these as plain object pointers of the matching COM type.
func wrapProcess(ptr unsafe.Pointer) Process {
	if ptr == nil {
		return nil
	}
	return &nativeProcess{comObject{ptr}}
}

func wrapThread(ptr unsafe.Pointer) Thread {
	if ptr == nil {
		return nil
	}
	return &nativeThread{comObject{ptr}}
}

func wrapModule(ptr unsafe.Pointer) Module {
	if ptr == nil {
		return nil
	}
	return &nativeModule{comObject{ptr}}
}

func wrapClass(ptr unsafe.Pointer) Class {
	if ptr == nil {
		return nil
	}
	return &nativeClass{comObject{ptr}}
}

func wrapBreakpoint(ptr unsafe.Pointer) Breakpoint {
	if ptr == nil {
		return nil
	}
	return &nativeFunctionBreakpoint{comObject{ptr}}
}

func wrapStepper(ptr unsafe.Pointer) Stepper {
	if ptr == nil {
		return nil
	}
	return &nativeStepper{comObject{ptr}}
}

//export goDispatchCallback
func goDispatchCallback(token C.uint64_t, method C.int32_t, a0, a1, a2 unsafe.Pointer) C.int32_t {
	bridges.mu.Lock()
	b := bridges.byID[uint64(token)]
	bridges.mu.Unlock()
	if b == nil {
		return 0
	}
	sink := b.sink

	proc := wrapProcess(a0)
	switch callbackMethod(method) {
	case cbBreakpoint:
		sink.Breakpoint(proc, wrapThread(a1), wrapBreakpoint(a2))
	case cbStepComplete:
		sink.StepComplete(proc, wrapThread(a1), wrapStepper(a2), 0)
	case cbBreak:
		sink.Break(proc, wrapThread(a1))
	case cbException:
		sink.Exception(proc, wrapThread(a1), a2 != nil)
	case cbExceptionV2:
		sink.ExceptionV2(proc, wrapThread(a1), 0)
	case cbCreateProcess:
		sink.CreateProcess(proc)
	case cbExitProcess:
		sink.ExitProcess(proc)
	case cbLoadModule:
		sink.LoadModule(proc, wrapModule(a1))
	case cbUnloadModule:
		sink.UnloadModule(proc, wrapModule(a1))
	case cbLoadClass:
		sink.LoadClass(proc, wrapClass(a1))
	case cbUnloadClass:
		sink.UnloadClass(proc, wrapClass(a1))
	case cbCreateThread:
		sink.CreateThread(proc, wrapThread(a1))
	case cbExitThread:
		sink.ExitThread(proc, wrapThread(a1))
	case cbLoadAssembly:
		sink.LoadAssembly(proc)
	case cbUnloadAssembly:
		sink.UnloadAssembly(proc)
	case cbCreateAppDomain:
		sink.CreateAppDomain(proc)
	case cbExitAppDomain:
		sink.ExitAppDomain(proc)
	case cbLogMessage:
		sink.LogMessage(proc, wrapThread(a1), "")
	case cbLogSwitch:
		sink.LogSwitch(proc, wrapThread(a1))
	case cbNameChange:
		sink.NameChange(proc, wrapThread(a1))
	case cbUpdateModuleSymbols:
		sink.UpdateModuleSymbols(proc, wrapModule(a1))
	case cbBreakpointSetError:
		sink.BreakpointSetError(proc, wrapThread(a1), wrapBreakpoint(a2))
	case cbFunctionRemap:
		sink.FunctionRemap(proc, wrapThread(a1))
	case cbCreateConnection:
		sink.CreateConnection(proc)
	case cbChangeConnection:
		sink.ChangeConnection(proc)
	case cbDestroyConnection:
		sink.DestroyConnection(proc)
	case cbExceptionUnwind:
		sink.ExceptionUnwind(proc, wrapThread(a1))
	case cbMDANotification:
		sink.MDANotification(proc, wrapThread(a1))
	case cbControlCTrap:
		sink.ControlCTrap(proc)
	case cbDebuggerError:
		sink.DebuggerError(proc, HResult(0))
	case cbEvalComplete:
		sink.EvalComplete(proc, wrapThread(a1))
	case cbEvalException:
		sink.EvalException(proc, wrapThread(a1))
	}
	return 0
}
