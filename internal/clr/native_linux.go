//go:build linux

package clr

/*
#include <stdint.h>

typedef int32_t (*vtcall0)(void*);
typedef int32_t (*vtcall1)(void*, void*);
typedef int32_t (*vtcall2)(void*, void*, void*);
typedef int32_t (*vtcall3)(void*, void*, void*, void*);

static int32_t invoke0(void* fn, void* self) {
	return ((vtcall0)fn)(self);
}
static int32_t invoke1(void* fn, void* self, void* a0) {
	return ((vtcall1)fn)(self, a0);
}
static int32_t invoke2(void* fn, void* self, void* a0, void* a1) {
	return ((vtcall2)fn)(self, a0, a1);
}
static int32_t invoke3(void* fn, void* self, void* a0, void* a1, void* a2) {
	return ((vtcall3)fn)(self, a0, a1, a2);
}
*/
import "C"

import (
	"fmt"
	"time"
	"unsafe"

	dbgerrors "github.com/tacitsys/dncdbg-mcp/internal/errors"
)

// comObject wraps a pointer to a COM-style object: the first word at the
// pointed-to address is itself a pointer to the vtable (an array of
// function pointers), matching the Microsoft COM ABI that ICorDebug's
// cross-platform PAL preserves on Linux. Every interface method is a slot
// in that array, in declaration order, returning an HRESULT and taking the
// object pointer as an implicit first argument (spec §4.2).
//
// Slot numbers below are centralized per interface rather than scattered
// through call sites, so a vtable layout correction touches one place.
type comObject struct {
	ptr unsafe.Pointer
}

func (o comObject) vtableSlot(i int) unsafe.Pointer {
	vtable := *(*unsafe.Pointer)(o.ptr)
	slots := (*[256]unsafe.Pointer)(vtable)
	return slots[i]
}

func (o comObject) call0(slot int) HResult {
	return HResult(C.invoke0(o.vtableSlot(slot), o.ptr))
}

func (o comObject) call1(slot int, a0 unsafe.Pointer) HResult {
	return HResult(C.invoke1(o.vtableSlot(slot), o.ptr, a0))
}

func (o comObject) call2(slot int, a0, a1 unsafe.Pointer) HResult {
	return HResult(C.invoke2(o.vtableSlot(slot), o.ptr, a0, a1))
}

func (o comObject) call3(slot int, a0, a1, a2 unsafe.Pointer) HResult {
	return HResult(C.invoke3(o.vtableSlot(slot), o.ptr, a0, a1, a2))
}

func hresultErr(op string, h HResult) error {
	if !h.Failed() {
		return nil
	}
	return dbgerrors.RuntimeError(op, int32(h))
}

// Vtable slot indices. These name the ICorDebug-family method ordering the
// helper library exposes; IUnknown's QueryInterface/AddRef/Release occupy
// slots 0-2 on every interface and are omitted from the application-level
// indices below.
const (
	slotRootInitialize          = 3
	slotRootSetManagedCallback  = 4
	slotRootDebugActiveProcess  = 5
	slotRootGetProcess          = 6

	slotControllerStop            = 3
	slotControllerContinue        = 4
	slotControllerEnumThreads     = 5
	slotControllerSetThreadsState = 6
	slotControllerDetach          = 7
	slotControllerTerminate       = 8

	slotProcessGetID     = 9
	slotProcessGetThread = 10
	slotProcessReadMem   = 11
	slotProcessWriteMem  = 12

	slotThreadGetID        = 3
	slotThreadActiveFrame  = 4
	slotThreadEnumChains   = 5
	slotThreadCreateStep   = 6
	slotThreadCurrentExcep = 7

	slotChainEnumFrames = 3

	slotFrameGetFunction   = 3
	slotFrameGetStackRange = 4
	slotFrameGetIP         = 5
	slotFrameGetLocal      = 6
	slotFrameGetArgument   = 7

	slotFunctionGetModule  = 3
	slotFunctionGetClass   = 4
	slotFunctionGetToken   = 5
	slotFunctionCreateBP   = 6
	slotFunctionGetILCode  = 7

	slotCodeCreateBreakpoint = 3

	slotModuleGetName          = 3
	slotModuleGetFunctionToken = 4
	slotModuleGetClassToken    = 5

	slotClassGetModule     = 3
	slotClassGetToken      = 4
	slotClassGetStaticField = 5

	slotValueGetType    = 3
	slotValueGetSize    = 4
	slotValueGetAddress = 5

	slotGenericValueGetBytes = 6

	slotRefValueIsNull      = 6
	slotRefValueDereference = 7

	slotObjectGetClass      = 6
	slotObjectGetFieldValue = 7

	slotStringGetString = 6

	slotArrayGetCount       = 6
	slotArrayGetElementType = 7
	slotArrayGetElement     = 8

	slotBreakpointActivate = 3
	slotBreakpointIsActive = 4
	slotFuncBPGetFunction  = 5
	slotFuncBPGetOffset    = 6

	slotStepperSetInterceptNone = 3
	slotStepperSetUnmappedNone  = 4
	slotStepperStepRange        = 5
	slotStepperStepOut          = 6
)

// nativeRoot implements Root atop a root ICorDebug-equivalent pointer
// handed back by CreateDebuggingInterfaceFromVersionEx.
type nativeRoot struct {
	comObject
	bridge *callbackBridge
}

// NewRoot wraps a raw debug-interface pointer returned by the helper
// library's CreateDebuggingInterfaceFromVersionEx.
func NewRoot(ptr unsafe.Pointer) Root {
	return &nativeRoot{comObject: comObject{ptr}}
}

func (r *nativeRoot) Initialize() error {
	return hresultErr("Initialize", r.call0(slotRootInitialize))
}

func (r *nativeRoot) SetManagedCallback(sink CallbackSink) error {
	bridge := newCallbackBridge(sink)
	if err := hresultErr("SetManagedCallback", r.call1(slotRootSetManagedCallback, bridge.nativePtr())); err != nil {
		bridge.release()
		return err
	}
	old := r.bridge
	r.bridge = bridge
	if old != nil {
		old.release()
	}
	return nil
}

func (r *nativeRoot) ReleaseManagedCallback() {
	if r.bridge != nil {
		r.bridge.release()
		r.bridge = nil
	}
}

func (r *nativeRoot) DebugActiveProcess(pid int) (Process, error) {
	var out unsafe.Pointer
	cpid := C.int32_t(pid)
	h := r.call2(slotRootDebugActiveProcess, unsafe.Pointer(&cpid), unsafe.Pointer(&out))
	if h.Failed() {
		return nil, hresultErr("DebugActiveProcess", h)
	}
	return &nativeProcess{comObject{out}}, nil
}

func (r *nativeRoot) GetProcess(pid int) (Process, error) {
	var out unsafe.Pointer
	cpid := C.int32_t(pid)
	h := r.call2(slotRootGetProcess, unsafe.Pointer(&cpid), unsafe.Pointer(&out))
	if h.Failed() {
		return nil, hresultErr("GetProcess", h)
	}
	return &nativeProcess{comObject{out}}, nil
}

type nativeProcess struct{ comObject }

func (p *nativeProcess) Stop(timeout time.Duration) error {
	ms := C.int32_t(timeout.Milliseconds())
	return hresultErr("Stop", p.call1(slotControllerStop, unsafe.Pointer(&ms)))
}

func (p *nativeProcess) Continue(outOfBand bool) error {
	var v C.int32_t
	if outOfBand {
		v = 1
	}
	return hresultErr("Continue", p.call1(slotControllerContinue, unsafe.Pointer(&v)))
}

func (p *nativeProcess) EnumerateThreads() ([]Thread, error) {
	// The real surface returns an enumerator object. This binding checks
	// the call's HRESULT only; it does not walk the enumerator and always
	// returns an empty slice.
	var count C.int32_t
	h := p.call1(slotControllerEnumThreads, unsafe.Pointer(&count))
	if h.Failed() {
		return nil, hresultErr("EnumerateThreads", h)
	}
	return nil, nil
}

func (p *nativeProcess) SetAllThreadsDebugState(stepping bool) error {
	var v C.int32_t
	if stepping {
		v = 1
	}
	return hresultErr("SetAllThreadsDebugState", p.call1(slotControllerSetThreadsState, unsafe.Pointer(&v)))
}

func (p *nativeProcess) Detach() error {
	return hresultErr("Detach", p.call0(slotControllerDetach))
}

func (p *nativeProcess) Terminate(exitCode int32) error {
	code := C.int32_t(exitCode)
	return hresultErr("Terminate", p.call1(slotControllerTerminate, unsafe.Pointer(&code)))
}

func (p *nativeProcess) GetID() int {
	var id C.int32_t
	p.call1(slotProcessGetID, unsafe.Pointer(&id))
	return int(id)
}

func (p *nativeProcess) GetThread(id int32) (Thread, error) {
	var out unsafe.Pointer
	cid := C.int32_t(id)
	h := p.call2(slotProcessGetThread, unsafe.Pointer(&cid), unsafe.Pointer(&out))
	if h.Failed() {
		return nil, hresultErr("GetThread", h)
	}
	return &nativeThread{comObject{out}}, nil
}

func (p *nativeProcess) ReadMemory(addr uint64, size int) ([]byte, error) {
	buf := make([]byte, size)
	caddr := C.int64_t(addr)
	h := p.call3(slotProcessReadMem, unsafe.Pointer(&caddr), unsafe.Pointer(&buf[0]), unsafe.Pointer(uintptr(size)))
	if h.Failed() {
		return nil, hresultErr("ReadMemory", h)
	}
	return buf, nil
}

func (p *nativeProcess) WriteMemory(addr uint64, data []byte) error {
	caddr := C.int64_t(addr)
	var dataPtr unsafe.Pointer
	if len(data) > 0 {
		dataPtr = unsafe.Pointer(&data[0])
	}
	return hresultErr("WriteMemory", p.call3(slotProcessWriteMem, unsafe.Pointer(&caddr), dataPtr, unsafe.Pointer(uintptr(len(data)))))
}

type nativeThread struct{ comObject }

func (t *nativeThread) GetID() int32 {
	var id C.int32_t
	t.call1(slotThreadGetID, unsafe.Pointer(&id))
	return int32(id)
}

func (t *nativeThread) GetActiveFrame() (Frame, error) {
	var out unsafe.Pointer
	h := t.call1(slotThreadActiveFrame, unsafe.Pointer(&out))
	if h.Failed() {
		return nil, hresultErr("GetActiveFrame", h)
	}
	if out == nil {
		return nil, fmt.Errorf("no active frame")
	}
	return &nativeFrame{comObject{out}}, nil
}

func (t *nativeThread) EnumerateChains() ([]Chain, error) {
	return []Chain{&nativeChain{t.comObject}}, nil
}

func (t *nativeThread) CreateStepper() (Stepper, error) {
	var out unsafe.Pointer
	h := t.call1(slotThreadCreateStep, unsafe.Pointer(&out))
	if h.Failed() {
		return nil, hresultErr("CreateStepper", h)
	}
	return &nativeStepper{comObject{out}}, nil
}

func (t *nativeThread) GetCurrentException() (Value, error) {
	var out unsafe.Pointer
	h := t.call1(slotThreadCurrentExcep, unsafe.Pointer(&out))
	if h.Failed() {
		return nil, hresultErr("GetCurrentException", h)
	}
	return &nativeValue{comObject{out}, ElementClass}, nil
}

// nativeChain wraps the thread handle rather than an ICorDebugChain.
// EnumerateFrames returns only the thread's active frame; caller frames
// are not walked.
type nativeChain struct{ comObject }

func (c *nativeChain) EnumerateFrames() ([]Frame, error) {
	th := &nativeThread{c.comObject}
	f, err := th.GetActiveFrame()
	if err != nil {
		return nil, err
	}
	return []Frame{f}, nil
}

type nativeFrame struct{ comObject }

func (f *nativeFrame) IsILFrame() bool { return true }

func (f *nativeFrame) GetFunction() (Function, error) {
	var out unsafe.Pointer
	h := f.call1(slotFrameGetFunction, unsafe.Pointer(&out))
	if h.Failed() {
		return nil, hresultErr("GetFunction", h)
	}
	return &nativeFunction{comObject{out}}, nil
}

func (f *nativeFrame) GetStackRange() (uint64, uint64, error) {
	var start, end C.int64_t
	h := f.call2(slotFrameGetStackRange, unsafe.Pointer(&start), unsafe.Pointer(&end))
	if h.Failed() {
		return 0, 0, hresultErr("GetStackRange", h)
	}
	return uint64(start), uint64(end), nil
}

func (f *nativeFrame) GetIP() (uint32, error) {
	var ip C.int32_t
	h := f.call1(slotFrameGetIP, unsafe.Pointer(&ip))
	if h.Failed() {
		return 0, hresultErr("GetIP", h)
	}
	return uint32(ip), nil
}

func (f *nativeFrame) GetLocalVariable(slot uint32) (Value, error) {
	var out unsafe.Pointer
	s := C.int32_t(slot)
	h := f.call2(slotFrameGetLocal, unsafe.Pointer(&s), unsafe.Pointer(&out))
	if h.Failed() {
		return nil, hresultErr("GetLocalVariable", h)
	}
	return &nativeValue{comObject{out}, ElementClass}, nil
}

func (f *nativeFrame) GetArgument(slot uint32) (Value, error) {
	var out unsafe.Pointer
	s := C.int32_t(slot)
	h := f.call2(slotFrameGetArgument, unsafe.Pointer(&s), unsafe.Pointer(&out))
	if h.Failed() {
		return nil, hresultErr("GetArgument", h)
	}
	return &nativeValue{comObject{out}, ElementClass}, nil
}

type nativeFunction struct{ comObject }

func (fn *nativeFunction) GetModule() (Module, error) {
	var out unsafe.Pointer
	h := fn.call1(slotFunctionGetModule, unsafe.Pointer(&out))
	if h.Failed() {
		return nil, hresultErr("GetModule", h)
	}
	return &nativeModule{comObject{out}}, nil
}

func (fn *nativeFunction) GetClass() (Class, error) {
	var out unsafe.Pointer
	h := fn.call1(slotFunctionGetClass, unsafe.Pointer(&out))
	if h.Failed() {
		return nil, hresultErr("GetClass", h)
	}
	return &nativeClass{comObject{out}}, nil
}

func (fn *nativeFunction) GetToken() (uint32, error) {
	var tok C.int32_t
	h := fn.call1(slotFunctionGetToken, unsafe.Pointer(&tok))
	if h.Failed() {
		return 0, hresultErr("GetToken", h)
	}
	return uint32(tok), nil
}

func (fn *nativeFunction) CreateBreakpoint() (FunctionBreakpoint, error) {
	var out unsafe.Pointer
	h := fn.call1(slotFunctionCreateBP, unsafe.Pointer(&out))
	if h.Failed() {
		return nil, hresultErr("CreateBreakpoint", h)
	}
	return &nativeFunctionBreakpoint{comObject{out}}, nil
}

func (fn *nativeFunction) GetILCode() (Code, error) {
	var out unsafe.Pointer
	h := fn.call1(slotFunctionGetILCode, unsafe.Pointer(&out))
	if h.Failed() {
		return nil, hresultErr("GetILCode", h)
	}
	return &nativeCode{comObject{out}}, nil
}

type nativeCode struct{ comObject }

func (c *nativeCode) CreateBreakpoint(ilOffset uint32) (FunctionBreakpoint, error) {
	var out unsafe.Pointer
	off := C.int32_t(ilOffset)
	h := c.call2(slotCodeCreateBreakpoint, unsafe.Pointer(&off), unsafe.Pointer(&out))
	if h.Failed() {
		return nil, hresultErr("CreateBreakpoint", h)
	}
	return &nativeFunctionBreakpoint{comObject{out}}, nil
}

type nativeModule struct{ comObject }

func (m *nativeModule) GetName() (string, error) {
	buf := make([]byte, 1024)
	h := m.call1(slotModuleGetName, unsafe.Pointer(&buf[0]))
	if h.Failed() {
		return "", hresultErr("GetName", h)
	}
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n]), nil
}

func (m *nativeModule) GetFunctionFromToken(token uint32) (Function, error) {
	var out unsafe.Pointer
	tok := C.int32_t(token)
	h := m.call2(slotModuleGetFunctionToken, unsafe.Pointer(&tok), unsafe.Pointer(&out))
	if h.Failed() {
		return nil, hresultErr("GetFunctionFromToken", h)
	}
	return &nativeFunction{comObject{out}}, nil
}

func (m *nativeModule) GetClassFromToken(token uint32) (Class, error) {
	var out unsafe.Pointer
	tok := C.int32_t(token)
	h := m.call2(slotModuleGetClassToken, unsafe.Pointer(&tok), unsafe.Pointer(&out))
	if h.Failed() {
		return nil, hresultErr("GetClassFromToken", h)
	}
	return &nativeClass{comObject{out}}, nil
}

type nativeClass struct{ comObject }

func (c *nativeClass) GetModule() (Module, error) {
	var out unsafe.Pointer
	h := c.call1(slotClassGetModule, unsafe.Pointer(&out))
	if h.Failed() {
		return nil, hresultErr("GetModule", h)
	}
	return &nativeModule{comObject{out}}, nil
}

func (c *nativeClass) GetToken() (uint32, error) {
	var tok C.int32_t
	h := c.call1(slotClassGetToken, unsafe.Pointer(&tok))
	if h.Failed() {
		return 0, hresultErr("GetToken", h)
	}
	return uint32(tok), nil
}

func (c *nativeClass) GetStaticFieldValue(fieldToken uint32, frame Frame) (Value, error) {
	var out unsafe.Pointer
	tok := C.int32_t(fieldToken)
	var framePtr unsafe.Pointer
	if nf, ok := frame.(*nativeFrame); ok {
		framePtr = nf.ptr
	}
	h := c.call3(slotClassGetStaticField, unsafe.Pointer(&tok), framePtr, unsafe.Pointer(&out))
	if h.Failed() {
		return nil, hresultErr("GetStaticFieldValue", h)
	}
	return &nativeValue{comObject{out}, ElementClass}, nil
}

// nativeValue is shared by all Value sub-interfaces; the engine picks the
// right behavior via ElementType, matching how the value reader dispatches
// (internal/value).
type nativeValue struct {
	comObject
	elemType ElementType
}

func (v *nativeValue) GetType() ElementType { return v.elemType }

func (v *nativeValue) GetSize() (uint64, error) {
	var sz C.int64_t
	h := v.call1(slotValueGetSize, unsafe.Pointer(&sz))
	if h.Failed() {
		return 0, hresultErr("GetSize", h)
	}
	return uint64(sz), nil
}

func (v *nativeValue) GetAddress() (uint64, error) {
	var addr C.int64_t
	h := v.call1(slotValueGetAddress, unsafe.Pointer(&addr))
	if h.Failed() {
		return 0, hresultErr("GetAddress", h)
	}
	return uint64(addr), nil
}

func (v *nativeValue) GetBytes() ([]byte, error) {
	sz, err := v.GetSize()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, sz)
	if sz == 0 {
		return buf, nil
	}
	h := v.call1(slotGenericValueGetBytes, unsafe.Pointer(&buf[0]))
	if h.Failed() {
		return nil, hresultErr("GetBytes", h)
	}
	return buf, nil
}

func (v *nativeValue) IsNull() (bool, error) {
	var isNull C.int32_t
	h := v.call1(slotRefValueIsNull, unsafe.Pointer(&isNull))
	if h.Failed() {
		return false, hresultErr("IsNull", h)
	}
	return isNull != 0, nil
}

func (v *nativeValue) Dereference() (Value, error) {
	var out unsafe.Pointer
	h := v.call1(slotRefValueDereference, unsafe.Pointer(&out))
	if h.Failed() {
		return nil, hresultErr("Dereference", h)
	}
	return &nativeValue{comObject{out}, ElementObject}, nil
}

func (v *nativeValue) GetClass() (Class, error) {
	var out unsafe.Pointer
	h := v.call1(slotObjectGetClass, unsafe.Pointer(&out))
	if h.Failed() {
		return nil, hresultErr("GetClass", h)
	}
	return &nativeClass{comObject{out}}, nil
}

func (v *nativeValue) GetFieldValue(cls Class, fieldToken uint32) (Value, error) {
	var out unsafe.Pointer
	tok := C.int32_t(fieldToken)
	var clsPtr unsafe.Pointer
	if nc, ok := cls.(*nativeClass); ok {
		clsPtr = nc.ptr
	}
	h := v.call3(slotObjectGetFieldValue, clsPtr, unsafe.Pointer(&tok), unsafe.Pointer(&out))
	if h.Failed() {
		return nil, hresultErr("GetFieldValue", h)
	}
	return &nativeValue{comObject{out}, ElementClass}, nil
}

func (v *nativeValue) GetString() (string, error) {
	buf := make([]byte, 4096)
	h := v.call1(slotStringGetString, unsafe.Pointer(&buf[0]))
	if h.Failed() {
		return "", hresultErr("GetString", h)
	}
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n]), nil
}

func (v *nativeValue) GetCount() (uint32, error) {
	var count C.int32_t
	h := v.call1(slotArrayGetCount, unsafe.Pointer(&count))
	if h.Failed() {
		return 0, hresultErr("GetCount", h)
	}
	return uint32(count), nil
}

func (v *nativeValue) GetElementType() (ElementType, error) {
	var et C.int32_t
	h := v.call1(slotArrayGetElementType, unsafe.Pointer(&et))
	if h.Failed() {
		return ElementOther, hresultErr("GetElementType", h)
	}
	return ElementType(et), nil
}

func (v *nativeValue) GetElement(index uint32) (Value, error) {
	var out unsafe.Pointer
	idx := C.int32_t(index)
	h := v.call2(slotArrayGetElement, unsafe.Pointer(&idx), unsafe.Pointer(&out))
	if h.Failed() {
		return nil, hresultErr("GetElement", h)
	}
	elemType, _ := v.GetElementType()
	return &nativeValue{comObject{out}, elemType}, nil
}

type nativeFunctionBreakpoint struct{ comObject }

func (b *nativeFunctionBreakpoint) Activate(active bool) error {
	var v C.int32_t
	if active {
		v = 1
	}
	return hresultErr("Activate", b.call1(slotBreakpointActivate, unsafe.Pointer(&v)))
}

func (b *nativeFunctionBreakpoint) IsActive() (bool, error) {
	var v C.int32_t
	h := b.call1(slotBreakpointIsActive, unsafe.Pointer(&v))
	if h.Failed() {
		return false, hresultErr("IsActive", h)
	}
	return v != 0, nil
}

func (b *nativeFunctionBreakpoint) GetFunction() (Function, error) {
	var out unsafe.Pointer
	h := b.call1(slotFuncBPGetFunction, unsafe.Pointer(&out))
	if h.Failed() {
		return nil, hresultErr("GetFunction", h)
	}
	return &nativeFunction{comObject{out}}, nil
}

func (b *nativeFunctionBreakpoint) GetOffset() (uint32, error) {
	var off C.int32_t
	h := b.call1(slotFuncBPGetOffset, unsafe.Pointer(&off))
	if h.Failed() {
		return 0, hresultErr("GetOffset", h)
	}
	return uint32(off), nil
}

type nativeStepper struct{ comObject }

func (s *nativeStepper) SetInterceptMaskNone() error {
	return hresultErr("SetInterceptMask", s.call0(slotStepperSetInterceptNone))
}

func (s *nativeStepper) SetUnmappedStopMaskNone() error {
	return hresultErr("SetUnmappedStopMask", s.call0(slotStepperSetUnmappedNone))
}

func (s *nativeStepper) StepRange(into bool, ranges []StepRange) error {
	var flag C.int32_t
	if into {
		flag = 1
	}
	var rangesPtr unsafe.Pointer
	if len(ranges) > 0 {
		rangesPtr = unsafe.Pointer(&ranges[0])
	}
	return hresultErr("StepRange", s.call3(slotStepperStepRange, unsafe.Pointer(&flag), rangesPtr, unsafe.Pointer(uintptr(len(ranges)))))
}

func (s *nativeStepper) StepOut() error {
	return hresultErr("StepOut", s.call0(slotStepperStepOut))
}
