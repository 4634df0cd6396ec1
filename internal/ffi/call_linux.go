//go:build linux

package ffi

/*
#include <stdint.h>

typedef intptr_t (*fn0)();
typedef intptr_t (*fn1)(intptr_t);
typedef intptr_t (*fn2)(intptr_t, intptr_t);
typedef intptr_t (*fn3)(intptr_t, intptr_t, intptr_t);
typedef intptr_t (*fn4)(intptr_t, intptr_t, intptr_t, intptr_t);

static intptr_t call0(void* f) { return ((fn0)f)(); }
static intptr_t call1(void* f, intptr_t a0) { return ((fn1)f)(a0); }
static intptr_t call2(void* f, intptr_t a0, intptr_t a1) { return ((fn2)f)(a0, a1); }
static intptr_t call3(void* f, intptr_t a0, intptr_t a1, intptr_t a2) { return ((fn3)f)(a0, a1, a2); }
static intptr_t call4(void* f, intptr_t a0, intptr_t a1, intptr_t a2, intptr_t a3) { return ((fn4)f)(a0, a1, a2, a3); }
*/
import "C"
import "unsafe"

// call0..call4 invoke a raw dbgshim entry point using the platform's
// default calling convention. Every entry point in EntryPoints returns
// either an HRESULT or a pointer-sized handle and takes only
// pointer/integer-sized arguments, so one generic trampoline per arity
// covers the whole surface without per-entry-point cgo declarations.
func call0(fn uintptr) int64 {
	return int64(C.call0(unsafe.Pointer(fn)))
}

func call1(fn, a0 uintptr) int64 {
	return int64(C.call1(unsafe.Pointer(fn), C.intptr_t(a0)))
}

func call2(fn, a0, a1 uintptr) int64 {
	return int64(C.call2(unsafe.Pointer(fn), C.intptr_t(a0), C.intptr_t(a1)))
}

func call3(fn, a0, a1, a2 uintptr) int64 {
	return int64(C.call3(unsafe.Pointer(fn), C.intptr_t(a0), C.intptr_t(a1), C.intptr_t(a2)))
}

func call4(fn, a0, a1, a2, a3 uintptr) int64 {
	return int64(C.call4(unsafe.Pointer(fn), C.intptr_t(a0), C.intptr_t(a1), C.intptr_t(a2), C.intptr_t(a3)))
}

// hrFailed mirrors clr.HResult.Failed without importing the clr package,
// which sits a layer above ffi.
func hrFailed(hr int64) bool { return hr != 0 }
