//go:build linux

package ffi

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"runtime"
	"unsafe"

	dbgerrors "github.com/tacitsys/dncdbg-mcp/internal/errors"
)

// Helper wraps a dlopen'd handle to the runtime helper library plus its
// resolved entry points. No pure-Go FFI library appears anywhere in the
// retrieval pack (no ebitengine/purego or equivalent), so this binds
// directly via cgo the way a native-interop layer is written when no
// third-party Go FFI binding is available — see DESIGN.md.
type Helper struct {
	handle  unsafe.Pointer
	Entries EntryPoints
	path    string
}

// open dlopens path and resolves every required and optional symbol.
func open(path string) (*Helper, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	handle := C.dlopen(cpath, C.RTLD_NOW|C.RTLD_LOCAL)
	if handle == nil {
		return nil, fmt.Errorf("dlopen %s: %s", path, C.GoString(C.dlerror()))
	}

	h := &Helper{handle: handle, path: path}

	resolve := func(name string) (uintptr, error) {
		cname := C.CString(name)
		defer C.free(unsafe.Pointer(cname))
		C.dlerror() // clear any pending error
		sym := C.dlsym(handle, cname)
		if sym == nil {
			if errStr := C.dlerror(); errStr != nil {
				return 0, fmt.Errorf("dlsym %s: %s", name, C.GoString(errStr))
			}
		}
		return uintptr(sym), nil
	}

	bind := map[string]*uintptr{
		"CreateProcessForLaunch":                &h.Entries.CreateProcessForLaunch,
		"ResumeProcess":                         &h.Entries.ResumeProcess,
		"CloseResumeHandle":                     &h.Entries.CloseResumeHandle,
		"RegisterForRuntimeStartup":             &h.Entries.RegisterForRuntimeStartup,
		"UnregisterForRuntimeStartup":           &h.Entries.UnregisterForRuntimeStartup,
		"EnumerateCLRs":                         &h.Entries.EnumerateCLRs,
		"CloseCLREnumeration":                   &h.Entries.CloseCLREnumeration,
		"CreateVersionStringFromModule":         &h.Entries.CreateVersionStringFromModule,
		"CreateDebuggingInterfaceFromVersionEx": &h.Entries.CreateDebuggingInterfaceFromVerEx,
	}

	for _, name := range RequiredSymbols {
		dst, ok := bind[name]
		if !ok {
			continue
		}
		addr, err := resolve(name)
		if err != nil || addr == 0 {
			C.dlclose(handle)
			return nil, dbgerrors.HelperNotFound([]string{path}).WithDetails("missingSymbol", name)
		}
		*dst = addr
	}

	if addr, _ := resolve("RegisterForRuntimeStartup3"); addr != 0 {
		h.Entries.RegisterForRuntimeStartup3 = addr
	}

	// The Helper itself is not pinned: the finalizer closes the dlopen
	// handle once the Helper becomes unreachable, so the handle stays open
	// only while a caller holds the Helper. Startup callbacks registered
	// through it are rooted separately (pin.go).
	runtime.SetFinalizer(h, (*Helper).Close)

	return h, nil
}

// Close releases the dlopen handle. Safe to call multiple times.
func (h *Helper) Close() error {
	if h.handle == nil {
		return nil
	}
	C.dlclose(h.handle)
	h.handle = nil
	runtime.SetFinalizer(h, nil)
	return nil
}

// Path returns the filesystem path the helper was loaded from.
func (h *Helper) Path() string { return h.path }
