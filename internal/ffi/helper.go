// Package ffi locates and binds the native CoreCLR debug helper library
// (the dbgshim-equivalent shared object that starts/attaches a debug
// session and hands back the root debugger capability).
//
// This package is split into the search-order logic (this file, pure Go,
// unit-testable without touching libc) and the actual dlopen/dlsym binding
// (loader_linux.go, cgo).
package ffi

import (
	"os"
	"path/filepath"
	"sort"

	dbgerrors "github.com/tacitsys/dncdbg-mcp/internal/errors"
)

// EntryPoints are the named symbols the engine requires from the helper
// library (spec §4.1). Register3 is optional and 0 when the library
// predates it.
type EntryPoints struct {
	CreateProcessForLaunch             uintptr
	ResumeProcess                      uintptr
	CloseResumeHandle                  uintptr
	RegisterForRuntimeStartup          uintptr
	RegisterForRuntimeStartup3         uintptr // optional, may be 0
	UnregisterForRuntimeStartup        uintptr
	EnumerateCLRs                      uintptr
	CloseCLREnumeration                uintptr
	CreateVersionStringFromModule      uintptr
	CreateDebuggingInterfaceFromVerEx  uintptr
}

// RequiredSymbols is the list of entry points whose absence is fatal.
var RequiredSymbols = []string{
	"CreateProcessForLaunch",
	"ResumeProcess",
	"CloseResumeHandle",
	"RegisterForRuntimeStartup",
	"UnregisterForRuntimeStartup",
	"EnumerateCLRs",
	"CloseCLREnumeration",
	"CreateVersionStringFromModule",
	"CreateDebuggingInterfaceFromVersionEx",
}

// OptionalSymbols may or may not be present depending on the runtime
// version; their absence is not fatal.
var OptionalSymbols = []string{
	"RegisterForRuntimeStartup3",
}

// candidatePaths returns every path the engine will try to dlopen, in the
// search order from spec §4.1: (1) explicit path, (2) DBGSHIM_PATH,
// (3) $DOTNET_ROOT/shared/Microsoft.NETCore.App/<newest>, (4) same subtree
// under a system-wide install, (5) NETCOREDBG_PATH's directory, (6) a
// user-local fallback, (7) a system-wide fallback.
func candidatePaths(explicit string) []string {
	var paths []string

	if explicit != "" {
		paths = append(paths, explicit)
	}

	if p := os.Getenv("DBGSHIM_PATH"); p != "" {
		paths = append(paths, p)
	}

	if root := os.Getenv("DOTNET_ROOT"); root != "" {
		paths = append(paths, newestRuntimeHelper(filepath.Join(root, "shared", "Microsoft.NETCore.App"))...)
	}

	paths = append(paths, newestRuntimeHelper("/usr/share/dotnet/shared/Microsoft.NETCore.App")...)

	if p := os.Getenv("NETCOREDBG_PATH"); p != "" {
		paths = append(paths, filepath.Join(filepath.Dir(p), helperFileName))
	}

	home, _ := os.UserHomeDir()
	if home != "" {
		paths = append(paths, filepath.Join(home, ".dotnet", "tools", helperFileName))
	}
	paths = append(paths, filepath.Join("/usr/local/lib/netcoredbg", helperFileName))

	return paths
}

// helperFileName is the platform name of the helper shared object. On
// Linux this is the only platform in scope (spec §1 non-goals exclude
// Windows).
const helperFileName = "libdbgshim.so"

// newestRuntimeHelper lists version subdirectories of a
// Microsoft.NETCore.App shared-framework root, newest first, each
// suffixed with the expected helper filename. Non-existent roots yield no
// candidates rather than an error — later search steps may still succeed.
func newestRuntimeHelper(sharedRoot string) []string {
	entries, err := os.ReadDir(sharedRoot)
	if err != nil {
		return nil
	}

	var versions []string
	for _, e := range entries {
		if e.IsDir() {
			versions = append(versions, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(versions)))

	out := make([]string, 0, len(versions))
	for _, v := range versions {
		out = append(out, filepath.Join(sharedRoot, v, helperFileName))
	}
	return out
}

// Locate tries every candidate path in order, returning the first that
// successfully loads. On total failure it returns HelperNotFound carrying
// the full attempted list (spec §4.1).
func Locate(explicit string) (*Helper, error) {
	var attempted []string

	for _, p := range candidatePaths(explicit) {
		attempted = append(attempted, p)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		h, err := open(p)
		if err != nil {
			continue
		}
		return h, nil
	}

	return nil, dbgerrors.HelperNotFound(attempted)
}
