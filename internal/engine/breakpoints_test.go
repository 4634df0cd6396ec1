package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/tacitsys/dncdbg-mcp/internal/clr"
	"github.com/tacitsys/dncdbg-mcp/pkg/types"
)

// fakeModule is a minimal clr.Module stub: resolving a function always
// fails, so bindBreakpoint exercises its error path without needing a
// live native frame.
type fakeModule struct {
	name string
}

func (m *fakeModule) GetName() (string, error)                         { return m.name, nil }
func (m *fakeModule) GetFunctionFromToken(uint32) (clr.Function, error) { return nil, errors.New("no live runtime in this test") }
func (m *fakeModule) GetClassFromToken(uint32) (clr.Class, error)       { return nil, errors.New("no live runtime in this test") }

func newTestEngine() *Engine {
	e := &Engine{
		cmdCh:        make(chan func(), 8),
		events:       newEventQueue(),
		breakpoints:  make(map[uint32]*types.BreakpointRecord),
		reverseMap:   make(map[breakpointKey]uint32),
		modules:      make(map[string]clr.Module),
		knownThreads: make(map[int32]bool),
	}
	e.sink = &sink{engine: e}
	return e
}

func TestFindLoadedModuleMatchesByBasename(t *testing.T) {
	e := newTestEngine()
	e.modules["/srv/app/bin/MyApp.dll"] = &fakeModule{name: "/srv/app/bin/MyApp.dll"}

	module, ok := e.findLoadedModule("MyApp.dll")
	if !ok {
		t.Fatal("expected MyApp.dll to resolve against a loaded module")
	}
	if module == nil {
		t.Error("resolved module must not be nil")
	}

	if _, ok := e.findLoadedModule("Other.dll"); ok {
		t.Error("unrelated basename must not match")
	}
}

func TestRegisterModuleAndLookup(t *testing.T) {
	e := newTestEngine()
	e.registerModule("/app/Foo.dll", &fakeModule{name: "/app/Foo.dll"})

	if _, ok := e.findLoadedModule("Foo.dll"); !ok {
		t.Fatal("registerModule must make the module discoverable by basename")
	}
}

func TestLookupBreakpointIDReflectsReverseMap(t *testing.T) {
	e := newTestEngine()
	key := breakpointKey{methodToken: 0x06000001, ilOffset: 0x10}
	e.reverseMap[key] = 42

	id, ok := e.lookupBreakpointID(key.methodToken, key.ilOffset)
	if !ok || id != 42 {
		t.Fatalf("lookupBreakpointID = (%d, %v), want (42, true)", id, ok)
	}

	if _, ok := e.lookupBreakpointID(key.methodToken, key.ilOffset+1); ok {
		t.Error("lookupBreakpointID must miss on an unregistered offset")
	}
}

func TestResolvePendingBreakpointsMatchesByBasename(t *testing.T) {
	e := newTestEngine()
	matching := &types.BreakpointRecord{ID: 1, DLLBasename: "MyApp.dll"}
	other := &types.BreakpointRecord{ID: 2, DLLBasename: "Other.dll"}
	e.pending = []*types.BreakpointRecord{matching, other}

	e.resolvePendingBreakpoints("/srv/app/MyApp.dll", &fakeModule{name: "/srv/app/MyApp.dll"})

	if len(e.pending) != 1 || e.pending[0].ID != 2 {
		t.Fatalf("pending after resolve = %+v, want only id 2 left", e.pending)
	}
}

func TestSetThreadKnownTracksLifecycle(t *testing.T) {
	e := newTestEngine()
	e.setThreadKnown(7, true)
	if !e.knownThreads[7] {
		t.Fatal("expected thread 7 to be known")
	}
	e.setThreadKnown(7, false)
	if e.knownThreads[7] {
		t.Error("expected thread 7 to be forgotten")
	}
}

func TestRemoveBreakpointIsNoOpForUnknownID(t *testing.T) {
	e := newTestEngine()
	go e.dispatchLoop()
	defer close(e.cmdCh)

	if err := e.RemoveBreakpoint(context.Background(), 999); err != nil {
		t.Fatalf("RemoveBreakpoint on unknown id returned error: %v", err)
	}
}
