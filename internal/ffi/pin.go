package ffi

import "sync"

// pinned roots every runtime-startup callback the engine has registered
// but not yet seen fire or unregister (spec §4.1's callback-lifetime
// contract). Go has a garbage collector, so "stable storage" here means a
// process-global root — exactly the GC'd-language case called out in
// spec §9 ("No garbage collector assumptions").
var pinned = struct {
	mu    sync.Mutex
	roots map[uint64]interface{}
	next  uint64
}{roots: make(map[uint64]interface{})}

// Pin roots v until Unpin is called with the returned token, guaranteeing
// it survives any GC cycle that runs while native code still holds a
// reference to it.
func Pin(v interface{}) uint64 {
	pinned.mu.Lock()
	defer pinned.mu.Unlock()
	token := pinned.next
	pinned.next++
	pinned.roots[token] = v
	return token
}

// Unpin releases a previously pinned root. Startup callbacks are unpinned
// once they have been observed to fire; a registration unregistered before
// it fires stays pinned.
func Unpin(token uint64) {
	pinned.mu.Lock()
	defer pinned.mu.Unlock()
	delete(pinned.roots, token)
}
