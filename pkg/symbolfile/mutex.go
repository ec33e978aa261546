package symbolfile

import (
	"sync"

	"github.com/go-delve/nativedbg/pkg/logflags"
)

// Debug enables the ModuleMutex assertions regardless of the log flags.
var Debug = false

// ModuleMutex guards a module and its symbol file. Public entry points of
// Module take it, backends assert that it is held. Unlike a recursive
// mutex, locking it twice from the same goroutine deadlocks.
type ModuleMutex struct {
	mu sync.Mutex
}

func (m *ModuleMutex) Lock()   { m.mu.Lock() }
func (m *ModuleMutex) Unlock() { m.mu.Unlock() }

// AssertHeld panics if the mutex is not locked. The check tries to lock
// the mutex from another goroutine and is only active when Debug is set
// or symbol logging is enabled.
func (m *ModuleMutex) AssertHeld() {
	if m == nil || !(Debug || logflags.Symbols()) {
		return
	}
	acquired := make(chan bool)
	go func() {
		ok := m.mu.TryLock()
		if ok {
			m.mu.Unlock()
		}
		acquired <- ok
	}()
	if <-acquired {
		panic("symbol file accessed without holding the module mutex")
	}
}
