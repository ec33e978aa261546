package symbolfile

import (
	"sync"

	"github.com/go-delve/nativedbg/pkg/logflags"
	"github.com/go-delve/nativedbg/pkg/objfile"
)

// Creator returns a backend for obj, or nil if the backend can not read
// obj at all.
type Creator func(obj *objfile.File, mu *ModuleMutex) Backend

type plugin struct {
	name   string
	create Creator
}

var registry struct {
	once    sync.Once
	mu      sync.Mutex
	plugins []plugin
}

func initRegistry() {
	registry.once.Do(func() {
		registry.mu.Lock()
		defer registry.mu.Unlock()
		registry.plugins = append(registry.plugins, plugin{"symtab", newSymtab})
	})
}

// Register adds a backend. Backends registered first win ties.
func Register(name string, create Creator) {
	initRegistry()
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.plugins = append(registry.plugins, plugin{name, create})
}

// Plugins returns the names of the registered backends in registration
// order.
func Plugins() []string {
	initRegistry()
	registry.mu.Lock()
	defer registry.mu.Unlock()
	r := make([]string, len(registry.plugins))
	for i := range registry.plugins {
		r[i] = registry.plugins[i].name
	}
	return r
}

// FindPlugin asks every registered backend what it can read from obj and
// returns the one with the most abilities, after calling its
// InitializeObject method. A backend advertising every ability is chosen
// without asking the others. Returns nil if no backend can read obj.
func FindPlugin(obj *objfile.File, mu *ModuleMutex) Backend {
	if obj == nil {
		return nil
	}
	initRegistry()
	registry.mu.Lock()
	plugins := append([]plugin(nil), registry.plugins...)
	registry.mu.Unlock()

	log := logflags.SymbolsLogger()
	var best Backend
	bestCount := 0
	for _, p := range plugins {
		cur := p.create(obj, mu)
		if cur == nil {
			continue
		}
		abilities := cur.CalculateAbilities()
		log.Debugf("%s: backend %s abilities %#x", obj.Path, p.name, uint32(abilities))
		if n := abilities.Count(); n > bestCount {
			bestCount = n
			best = cur
			if abilities&AllAbilities == AllAbilities {
				break
			}
		}
	}
	if best != nil {
		log.Debugf("%s: using backend %s", obj.Path, best.Name())
		best.InitializeObject()
	}
	return best
}
