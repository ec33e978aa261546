// Package instrumentation is the protocol between the debugger and the
// plugins that understand instrumentation runtimes, libraries linked into
// the target that detect bugs and expose their findings through exported
// symbols.
package instrumentation

import (
	"fmt"
	"sync"

	"github.com/go-delve/nativedbg/pkg/logflags"
	"github.com/go-delve/nativedbg/pkg/proc"
)

// Type identifies an instrumentation runtime.
type Type uint8

const (
	TypeAddressSanitizer Type = iota
	TypeThreadSanitizer
)

func (t Type) String() string {
	switch t {
	case TypeAddressSanitizer:
		return "AddressSanitizer"
	case TypeThreadSanitizer:
		return "ThreadSanitizer"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Runtime is a plugin for an instrumentation runtime.
type Runtime interface {
	Type() Type
	// CheckIfRuntimeIsValid returns true if m contains the runtime.
	CheckIfRuntimeIsValid(m *proc.Module) bool
	// ModulesDidLoad is called every time modules are loaded in the
	// target, the plugin activates itself when it finds its runtime.
	ModulesDidLoad(mods []*proc.Module)
	Activate() error
	Deactivate()
	IsActive() bool
	// GetBacktracesFromExtendedStopInfo returns a history thread for
	// every trace of the report attached to a stop by this plugin.
	GetBacktracesFromExtendedStopInfo(info Dictionary) []proc.Thread
}

// CreateFunc returns a new instance of a plugin for target.
type CreateFunc func(target proc.Target) Runtime

type plugin struct {
	name        string
	description string
	typ         Type
	create      CreateFunc
}

var (
	pluginsMu sync.Mutex
	plugins   []plugin
)

// Register makes an instrumentation runtime plugin available. Registering
// a second plugin for the same type panics.
func Register(name, description string, typ Type, create CreateFunc) {
	pluginsMu.Lock()
	defer pluginsMu.Unlock()
	for _, p := range plugins {
		if p.typ == typ {
			panic(fmt.Sprintf("instrumentation: plugin for %s registered twice", typ))
		}
	}
	plugins = append(plugins, plugin{name, description, typ, create})
}

// Unregister removes the plugin for typ.
func Unregister(typ Type) {
	pluginsMu.Lock()
	defer pluginsMu.Unlock()
	for i, p := range plugins {
		if p.typ == typ {
			plugins = append(plugins[:i], plugins[i+1:]...)
			return
		}
	}
}

// PluginNames returns the names of the registered plugins.
func PluginNames() []string {
	pluginsMu.Lock()
	defer pluginsMu.Unlock()
	r := make([]string, len(plugins))
	for i := range plugins {
		r[i] = plugins[i].name
	}
	return r
}

// Collection holds the plugin instances of a target, one per type.
type Collection map[Type]Runtime

// ModulesDidLoad creates the instances missing from runtimes for every
// registered plugin and notifies all of them that mods were loaded.
func ModulesDidLoad(mods []*proc.Module, target proc.Target, runtimes Collection) {
	pluginsMu.Lock()
	registered := append([]plugin(nil), plugins...)
	pluginsMu.Unlock()

	for _, p := range registered {
		if _, ok := runtimes[p.typ]; ok {
			continue
		}
		logflags.TSanLogger().Debugf("creating instrumentation runtime %s", p.name)
		runtimes[p.typ] = p.create(target)
	}
	for _, p := range registered {
		if rt := runtimes[p.typ]; rt != nil {
			rt.ModulesDidLoad(mods)
		}
	}
}
