package terminal

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-delve/nativedbg/pkg/completion"
	"github.com/go-delve/nativedbg/pkg/objfile"
	"github.com/go-delve/nativedbg/pkg/proc/core"
	"github.com/go-delve/nativedbg/pkg/settings"
	"github.com/go-delve/nativedbg/pkg/symbolfile"
)

var errNoCore = errors.New("no core file loaded, use 'core <path>'")

// Session is the state the terminal commands operate on: the settings,
// the loaded symbol files and the open core file.
type Session struct {
	Props *settings.Properties

	modules []*symbolfile.Module
	core    *core.Process
}

var _ completion.Context = &Session{}

// NewSession returns an empty session using props, the global property
// tree if props is nil.
func NewSession(props *settings.Properties) *Session {
	if props == nil {
		props = settings.Global()
	}
	return &Session{Props: props}
}

// LoadObject loads the symbol file at path.
func (s *Session) LoadObject(path string) (*symbolfile.Module, error) {
	obj, err := objfile.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not load %s: %w", path, err)
	}
	m := symbolfile.NewModule(obj)
	s.modules = append(s.modules, m)
	return m, nil
}

// OpenCore opens a minidump, closing the previous one.
func (s *Session) OpenCore(path string) (*core.Process, error) {
	p, err := core.OpenCore(path)
	if err != nil {
		return nil, err
	}
	if s.core != nil {
		s.core.Close()
	}
	s.core = p
	return p, nil
}

// Core returns the open core file.
func (s *Session) Core() (*core.Process, error) {
	if s.core == nil {
		return nil, errNoCore
	}
	return s.core, nil
}

// SymbolModules returns the loaded symbol files.
func (s *Session) SymbolModules() []*symbolfile.Module { return s.modules }

// Close releases the core file and the symbol files.
func (s *Session) Close() error {
	var firstErr error
	if s.core != nil {
		firstErr = s.core.Close()
		s.core = nil
	}
	for _, m := range s.modules {
		if err := m.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.modules = nil
	return firstErr
}

func (s *Session) Modules() []completion.ModuleInfo {
	var r []completion.ModuleInfo
	for _, m := range s.modules {
		r = append(r, m.CompletionInfo())
	}
	if s.core != nil {
		for _, m := range s.core.Modules() {
			info := completion.ModuleInfo{Path: m.Path}
			if m.Obj != nil {
				for i := range m.Obj.Symbols {
					info.Symbols = append(info.Symbols, m.Obj.Symbols[i].Name)
				}
			}
			r = append(r, info)
		}
	}
	return r
}

func (s *Session) Settings() *settings.Properties { return s.Props }

func (s *Session) Platforms() []string {
	return []string{"host", "remote-windows"}
}

func (s *Session) Architectures() []string {
	archs := map[string]bool{"x86_64": true, "i386": true, "aarch64": true, "arm": true}
	for _, m := range s.modules {
		if m.Obj.Arch != "" {
			archs[m.Obj.Arch] = true
		}
	}
	r := make([]string, 0, len(archs))
	for a := range archs {
		r = append(r, a)
	}
	sort.Strings(r)
	return r
}

// FrameVariables returns nil, a core file has no frames.
func (s *Session) FrameVariables(path string) []completion.Variable { return nil }
