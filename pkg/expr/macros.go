package expr

import (
	"fmt"
	"io"
	"path"

	"github.com/go-delve/nativedbg/pkg/dwarf/macro"
)

type macroFileState uint8

const (
	currentFileNotYetPushed macroFileState = iota
	currentFilePushed
	currentFilePopped
)

// MacroState tracks the include stack while walking the macro list of a
// compile unit, so that only the macros defined before the current line
// of the current file are emitted.
type MacroState struct {
	state       macroFileState
	stack       []string
	currentFile string
	currentLine uint64
	// files resolves the file indexes of start_file entries.
	files []string
}

// NewMacroState returns the state for a stop at currentFile:currentLine.
// Files is the support file table of the compile unit.
func NewMacroState(currentFile string, currentLine int, files []string) *MacroState {
	return &MacroState{currentFile: path.Clean(currentFile), currentLine: uint64(currentLine), files: files}
}

func (s *MacroState) file(idx uint64) string {
	if idx < uint64(len(s.files)) && s.files[idx] != "" {
		return path.Clean(s.files[idx])
	}
	return ""
}

func (s *MacroState) startFile(file string) {
	s.stack = append(s.stack, file)
	if file == s.currentFile {
		s.state = currentFilePushed
	}
}

func (s *MacroState) endFile() {
	if len(s.stack) == 0 {
		return
	}
	top := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	if top == s.currentFile {
		s.state = currentFilePopped
	}
}

// valid returns true if an entry at line occurs before the current line of
// the current file.
func (s *MacroState) valid(line uint64) bool {
	switch s.state {
	case currentFileNotYetPushed:
		return true
	case currentFilePushed:
		// entries of files included by the current file are valid
		if s.stack[len(s.stack)-1] != s.currentFile {
			return true
		}
		return line < s.currentLine
	}
	return false
}

// AddMacros writes the #define and #undef directives of l that are valid
// for state to w. The walk of a list stops at its first entry that is not
// valid, imported lists are walked independently.
func AddMacros(w io.Writer, l *macro.List, state *MacroState) {
	if l == nil {
		return
	}
	for _, e := range l.Entries {
		switch e.Kind {
		case macro.Define, macro.Undef:
			if !state.valid(e.Line) {
				return
			}
			if e.Kind == macro.Define {
				fmt.Fprintf(w, "#define %s\n", e.Text)
			} else {
				fmt.Fprintf(w, "#undef %s\n", e.Text)
			}
		case macro.StartFile:
			if !state.valid(e.Line) {
				return
			}
			state.startFile(state.file(e.FileIndex))
		case macro.EndFile:
			state.endFile()
		case macro.Indirect:
			AddMacros(w, e.Indirect, state)
		}
	}
}
