package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

const (
	terminalHighlightEscapeCode string = "\033[%2dm"
	terminalResetEscapeCode     string = "\033[0m"

	ansiRed    = 31
	ansiYellow = 33
	ansiBlue   = 34
)

// newOutput returns the writer for the output of the terminal and whether
// escape sequences should be written to it.
func newOutput() (io.Writer, bool) {
	if strings.ToLower(os.Getenv("TERM")) == "dumb" {
		return os.Stdout, false
	}
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return os.Stdout, false
	}
	return colorable.NewColorableStdout(), true
}

// highlight wraps s in the escape sequence for color, if the output
// supports it.
func (t *Term) highlight(color int, s string) string {
	if !t.colorize {
		return s
	}
	return fmt.Sprintf(terminalHighlightEscapeCode, color) + s + terminalResetEscapeCode
}
