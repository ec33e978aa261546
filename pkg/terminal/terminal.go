package terminal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/go-delve/liner"

	"github.com/go-delve/nativedbg/pkg/config"
	"github.com/go-delve/nativedbg/pkg/logflags"
)

const (
	historyFile        string = ".ndbg_history"
	defaultHistorySize        = 1000
	defaultPrompt             = "(ndbg) "
)

// Term represents the terminal running ndbg.
type Term struct {
	sess     *Session
	conf     *config.Config
	cmds     *Commands
	line     *liner.State
	stdout   io.Writer
	colorize bool
	InitFile string
}

// New returns a new Term operating on sess.
func New(sess *Session, conf *config.Config) *Term {
	if conf == nil {
		conf = &config.Config{}
	}
	cmds := DebugCommands()
	if conf.Aliases != nil {
		cmds.Merge(conf.Aliases)
	}
	w, colorize := newOutput()
	return &Term{
		sess:     sess,
		conf:     conf,
		cmds:     cmds,
		stdout:   w,
		colorize: colorize,
	}
}

// SetOutput redirects the output of the commands to w, without colors.
func (t *Term) SetOutput(w io.Writer) {
	t.stdout = w
	t.colorize = false
}

// Call executes a single command line.
func (t *Term) Call(cmdstr string) error {
	return t.cmds.Call(cmdstr, t)
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	if t.line != nil {
		t.line.Close()
		t.line = nil
	}
}

func (t *Term) prompt() string {
	return t.sess.Props.GetString("interpreter.prompt", defaultPrompt)
}

func (t *Term) historySize() int {
	if t.conf.HistorySize > 0 {
		return t.conf.HistorySize
	}
	return defaultHistorySize
}

func (t *Term) wordCompleter(line string, pos int) (head string, completions []string, tail string) {
	start, matches := t.cmds.Complete(t, line, pos)
	if len(matches) == 0 {
		return line[:pos], nil, line[pos:]
	}
	return line[:start], matches, line[pos:]
}

// loadHistory feeds the last historySize lines of the history file to the
// line editor.
func (t *Term) loadHistory(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	var lines []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	if n := t.historySize(); len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	if _, err := t.line.ReadHistory(strings.NewReader(strings.Join(lines, "\n") + "\n")); err != nil {
		logflags.SettingsLogger().Debugf("reading history: %v", err)
	}
}

func (t *Term) saveHistory(path string) {
	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error saving history file: %v\n", err)
		return
	}
	defer f.Close()
	if _, err := t.line.WriteHistory(f); err != nil {
		fmt.Fprintf(os.Stderr, "readline history error: %v\n", err)
	}
}

// Run begins running ndbg in the terminal.
func (t *Term) Run() (int, error) {
	t.line = liner.NewLiner()
	defer t.Close()
	t.line.SetCtrlCAborts(true)
	t.line.SetWordCompleter(t.wordCompleter)

	// a SIGINT only aborts the current line
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	defer signal.Stop(ch)

	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to load history file: %v.", err)
	} else {
		t.loadHistory(fullHistoryFile)
	}
	fmt.Fprintln(t.stdout, "Type 'help' for list of commands.")

	if t.InitFile != "" {
		if err := t.executeFile(t.InitFile); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit(fullHistoryFile)
			}
			fmt.Fprintf(os.Stderr, "Error executing init file: %s\n", err)
		}
	}

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == liner.ErrPromptAborted {
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(t.stdout, "exit")
				return t.handleExit(fullHistoryFile)
			}
			return 1, fmt.Errorf("Prompt for input failed.\n")
		}

		if err := t.Call(cmdstr); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit(fullHistoryFile)
			}
			fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
		}
	}
}

// executeFile runs every line of path as a command. Empty lines and lines
// starting with '#' are skipped.
func (t *Term) executeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	lineno := 0
	for s.Scan() {
		lineno++
		line := strings.TrimSpace(s.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if err := t.Call(line); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return err
			}
			fmt.Fprintf(os.Stderr, "%s:%d: %v\n", path, lineno, err)
		}
	}
	return s.Err()
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt())
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

func (t *Term) handleExit(fullHistoryFile string) (int, error) {
	if fullHistoryFile != "" && t.line != nil {
		t.saveHistory(fullHistoryFile)
	}
	if err := t.sess.Close(); err != nil {
		return 1, err
	}
	return 0, nil
}
