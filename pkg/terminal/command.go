// Package terminal implements functions for responding to user
// input and dispatching to appropriate backend commands.
package terminal

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/cosiner/argv"
	"github.com/derekparker/trie"
	"github.com/spf13/pflag"

	"github.com/go-delve/nativedbg/pkg/args"
	"github.com/go-delve/nativedbg/pkg/completion"
	"github.com/go-delve/nativedbg/pkg/config"
	"github.com/go-delve/nativedbg/pkg/expr"
	"github.com/go-delve/nativedbg/pkg/proc"
	"github.com/go-delve/nativedbg/pkg/proc/core"
	"github.com/go-delve/nativedbg/pkg/settings"
	"github.com/go-delve/nativedbg/pkg/symbolfile"
)

type cmdfunc func(t *Term, args string) error

type command struct {
	aliases        []string
	builtinAliases []string
	group          commandGroup
	helpMsg        string
	cmdFn          cmdfunc
	// complete selects the completers run on the arguments.
	complete completion.Mask
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the commands of the ndbg terminal.
type Commands struct {
	cmds  []command
	names *trie.Trie
}

// byFirstAlias will sort by the first
// alias of a command.
type byFirstAlias []command

func (a byFirstAlias) Len() int           { return len(a) }
func (a byFirstAlias) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byFirstAlias) Less(i, j int) bool { return a[i].aliases[0] < a[j].aliases[0] }

var settingsSubcommands = []string{"show", "set", "append", "clear", "insert-before", "insert-after", "remove", "replace", "apropos", "list"}

// DebugCommands returns a Commands struct with default commands defined.
func DebugCommands() *Commands {
	c := &Commands{}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{aliases: []string{"core"}, group: targetCmds, cmdFn: openCore, complete: completion.DiskFile, helpMsg: `Opens a minidump file.

	core <path>

The previously opened core file is closed.`},
		{aliases: []string{"load"}, group: targetCmds, cmdFn: loadObject, complete: completion.DiskFile, helpMsg: `Loads a symbol file.

	load <path>`},
		{aliases: []string{"modules", "image"}, group: dataCmds, cmdFn: modules, complete: completion.Module, helpMsg: `Lists the modules of the core file and the loaded symbol files.

	modules [name]`},
		{aliases: []string{"threads"}, group: dataCmds, cmdFn: threads, helpMsg: "Lists the threads of the core file."},
		{aliases: []string{"regions"}, group: dataCmds, cmdFn: regions, helpMsg: `Prints the memory region containing an address.

	regions [address]

Without an address every region is printed.`},
		{aliases: []string{"exception", "stop"}, group: dataCmds, cmdFn: exception, helpMsg: "Prints the stop reason of the core file and the faulting instruction."},
		{aliases: []string{"examinemem", "x"}, group: dataCmds, cmdFn: examineMemory, helpMsg: `Examine raw memory at the given address.

	examinemem <address> [count]

Count defaults to 64 bytes.`},
		{aliases: []string{"funcs"}, group: dataCmds, cmdFn: funcs, complete: completion.Symbol, helpMsg: `Prints the functions matching a regular expression.

	funcs [regex]`},
		{aliases: []string{"wrap"}, group: exprCmds, cmdFn: wrap, helpMsg: `Prints the source compiled to evaluate an expression.

	wrap [--lang c|c++|objc|objc-static|swift] [--name name] <expression>`},
		{aliases: []string{"complete"}, group: exprCmds, cmdFn: completeCommand, helpMsg: `Prints the completions of a command line.

	complete <line>`},
		{aliases: []string{"settings", "set"}, group: settingsCmds, cmdFn: settingsCommand, complete: completion.SettingsName, helpMsg: `Shows or changes the debugger settings.

	settings show [path...]
	settings set <path> <value>
	settings append|clear|insert-before|insert-after|remove|replace <path> [value]
	settings apropos <keyword>
	settings list`},
		{aliases: []string{"config"}, cmdFn: configCommand, helpMsg: `Prints the path of the configuration file or saves the configuration.

	config
	config save`},
		{aliases: []string{"exit", "quit", "q"}, cmdFn: exitCommand, helpMsg: "Exit the debugger."},
	}

	sort.Sort(byFirstAlias(c.cmds))
	c.index()
	return c
}

func (c *Commands) index() {
	c.names = trie.New()
	for i := range c.cmds {
		for _, alias := range c.cmds[i].aliases {
			c.names.Add(alias, i)
		}
	}
}

// Register custom commands. Expects cf to be a func of type cmdfunc,
// returning only an error.
func (c *Commands) Register(cmdstr string, cf cmdfunc, helpMsg string) {
	for i := range c.cmds {
		if c.cmds[i].match(cmdstr) {
			c.cmds[i].cmdFn = cf
			return
		}
	}

	c.cmds = append(c.cmds, command{aliases: []string{cmdstr}, cmdFn: cf, helpMsg: helpMsg})
	c.index()
}

// find returns the command called cmdstr. A unique prefix of the name
// of a command selects it.
func (c *Commands) find(cmdstr string) (*command, bool) {
	if n, ok := c.names.Find(cmdstr); ok {
		return &c.cmds[n.Meta().(int)], true
	}
	found := -1
	for _, name := range c.names.PrefixSearch(cmdstr) {
		n, _ := c.names.Find(name)
		i := n.Meta().(int)
		if found >= 0 && found != i {
			return nil, false
		}
		found = i
	}
	if found < 0 {
		return nil, false
	}
	return &c.cmds[found], true
}

// Find will look up the command function for the given command input.
// If it cannot find the command it will default to noCmdAvailable().
func (c *Commands) Find(cmdstr string) cmdfunc {
	if cmdstr == "" {
		return nullCommand
	}
	if cmd, ok := c.find(cmdstr); ok {
		return cmd.cmdFn
	}
	return noCmdAvailable
}

// Call takes a command to execute. Lines starting with '!' are run by
// the shell.
func (c *Commands) Call(cmdstr string, t *Term) error {
	cmdstr = strings.TrimSpace(cmdstr)
	if strings.HasPrefix(cmdstr, "!") {
		return shell(t, cmdstr[1:])
	}
	vals := strings.SplitN(cmdstr, " ", 2)
	cmdname := vals[0]
	var argstr string
	if len(vals) > 1 {
		argstr = strings.TrimSpace(vals[1])
	}
	return c.Find(cmdname)(t, argstr)
}

// Merge takes aliases defined in the config struct and merges them with the default aliases.
func (c *Commands) Merge(allAliases map[string][]string) {
	for i := range c.cmds {
		if c.cmds[i].builtinAliases != nil {
			c.cmds[i].aliases = append(c.cmds[i].aliases[:0], c.cmds[i].builtinAliases...)
		}
	}
	for i := range c.cmds {
		if aliases, ok := allAliases[c.cmds[i].aliases[0]]; ok {
			if c.cmds[i].builtinAliases == nil {
				c.cmds[i].builtinAliases = make([]string, len(c.cmds[i].aliases))
				copy(c.cmds[i].builtinAliases, c.cmds[i].aliases)
			}
			c.cmds[i].aliases = append(c.cmds[i].aliases, aliases...)
		}
	}
	c.index()
}

// Complete returns the completions of the argument under the cursor of
// line and the offset in line where that argument starts.
func (c *Commands) Complete(t *Term, line string, pos int) (int, []string) {
	max := int(t.sess.Props.GetUInt(settings.CompletionMaxResults, 0))
	req := completion.NewRequest(line, pos, 0, max)
	partial := req.CursorArgument()
	prefix := line[:req.RawCursorPos()]
	if !strings.HasSuffix(prefix, partial) {
		return pos, nil
	}
	start := len(prefix) - len(partial)

	if req.CursorIndex == 0 {
		names := c.names.PrefixSearch(partial)
		sort.Strings(names)
		return start, names
	}
	cmd, ok := c.find(req.ParsedLine().Entry(0).Text)
	if !ok {
		return start, nil
	}
	mask := cmd.complete
	if cmd.match("settings") {
		switch {
		case req.CursorIndex == 1:
			for _, sub := range settingsSubcommands {
				if strings.HasPrefix(sub, partial) {
					req.AddMatch(sub)
				}
			}
			return start, req.Matches()
		case req.CursorIndex > 2 && req.ParsedLine().Entry(1).Text != "show":
			return start, nil
		}
	}
	if mask == completion.NoCompletion || !completion.InvokeCommon(t.sess, mask, req, nil) {
		return start, nil
	}
	return start, req.Matches()
}

var errNoCmd = errors.New("command not available")

func noCmdAvailable(t *Term, args string) error {
	return errNoCmd
}

func nullCommand(t *Term, args string) error {
	return nil
}

func (c *Commands) help(t *Term, args string) error {
	if args != "" {
		if cmd, ok := c.find(args); ok {
			fmt.Fprintln(t.stdout, cmd.helpMsg)
			return nil
		}
		return errNoCmd
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")

	for _, cgd := range commandGroupDescriptions {
		fmt.Fprintf(t.stdout, "\n%s:\n", cgd.description)
		w := new(tabwriter.Writer)
		w.Init(t.stdout, 0, 8, 0, '-', 0)
		for _, cmd := range c.cmds {
			if cmd.group != cgd.group {
				continue
			}
			h := cmd.helpMsg
			if idx := strings.Index(h, "\n"); idx >= 0 {
				h = h[:idx]
			}
			if len(cmd.aliases) > 1 {
				fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
			} else {
				fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(t.stdout)
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

func shell(t *Term, cmdline string) error {
	argvs, err := argv.Argv(cmdline,
		func(s string) (string, error) {
			return "", fmt.Errorf("backtick not supported in '%s'", s)
		},
		nil)
	if err != nil {
		return err
	}
	cmds, err := argv.Cmds(argvs...)
	if err != nil {
		return err
	}
	return argv.Pipe(nil, t.stdout, os.Stderr, cmds...)
}

func singleArg(argstr, usage string) (string, error) {
	v := args.New(argstr).Strings()
	if len(v) != 1 {
		return "", fmt.Errorf("wrong number of arguments: %s", usage)
	}
	return v[0], nil
}

func openCore(t *Term, argstr string) error {
	path, err := singleArg(argstr, "core <path>")
	if err != nil {
		return err
	}
	p, err := t.sess.OpenCore(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "Core file %s: %s, pid %d, %d threads, %d modules\n", path, p.Arch(), p.Pid(), len(p.ThreadList()), len(p.Modules()))
	return exception(t, "")
}

func loadObject(t *Term, argstr string) error {
	path, err := singleArg(argstr, "load <path>")
	if err != nil {
		return err
	}
	m, err := t.sess.LoadObject(path)
	if err != nil {
		return err
	}
	backend := m.BackendName()
	if backend == "" {
		backend = "no symbol file backend"
	}
	fmt.Fprintf(t.stdout, "Loaded %s (%s, %s, %s)\n", path, m.Obj.Arch, m.Obj.Type, backend)
	return nil
}

func modules(t *Term, argstr string) error {
	filter := strings.TrimSpace(argstr)
	var filt completion.SearchFilter
	if filter != "" {
		filt = completion.ModuleFilter(filter)
	}
	w := new(tabwriter.Writer)
	w.Init(t.stdout, 0, 8, 1, ' ', 0)
	if p, err := t.sess.Core(); err == nil {
		for _, m := range p.Modules() {
			if filt != nil && !filt.ModulePasses(&completion.ModuleInfo{Path: m.Path}) {
				continue
			}
			symbols := "no symbols"
			if m.Obj != nil {
				symbols = fmt.Sprintf("%d symbols", len(m.Obj.Symbols))
			}
			fmt.Fprintf(w, "%#016x\t%#x\t%s\t%s\n", m.Base, m.Size, m.Path, symbols)
		}
	}
	for _, m := range t.sess.SymbolModules() {
		if filt != nil && !filt.ModulePasses(&completion.ModuleInfo{Path: m.Path()}) {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d compile units\n", "(symbols)", m.Obj.Arch, m.Path(), len(m.CompileUnits()))
	}
	return w.Flush()
}

func threads(t *Term, argstr string) error {
	p, err := t.sess.Core()
	if err != nil {
		return err
	}
	cur := p.CurrentThread()
	for _, th := range p.ThreadList() {
		prefix := "  "
		if cur != nil && th.ThreadID() == cur.ThreadID() {
			prefix = t.highlight(ansiYellow, "* ")
		}
		line := fmt.Sprintf("%sThread %d", prefix, th.ThreadID())
		if ct, ok := th.(*core.Thread); ok {
			line += fmt.Sprintf(" teb %#x context %d bytes", ct.TEB, len(ct.Context))
		}
		if si := th.Common().StopInfo(); si != nil && si.Reason != proc.StopNone {
			line += fmt.Sprintf(" stop reason = %s", si.Description)
		}
		fmt.Fprintln(t.stdout, line)
	}
	for _, th := range p.ExtendedThreads() {
		fmt.Fprintf(t.stdout, "  Thread %d %s (history)\n", th.ThreadID(), th.Name())
	}
	return nil
}

func regions(t *Term, argstr string) error {
	p, err := t.sess.Core()
	if err != nil {
		return err
	}
	if argstr != "" {
		addr, err := strconv.ParseUint(strings.TrimSpace(argstr), 0, 64)
		if err != nil {
			return fmt.Errorf("invalid address %q", argstr)
		}
		r, err := p.MemoryRegionInfo(addr)
		if err != nil {
			return err
		}
		fmt.Fprintln(t.stdout, r)
		return nil
	}
	var addr uint64
	for {
		r, err := p.MemoryRegionInfo(addr)
		if err != nil {
			return err
		}
		if r.Mapped {
			fmt.Fprintln(t.stdout, r)
		}
		if r.End <= addr || r.End == proc.InvalidAddress {
			return nil
		}
		addr = r.End
	}
}

func exception(t *Term, argstr string) error {
	p, err := t.sess.Core()
	if err != nil {
		return err
	}
	th := p.CurrentThread()
	if th == nil {
		return nil
	}
	si := th.Common().StopInfo()
	if si == nil || si.Reason == proc.StopNone {
		fmt.Fprintf(t.stdout, "Thread %d: no stop reason\n", th.ThreadID())
		return nil
	}
	fmt.Fprintf(t.stdout, "Thread %d: stop reason = %s\n", th.ThreadID(), t.highlight(ansiRed, si.Description))
	if inst, err := p.ExceptionInstruction(); err == nil {
		fmt.Fprintf(t.stdout, "\t%s\n", inst)
	}
	return nil
}

func examineMemory(t *Term, argstr string) error {
	p, err := t.sess.Core()
	if err != nil {
		return err
	}
	v := args.New(argstr).Strings()
	if len(v) < 1 || len(v) > 2 {
		return errors.New("wrong number of arguments: examinemem <address> [count]")
	}
	addr, err := strconv.ParseUint(v[0], 0, 64)
	if err != nil {
		return fmt.Errorf("invalid address %q", v[0])
	}
	count := 64
	if len(v) == 2 {
		if count, err = strconv.Atoi(v[1]); err != nil || count <= 0 {
			return fmt.Errorf("invalid count %q", v[1])
		}
	}
	buf := make([]byte, count)
	n, err := p.ReadMemory(buf, addr)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("could not read memory at %#x", addr)
	}
	for off := 0; off < n; off += 16 {
		end := off + 16
		if end > n {
			end = n
		}
		fmt.Fprintf(t.stdout, "%s:", t.highlight(ansiBlue, fmt.Sprintf("%#016x", addr+uint64(off))))
		for _, b := range buf[off:end] {
			fmt.Fprintf(t.stdout, " %02x", b)
		}
		fmt.Fprintln(t.stdout)
	}
	return nil
}

func funcs(t *Term, argstr string) error {
	re, err := regexp.Compile(strings.TrimSpace(argstr))
	if err != nil {
		return fmt.Errorf("invalid regular expression: %v", err)
	}
	var names []string
	for _, m := range t.sess.SymbolModules() {
		for _, fn := range m.FindFunctionsRegexp(re, true) {
			names = append(names, fn.DisplayName())
		}
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 && names[i-1] == name {
			continue
		}
		fmt.Fprintln(t.stdout, name)
	}
	return nil
}

func wrap(t *Term, argstr string) error {
	fs := pflag.NewFlagSet("wrap", pflag.ContinueOnError)
	fs.SetOutput(t.stdout)
	lang := fs.StringP("lang", "l", "c", "language of the wrapper")
	name := fs.StringP("name", "n", "$__lldb_expr", "name of the wrapper function")
	if err := fs.Parse(args.New(argstr).Strings()); err != nil {
		return err
	}
	kind, err := expr.ParseWrapKind(*lang)
	if err != nil {
		return err
	}
	body := strings.Join(fs.Args(), " ")
	if body == "" {
		return errors.New("wrong number of arguments: wrap [--lang l] [--name n] <expression>")
	}
	b := &expr.Builder{Name: *name, Body: body, Wrap: kind}
	opts := expr.Options{Language: wrapLanguage(kind)}
	text, firstLine, err := b.GetText(opts, nil)
	if err != nil {
		return err
	}
	fmt.Fprint(t.stdout, text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(t.stdout)
	}
	if firstLine > 0 {
		fmt.Fprintf(t.stdout, "first body line: %d\n", firstLine)
	}
	return nil
}

func wrapLanguage(k expr.WrapKind) symbolfile.Language {
	switch k {
	case expr.WrapC:
		return symbolfile.LanguageC
	case expr.WrapObjCInstance, expr.WrapObjCStatic:
		return symbolfile.LanguageObjC
	case expr.WrapSwift:
		return symbolfile.LanguageSwift
	}
	return symbolfile.LanguageCPlusPlus
}

func completeCommand(t *Term, argstr string) error {
	_, matches := t.cmds.Complete(t, argstr, len(argstr))
	for _, m := range matches {
		fmt.Fprintln(t.stdout, m)
	}
	return nil
}

func settingsCommand(t *Term, argstr string) error {
	props := t.sess.Props
	v := args.New(argstr)
	if v.Len() == 0 {
		return props.DumpValue(t.stdout, settings.DumpDefault)
	}
	sub := v.Entry(0).Text
	rest := v.Strings()[1:]
	switch sub {
	case "show":
		if len(rest) == 0 {
			return props.DumpValue(t.stdout, settings.DumpDefault)
		}
		for _, path := range rest {
			if err := props.DumpPropertyValue(t.stdout, path, settings.DumpDefault); err != nil {
				return err
			}
		}
		return nil
	case "apropos":
		if len(rest) != 1 {
			return errors.New("wrong number of arguments: settings apropos <keyword>")
		}
		found := props.Apropos(rest[0])
		if len(found) == 0 {
			fmt.Fprintf(t.stdout, "No settings found matching %q\n", rest[0])
			return nil
		}
		for _, p := range found {
			fmt.Fprintf(t.stdout, "  %s -- %s\n", p.Path(), p.Description)
		}
		return nil
	case "list":
		props.DumpAllDescriptions(t.stdout)
		return nil
	}
	op, err := settings.ParseOperation(sub)
	if sub == "set" {
		op, err = settings.OpAssign, nil
	}
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return fmt.Errorf("missing setting path for settings %s", sub)
	}
	value := ""
	if len(rest) > 1 {
		a := args.New("")
		for _, s := range rest[1:] {
			a.Append(s, 0)
		}
		value = a.CommandString()
	}
	return props.SetSubValue(op, rest[0], value)
}

func configCommand(t *Term, argstr string) error {
	switch strings.TrimSpace(argstr) {
	case "":
		path, err := config.GetConfigFilePath("config.yml")
		if err != nil {
			return err
		}
		fmt.Fprintln(t.stdout, path)
		return nil
	case "save":
		return config.SaveConfig(t.conf)
	}
	return fmt.Errorf("unknown config subcommand %q", argstr)
}

// ExitRequestError is returned when the user
// exits the debugger.
type ExitRequestError struct{}

func (ere ExitRequestError) Error() string {
	return ""
}

func exitCommand(t *Term, args string) error {
	return ExitRequestError{}
}
