package cmds

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-delve/nativedbg/pkg/completion"
	"github.com/go-delve/nativedbg/pkg/config"
	"github.com/go-delve/nativedbg/pkg/expr"
	"github.com/go-delve/nativedbg/pkg/logflags"
	"github.com/go-delve/nativedbg/pkg/objfile"
	"github.com/go-delve/nativedbg/pkg/settings"
	"github.com/go-delve/nativedbg/pkg/symbolfile"
	"github.com/go-delve/nativedbg/pkg/terminal"
	"github.com/go-delve/nativedbg/pkg/version"

	// Register the plugins.
	_ "github.com/go-delve/nativedbg/pkg/instrumentation/tsan"
	_ "github.com/go-delve/nativedbg/pkg/symbolfile/dwarfsym"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// initFile is the path to initialization file.
	initFile string

	dwarfFunctions string
	dwarfTypes     string

	wrapLang string
	wrapName string

	completeMask  string
	completeLoads []string

	conf *config.Config
)

const ndbgCommandLongDesc = `ndbg is a debugger core for native programs.

It reads Windows minidumps and the DWARF debug information of ELF, Mach-O and
PE files, and prints the source generated to evaluate expressions.

Pass no subcommand to get a list of the available ones, or use 'ndbg repl'
to start an interactive session.`

// New returns an initialized command tree.
func New() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:   "ndbg",
		Short: "ndbg is a debugger core for native programs.",
		Long:  ndbgCommandLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := logflags.Setup(log, logOutput, logDest); err != nil {
				return err
			}
			conf = config.LoadConfig()
			if err := conf.Apply(settings.Global()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logflags.Close()
		},
		SilenceUsage: true,
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable debug logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'ndbg help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'ndbg help log').")

	// 'repl' subcommand.
	replCommand := &cobra.Command{
		Use:   "repl [core]",
		Short: "Starts an interactive debug session.",
		Long: `Starts an interactive debug session.

If a minidump is given it is opened before the first prompt.`,
		Args: cobra.MaximumNArgs(1),
		RunE: replCmd,
	}
	replCommand.Flags().StringVar(&initFile, "init", "", "Init file, executed by the terminal client.")
	rootCommand.AddCommand(replCommand)

	// 'minidump' subcommand.
	minidumpCommand := &cobra.Command{
		Use:   "minidump <path>",
		Short: "Prints the content of a Windows minidump.",
		Long: `Prints the stop reason, the threads and the modules of a Windows minidump.

The instruction at the address of the exception is disassembled when it was
saved in the minidump.`,
		Args: cobra.ExactArgs(1),
		RunE: minidumpCmd,
	}
	rootCommand.AddCommand(minidumpCommand)

	// 'dwarf' subcommand.
	dwarfCommand := &cobra.Command{
		Use:   "dwarf <path>",
		Short: "Prints the debug information of an object file.",
		Long: `Prints the compile units of an object file.

With --functions the functions whose name matches the regular expression are
printed instead, with --types the types with the given name.`,
		Args: cobra.ExactArgs(1),
		RunE: dwarfCmd,
	}
	dwarfCommand.Flags().StringVar(&dwarfFunctions, "functions", "", "Regular expression matching the functions to print.")
	dwarfCommand.Flags().StringVar(&dwarfTypes, "types", "", "Name of the types to print.")
	rootCommand.AddCommand(dwarfCommand)

	// 'wrap' subcommand.
	wrapCommand := &cobra.Command{
		Use:   "wrap <expression>",
		Short: "Prints the source compiled to evaluate an expression.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  wrapCmd,
	}
	wrapCommand.Flags().StringVarP(&wrapLang, "lang", "l", "c", "Language of the wrapper: c, c++, objc, objc-static or swift.")
	wrapCommand.Flags().StringVarP(&wrapName, "name", "n", "$__lldb_expr", "Name of the wrapper function.")
	rootCommand.AddCommand(wrapCommand)

	// 'settings' subcommand.
	settingsCommand := &cobra.Command{
		Use:   "settings",
		Short: "Shows the debugger settings.",
		Long: `Shows the debugger settings, after the configuration file is applied.

Run 'ndbg config' to find the configuration file.`,
	}
	settingsCommand.AddCommand(&cobra.Command{
		Use:   "show [path...]",
		Short: "Prints the value of settings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTerminal(cmd.OutOrStdout(), "settings show "+strings.Join(args, " "))
		},
	}, &cobra.Command{
		Use:   "set <path> <value>",
		Short: "Checks that a value can be assigned to a setting and prints the result.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTerminal(cmd.OutOrStdout(), "settings set "+strings.Join(args, " "), "settings show "+args[0])
		},
	}, &cobra.Command{
		Use:   "apropos <keyword>",
		Short: "Prints the settings whose name or description contain keyword.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTerminal(cmd.OutOrStdout(), "settings apropos "+args[0])
		},
	})
	rootCommand.AddCommand(settingsCommand)

	// 'complete' subcommand.
	completeCommand := &cobra.Command{
		Use:   "complete <line>",
		Short: "Prints the completions of a command line.",
		Long: `Prints the completions of a command line of the interactive session.

With --mask the last argument of the line is completed by the given
completers instead, a comma separated list of names out of disk-file,
disk-dir, source-file, symbol, module, settings-name, platform, arch and
variable-path. Symbol files given with --load are
searched by the source-file, symbol and module completers.`,
		Args: cobra.ExactArgs(1),
		RunE: completeCmd,
	}
	completeCommand.Flags().StringVar(&completeMask, "mask", "", "Completers to run on the last argument.")
	completeCommand.Flags().StringSliceVar(&completeLoads, "load", nil, "Symbol files to load before completing.")
	rootCommand.AddCommand(completeCommand)

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ndbg Debugger\n%s\n", version.NdbgVersion)
			if log {
				fmt.Fprintln(cmd.OutOrStdout(), version.BuildInfo())
			}
		},
	}
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:

	dwarf		Log DWARF parsing
	symbols		Log loading of symbol files
	minidump	Log reading of minidumps
	expr		Log generation of expression source
	completion	Log completions
	tsan		Log thread sanitizer reports
	settings	Log changes to the settings
	filecache	Log the file cache

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.
`,
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

// runTerminal executes cmdstrs in a new session writing to out.
func runTerminal(out io.Writer, cmdstrs ...string) error {
	sess := terminal.NewSession(settings.Global())
	defer sess.Close()
	term := terminal.New(sess, conf)
	term.SetOutput(out)
	for _, cmdstr := range cmdstrs {
		if err := term.Call(cmdstr); err != nil {
			return err
		}
	}
	return nil
}

func replCmd(cmd *cobra.Command, args []string) error {
	term := terminal.New(terminal.NewSession(settings.Global()), conf)
	term.InitFile = initFile
	if len(args) == 1 {
		if err := term.Call("core " + args[0]); err != nil {
			return err
		}
	}
	status, err := term.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	if status != 0 {
		return fmt.Errorf("exit status %d", status)
	}
	return nil
}

func minidumpCmd(cmd *cobra.Command, args []string) error {
	return runTerminal(cmd.OutOrStdout(), "core "+args[0], "threads", "modules")
}

func dwarfCmd(cmd *cobra.Command, args []string) error {
	obj, err := objfile.Open(args[0])
	if err != nil {
		return err
	}
	m := symbolfile.NewModule(obj)
	defer m.Close()
	if m.BackendName() == "" {
		return fmt.Errorf("no debug information found in %s", args[0])
	}
	out := cmd.OutOrStdout()

	switch {
	case dwarfFunctions != "":
		re, err := regexp.Compile(dwarfFunctions)
		if err != nil {
			return fmt.Errorf("invalid regular expression: %v", err)
		}
		for _, fn := range m.FindFunctionsRegexp(re, true) {
			fmt.Fprintf(out, "%#x-%#x %s", fn.Range.Low, fn.Range.High, fn.DisplayName())
			if fn.Decl.File != "" {
				fmt.Fprintf(out, " at %s", fn.Decl)
			}
			fmt.Fprintln(out)
		}
	case dwarfTypes != "":
		for _, typ := range m.FindTypes(dwarfTypes, "", 0) {
			fmt.Fprintf(out, "%s size %d", typ.Name, typ.ByteSize)
			if typ.Decl.File != "" {
				fmt.Fprintf(out, " at %s", typ.Decl)
			}
			fmt.Fprintln(out)
		}
	default:
		for _, cu := range m.CompileUnits() {
			fmt.Fprintf(out, "%s (%s) %s\n", cu.Name, cu.Language, cu.Producer)
		}
	}
	return nil
}

func completeCmd(cmd *cobra.Command, args []string) error {
	if completeMask == "" && len(completeLoads) == 0 {
		return runTerminal(cmd.OutOrStdout(), "complete "+args[0])
	}
	sess := terminal.NewSession(settings.Global())
	defer sess.Close()
	for _, path := range completeLoads {
		if _, err := sess.LoadObject(path); err != nil {
			return err
		}
	}
	if completeMask == "" {
		term := terminal.New(sess, conf)
		term.SetOutput(cmd.OutOrStdout())
		return term.Call("complete " + args[0])
	}
	mask, ok := completion.ParseMask(completeMask)
	if !ok {
		return fmt.Errorf("invalid completion mask %q", completeMask)
	}
	line := args[0]
	req := completion.NewRequest(line, len(line), 0, int(settings.Global().GetUInt(settings.CompletionMaxResults, 0)))
	completion.InvokeCommon(sess, mask, req, nil)
	for _, m := range req.Matches() {
		fmt.Fprintln(cmd.OutOrStdout(), m)
	}
	return nil
}

func wrapCmd(cmd *cobra.Command, args []string) error {
	kind, err := expr.ParseWrapKind(wrapLang)
	if err != nil {
		return err
	}
	body := strings.Join(args, " ")
	if strings.TrimSpace(body) == "" {
		return errors.New("empty expression")
	}
	b := &expr.Builder{Name: wrapName, Body: body, Wrap: kind}
	text, _, err := b.GetText(expr.Options{}, nil)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), text)
	return nil
}
