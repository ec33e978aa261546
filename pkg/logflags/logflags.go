package logflags

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var anyFlag = false
var dwarf = false
var symbols = false
var minidump = false
var expr = false
var completion = false
var tsan = false
var settings = false
var fileCache = false

var logOut io.WriteCloser

func makeLogger(level logrus.Level, fields Fields) Logger {
	if lf := loggerFactory; lf != nil {
		return lf(level, fields, logOut)
	}
	logger := logrus.New().WithFields(logrus.Fields(fields))
	logger.Logger.Formatter = textFormatterInstance
	if logOut != nil {
		logger.Logger.Out = logOut
	}
	logger.Logger.Level = level
	return &logrusLogger{logger}
}

func makeFlaggableLogger(flag bool, fields Fields) Logger {
	if flag {
		return makeLogger(logrus.DebugLevel, fields)
	}
	return makeLogger(logrus.ErrorLevel, fields)
}

// Any returns true if any logging is enabled.
func Any() bool {
	return anyFlag
}

// DWARF returns true if the DWARF reader should log unit and DIE parsing
// and type construction.
func DWARF() bool {
	return dwarf
}

// DWARFLogger returns a logger for the DWARF reader.
func DWARFLogger() Logger {
	return makeFlaggableLogger(dwarf, Fields{"layer": "dwarf"})
}

// Symbols returns true if symbol file selection and lookups should be
// logged. It also enables the symbol file mutex assertions.
func Symbols() bool {
	return symbols
}

// SymbolsLogger returns a logger for the symbol file layer.
func SymbolsLogger() Logger {
	return makeFlaggableLogger(symbols, Fields{"layer": "symbols"})
}

// Minidump returns true if the minidump loader should be logged.
func Minidump() bool {
	return minidump
}

// MinidumpLogger returns a logger for the minidump loader.
func MinidumpLogger() Logger {
	return makeFlaggableLogger(minidump, Fields{"layer": "core", "kind": "minidump"})
}

// Expr returns true if wrapped expression source should be logged.
func Expr() bool {
	return expr
}

// ExprLogger returns a logger for the expression source builder.
func ExprLogger() Logger {
	return makeFlaggableLogger(expr, Fields{"layer": "expr"})
}

// Completion returns true if completers and the code completion driver
// should log.
func Completion() bool {
	return completion
}

// CompletionLogger returns a logger for completion.
func CompletionLogger() Logger {
	return makeFlaggableLogger(completion, Fields{"layer": "completion"})
}

// TSan returns true if the thread sanitizer runtime plugin should log.
func TSan() bool {
	return tsan
}

// TSanLogger returns a logger for the thread sanitizer runtime plugin.
func TSanLogger() Logger {
	return makeFlaggableLogger(tsan, Fields{"layer": "instrumentation", "kind": "tsan"})
}

// Settings returns true if property tree writes should be logged.
func Settings() bool {
	return settings
}

// SettingsLogger returns a logger for the property tree.
func SettingsLogger() Logger {
	return makeFlaggableLogger(settings, Fields{"layer": "settings"})
}

// FileCache returns true if the file descriptor cache should log.
func FileCache() bool {
	return fileCache
}

// FileCacheLogger returns a logger for the file descriptor cache.
func FileCacheLogger() Logger {
	return makeFlaggableLogger(fileCache, Fields{"layer": "host", "kind": "filecache"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets debugger flags based on the contents of logstr.
// If logDest is not empty logs will be redirected to the file descriptor or
// file path specified by logDest.
func Setup(logFlag bool, logstr, logDest string) error {
	if logDest != "" {
		n, err := strconv.Atoi(logDest)
		if err == nil {
			logOut = os.NewFile(uintptr(n), "ndbg-logs")
		} else {
			fh, err := os.Create(logDest)
			if err != nil {
				return fmt.Errorf("could not create log file: %v", err)
			}
			logOut = fh
		}
	}
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(ioutil.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "symbols"
	}
	anyFlag = true
	v := strings.Split(logstr, ",")
	for _, logcmd := range v {
		// If adding another value, do make sure to
		// update "Help about logging flags" in commands.go.
		switch logcmd {
		case "dwarf":
			dwarf = true
		case "symbols":
			symbols = true
		case "minidump":
			minidump = true
		case "expr":
			expr = true
		case "completion":
			completion = true
		case "tsan":
			tsan = true
		case "settings":
			settings = true
		case "filecache":
			fileCache = true
		default:
			fmt.Fprintf(os.Stderr, "Warning: unknown log output value %q, run 'ndbg help log' for usage.\n", logcmd)
		}
	}
	return nil
}

// Close closes the logger output.
func Close() {
	if logOut != nil {
		logOut.Close()
	}
}

// textFormatter is a simplified version of logrus.TextFormatter that
// doesn't make logs unreadable when they are output to a text file or to a
// terminal that doesn't support colors.
type textFormatter struct {
}

var textFormatterInstance = &textFormatter{}

func (f *textFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	const timeFormat = "2006-01-02T15:04:05Z07:00"
	b.WriteString(entry.Time.Format(timeFormat))
	b.WriteByte(' ')
	b.WriteString(entry.Level.String())
	b.WriteByte(' ')
	for k, v := range entry.Data {
		b.WriteString(k)
		b.WriteByte('=')
		fmt.Fprint(b, v)
		b.WriteByte(' ')
	}
	b.WriteString(entry.Message)
	b.WriteByte('\n')
	return b.Bytes(), nil
}
