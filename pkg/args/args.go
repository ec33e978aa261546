// Package args splits command lines into arguments while remembering the
// quote character that introduced each argument, so that the command line
// can be written back out with the user's own quoting.
package args

import (
	"strings"
)

const (
	// specialChars are the characters that interrupt a run of plain
	// argument text.
	specialChars = " \t\r\"'`\\"

	// escapableChars may follow a backslash outside of quotes. A backslash
	// in front of any other character is kept.
	escapableChars = " \t\\'\"`"

	// doubleQuoteEscapables may follow a backslash inside double quotes.
	doubleQuoteEscapables = "\"\\"

	// separators end an argument and are skipped between arguments.
	separators = " \t\r"
)

// Entry is a single argument.
type Entry struct {
	Text string
	// Quote is the first quote character that opened a quoted region of
	// this argument: 0, '\'', '"' or '`'.
	Quote byte
}

// IsQuoted returns true if some part of the argument was quoted.
func (e Entry) IsQuoted() bool {
	return e.Quote != 0
}

// Args is a parsed command line.
type Args struct {
	entries []Entry
}

// New parses command and returns the resulting argument list.
func New(command string) *Args {
	a := &Args{}
	a.SetCommandString(command)
	return a
}

// FromStrings builds an argument list from already split arguments, none
// of which is marked as quoted.
func FromStrings(v []string) *Args {
	a := &Args{}
	for _, s := range v {
		a.Append(s, 0)
	}
	return a
}

// SetCommandString replaces the contents of a with the arguments parsed from
// command.
func (a *Args) SetCommandString(command string) {
	a.entries = a.entries[:0]
	command = strings.TrimLeft(command, separators)
	for command != "" {
		var e Entry
		e.Text, e.Quote, command = parseSingleArgument(command)
		a.entries = append(a.entries, e)
	}
}

// parseSingleArgument consumes one argument from the start of command,
// which must not start with whitespace. It returns the argument, the first
// quote character used in it and the remainder of command with leading
// whitespace removed.
func parseSingleArgument(command string) (arg string, quote byte, rest string) {
	var b strings.Builder

argLoop:
	for command != "" {
		i := strings.IndexAny(command, specialChars)
		if i < 0 {
			b.WriteString(command)
			command = ""
			break
		}
		b.WriteString(command[:i])
		command = command[i:]

		switch ch := command[0]; ch {
		case '\\':
			command = command[1:]
			if command == "" {
				b.WriteByte('\\')
				break argLoop
			}
			if strings.IndexByte(escapableChars, command[0]) < 0 {
				b.WriteByte('\\')
			}
			b.WriteByte(command[0])
			command = command[1:]

		case ' ', '\t', '\r':
			break argLoop

		case '"', '\'', '`':
			if quote == 0 {
				quote = ch
			}
			command = command[1:]
			if ch == '"' {
				var s string
				s, command = parseDoubleQuotes(command)
				b.WriteString(s)
			} else {
				j := strings.IndexByte(command, ch)
				if j < 0 {
					j = len(command)
				}
				b.WriteString(command[:j])
				command = command[j:]
			}
			// skip the closing quote, if there is one
			if command != "" {
				command = command[1:]
			}
		}
	}

	return b.String(), quote, strings.TrimLeft(command, separators)
}

// EndsInSeparator returns true if command ends with whitespace that
// separates arguments. Whitespace inside an unterminated quote or escaped
// with a backslash belongs to the last argument.
func EndsInSeparator(command string) bool {
	var quote byte
	sep := false
	for i := 0; i < len(command); i++ {
		ch := command[i]
		sep = false
		switch {
		case quote == '"':
			if ch == '\\' && i+1 < len(command) && strings.IndexByte(doubleQuoteEscapables, command[i+1]) >= 0 {
				i++
			} else if ch == '"' {
				quote = 0
			}
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\\':
			if i+1 < len(command) && strings.IndexByte(escapableChars, command[i+1]) >= 0 {
				i++
			}
		case ch == '"' || ch == '\'' || ch == '`':
			quote = ch
		case strings.IndexByte(separators, ch) >= 0:
			sep = true
		}
	}
	return sep
}

// parseDoubleQuotes reads the contents of a double quoted string up to (but
// not including) the closing quote. Only \" and \\ are escapes.
func parseDoubleQuotes(quoted string) (string, string) {
	var b strings.Builder
	for quoted != "" {
		i := strings.IndexAny(quoted, doubleQuoteEscapables)
		if i < 0 {
			b.WriteString(quoted)
			return b.String(), ""
		}
		b.WriteString(quoted[:i])
		quoted = quoted[i:]
		if quoted[0] == '"' {
			break
		}
		quoted = quoted[1:]
		if quoted == "" {
			b.WriteByte('\\')
			break
		}
		if strings.IndexByte(doubleQuoteEscapables, quoted[0]) < 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(quoted[0])
		quoted = quoted[1:]
	}
	return b.String(), quoted
}

// Len returns the number of arguments.
func (a *Args) Len() int {
	return len(a.entries)
}

// Empty returns true if there are no arguments.
func (a *Args) Empty() bool {
	return len(a.entries) == 0
}

// Entry returns the i-th argument.
func (a *Args) Entry(i int) Entry {
	return a.entries[i]
}

// Entries returns the arguments. The returned slice must not be modified.
func (a *Args) Entries() []Entry {
	return a.entries
}

// Strings returns the text of every argument.
func (a *Args) Strings() []string {
	r := make([]string, len(a.entries))
	for i := range a.entries {
		r[i] = a.entries[i].Text
	}
	return r
}

// NullTerminatedArgv returns the arguments as a vector of string pointers
// terminated by a nil sentinel, as expected by callers that walk the vector
// until the sentinel.
func (a *Args) NullTerminatedArgv() []*string {
	r := make([]*string, 0, len(a.entries)+1)
	for i := range a.entries {
		r = append(r, &a.entries[i].Text)
	}
	return append(r, nil)
}

// Append adds an argument at the end.
func (a *Args) Append(text string, quote byte) {
	a.entries = append(a.entries, Entry{text, quote})
}

// Insert inserts an argument before index i. If i is past the end the
// argument is appended.
func (a *Args) Insert(i int, text string, quote byte) {
	if i >= len(a.entries) {
		a.Append(text, quote)
		return
	}
	a.entries = append(a.entries, Entry{})
	copy(a.entries[i+1:], a.entries[i:])
	a.entries[i] = Entry{text, quote}
}

// Replace replaces the i-th argument. Out of range indexes are ignored.
func (a *Args) Replace(i int, text string, quote byte) {
	if i < 0 || i >= len(a.entries) {
		return
	}
	a.entries[i] = Entry{text, quote}
}

// Delete removes the i-th argument. Out of range indexes are ignored.
func (a *Args) Delete(i int) {
	if i < 0 || i >= len(a.entries) {
		return
	}
	a.entries = append(a.entries[:i], a.entries[i+1:]...)
}

// Shift removes the first argument.
func (a *Args) Shift() {
	a.Delete(0)
}

// Unshift inserts an argument at the front.
func (a *Args) Unshift(text string, quote byte) {
	a.Insert(0, text, quote)
}

// Clear removes all arguments.
func (a *Args) Clear() {
	a.entries = a.entries[:0]
}

// QuotedString returns the i-th argument written with its original quote
// character.
func (a *Args) QuotedString(i int) string {
	e := a.entries[i]
	return Escape(e.Text, e.Quote)
}

// CommandString writes all arguments back out, separated by a single
// space, each one using the quote character it was parsed with.
func (a *Args) CommandString() string {
	var b strings.Builder
	for i := range a.entries {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(a.QuotedString(i))
	}
	return b.String()
}

// Escape returns text quoted with quote in a form that parses back to
// text.
func Escape(text string, quote byte) string {
	var b strings.Builder
	switch quote {
	case 0:
		if text == "" || strings.IndexByte(text, '\r') >= 0 {
			return Escape(text, '"')
		}
		for i := 0; i < len(text); i++ {
			if strings.IndexByte(escapableChars, text[i]) >= 0 {
				b.WriteByte('\\')
			}
			b.WriteByte(text[i])
		}
	case '"':
		b.WriteByte('"')
		for i := 0; i < len(text); i++ {
			if strings.IndexByte(doubleQuoteEscapables, text[i]) >= 0 {
				b.WriteByte('\\')
			}
			b.WriteByte(text[i])
		}
		b.WriteByte('"')
	default:
		// Single quotes and backticks have no escapes: close the quoted
		// region, escape the quote character and reopen it.
		b.WriteByte(quote)
		for i := 0; i < len(text); i++ {
			if text[i] == quote {
				b.WriteByte(quote)
				b.WriteByte('\\')
				b.WriteByte(quote)
			}
			b.WriteByte(text[i])
		}
		b.WriteByte(quote)
	}
	return b.String()
}

// StripSpaces removes leading and trailing spaces and tabs from s.
func StripSpaces(s string) string {
	return strings.Trim(s, " \t")
}

// IsPositionalArgument returns true if s has the form %<number>, which
// commands use to reference their positional arguments.
func IsPositionalArgument(s string) bool {
	if len(s) < 2 || s[0] != '%' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
