// Package completion implements tab completion of command lines: the
// request and response types exchanged with the front-end and the common
// completers (files, directories, symbols, modules, settings and so on).
package completion

import (
	"strings"

	"github.com/go-delve/nativedbg/pkg/args"
)

// Request is a completion request for a command line. The raw line and
// cursor position are fixed when the request is created, completers only
// change the cursor fields and the list of matches.
type Request struct {
	rawLine      string
	rawCursorPos int
	parsedLine   *args.Args

	// CursorIndex is the index of the argument containing the cursor.
	CursorIndex int
	// CursorCharPosition is the position of the cursor inside that
	// argument.
	CursorCharPosition int

	// MatchStartPoint and MaxReturnElements select a window of the
	// matches, so that expensive completions can be returned in batches.
	// A MaxReturnElements of zero or less means no limit.
	MatchStartPoint   int
	MaxReturnElements int

	// WordComplete is true if the single match is a complete word and the
	// front-end should append a space after it.
	WordComplete bool

	matches []string
}

// NewRequest returns a request for line with the cursor at cursor. Only the
// part of line before the cursor is parsed. If the cursor follows
// whitespace that ends an argument the request completes a new, empty,
// argument. Quoted or escaped whitespace stays part of the last argument.
func NewRequest(line string, cursor, matchStart, max int) *Request {
	if cursor < 0 || cursor > len(line) {
		cursor = len(line)
	}
	r := &Request{
		rawLine:           line,
		rawCursorPos:      cursor,
		MatchStartPoint:   matchStart,
		MaxReturnElements: max,
	}
	prefix := line[:cursor]
	r.parsedLine = args.New(prefix)
	if r.parsedLine.Len() == 0 || args.EndsInSeparator(prefix) {
		r.parsedLine.Append("", 0)
	}
	r.CursorIndex = r.parsedLine.Len() - 1
	r.CursorCharPosition = len(r.parsedLine.Entry(r.CursorIndex).Text)
	return r
}

// RawLine returns the command line being completed.
func (r *Request) RawLine() string { return r.rawLine }

// RawCursorPos returns the cursor position in RawLine.
func (r *Request) RawCursorPos() int { return r.rawCursorPos }

// ParsedLine returns the command line, up to the cursor, split into
// arguments.
func (r *Request) ParsedLine() *args.Args { return r.parsedLine }

// CursorArgument returns the text of the argument containing the cursor,
// up to the cursor.
func (r *Request) CursorArgument() string {
	if r.CursorIndex < 0 || r.CursorIndex >= r.parsedLine.Len() {
		return ""
	}
	s := r.parsedLine.Entry(r.CursorIndex).Text
	if r.CursorCharPosition >= 0 && r.CursorCharPosition < len(s) {
		s = s[:r.CursorCharPosition]
	}
	return s
}

// AddMatch appends a match.
func (r *Request) AddMatch(s string) {
	r.matches = append(r.matches, s)
}

// NumMatches returns the number of matches found so far, ignoring the
// window set by MatchStartPoint and MaxReturnElements.
func (r *Request) NumMatches() int {
	return len(r.matches)
}

// Matches returns the window of matches selected by MatchStartPoint and
// MaxReturnElements.
func (r *Request) Matches() []string {
	m := r.matches
	if r.MatchStartPoint > 0 {
		if r.MatchStartPoint >= len(m) {
			return nil
		}
		m = m[r.MatchStartPoint:]
	}
	if r.MaxReturnElements > 0 && len(m) > r.MaxReturnElements {
		m = m[:r.MaxReturnElements]
	}
	return m
}

// Match is a single result of a code completion.
type Match struct {
	// Display is the text shown to the user.
	Display string
	// Insertable is the text inserted at the cursor.
	Insertable string
}

// Response is the result of a code completion.
type Response struct {
	Error   string
	Prefix  string
	Matches []Match
}

// ErrorResponse returns a response with no matches carrying msg.
func ErrorResponse(msg string) Response {
	return Response{Error: msg}
}

// FilterPrefix drops every match whose insertable text does not start
// with the response prefix and strips the prefix from the others, so that
// the insertable text can be pasted right after the cursor.
func (r *Response) FilterPrefix() {
	if r.Prefix == "" {
		return
	}
	matches := r.Matches[:0]
	for _, m := range r.Matches {
		if !strings.HasPrefix(m.Insertable, r.Prefix) {
			continue
		}
		m.Insertable = m.Insertable[len(r.Prefix):]
		matches = append(matches, m)
	}
	r.Matches = matches
}

// WordComplete returns true if the response contains exactly one match.
func (r *Response) WordComplete() bool {
	return len(r.Matches) == 1
}
