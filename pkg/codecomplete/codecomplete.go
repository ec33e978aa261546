// Package codecomplete completes source code entered at the expression
// prompt. The code is handed to a language frontend twice: once to prime
// the frontend and once at the start of the last token, whose text is
// then used to filter the completions.
package codecomplete

import (
	"fmt"
	"sync"

	"github.com/go-delve/nativedbg/pkg/completion"
	"github.com/go-delve/nativedbg/pkg/logflags"
	"github.com/go-delve/nativedbg/pkg/settings"
)

// TokenKind is the kind of a token produced by Frontend.Tokenize.
type TokenKind uint8

const (
	TokenOther TokenKind = iota
	TokenIdentifier
	TokenKeyword
	// TokenCodeComplete marks the code completion point.
	TokenCodeComplete
)

// Token is a lexical token of the entered code, Offset is the byte offset
// of its first character.
type Token struct {
	Kind   TokenKind
	Text   string
	Offset int
}

// Decl is a top level value declaration. Two declarations with the same
// Name and Signature are redefinitions of each other.
type Decl struct {
	Name      string
	Signature string
}

// Frontend is the language frontend that parses and type checks the
// entered code.
type Frontend interface {
	// NewCompletionsModule creates the module used for completions, with
	// a REPL file holding the entered code and a library file holding the
	// persistent declarations.
	NewCompletionsModule() error
	ImportModule(name string) error
	// SetLibraryDecls replaces the declarations of the library file.
	SetLibraryDecls(decls []Decl)
	// ParseREPLInput parses code into the REPL file and returns the value
	// declarations it introduces.
	ParseREPLInput(code string) ([]Decl, error)
	// Complete type checks code and returns the completions at offset.
	Complete(code string, offset int) ([]Result, error)
	Tokenize(code string) []Token
}

// PersistentState is the state accumulated by previous expressions.
type PersistentState interface {
	// HandLoadedModules returns the modules imported by the user.
	HandLoadedModules() []string
	PersistentDecls() []Decl
}

// Modules never imported into the completions module: the implicit
// support module of the standard library and the module of the tests of
// the frontend.
var implicitModules = map[string]bool{
	"SwiftOnoneSupport": true,
	"M":                 true,
}

// Driver completes code against a frontend. A Driver is safe for
// concurrent use, requests are serialized.
type Driver struct {
	mu       sync.Mutex
	frontend Frontend
	state    PersistentState
	ready    bool
	imported map[string]bool
}

// NewDriver returns a driver for frontend. State may be nil.
func NewDriver(frontend Frontend, state PersistentState) *Driver {
	return &Driver{frontend: frontend, state: state, imported: map[string]bool{}}
}

// Complete returns the completions of code at its end. The response
// prefix is the last token of code when it is an identifier or a keyword,
// it is stripped from the insertable text of every match.
func (d *Driver) Complete(code string) completion.Response {
	d.mu.Lock()
	defer d.mu.Unlock()
	log := logflags.CompletionLogger()

	if d.frontend == nil {
		return completion.ErrorResponse("no language frontend")
	}
	if !d.ready {
		if err := d.frontend.NewCompletionsModule(); err != nil {
			return completion.ErrorResponse(fmt.Sprintf("could not create completions module: %v", err))
		}
		d.ready = true
	}

	var persistent []Decl
	if d.state != nil {
		d.importModules(d.state.HandLoadedModules())
		persistent = d.state.PersistentDecls()
	}
	d.frontend.SetLibraryDecls(persistent)
	newDecls, err := d.frontend.ParseREPLInput(code)
	if err != nil {
		log.Debugf("parsing %q: %v", code, err)
	}
	if len(newDecls) > 0 {
		d.frontend.SetLibraryDecls(shadow(persistent, newDecls))
	}

	var resp completion.Response
	results, err := d.frontend.Complete(code, len(code))
	if err != nil {
		return completion.ErrorResponse(err.Error())
	}
	appendResults(&resp, results)

	tokens := d.frontend.Tokenize(code)
	if n := len(tokens); n > 0 && tokens[n-1].Kind == TokenCodeComplete {
		tokens = tokens[:n-1]
	}
	if len(tokens) > 0 {
		last := tokens[len(tokens)-1]
		if last.Kind == TokenIdentifier || last.Kind == TokenKeyword {
			resp.Prefix = last.Text
			results, err := d.frontend.Complete(code[:last.Offset], last.Offset)
			if err != nil {
				return completion.ErrorResponse(err.Error())
			}
			appendResults(&resp, results)
			resp.FilterPrefix()
		}
	}

	if limit := settings.Global().GetUInt(settings.CompletionMaxResults, 0); limit > 0 && uint64(len(resp.Matches)) > limit {
		resp.Matches = resp.Matches[:limit]
	}
	log.Debugf("%d completions for %q, prefix %q", len(resp.Matches), code, resp.Prefix)
	return resp
}

func (d *Driver) importModules(mods []string) {
	for _, name := range mods {
		if d.imported[name] || implicitModules[name] {
			continue
		}
		if err := d.frontend.ImportModule(name); err != nil {
			logflags.CompletionLogger().Errorf("could not import %s: %v", name, err)
			continue
		}
		d.imported[name] = true
	}
}

// shadow returns the declarations of persistent that are not redefined by
// one of decls.
func shadow(persistent, decls []Decl) []Decl {
	redefined := make(map[Decl]bool, len(decls))
	for _, d := range decls {
		redefined[d] = true
	}
	r := make([]Decl, 0, len(persistent))
	for _, d := range persistent {
		if !redefined[d] {
			r = append(r, d)
		}
	}
	return r
}

func appendResults(resp *completion.Response, results []Result) {
	for _, r := range results {
		resp.Matches = append(resp.Matches, completion.Match{
			Display:    DisplayString(r),
			Insertable: InsertableString(r),
		})
	}
}
