// Package settings implements the debugger's property tree: a hierarchy of
// typed values addressed by dotted paths, such as
// "target.experimental.inject-local-vars" or "target.run-args[0]".
package settings

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-delve/nativedbg/pkg/logflags"
)

// ExperimentalSettingsName is the name of the sub-collection holding
// experimental settings. Paths through it that do not resolve are not
// errors, so that configuration files survive the removal or promotion of
// an experimental setting.
const ExperimentalSettingsName = "experimental"

// IsSettingExperimental returns true if the first component of path is the
// experimental sub-collection.
func IsSettingExperimental(path string) bool {
	if path == "" {
		return false
	}
	first := path
	if i := strings.IndexAny(path, ".[{"); i >= 0 {
		first = path[:i]
	}
	return first == ExperimentalSettingsName
}

func hasExperimentalComponent(path string) bool {
	for _, c := range strings.Split(path, ".") {
		if c == ExperimentalSettingsName {
			return true
		}
	}
	return false
}

// ErrorKind classifies errors returned by the property tree.
type ErrorKind uint8

const (
	// ErrNotFound is returned when a path does not name a property.
	ErrNotFound ErrorKind = iota
	// ErrNoProperties is returned when a path walks into a value that is
	// not a collection.
	ErrNoProperties
	// ErrArgument is returned for malformed paths or values.
	ErrArgument
)

// Error is an error returned by the property tree.
type Error struct {
	Kind ErrorKind
	Path string
	Msg  string
}

func (err *Error) Error() string {
	return err.Msg
}

func notFound(path string) error {
	return &Error{Kind: ErrNotFound, Path: path, Msg: fmt.Sprintf("invalid value path '%s'", path)}
}

// DumpMask selects what DumpValue and DumpPropertyValue print.
type DumpMask uint8

const (
	DumpValue DumpMask = 1 << iota
	DumpType
	DumpDescription
	DumpGlobalPath

	DumpDefault = DumpValue | DumpType
)

// Property is a named value in a Properties collection.
type Property struct {
	Name        string
	Description string
	// Global is true for properties that have a single value for the whole
	// debugger, rather than one per target.
	Global bool
	Value  *Value

	owner *Properties
}

// Path returns the dotted path of p from the root of its tree.
func (p *Property) Path() string {
	if p.owner == nil {
		return p.Name
	}
	if pp := p.owner.path(); pp != "" {
		return pp + "." + p.Name
	}
	return p.Name
}

// Properties is an ordered collection of properties. A property whose
// value has kind KindProperties is a nested collection.
type Properties struct {
	name   string
	parent *Properties
	props  []*Property
	index  map[string]int

	forward map[string]*Properties
}

// NewProperties returns an empty collection.
func NewProperties(name string) *Properties {
	return &Properties{name: name, index: map[string]int{}}
}

func (p *Properties) path() string {
	if p.parent == nil {
		return ""
	}
	if pp := p.parent.path(); pp != "" {
		return pp + "." + p.name
	}
	return p.name
}

// Name returns the name of the collection.
func (p *Properties) Name() string {
	return p.name
}

// AppendProperty adds a property to the collection. If a property with the
// same name exists it is replaced.
func (p *Properties) AppendProperty(name, description string, global bool, v *Value) *Property {
	prop := &Property{Name: name, Description: description, Global: global, Value: v, owner: p}
	if v.kind == KindProperties {
		v.props.parent = p
		v.props.name = name
	}
	if i, ok := p.index[name]; ok {
		p.props[i] = prop
	} else {
		p.index[name] = len(p.props)
		p.props = append(p.props, prop)
	}
	if name != ExperimentalSettingsName {
		if exp := p.experimental(); exp != nil {
			exp.Forward(name, p)
		}
	}
	return prop
}

// AppendCollection adds a nested collection named name and returns it.
func (p *Properties) AppendCollection(name, description string, global bool) *Properties {
	sub := NewProperties(name)
	p.AppendProperty(name, description, global, newPropertiesValue(sub))
	return sub
}

// AppendExperimental adds the experimental sub-collection to p and returns
// it.
func (p *Properties) AppendExperimental() *Properties {
	exp := p.AppendCollection(ExperimentalSettingsName, "Experimental settings - setting these won't produce errors if the setting is not present.", false)
	// options promoted out of experimental stay reachable under it
	for _, prop := range p.props {
		if prop.Name != ExperimentalSettingsName {
			exp.Forward(prop.Name, p)
		}
	}
	return exp
}

func (p *Properties) experimental() *Properties {
	i, ok := p.index[ExperimentalSettingsName]
	if !ok || p.props[i].Value.kind != KindProperties {
		return nil
	}
	return p.props[i].Value.props
}

// Property returns the property called name, following forwarding edges,
// or nil.
func (p *Properties) Property(name string) *Property {
	seen := map[*Properties]bool{}
	for cur := p; cur != nil && !seen[cur]; {
		seen[cur] = true
		if i, ok := cur.index[name]; ok {
			return cur.props[i]
		}
		cur = cur.forward[name]
	}
	return nil
}

// Properties returns all properties of p in declaration order.
func (p *Properties) Properties() []*Property {
	return p.props
}

// Names returns the names of the properties of p in declaration order.
func (p *Properties) Names() []string {
	r := make([]string, len(p.props))
	for i := range p.props {
		r[i] = p.props[i].Name
	}
	return r
}

// Forward makes lookups of name that miss in p continue in other. Each name
// has at most one forwarding edge and edges forming a cycle are rejected.
func (p *Properties) Forward(name string, other *Properties) error {
	if other == nil {
		delete(p.forward, name)
		return nil
	}
	for cur := other; cur != nil; cur = cur.forward[name] {
		if cur == p {
			return &Error{Kind: ErrArgument, Path: name, Msg: fmt.Sprintf("forwarding '%s' to %q would create a cycle", name, other.name)}
		}
	}
	if p.forward == nil {
		p.forward = map[string]*Properties{}
	}
	p.forward[name] = other
	return nil
}

// splitPath splits path at the first '.', '[' or '{'. For a '.' separator
// the dot is dropped from rest.
func splitPath(path string) (name string, sep byte, rest string) {
	i := strings.IndexAny(path, ".[{")
	if i < 0 {
		return path, 0, ""
	}
	sep = path[i]
	if sep == '.' {
		return path[:i], sep, path[i+1:]
	}
	return path[:i], sep, path[i:]
}

// GetSubValue resolves path to a value. A path that misses below the
// experimental sub-collection returns a nil value and a nil error.
func (p *Properties) GetSubValue(path string) (*Value, error) {
	v, err := p.getSubValue(path)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (p *Properties) getSubValue(path string) (*Value, error) {
	if len(p.props) == 0 && len(p.forward) == 0 {
		return nil, &Error{Kind: ErrNoProperties, Path: path, Msg: "no properties"}
	}
	name, sep, rest := splitPath(path)
	prop := p.Property(name)
	if prop == nil {
		return nil, notFound(path)
	}
	switch sep {
	case 0:
		return prop.Value, nil

	case '.':
		if prop.Value.kind != KindProperties {
			return nil, &Error{Kind: ErrNoProperties, Path: path, Msg: "no properties"}
		}
		v, err := prop.Value.props.getSubValue(rest)
		if v == nil && IsSettingExperimental(rest) {
			// Collections without an experimental sub-collection still
			// resolve the old path of a promoted setting.
			if _, sep2, rest2 := splitPath(rest); sep2 == '.' {
				v, err = prop.Value.props.getSubValue(rest2)
			}
			if v == nil {
				err = nil
			}
		}
		return v, err

	case '[':
		v, err := prop.Value.subValue(rest)
		if err != nil {
			return nil, &Error{Kind: ErrArgument, Path: path, Msg: err.Error()}
		}
		return v, nil
	}

	return nil, &Error{Kind: ErrArgument, Path: path, Msg: fmt.Sprintf("unsupported sub-value syntax in '%s'", path)}
}

// SetSubValue applies op with argument value to the value at path.
// Missing paths below the experimental sub-collection are ignored.
func (p *Properties) SetSubValue(op VarSetOperation, path, value string) error {
	v, err := p.getSubValue(path)
	if err != nil {
		return err
	}
	if v == nil {
		if hasExperimentalComponent(path) {
			logflags.SettingsLogger().Debugf("ignoring missing experimental setting %s", path)
			return nil
		}
		return notFound(path)
	}
	if err := v.SetValueFromString(op, value); err != nil {
		return err
	}
	logflags.SettingsLogger().Debugf("%s %s %q", op, path, value)
	return nil
}

// GetSubProperty returns the collection at the dotted path, or nil if path
// does not name a collection.
func (p *Properties) GetSubProperty(path string) *Properties {
	cur := p
	for path != "" {
		name, sep, rest := splitPath(path)
		if sep != 0 && sep != '.' {
			return nil
		}
		prop := cur.Property(name)
		if prop == nil || prop.Value.kind != KindProperties {
			return nil
		}
		cur = prop.Value.props
		path = rest
	}
	return cur
}

// findProperty returns the property at the dotted path.
func (p *Properties) findProperty(path string) *Property {
	cur := p
	for {
		name, sep, rest := splitPath(path)
		if sep != 0 && sep != '.' {
			return nil
		}
		prop := cur.Property(name)
		if prop == nil || sep == 0 {
			return prop
		}
		if prop.Value.kind != KindProperties {
			return nil
		}
		cur = prop.Value.props
		path = rest
	}
}

// DumpValue writes every property of p to w.
func (p *Properties) DumpValue(w io.Writer, mask DumpMask) error {
	if len(p.props) == 0 {
		return &Error{Kind: ErrNoProperties, Msg: "empty property list"}
	}
	for _, prop := range p.props {
		dumpProperty(w, prop, mask)
	}
	return nil
}

// DumpPropertyValue writes the property at path to w.
func (p *Properties) DumpPropertyValue(w io.Writer, path string, mask DumpMask) error {
	prop := p.findProperty(path)
	if prop == nil {
		if _, err := p.getSubValue(path); err != nil {
			return err
		}
		return notFound(path)
	}
	dumpProperty(w, prop, mask)
	return nil
}

func dumpProperty(w io.Writer, prop *Property, mask DumpMask) {
	if prop.Value.kind == KindProperties {
		for _, sub := range prop.Value.props.props {
			dumpProperty(w, sub, mask)
		}
		return
	}
	name := prop.Name
	if mask&DumpGlobalPath != 0 {
		name = prop.Path()
	}
	fmt.Fprint(w, name)
	if mask&DumpType != 0 {
		fmt.Fprintf(w, " (%s)", prop.Value.TypeName())
	}
	if mask&DumpValue != 0 {
		fmt.Fprint(w, " = ")
		prop.Value.dumpValue(w, "")
	}
	if mask&DumpDescription != 0 && prop.Description != "" {
		fmt.Fprintf(w, " -- %s", prop.Description)
	}
	fmt.Fprintln(w)
}

// DumpAllDescriptions writes the name and description of every property
// in the tree to w.
func (p *Properties) DumpAllDescriptions(w io.Writer) {
	fmt.Fprint(w, "Top level variables:\n\n")
	p.dumpDescriptions(w, 2)
}

func (p *Properties) dumpDescriptions(w io.Writer, indent int) {
	maxlen := 0
	for _, prop := range p.props {
		if len(prop.Name) > maxlen {
			maxlen = len(prop.Name)
		}
	}
	pad := strings.Repeat(" ", indent)
	for _, prop := range p.props {
		fmt.Fprintf(w, "%s%-*s -- %s\n", pad, maxlen, prop.Name, prop.Description)
		if prop.Value.kind == KindProperties {
			prop.Value.props.dumpDescriptions(w, indent+2)
		}
	}
}

// Apropos returns every property whose name or description contains
// keyword, ignoring case.
func (p *Properties) Apropos(keyword string) []*Property {
	var r []*Property
	p.apropos(strings.ToLower(keyword), &r)
	return r
}

func (p *Properties) apropos(keyword string, r *[]*Property) {
	for _, prop := range p.props {
		if prop.Value.kind == KindProperties {
			prop.Value.props.apropos(keyword, r)
			continue
		}
		if strings.Contains(strings.ToLower(prop.Name), keyword) || strings.Contains(strings.ToLower(prop.Description), keyword) {
			*r = append(*r, prop)
		}
	}
}

// Flatten returns the dotted paths of every value in the tree, in
// declaration order.
func (p *Properties) Flatten() []string {
	var r []string
	p.flatten(&r)
	return r
}

func (p *Properties) flatten(r *[]string) {
	for _, prop := range p.props {
		if prop.Value.kind == KindProperties {
			prop.Value.props.flatten(r)
			continue
		}
		*r = append(*r, prop.Path())
	}
}
