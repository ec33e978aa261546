package settings

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-delve/nativedbg/pkg/args"
)

// Kind is the type of a settings value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindUInt
	KindEnum
	KindString
	KindFileSpec
	KindArray
	KindDictionary
	KindFormat
	KindProperties
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "boolean"
	case KindInt:
		return "int"
	case KindUInt:
		return "unsigned"
	case KindEnum:
		return "enum"
	case KindString:
		return "string"
	case KindFileSpec:
		return "file"
	case KindArray:
		return "array"
	case KindDictionary:
		return "dictionary"
	case KindFormat:
		return "format"
	case KindProperties:
		return "properties"
	}
	return "invalid"
}

// VarSetOperation is the kind of modification requested by a settings
// write.
type VarSetOperation uint8

const (
	OpAssign VarSetOperation = iota
	OpAppend
	OpClear
	OpInsertBefore
	OpInsertAfter
	OpRemove
	OpReplace
)

var opNames = []string{"assign", "append", "clear", "insert-before", "insert-after", "remove", "replace"}

func (op VarSetOperation) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "invalid"
}

// ParseOperation converts the name of an operation to a VarSetOperation.
func ParseOperation(s string) (VarSetOperation, error) {
	for i := range opNames {
		if opNames[i] == s {
			return VarSetOperation(i), nil
		}
	}
	return 0, fmt.Errorf("unknown settings operation %q", s)
}

// Formats lists the names accepted by a KindFormat value.
var Formats = []string{
	"default", "boolean", "binary", "bytes", "bytes with ASCII", "character",
	"printable character", "complex float", "c-string", "decimal", "enumeration",
	"hex", "uppercase hex", "float", "octal", "OSType", "unicode16", "unicode32",
	"unsigned decimal", "pointer", "char[]", "int8_t[]", "uint8_t[]",
	"address", "hex float", "instruction", "void",
}

// Value is a settings value. Exactly one payload, selected by Kind, is
// meaningful.
type Value struct {
	kind Kind

	b, bDefault bool
	i, iDefault int64
	u, uDefault uint64

	// s holds the payload of KindString, KindFileSpec, KindEnum and
	// KindFormat.
	s, sDefault string
	choices     []string

	elemKind Kind
	arr      []*Value
	dict     map[string]*Value

	props *Properties

	wasSet   bool
	hookPost func(*Value) error
}

// NewBool returns a boolean value.
func NewBool(def bool) *Value {
	return &Value{kind: KindBool, b: def, bDefault: def}
}

// NewInt returns a signed integer value.
func NewInt(def int64) *Value {
	return &Value{kind: KindInt, i: def, iDefault: def}
}

// NewUInt returns an unsigned integer value.
func NewUInt(def uint64) *Value {
	return &Value{kind: KindUInt, u: def, uDefault: def}
}

// NewEnum returns an enumeration value accepting one of choices.
func NewEnum(choices []string, def string) *Value {
	return &Value{kind: KindEnum, choices: choices, s: def, sDefault: def}
}

// NewString returns a string value.
func NewString(def string) *Value {
	return &Value{kind: KindString, s: def, sDefault: def}
}

// NewFileSpec returns a file path value.
func NewFileSpec(def string) *Value {
	return &Value{kind: KindFileSpec, s: def, sDefault: def}
}

// NewFormat returns a display format value.
func NewFormat(def string) *Value {
	return &Value{kind: KindFormat, s: def, sDefault: def}
}

// NewArray returns an empty array of elemKind values.
func NewArray(elemKind Kind) *Value {
	return &Value{kind: KindArray, elemKind: elemKind}
}

// NewDictionary returns an empty dictionary of elemKind values.
func NewDictionary(elemKind Kind) *Value {
	return &Value{kind: KindDictionary, elemKind: elemKind, dict: map[string]*Value{}}
}

func newPropertiesValue(p *Properties) *Value {
	return &Value{kind: KindProperties, props: p}
}

// Kind returns the kind of v.
func (v *Value) Kind() Kind {
	return v.kind
}

// TypeName describes the type of v, for example "array of strings".
func (v *Value) TypeName() string {
	switch v.kind {
	case KindArray:
		return "array of " + v.elemKind.String() + "s"
	case KindDictionary:
		return "dictionary of " + v.elemKind.String() + "s"
	}
	return v.kind.String()
}

// WasSet returns true if v was explicitly written.
func (v *Value) WasSet() bool {
	return v.wasSet
}

// SetHookPost sets a callback called after every successful write to v.
func (v *Value) SetHookPost(f func(*Value) error) {
	v.hookPost = f
}

// Bool returns the value of a KindBool value.
func (v *Value) Bool() bool { return v.b }

// Int returns the value of a KindInt value.
func (v *Value) Int() int64 { return v.i }

// UInt returns the value of a KindUInt value.
func (v *Value) UInt() uint64 { return v.u }

// String returns the value of string-like kinds (string, file, enum,
// format) and a rendering of the value for the others.
func (v *Value) String() string {
	switch v.kind {
	case KindString, KindFileSpec, KindEnum, KindFormat:
		return v.s
	}
	var sb strings.Builder
	v.dumpValue(&sb, "")
	return sb.String()
}

// Elements returns the elements of a KindArray value.
func (v *Value) Elements() []*Value { return v.arr }

// Keys returns the sorted keys of a KindDictionary value.
func (v *Value) Keys() []string {
	keys := make([]string, 0, len(v.dict))
	for k := range v.dict {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the element of a KindDictionary value with the given key.
func (v *Value) Lookup(key string) *Value { return v.dict[key] }

// Properties returns the collection held by a KindProperties value.
func (v *Value) Properties() *Properties { return v.props }

// Clear resets v to its default.
func (v *Value) Clear() {
	v.b = v.bDefault
	v.i = v.iDefault
	v.u = v.uDefault
	v.s = v.sDefault
	v.arr = nil
	if v.kind == KindDictionary {
		v.dict = map[string]*Value{}
	}
	v.wasSet = false
}

// SetValueFromString applies op with the textual argument s to v.
func (v *Value) SetValueFromString(op VarSetOperation, s string) error {
	var err error
	switch v.kind {
	case KindArray:
		err = v.setArray(op, s)
	case KindDictionary:
		err = v.setDictionary(op, s)
	case KindProperties:
		return fmt.Errorf("'%s' is a settings collection, not a value", s)
	default:
		err = v.setScalar(op, s)
	}
	if err != nil {
		return err
	}
	if v.hookPost != nil {
		return v.hookPost(v)
	}
	return nil
}

func (v *Value) setScalar(op VarSetOperation, s string) error {
	switch op {
	case OpClear:
		v.Clear()
		return nil
	case OpAssign, OpReplace:
		// replace on a scalar behaves like assign
	default:
		return fmt.Errorf("%s operation not supported on %s values", op, v.kind)
	}

	s = strings.TrimSpace(s)
	switch v.kind {
	case KindBool:
		b, err := parseBool(s)
		if err != nil {
			return err
		}
		v.b = b
	case KindInt:
		n, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid int64 string value: '%s'", s)
		}
		v.i = n
	case KindUInt:
		n, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid uint64 string value: '%s'", s)
		}
		v.u = n
	case KindEnum:
		match := ""
		for _, c := range v.choices {
			if c == s {
				match = c
				break
			}
			if strings.HasPrefix(c, s) && s != "" {
				if match != "" {
					match = ""
					break
				}
				match = c
			}
		}
		if match == "" {
			return fmt.Errorf("invalid enumeration value '%s', valid values are: %s", s, strings.Join(v.choices, ", "))
		}
		v.s = match
	case KindFormat:
		ok := false
		for _, f := range Formats {
			if f == s {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("invalid format string value: '%s'", s)
		}
		v.s = s
	case KindString:
		v.s = s
	case KindFileSpec:
		if s != "" {
			s = filepath.Clean(s)
		}
		v.s = s
	default:
		return fmt.Errorf("can not set a value of kind %s", v.kind)
	}
	v.wasSet = true
	return nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean string value: '%s'", s)
}

func (v *Value) newElement(s string) (*Value, error) {
	var e *Value
	switch v.elemKind {
	case KindBool:
		e = NewBool(false)
	case KindInt:
		e = NewInt(0)
	case KindUInt:
		e = NewUInt(0)
	case KindFileSpec:
		e = NewFileSpec("")
	case KindFormat:
		e = NewFormat("default")
	default:
		e = NewString("")
	}
	if err := e.setScalar(OpAssign, s); err != nil {
		return nil, err
	}
	return e, nil
}

func (v *Value) elements(words []string) ([]*Value, error) {
	r := make([]*Value, 0, len(words))
	for _, w := range words {
		e, err := v.newElement(w)
		if err != nil {
			return nil, err
		}
		r = append(r, e)
	}
	return r, nil
}

func (v *Value) setArray(op VarSetOperation, s string) error {
	words := args.New(s).Strings()
	switch op {
	case OpClear:
		v.Clear()
		return nil
	case OpAssign, OpAppend:
		elems, err := v.elements(words)
		if err != nil {
			return err
		}
		if op == OpAssign {
			v.arr = nil
		}
		v.arr = append(v.arr, elems...)
	case OpInsertBefore, OpInsertAfter, OpReplace:
		if len(words) < 2 {
			return fmt.Errorf("%s operation takes an array index followed by one or more values", op)
		}
		idx, err := v.index(words[0])
		if err != nil {
			return err
		}
		elems, err := v.elements(words[1:])
		if err != nil {
			return err
		}
		switch op {
		case OpInsertAfter:
			idx++
			fallthrough
		case OpInsertBefore:
			arr := make([]*Value, 0, len(v.arr)+len(elems))
			arr = append(arr, v.arr[:idx]...)
			arr = append(arr, elems...)
			v.arr = append(arr, v.arr[idx:]...)
		case OpReplace:
			for i, e := range elems {
				if idx+i < len(v.arr) {
					v.arr[idx+i] = e
				} else {
					v.arr = append(v.arr, e)
				}
			}
		}
	case OpRemove:
		if len(words) == 0 {
			return fmt.Errorf("remove operation takes one or more array indices")
		}
		remove := map[int]bool{}
		for _, w := range words {
			idx, err := v.index(w)
			if err != nil {
				return err
			}
			remove[idx] = true
		}
		arr := v.arr[:0]
		for i, e := range v.arr {
			if !remove[i] {
				arr = append(arr, e)
			}
		}
		v.arr = arr
	}
	v.wasSet = true
	return nil
}

func (v *Value) index(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n >= len(v.arr) {
		return 0, fmt.Errorf("invalid array index '%s', aborting", s)
	}
	return n, nil
}

func (v *Value) setDictionary(op VarSetOperation, s string) error {
	words := args.New(s).Strings()
	switch op {
	case OpClear:
		v.Clear()
		return nil
	case OpAssign, OpAppend, OpReplace:
		if op == OpAssign {
			v.dict = map[string]*Value{}
		}
		for _, w := range words {
			eq := strings.IndexByte(w, '=')
			if eq <= 0 {
				return fmt.Errorf("invalid key \"%s\", the key must be followed by '=' and a value", w)
			}
			e, err := v.newElement(w[eq+1:])
			if err != nil {
				return err
			}
			v.dict[w[:eq]] = e
		}
	case OpRemove:
		for _, w := range words {
			if _, ok := v.dict[w]; !ok {
				return fmt.Errorf("no value found for key '%s', aborting remove operation", w)
			}
			delete(v.dict, w)
		}
	default:
		return fmt.Errorf("%s operation not supported on dictionaries", op)
	}
	v.wasSet = true
	return nil
}

// subValue resolves an element selector of the form [index] or [key]
// against an array or dictionary.
func (v *Value) subValue(sel string) (*Value, error) {
	if !strings.HasPrefix(sel, "[") {
		return nil, fmt.Errorf("invalid value path '%s'", sel)
	}
	end := strings.IndexByte(sel, ']')
	if end < 0 {
		return nil, fmt.Errorf("missing closing ']' in '%s'", sel)
	}
	key := strings.Trim(sel[1:end], `"'`)
	var r *Value
	switch v.kind {
	case KindArray:
		idx, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("invalid array index '%s'", key)
		}
		if idx < 0 {
			idx += len(v.arr)
		}
		if idx < 0 || idx >= len(v.arr) {
			return nil, fmt.Errorf("array index %s out of range", key)
		}
		r = v.arr[idx]
	case KindDictionary:
		r = v.dict[key]
		if r == nil {
			return nil, fmt.Errorf("dictionary does not contain a value for the key name '%s'", key)
		}
	default:
		return nil, fmt.Errorf("'%s' can not be indexed", v.kind)
	}
	if rest := sel[end+1:]; rest != "" {
		return r.subValue(rest)
	}
	return r, nil
}

func (v *Value) dumpValue(w io.Writer, indent string) {
	switch v.kind {
	case KindBool:
		fmt.Fprintf(w, "%v", v.b)
	case KindInt:
		fmt.Fprintf(w, "%d", v.i)
	case KindUInt:
		fmt.Fprintf(w, "%d", v.u)
	case KindString:
		fmt.Fprintf(w, "%q", v.s)
	case KindFileSpec, KindEnum, KindFormat:
		fmt.Fprint(w, v.s)
	case KindArray:
		for i, e := range v.arr {
			fmt.Fprintf(w, "\n%s  [%d]: ", indent, i)
			e.dumpValue(w, indent+"  ")
		}
	case KindDictionary:
		for _, k := range v.Keys() {
			fmt.Fprintf(w, "\n%s  [%s]: ", indent, k)
			v.dict[k].dumpValue(w, indent+"  ")
		}
	}
}

func (v *Value) yamlValue() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindUInt:
		return v.u
	case KindArray:
		r := make([]string, len(v.arr))
		for i := range v.arr {
			r[i] = v.arr[i].String()
		}
		return r
	case KindDictionary:
		r := map[string]string{}
		for k, e := range v.dict {
			r[k] = e.String()
		}
		return r
	}
	return v.s
}
