package codecomplete

import "strings"

// ChunkKind is the kind of a piece of a completion string.
type ChunkKind uint8

const (
	ChunkText ChunkKind = iota
	ChunkLeftParen
	ChunkRightParen
	ChunkComma
	ChunkCallParameterBegin
	ChunkCallParameterName
	ChunkCallParameterInternalName
	ChunkCallParameterColon
	ChunkCallParameterType
	ChunkCallParameterClosureType
	ChunkTypeAnnotation
	ChunkBraceStmtWithCursor
)

// Chunk is a piece of a completion string. Annotation chunks, and type
// annotations, describe the completion but are never inserted in the code.
// The chunks of a call parameter have a NestingLevel greater than the one
// of their ChunkCallParameterBegin.
type Chunk struct {
	Kind         ChunkKind
	Text         string
	NestingLevel int
	Annotation   bool
}

func (c Chunk) endsPreviousNestedGroup(level int) bool {
	return c.NestingLevel <= level
}

func (c Chunk) insertable() bool {
	return c.Text != "" && !c.Annotation && c.Kind != ChunkTypeAnnotation
}

// ResultKind is the kind of a completion result.
type ResultKind uint8

const (
	ResultDeclaration ResultKind = iota
	ResultKeyword
	ResultPattern
	ResultLiteral
)

// DeclKind is the kind of the declaration a ResultDeclaration result
// completes.
type DeclKind uint8

const (
	DeclModule DeclKind = iota
	DeclPrecedenceGroup
	DeclClass
	DeclStruct
	DeclEnum
	DeclEnumElement
	DeclProtocol
	DeclTypeAlias
	DeclAssociatedType
	DeclGenericTypeParam
	DeclConstructor
	DeclDestructor
	DeclSubscript
	DeclStaticMethod
	DeclInstanceMethod
	DeclPrefixOperatorFunction
	DeclPostfixOperatorFunction
	DeclInfixOperatorFunction
	DeclFreeFunction
	DeclStaticVar
	DeclInstanceVar
	DeclLocalVar
	DeclGlobalVar
)

// Result is a completion produced by the frontend.
type Result struct {
	Kind     ResultKind
	DeclKind DeclKind
	Chunks   []Chunk
}

// InsertableString returns the text of r that is pasted into the code. Of
// every call parameter only the argument label and the placeholder are kept,
// the colon is dropped when the parameter has no label.
func InsertableString(r Result) string {
	var sb strings.Builder
	chunks := r.Chunks
	for i := 0; i < len(chunks); i++ {
		outer := chunks[i]
		if outer.Kind != ChunkCallParameterBegin {
			if outer.insertable() {
				sb.WriteString(outer.Text)
			}
			continue
		}

		section := ChunkCallParameterBegin
		hasName := false
		for i++; i < len(chunks); i++ {
			inner := chunks[i]
			if inner.endsPreviousNestedGroup(outer.NestingLevel) {
				i--
				break
			}
			switch inner.Kind {
			case ChunkCallParameterName, ChunkCallParameterInternalName, ChunkCallParameterColon,
				ChunkCallParameterType, ChunkCallParameterClosureType:
				section = inner.Kind
			}
			if section == ChunkCallParameterName {
				hasName = true
			}
			switch section {
			case ChunkCallParameterInternalName, ChunkCallParameterType, ChunkCallParameterClosureType:
				continue
			case ChunkCallParameterColon:
				if !hasName {
					continue
				}
			}
			if inner.insertable() {
				sb.WriteString(inner.Text)
			}
		}
	}
	return sb.String()
}

// DisplayString returns the text of r shown to the user, including the
// type annotations.
func DisplayString(r Result) string {
	var sb strings.Builder
	for _, c := range r.Chunks {
		if c.Kind == ChunkBraceStmtWithCursor {
			sb.WriteByte(' ')
			continue
		}
		if c.insertable() {
			sb.WriteString(c.Text)
			continue
		}
		if c.Kind != ChunkTypeAnnotation {
			continue
		}
		sep, ok := ": ", true
		if r.Kind == ResultDeclaration {
			sep, ok = annotationSeparator(r.DeclKind)
		}
		if !ok {
			continue
		}
		sb.WriteString(sep)
		sb.WriteString(c.Text)
	}
	return sb.String()
}

func annotationSeparator(k DeclKind) (string, bool) {
	switch k {
	case DeclEnumElement, DeclStaticVar, DeclInstanceVar, DeclLocalVar, DeclGlobalVar:
		return ": ", true
	case DeclSubscript, DeclStaticMethod, DeclInstanceMethod, DeclPrefixOperatorFunction,
		DeclPostfixOperatorFunction, DeclInfixOperatorFunction, DeclFreeFunction:
		return " -> ", true
	}
	return "", false
}
