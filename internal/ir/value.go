package ir

import (
	"encoding/json"
	"fmt"
)

// TypeRef is a sealed interface over type references.
// Only Primitive, Array, Vec, Option and Named implement it.
type TypeRef interface {
	typeRef() // Sealed - only these types implement it
	String() string
}

// Primitive is a built-in scalar or blob type such as "u64", "string" or "pubkey".
// The name is kept verbatim; the type mapper decides whether it is known.
type Primitive struct {
	Name string
}

// Array is a fixed-length array [Elem; Len].
type Array struct {
	Elem TypeRef
	Len  int
}

// Vec is a variable-length, length-prefixed sequence of Elem.
type Vec struct {
	Elem TypeRef
}

// Option is an optional Elem.
type Option struct {
	Elem TypeRef
}

// Named references a TypeDef declared in the same program.
type Named struct {
	Name string
}

func (Primitive) typeRef() {}
func (Array) typeRef()     {}
func (Vec) typeRef()       {}
func (Option) typeRef()    {}
func (Named) typeRef()     {}

func (t Primitive) String() string { return t.Name }
func (t Array) String() string     { return fmt.Sprintf("[%s; %d]", t.Elem, t.Len) }
func (t Vec) String() string       { return fmt.Sprintf("Vec<%s>", t.Elem) }
func (t Option) String() string    { return fmt.Sprintf("Option<%s>", t.Elem) }
func (t Named) String() string     { return t.Name }

// MarshalJSON writes the document form of the reference.
func (t Primitive) MarshalJSON() ([]byte, error) { return json.Marshal(t.Name) }

// MarshalJSON writes the document form of the reference.
func (t Array) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"array": []any{t.Elem, t.Len}})
}

// MarshalJSON writes the document form of the reference.
func (t Vec) MarshalJSON() ([]byte, error) { return json.Marshal(map[string]any{"vec": t.Elem}) }

// MarshalJSON writes the document form of the reference.
func (t Option) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"option": t.Elem})
}

// MarshalJSON writes the document form of the reference.
func (t Named) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"defined": t.Name})
}

// TypeBody is a sealed interface over type definition bodies.
// Only StructBody, EnumBody and AliasBody implement it.
type TypeBody interface {
	typeBody() // Sealed
}

// StructBody is a struct with ordered fields.
type StructBody struct {
	Fields []Field `json:"fields"`
}

// EnumBody is an enum with ordered variants.
type EnumBody struct {
	Variants []Variant `json:"variants"`
}

// AliasBody names a primitive, array, sequence or optional type.
type AliasBody struct {
	Target TypeRef `json:"alias"`
}

func (StructBody) typeBody() {}
func (EnumBody) typeBody()   {}
func (AliasBody) typeBody()  {}

// Unit reports whether every variant is field-less.
func (e EnumBody) Unit() bool {
	for _, v := range e.Variants {
		if len(v.Fields) > 0 {
			return false
		}
	}
	return true
}

// Seed is a sealed interface over derived-address seed components.
// Only LiteralSeed, StringSeed, ArgSeed and AccountSeed implement it.
type Seed interface {
	seed() // Sealed
}

// LiteralSeed is a static byte sequence.
type LiteralSeed struct {
	Bytes []byte `json:"bytes"`
}

// StringSeed is a static UTF-8 string constant.
type StringSeed struct {
	Value string `json:"value"`
}

// ArgSeed references an instruction argument by name. Path holds the
// remainder of a dotted reference into a struct argument, if any.
type ArgSeed struct {
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

// AccountSeed references another account of the instruction by name.
// A non-empty Path references a field inside that account's data.
type AccountSeed struct {
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

func (LiteralSeed) seed() {}
func (StringSeed) seed()  {}
func (ArgSeed) seed()     {}
func (AccountSeed) seed() {}

// MarshalJSON tags the seed with its kind.
func (s LiteralSeed) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(s.Bytes))
	for i, b := range s.Bytes {
		ints[i] = int(b)
	}
	return json.Marshal(map[string]any{"kind": "const", "value": ints})
}

// MarshalJSON tags the seed with its kind.
func (s StringSeed) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"kind": "string", "value": s.Value})
}

// MarshalJSON tags the seed with its kind.
func (s ArgSeed) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"kind": "arg", "path": joinPath(s.Name, s.Path)})
}

// MarshalJSON tags the seed with its kind.
func (s AccountSeed) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"kind": "account", "path": joinPath(s.Name, s.Path)})
}

func joinPath(name, path string) string {
	if path == "" {
		return name
	}
	return name + "." + path
}
