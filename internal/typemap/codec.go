package typemap

import "fmt"

// Codec describes how a mapped value is serialized.
// Sealed: only the variants below implement it.
type Codec interface {
	codec()
	String() string
}

// Fixed is a fixed-width scalar: integers, floats and bool.
type Fixed struct {
	Width  int
	Signed bool
	Float  bool
	Bool   bool
}

// PublicKey is a 32-byte address written without a length prefix.
type PublicKey struct{}

// Prefixed is a u32 length-prefixed sequence. Raw sequences (string, bytes)
// are written as one block; others element by element.
type Prefixed struct {
	Elem *Emitted
	Raw  bool
}

// FixedArray is a sequence of exactly Len elements with no prefix.
type FixedArray struct {
	Len  int
	Elem *Emitted
}

// Optional is a one-byte presence tag followed by the value when present.
type Optional struct {
	Elem *Emitted
}

// Composite is a declared struct, enum or alias with its own sub-mappings.
type Composite struct {
	Decl *Decl
}

func (Fixed) codec()      {}
func (PublicKey) codec()  {}
func (Prefixed) codec()   {}
func (FixedArray) codec() {}
func (Optional) codec()   {}
func (Composite) codec()  {}

func (c Fixed) String() string {
	switch {
	case c.Bool:
		return "bool"
	case c.Float:
		return fmt.Sprintf("f%d", c.Width*8)
	case c.Signed:
		return fmt.Sprintf("i%d", c.Width*8)
	default:
		return fmt.Sprintf("u%d", c.Width*8)
	}
}

func (PublicKey) String() string { return "pubkey" }

func (c Prefixed) String() string {
	if c.Raw {
		return "prefixed(raw)"
	}
	return "prefixed(" + c.Elem.Codec.String() + ")"
}

func (c FixedArray) String() string {
	return fmt.Sprintf("array(%s; %d)", c.Elem.Codec.String(), c.Len)
}

func (c Optional) String() string { return "option(" + c.Elem.Codec.String() + ")" }

func (c Composite) String() string { return "composite(" + c.Decl.Name + ")" }

// Emitted is the result of mapping one type reference.
type Emitted struct {
	// Expr is the Go type expression, e.g. "[]uint64" or "*VaultConfig".
	Expr  string
	Codec Codec
}

// IsByte reports whether e is an unsigned 8-bit integer.
func (e *Emitted) IsByte() bool {
	f, ok := e.Codec.(Fixed)
	return ok && f.Width == 1 && !f.Signed && !f.Bool && !f.Float
}
