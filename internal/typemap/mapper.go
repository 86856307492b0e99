package typemap

import (
	"fmt"

	"github.com/roach88/solpm/internal/compiler"
	"github.com/roach88/solpm/internal/ir"
)

// UnknownPrimitiveError reports a primitive name with no mapping rule.
type UnknownPrimitiveError struct {
	Name string
}

func (e *UnknownPrimitiveError) Error() string {
	return fmt.Sprintf("unknown primitive type %q", e.Name)
}

// DeclKind identifies the shape of a declared type.
type DeclKind int

const (
	StructDecl DeclKind = iota
	EnumDecl
	AliasDecl
)

func (k DeclKind) String() string {
	switch k {
	case StructDecl:
		return "struct"
	case EnumDecl:
		return "enum"
	case AliasDecl:
		return "alias"
	default:
		return fmt.Sprintf("DeclKind(%d)", int(k))
	}
}

// Decl is a mapped type declaration.
type Decl struct {
	Name     string // schema name
	GoName   string
	Kind     DeclKind
	Docs     []string
	Fields   []MappedField   // StructDecl
	Variants []MappedVariant // EnumDecl
	Target   *Emitted        // AliasDecl
	// Sealed marks an enum with at least one data-carrying variant. It is
	// emitted as an interface, so its zero value is nil.
	Sealed bool
}

// Resolve follows aliases of declared types to the declaration that
// carries the encoding.
func (d *Decl) Resolve() *Decl {
	for d.Kind == AliasDecl && d.Target != nil {
		c, ok := d.Target.Codec.(Composite)
		if !ok {
			break
		}
		d = c.Decl
	}
	return d
}

// UnitEnum reports whether every variant of an enum carries no data.
func (d *Decl) UnitEnum() bool {
	return d.Kind == EnumDecl && !d.Sealed
}

// MappedField is a struct or variant field with its mapped type.
type MappedField struct {
	Name   string
	GoName string
	Docs   []string
	Type   Emitted
}

// MappedVariant is an enum variant with mapped fields.
type MappedVariant struct {
	Name   string
	GoName string
	Tuple  bool
	Fields []MappedField
}

// Mapper maps the type references of one validated program.
// A Mapper belongs to a single generation pass and is not safe for
// concurrent use.
type Mapper struct {
	program *ir.Program
	decls   map[string]*Decl
	failed  map[string]error
	created []string
}

// NewMapper creates a Mapper for a validated program.
func NewMapper(v *compiler.Validated) *Mapper {
	return &Mapper{
		program: v.Program(),
		decls:   make(map[string]*Decl),
		failed:  make(map[string]error),
	}
}

// Map returns the Go expression and codec for t.
func (m *Mapper) Map(t ir.TypeRef) (Emitted, error) {
	switch tt := t.(type) {
	case ir.Primitive:
		return mapPrimitive(tt.Name)
	case ir.Named:
		d, err := m.Declare(tt.Name)
		if err != nil {
			return Emitted{}, err
		}
		return Emitted{Expr: d.GoName, Codec: Composite{Decl: d}}, nil
	case ir.Vec:
		elem, err := m.Map(tt.Elem)
		if err != nil {
			return Emitted{}, err
		}
		return Emitted{Expr: "[]" + elem.Expr, Codec: Prefixed{Elem: &elem}}, nil
	case ir.Array:
		elem, err := m.Map(tt.Elem)
		if err != nil {
			return Emitted{}, err
		}
		return Emitted{Expr: fmt.Sprintf("[%d]%s", tt.Len, elem.Expr), Codec: FixedArray{Len: tt.Len, Elem: &elem}}, nil
	case ir.Option:
		elem, err := m.Map(tt.Elem)
		if err != nil {
			return Emitted{}, err
		}
		expr := "*" + elem.Expr
		if c, ok := elem.Codec.(Composite); ok && c.Decl.Resolve().Sealed {
			expr = elem.Expr
		}
		return Emitted{Expr: expr, Codec: Optional{Elem: &elem}}, nil
	default:
		panic(fmt.Sprintf("typemap: unhandled type reference %T", t))
	}
}

func mapPrimitive(name string) (Emitted, error) {
	switch name {
	case "bool":
		return Emitted{Expr: "bool", Codec: Fixed{Width: 1, Bool: true}}, nil
	case "u8":
		return Emitted{Expr: "uint8", Codec: Fixed{Width: 1}}, nil
	case "i8":
		return Emitted{Expr: "int8", Codec: Fixed{Width: 1, Signed: true}}, nil
	case "u16":
		return Emitted{Expr: "uint16", Codec: Fixed{Width: 2}}, nil
	case "i16":
		return Emitted{Expr: "int16", Codec: Fixed{Width: 2, Signed: true}}, nil
	case "u32":
		return Emitted{Expr: "uint32", Codec: Fixed{Width: 4}}, nil
	case "i32":
		return Emitted{Expr: "int32", Codec: Fixed{Width: 4, Signed: true}}, nil
	case "u64":
		return Emitted{Expr: "uint64", Codec: Fixed{Width: 8}}, nil
	case "i64":
		return Emitted{Expr: "int64", Codec: Fixed{Width: 8, Signed: true}}, nil
	case "u128":
		return Emitted{Expr: "bin.Uint128", Codec: Fixed{Width: 16}}, nil
	case "i128":
		return Emitted{Expr: "bin.Int128", Codec: Fixed{Width: 16, Signed: true}}, nil
	case "f32":
		return Emitted{Expr: "float32", Codec: Fixed{Width: 4, Float: true, Signed: true}}, nil
	case "f64":
		return Emitted{Expr: "float64", Codec: Fixed{Width: 8, Float: true, Signed: true}}, nil
	case "string":
		return Emitted{Expr: "string", Codec: Prefixed{Raw: true}}, nil
	case "bytes":
		return Emitted{Expr: "[]byte", Codec: Prefixed{Raw: true}}, nil
	case "pubkey", "publicKey":
		return Emitted{Expr: "solana.PublicKey", Codec: PublicKey{}}, nil
	default:
		return Emitted{}, &UnknownPrimitiveError{Name: name}
	}
}

// Declare maps the named type declaration, memoizing the result.
// A declaration already being mapped is returned as is, which lets
// length-prefixed sequences refer back to their owner.
func (m *Mapper) Declare(name string) (*Decl, error) {
	if d, ok := m.decls[name]; ok {
		return d, nil
	}
	if err, ok := m.failed[name]; ok {
		return nil, err
	}

	td, ok := m.program.Type(name)
	if !ok {
		// Validation guarantees every named reference resolves.
		return nil, fmt.Errorf("typemap: type %q is not declared", name)
	}

	d := &Decl{Name: td.Name, GoName: GoName(td.Name), Docs: td.Docs, Sealed: sealed(td.Body)}
	start := len(m.created)
	m.decls[name] = d
	m.created = append(m.created, name)

	if err := m.fillDecl(d, td.Body); err != nil {
		// Declarations made while this one was in progress may hold a
		// pointer to it; drop them so they are mapped again on demand.
		for _, n := range m.created[start:] {
			delete(m.decls, n)
		}
		m.created = m.created[:start]
		err = fmt.Errorf("type %s: %w", name, err)
		m.failed[name] = err
		return nil, err
	}
	return d, nil
}

func (m *Mapper) fillDecl(d *Decl, body ir.TypeBody) error {
	switch b := body.(type) {
	case ir.StructBody:
		d.Kind = StructDecl
		fields, err := m.mapFields(b.Fields)
		if err != nil {
			return err
		}
		d.Fields = fields
	case ir.EnumBody:
		d.Kind = EnumDecl
		for _, v := range b.Variants {
			fields, err := m.mapFields(v.Fields)
			if err != nil {
				return err
			}
			d.Variants = append(d.Variants, MappedVariant{
				Name:   v.Name,
				GoName: GoName(v.Name),
				Tuple:  v.Tuple,
				Fields: fields,
			})
		}
	case ir.AliasBody:
		d.Kind = AliasDecl
		target, err := m.Map(b.Target)
		if err != nil {
			return err
		}
		d.Target = &target
	default:
		panic(fmt.Sprintf("typemap: unhandled type body %T", body))
	}
	return nil
}

func sealed(body ir.TypeBody) bool {
	e, ok := body.(ir.EnumBody)
	if !ok {
		return false
	}
	for _, v := range e.Variants {
		if len(v.Fields) > 0 {
			return true
		}
	}
	return false
}

func (m *Mapper) mapFields(fields []ir.Field) ([]MappedField, error) {
	out := make([]MappedField, 0, len(fields))
	for i, f := range fields {
		t, err := m.Map(f.Type)
		if err != nil {
			return nil, err
		}
		name := f.Name
		if name == "" {
			name = fmt.Sprintf("field%d", i)
		}
		out = append(out, MappedField{Name: name, GoName: GoName(name), Docs: f.Docs, Type: t})
	}
	return out, nil
}

// Declarations returns every successfully declared type in the program's
// declared order.
func (m *Mapper) Declarations() []*Decl {
	var out []*Decl
	for _, td := range m.program.Types {
		if d, ok := m.decls[td.Name]; ok {
			out = append(out, d)
		}
	}
	return out
}

// DeclareAll declares every program type, returning the errors of the
// types that could not be mapped keyed by type name.
func (m *Mapper) DeclareAll() map[string]error {
	errs := make(map[string]error)
	for _, td := range m.program.Types {
		if _, err := m.Declare(td.Name); err != nil {
			errs[td.Name] = err
		}
	}
	return errs
}
