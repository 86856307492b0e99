// Package derive synthesizes derived-address functions from seed specs.
//
// A derivation is the program address plus an ordered list of seed parts.
// Literal and string seeds are resolved to bytes at generation time;
// argument and account seeds become runtime parameters with a fixed byte
// encoding. The same derivation can be rendered as Go source (Source) or
// evaluated directly (Find).
package derive

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/roach88/solpm/internal/ir"
	"github.com/roach88/solpm/internal/typemap"
)

// UnresolvedSeedReferenceError reports a seed naming an argument or account
// the instruction does not declare. Validation rejects such documents, so
// seeing this error after validation is an internal consistency failure.
type UnresolvedSeedReferenceError struct {
	Instruction string
	Kind        string // "argument" or "account"
	Name        string
}

func (e *UnresolvedSeedReferenceError) Error() string {
	return fmt.Sprintf("instruction %s: seed references undeclared %s %q", e.Instruction, e.Kind, e.Name)
}

// UnsupportedSeedError reports a seed that cannot be derived statically.
// The owning account becomes a caller-supplied parameter.
type UnsupportedSeedError struct {
	Account string
	Reason  string
}

func (e *UnsupportedSeedError) Error() string {
	return fmt.Sprintf("account %s: %s", e.Account, e.Reason)
}

// ParamKind identifies where a derivation parameter comes from.
type ParamKind int

const (
	ProgramParam ParamKind = iota
	ArgParam
	AccountParam
)

func (k ParamKind) String() string {
	switch k {
	case ProgramParam:
		return "program"
	case ArgParam:
		return "arg"
	case AccountParam:
		return "account"
	default:
		return fmt.Sprintf("ParamKind(%d)", int(k))
	}
}

// EncodingKind is the byte encoding of a runtime seed.
type EncodingKind int

const (
	// RawBytes passes string, bytes and [u8; N] values through unchanged.
	RawBytes EncodingKind = iota
	// PubkeyBytes is the 32-byte address.
	PubkeyBytes
	// SingleByte is u8 or i8.
	SingleByte
	// BoolByte is 1 for true, 0 for false.
	BoolByte
	// LittleEndian is a 2, 4, 8 or 16 byte integer.
	LittleEndian
)

// SeedEncoding describes how a runtime value becomes seed bytes.
type SeedEncoding struct {
	Kind   EncodingKind
	Width  int // LittleEndian width in bytes; RawBytes fixed length, 0 if variable
	Signed bool
	Source string // schema type of the value, e.g. "u64" or "[u8; 32]"
}

func (e SeedEncoding) String() string {
	switch e.Kind {
	case RawBytes:
		if e.Width > 0 {
			return fmt.Sprintf("raw%d", e.Width)
		}
		return "raw"
	case PubkeyBytes:
		return "pubkey"
	case SingleByte:
		if e.Signed {
			return "i8"
		}
		return "u8"
	case BoolByte:
		return "bool"
	case LittleEndian:
		if e.Signed {
			return fmt.Sprintf("le-i%d", e.Width*8)
		}
		return fmt.Sprintf("le-u%d", e.Width*8)
	default:
		return fmt.Sprintf("EncodingKind(%d)", int(e.Kind))
	}
}

// Param is a parameter of a derivation function.
type Param struct {
	Name     string // schema name ("" for the program parameter)
	GoName   string
	Kind     ParamKind
	GoType   string
	Encoding SeedEncoding
}

// SeedPart is one component of the seed sequence: static bytes when Param
// is nil, otherwise a reference to a runtime parameter.
type SeedPart struct {
	Static []byte
	Param  *Param
}

// Function is a synthesized derivation.
type Function struct {
	Name    string
	Account string
	// Params lists the program address first, then referenced arguments and
	// accounts in first-seed order.
	Params []*Param
	Seeds  []SeedPart
	// Program is the fixed program the address is derived under, or nil
	// when the caller's program address is used.
	Program *solana.PublicKey
}

// Context is the instruction a seed spec belongs to.
type Context struct {
	Instruction *ir.Instruction
	Account     string
	Mapper      *typemap.Mapper
}

// Synthesize builds the derivation for one account's seed spec.
func Synthesize(pda *ir.PDA, ctx Context) (*Function, error) {
	if pda == nil {
		return nil, fmt.Errorf("derive: account %s has no seed spec", ctx.Account)
	}

	fn := &Function{
		Name:    "Find" + typemap.GoName(ctx.Account) + "Address",
		Account: ctx.Account,
		Params:  []*Param{{GoName: "programID", Kind: ProgramParam, GoType: "solana.PublicKey"}},
	}

	if pda.Program != nil {
		program, err := staticProgram(pda.Program, ctx)
		if err != nil {
			return nil, err
		}
		fn.Program = &program
	}

	if len(pda.Seeds) >= solana.MaxSeeds {
		return nil, &UnsupportedSeedError{Account: ctx.Account, Reason: fmt.Sprintf("%d seeds exceed the limit of %d", len(pda.Seeds), solana.MaxSeeds-1)}
	}

	for i, s := range pda.Seeds {
		part, err := fn.seedPart(s, ctx)
		if err != nil {
			return nil, err
		}
		if len(part.Static) > solana.MaxSeedLength {
			return nil, &UnsupportedSeedError{Account: ctx.Account, Reason: fmt.Sprintf("seed %d is %d bytes, longer than %d", i, len(part.Static), solana.MaxSeedLength)}
		}
		fn.Seeds = append(fn.Seeds, part)
	}
	return fn, nil
}

func (fn *Function) seedPart(s ir.Seed, ctx Context) (SeedPart, error) {
	switch seed := s.(type) {
	case ir.LiteralSeed:
		return SeedPart{Static: slices.Clone(seed.Bytes)}, nil
	case ir.StringSeed:
		return SeedPart{Static: []byte(seed.Value)}, nil
	case ir.ArgSeed:
		arg, ok := ctx.Instruction.Arg(seed.Name)
		if !ok {
			return SeedPart{}, &UnresolvedSeedReferenceError{Instruction: ctx.Instruction.Name, Kind: "argument", Name: seed.Name}
		}
		if seed.Path != "" {
			return SeedPart{}, &UnsupportedSeedError{Account: ctx.Account, Reason: fmt.Sprintf("seed reads field %q of argument %s", seed.Path, seed.Name)}
		}
		mapped, err := ctx.Mapper.Map(arg.Type)
		if err != nil {
			return SeedPart{}, err
		}
		enc, err := seedEncoding(arg.Type, mapped)
		if err != nil {
			return SeedPart{}, &UnsupportedSeedError{Account: ctx.Account, Reason: fmt.Sprintf("argument %s: %v", seed.Name, err)}
		}
		return SeedPart{Param: fn.param(Param{Name: arg.Name, GoName: typemap.ParamName(arg.Name), Kind: ArgParam, GoType: mapped.Expr, Encoding: enc})}, nil
	case ir.AccountSeed:
		if _, ok := ctx.Instruction.Account(seed.Name); !ok {
			return SeedPart{}, &UnresolvedSeedReferenceError{Instruction: ctx.Instruction.Name, Kind: "account", Name: seed.Name}
		}
		if seed.Path != "" {
			return SeedPart{}, &UnsupportedSeedError{Account: ctx.Account, Reason: fmt.Sprintf("seed reads field %q of account %s data", seed.Path, seed.Name)}
		}
		if seed.Name == ctx.Account {
			return SeedPart{}, &UnsupportedSeedError{Account: ctx.Account, Reason: "seed references the account being derived"}
		}
		return SeedPart{Param: fn.param(Param{
			Name:     seed.Name,
			GoName:   typemap.ParamName(seed.Name),
			Kind:     AccountParam,
			GoType:   "solana.PublicKey",
			Encoding: SeedEncoding{Kind: PubkeyBytes, Width: solana.PublicKeyLength, Source: "pubkey"},
		})}, nil
	default:
		panic(fmt.Sprintf("derive: unhandled seed %T", s))
	}
}

// bodyNames are identifiers the rendered function body refers to.
var bodyNames = []string{"solana", "binary", "programID"}

// param returns the existing parameter for the same source, or appends p.
// An argument and an account may share a schema name, so the Go name of a
// later parameter gets a kind suffix, then a number, when it collides with
// another parameter, a package the body uses, or a bool seed local.
func (fn *Function) param(p Param) *Param {
	for _, existing := range fn.Params {
		if existing.Kind == p.Kind && existing.Name == p.Name {
			return existing
		}
	}
	base := p.GoName
	suffix := typemap.GoName(p.Kind.String())
	for i := 1; fn.taken(p); i++ {
		p.GoName = base + suffix
		if i > 1 {
			p.GoName += strconv.Itoa(i)
		}
	}
	fn.Params = append(fn.Params, &p)
	return &p
}

// taken reports whether p's Go name, or the bool seed local it declares,
// is already in use.
func (fn *Function) taken(p Param) bool {
	names := slices.Clone(bodyNames)
	for _, existing := range fn.Params {
		if existing.Kind == ProgramParam {
			continue
		}
		names = append(names, existing.GoName)
		if existing.Encoding.Kind == BoolByte {
			names = append(names, existing.GoName+"Seed")
		}
	}
	if slices.Contains(names, p.GoName) {
		return true
	}
	return p.Encoding.Kind == BoolByte && slices.Contains(names, p.GoName+"Seed")
}

func staticProgram(s ir.Seed, ctx Context) (solana.PublicKey, error) {
	switch seed := s.(type) {
	case ir.LiteralSeed:
		if len(seed.Bytes) != solana.PublicKeyLength {
			return solana.PublicKey{}, &UnsupportedSeedError{Account: ctx.Account, Reason: fmt.Sprintf("program override is %d bytes, want %d", len(seed.Bytes), solana.PublicKeyLength)}
		}
		return solana.PublicKeyFromBytes(seed.Bytes), nil
	case ir.StringSeed:
		pk, err := solana.PublicKeyFromBase58(seed.Value)
		if err != nil {
			return solana.PublicKey{}, &UnsupportedSeedError{Account: ctx.Account, Reason: fmt.Sprintf("program override %q is not an address", seed.Value)}
		}
		return pk, nil
	case ir.ArgSeed, ir.AccountSeed:
		return solana.PublicKey{}, &UnsupportedSeedError{Account: ctx.Account, Reason: "program override is not a constant"}
	default:
		panic(fmt.Sprintf("derive: unhandled seed %T", s))
	}
}

// seedEncoding picks the byte encoding of an argument used as a seed.
func seedEncoding(t ir.TypeRef, mapped typemap.Emitted) (SeedEncoding, error) {
	src := t.String()
	switch c := mapped.Codec.(type) {
	case typemap.Fixed:
		switch {
		case c.Bool:
			return SeedEncoding{Kind: BoolByte, Width: 1, Source: src}, nil
		case c.Float:
			return SeedEncoding{}, fmt.Errorf("%s cannot be used as a seed", src)
		case c.Width == 1:
			return SeedEncoding{Kind: SingleByte, Width: 1, Signed: c.Signed, Source: src}, nil
		default:
			return SeedEncoding{Kind: LittleEndian, Width: c.Width, Signed: c.Signed, Source: src}, nil
		}
	case typemap.PublicKey:
		return SeedEncoding{Kind: PubkeyBytes, Width: solana.PublicKeyLength, Source: src}, nil
	case typemap.Prefixed:
		if c.Raw {
			return SeedEncoding{Kind: RawBytes, Source: src}, nil
		}
	case typemap.FixedArray:
		if c.Elem.IsByte() {
			return SeedEncoding{Kind: RawBytes, Width: c.Len, Source: src}, nil
		}
	case typemap.Optional, typemap.Composite:
	default:
		panic(fmt.Sprintf("derive: unhandled codec %T", mapped.Codec))
	}
	return SeedEncoding{}, fmt.Errorf("%s cannot be used as a seed", src)
}

// Key identifies the derivation independent of where it was found.
// Two accounts with equal keys share one generated function, so the key
// carries each parameter's Go type as well as its byte encoding.
func (fn *Function) Key() string {
	var b strings.Builder
	if fn.Program != nil {
		b.WriteString("program=" + fn.Program.String())
	} else {
		b.WriteString("program=caller")
	}
	for _, s := range fn.Seeds {
		b.WriteByte('|')
		if s.Param == nil {
			fmt.Fprintf(&b, "lit:%x", s.Static)
			continue
		}
		fmt.Fprintf(&b, "%s:%s:%s:%s", s.Param.Kind, s.Param.Name, s.Param.Encoding, s.Param.GoType)
	}
	return b.String()
}

// RuntimeParams returns the parameters after the program address.
func (fn *Function) RuntimeParams() []*Param {
	return fn.Params[1:]
}
