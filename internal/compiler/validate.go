package compiler

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/mod/semver"

	"github.com/roach88/solpm/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrCompile                 = "E200" // document could not be compiled
	ErrUnresolvedType          = "E201" // named type reference does not resolve
	ErrCyclicType              = "E202" // struct composition would have infinite size
	ErrDuplicateName           = "E203" // duplicate account/argument/instruction/type name
	ErrUnresolvedSeedReference = "E204" // seed references an undeclared argument or account
	ErrInvalidVersion          = "E205" // version is not a semantic version
	ErrInvalidNetwork          = "E206" // network tag is not enumerated
	ErrInvalidAddress          = "E207" // address is not a base58 public key
)

// SchemaErrorKind enumerates the ways a Program can fail validation.
type SchemaErrorKind int

const (
	UnresolvedType SchemaErrorKind = iota + 1
	CyclicType
	DuplicateName
	UnresolvedSeedReference
	InvalidVersion
	InvalidNetwork
	InvalidAddress
)

// String returns the kind name.
func (k SchemaErrorKind) String() string {
	switch k {
	case UnresolvedType:
		return "UnresolvedType"
	case CyclicType:
		return "CyclicType"
	case DuplicateName:
		return "DuplicateName"
	case UnresolvedSeedReference:
		return "UnresolvedSeedReference"
	case InvalidVersion:
		return "InvalidVersion"
	case InvalidNetwork:
		return "InvalidNetwork"
	case InvalidAddress:
		return "InvalidAddress"
	default:
		return fmt.Sprintf("SchemaErrorKind(%d)", int(k))
	}
}

// Code returns the stable validation code for the kind.
func (k SchemaErrorKind) Code() string {
	switch k {
	case UnresolvedType:
		return ErrUnresolvedType
	case CyclicType:
		return ErrCyclicType
	case DuplicateName:
		return ErrDuplicateName
	case UnresolvedSeedReference:
		return ErrUnresolvedSeedReference
	case InvalidVersion:
		return ErrInvalidVersion
	case InvalidNetwork:
		return ErrInvalidNetwork
	case InvalidAddress:
		return ErrInvalidAddress
	default:
		return ErrCompile
	}
}

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string          `json:"field" yaml:"field"`
	Message string          `json:"message" yaml:"message"`
	Code    string          `json:"code" yaml:"code"`
	Kind    SchemaErrorKind `json:"-" yaml:"-"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is the error returned by Validate. It holds every
// problem found, in check order.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	switch len(errs) {
	case 0:
		return "no validation errors"
	case 1:
		return errs[0].Error()
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(errs), strings.Join(msgs, "; "))
}

// Has reports whether any error is of the given kind.
func (errs ValidationErrors) Has(kind SchemaErrorKind) bool {
	for _, e := range errs {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// Validated is a Program that passed validation. Downstream stages only
// accept this view; callers must not mutate the Program it exposes.
type Validated struct {
	program *ir.Program
	digest  string
}

// Program returns the validated model.
func (v *Validated) Program() *ir.Program {
	return v.program
}

// Digest returns the document digest, or "" when the Program was not
// built from a document.
func (v *Validated) Digest() string {
	return v.digest
}

// Load compiles and validates a document in one step.
func Load(data []byte, opts CompileOptions) (*Validated, error) {
	p, err := CompileProgram(data, opts)
	if err != nil {
		return nil, err
	}
	v, err := Validate(p)
	if err != nil {
		return nil, err
	}
	digest, err := ir.DocumentDigest(data)
	if err != nil {
		return nil, err
	}
	v.digest = digest
	return v, nil
}

// Validate checks a Program against the model invariants.
// Returns all errors found (does not fail-fast), as ValidationErrors.
// Validation is pure: the same Program always yields the same result.
//
// Checks run in order:
//  1. every named type reference resolves
//  2. no cyclic struct composition
//  3. unique names per instruction (and unique instruction/type names)
//  4. seed references resolve within the instruction
//  5. version is a semantic version
//  6. network is enumerated
//  7. addresses are base58 public keys
func Validate(p *ir.Program) (*Validated, error) {
	if p == nil {
		return nil, ValidationErrors{{Field: "program", Message: "program is nil", Code: ErrCompile}}
	}

	var errs ValidationErrors
	errs = append(errs, checkTypeRefs(p)...)
	errs = append(errs, checkTypeCycles(p)...)
	errs = append(errs, checkDuplicateNames(p)...)
	errs = append(errs, checkSeedReferences(p)...)
	errs = append(errs, checkVersion(p)...)
	errs = append(errs, checkNetwork(p)...)
	errs = append(errs, checkAddresses(p)...)

	if len(errs) > 0 {
		return nil, errs
	}
	return &Validated{program: p}, nil
}

func newError(kind SchemaErrorKind, field, format string, args ...any) ValidationError {
	return ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    kind.Code(),
		Kind:    kind,
	}
}

// E201: every Named reference must resolve to a declared type.
func checkTypeRefs(p *ir.Program) []ValidationError {
	var errs []ValidationError
	check := func(t ir.TypeRef, field string) {
		walkTypeRef(t, func(n ir.Named) {
			if _, ok := p.Type(n.Name); !ok {
				errs = append(errs, newError(UnresolvedType, field, "type %q is not declared", n.Name))
			}
		})
	}

	for i, td := range p.Types {
		forEachBodyRef(td.Body, fmt.Sprintf("types[%d]", i), check)
	}
	for i, ix := range p.Instructions {
		for j, arg := range ix.Args {
			check(arg.Type, fmt.Sprintf("instructions[%d].args[%d].type", i, j))
		}
	}
	return errs
}

// walkTypeRef calls fn for every Named reference reachable through t.
func walkTypeRef(t ir.TypeRef, fn func(ir.Named)) {
	switch tt := t.(type) {
	case ir.Primitive:
	case ir.Named:
		fn(tt)
	case ir.Array:
		walkTypeRef(tt.Elem, fn)
	case ir.Vec:
		walkTypeRef(tt.Elem, fn)
	case ir.Option:
		walkTypeRef(tt.Elem, fn)
	default:
		panic(fmt.Sprintf("compiler: unhandled type reference %T", t))
	}
}

// forEachBodyRef calls fn with every type reference a definition body holds.
func forEachBodyRef(body ir.TypeBody, field string, fn func(ir.TypeRef, string)) {
	switch b := body.(type) {
	case ir.StructBody:
		for i, f := range b.Fields {
			fn(f.Type, fmt.Sprintf("%s.fields[%d].type", field, i))
		}
	case ir.EnumBody:
		for i, v := range b.Variants {
			for j, f := range v.Fields {
				fn(f.Type, fmt.Sprintf("%s.variants[%d].fields[%d].type", field, i, j))
			}
		}
	case ir.AliasBody:
		fn(b.Target, field+".alias")
	default:
		panic(fmt.Sprintf("compiler: unhandled type body %T", body))
	}
}

// E202: composition cycles.
func checkTypeCycles(p *ir.Program) []ValidationError {
	var errs []ValidationError
	for _, c := range AnalyzeTypeCycles(p) {
		errs = append(errs, newError(CyclicType, "types."+c.Path[0], "%s", c.Message))
	}
	return errs
}

// E203: duplicate names.
func checkDuplicateNames(p *ir.Program) []ValidationError {
	var errs []ValidationError

	typeNames := make(map[string]bool)
	for i, td := range p.Types {
		if typeNames[td.Name] {
			errs = append(errs, newError(DuplicateName, fmt.Sprintf("types[%d].name", i), "duplicate type name: %q", td.Name))
		}
		typeNames[td.Name] = true
	}

	ixNames := make(map[string]bool)
	for i, ix := range p.Instructions {
		if ixNames[ix.Name] {
			errs = append(errs, newError(DuplicateName, fmt.Sprintf("instructions[%d].name", i), "duplicate instruction name: %q", ix.Name))
		}
		ixNames[ix.Name] = true

		argNames := make(map[string]bool)
		for j, arg := range ix.Args {
			if argNames[arg.Name] {
				errs = append(errs, newError(DuplicateName, fmt.Sprintf("instructions[%d].args[%d].name", i, j),
					"duplicate argument name %q in instruction %q", arg.Name, ix.Name))
			}
			argNames[arg.Name] = true
		}

		accNames := make(map[string]bool)
		for j, acc := range ix.Accounts {
			if accNames[acc.Name] {
				errs = append(errs, newError(DuplicateName, fmt.Sprintf("instructions[%d].accounts[%d].name", i, j),
					"duplicate account name %q in instruction %q", acc.Name, ix.Name))
			}
			accNames[acc.Name] = true
		}
	}
	return errs
}

// E204: seeds must reference arguments and accounts of the same instruction.
func checkSeedReferences(p *ir.Program) []ValidationError {
	var errs []ValidationError
	for i := range p.Instructions {
		ix := &p.Instructions[i]
		for j, acc := range ix.Accounts {
			if acc.PDA == nil {
				continue
			}
			base := fmt.Sprintf("instructions[%d].accounts[%d].pda", i, j)
			check := func(s ir.Seed, field string) {
				switch seed := s.(type) {
				case ir.LiteralSeed, ir.StringSeed:
				case ir.ArgSeed:
					if _, ok := ix.Arg(seed.Name); !ok {
						errs = append(errs, newError(UnresolvedSeedReference, field,
							"seed references undeclared argument %q in instruction %q", seed.Name, ix.Name))
					}
				case ir.AccountSeed:
					if _, ok := ix.Account(seed.Name); !ok {
						errs = append(errs, newError(UnresolvedSeedReference, field,
							"seed references undeclared account %q in instruction %q", seed.Name, ix.Name))
					}
				default:
					panic(fmt.Sprintf("compiler: unhandled seed %T", s))
				}
			}
			for k, s := range acc.PDA.Seeds {
				check(s, fmt.Sprintf("%s.seeds[%d]", base, k))
			}
			if acc.PDA.Program != nil {
				check(acc.PDA.Program, base+".program")
			}
		}
	}
	return errs
}

// E205: semantic version, without a leading "v".
func checkVersion(p *ir.Program) []ValidationError {
	if !IsSemVer(p.Identity.Version) {
		return []ValidationError{newError(InvalidVersion, "version", "invalid semantic version %q", p.Identity.Version)}
	}
	return nil
}

// IsSemVer reports whether s is MAJOR.MINOR.PATCH with optional
// pre-release and build metadata.
func IsSemVer(s string) bool {
	if s == "" || strings.HasPrefix(s, "v") {
		return false
	}
	v := "v" + s
	if !semver.IsValid(v) {
		return false
	}
	core, _, _ := strings.Cut(v, "+")
	return semver.Canonical(v) == core
}

// E206: enumerated network.
func checkNetwork(p *ir.Program) []ValidationError {
	if !p.Identity.Network.Valid() {
		return []ValidationError{newError(InvalidNetwork, "network", "invalid network %q: must be one of %v", p.Identity.Network, ir.Networks)}
	}
	return nil
}

// E207: program and fixed account addresses.
func checkAddresses(p *ir.Program) []ValidationError {
	var errs []ValidationError
	if p.Identity.Address == "" {
		errs = append(errs, newError(InvalidAddress, "address", "program address is required"))
	} else if _, err := solana.PublicKeyFromBase58(p.Identity.Address); err != nil {
		errs = append(errs, newError(InvalidAddress, "address", "invalid program address %q: %v", p.Identity.Address, err))
	}

	for i, ix := range p.Instructions {
		for j, acc := range ix.Accounts {
			if acc.Address == "" {
				continue
			}
			if _, err := solana.PublicKeyFromBase58(acc.Address); err != nil {
				errs = append(errs, newError(InvalidAddress, fmt.Sprintf("instructions[%d].accounts[%d].address", i, j),
					"invalid address %q for account %q: %v", acc.Address, acc.Name, err))
			}
		}
	}
	return errs
}
