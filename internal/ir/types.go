package ir

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"unicode"
)

// Network identifies the cluster an interface is deployed to.
type Network string

// Supported networks.
const (
	Mainnet  Network = "mainnet"
	Devnet   Network = "devnet"
	Testnet  Network = "testnet"
	Localnet Network = "localnet"
)

// Networks lists every supported network in a stable order.
var Networks = []Network{Mainnet, Devnet, Testnet, Localnet}

// Valid reports whether n is one of the enumerated networks.
func (n Network) Valid() bool {
	switch n {
	case Mainnet, Devnet, Testnet, Localnet:
		return true
	default:
		return false
	}
}

// ParseNetwork converts a user supplied tag into a Network.
// "mainnet-beta" is accepted as an alias for mainnet.
func ParseNetwork(s string) (Network, error) {
	n := Network(strings.ToLower(strings.TrimSpace(s)))
	if n == "mainnet-beta" {
		return Mainnet, nil
	}
	if !n.Valid() {
		return "", fmt.Errorf("invalid network %q: must be one of %v", s, Networks)
	}
	return n, nil
}

// Identity names an interface document.
type Identity struct {
	Name    string  `json:"name"`
	Version string  `json:"version"`
	Address string  `json:"address"`
	Network Network `json:"network"`
}

// Program is a parsed interface document.
type Program struct {
	Identity     Identity      `json:"identity"`
	Docs         []string      `json:"docs,omitempty"`
	Types        []TypeDef     `json:"types"`
	Instructions []Instruction `json:"instructions"`
	Errors       []ErrorCode   `json:"errors,omitempty"`
}

// Type returns the declared type with the given name.
func (p *Program) Type(name string) (TypeDef, bool) {
	for _, td := range p.Types {
		if td.Name == name {
			return td, true
		}
	}
	return TypeDef{}, false
}

// TypeDef is a named type definition.
type TypeDef struct {
	Name string   `json:"name"`
	Docs []string `json:"docs,omitempty"`
	Body TypeBody `json:"body"`
}

// Field is a named, typed member of a struct or enum variant.
// Tuple variant fields have an empty Name.
type Field struct {
	Name string   `json:"name,omitempty"`
	Docs []string `json:"docs,omitempty"`
	Type TypeRef  `json:"type"`
}

// Variant is one case of an enum.
type Variant struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields,omitempty"`
	Tuple  bool    `json:"tuple,omitempty"`
}

// Instruction is a callable entry point of the program.
type Instruction struct {
	Name          string    `json:"name"`
	Docs          []string  `json:"docs,omitempty"`
	Discriminator []byte    `json:"discriminator"`
	Args          []Arg     `json:"args"`
	Accounts      []Account `json:"accounts"`
}

// Arg is an instruction argument.
type Arg struct {
	Name string  `json:"name"`
	Type TypeRef `json:"type"`
}

// Account is an account an instruction reads or writes.
type Account struct {
	Name     string   `json:"name"`
	Docs     []string `json:"docs,omitempty"`
	Writable bool     `json:"writable"`
	Signer   bool     `json:"signer"`
	Optional bool     `json:"optional,omitempty"`

	// Address is set for accounts with a fixed on-chain address.
	Address string `json:"address,omitempty"`

	// PDA is set for accounts derived from seeds.
	PDA *PDA `json:"pda,omitempty"`
}

// PDA is a derived-address specification.
type PDA struct {
	Seeds []Seed `json:"seeds"`

	// Program overrides the deriving program. Nil derives from the
	// interface's own program address.
	Program Seed `json:"program,omitempty"`
}

// ErrorCode is a program-defined error.
type ErrorCode struct {
	Code    int    `json:"code"`
	Name    string `json:"name"`
	Message string `json:"msg,omitempty"`
}

// Arg returns the argument with the given name.
func (ix *Instruction) Arg(name string) (Arg, bool) {
	for _, a := range ix.Args {
		if a.Name == name {
			return a, true
		}
	}
	return Arg{}, false
}

// Account returns the account with the given name.
func (ix *Instruction) Account(name string) (Account, bool) {
	for _, a := range ix.Accounts {
		if a.Name == name {
			return a, true
		}
	}
	return Account{}, false
}

// DefaultDiscriminator computes the 8-byte instruction selector used when a
// document does not carry one: sha256("global:" + snake_case(name))[:8].
func DefaultDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("global:" + SnakeCase(name)))
	out := make([]byte, 8)
	copy(out, sum[:8])
	return out
}

// SnakeCase converts camelCase and PascalCase identifiers to snake_case.
// Identifiers that are already snake_case are returned unchanged.
func SnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && runes[i-1] != '_' {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
