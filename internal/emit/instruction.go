package emit

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/gagliardetto/solana-go"

	"github.com/roach88/solpm/internal/derive"
	"github.com/roach88/solpm/internal/ir"
	"github.com/roach88/solpm/internal/typemap"
)

type accountSource int

const (
	callerAccount accountSource = iota
	derivedAccount
	fixedAccount
)

type plannedArg struct {
	arg  ir.Arg
	name string
	typ  typemap.Emitted
}

type plannedAccount struct {
	acc    ir.Account
	source accountSource
	name   string // parameter or local variable
	expr   string // address expression in the account list
	fn     *derive.Function
	deriv  *derivation
	// manual explains why a caller-supplied account cannot be filled in
	// automatically. Empty for signers.
	manual string
}

type instructionPlan struct {
	ix            *ir.Instruction
	constructor   string
	discriminator string
	args          []*plannedArg
	accounts      []*plannedAccount
	derived       []*plannedAccount // evaluation order
}

// derivation is one generated derived-address function, shared by every
// account with the same seed spec.
type derivation struct {
	fn *derive.Function
}

var wellKnownPrograms = map[solana.PublicKey]string{
	solana.SystemProgramID:    "solana.SystemProgramID",
	solana.TokenProgramID:     "solana.TokenProgramID",
	solana.Token2022ProgramID: "solana.Token2022ProgramID",
}

// reservedLocals are names the constructor body uses.
var reservedLocals = []string{"accounts", "bin", "binary", "buf", "bytes", "enc", "err", "errors", "fmt", "solana"}

type scope map[string]bool

func (g *generator) newScope() scope {
	s := make(scope)
	for _, name := range reservedLocals {
		s[name] = true
	}
	for name := range g.symbols {
		if r := []rune(name)[0]; !unicode.IsUpper(r) {
			s[name] = true
		}
	}
	return s
}

func (s scope) claim(base, suffix string) string {
	name := base
	if s[name] {
		name = base + suffix
	}
	for i := 2; s[name]; i++ {
		name = fmt.Sprintf("%s%s%d", base, suffix, i)
	}
	s[name] = true
	return name
}

func (g *generator) plan(ix *ir.Instruction) (*instructionPlan, error) {
	goName := typemap.GoName(ix.Name)
	p := &instructionPlan{
		ix:            ix,
		constructor:   "New" + goName + "Instruction",
		discriminator: goName + "Discriminator",
	}
	names := g.newScope()

	for _, a := range ix.Args {
		t, err := g.mapper.Map(a.Type)
		if err != nil {
			return nil, instructionError(ix, err)
		}
		p.args = append(p.args, &plannedArg{arg: a, name: names.claim(typemap.ParamName(a.Name), "Arg"), typ: t})
	}

	for _, a := range ix.Accounts {
		pa := &plannedAccount{acc: a, name: names.claim(typemap.ParamName(a.Name), "Account")}
		pa.expr = pa.name
		switch {
		case a.Address != "":
			pk, err := solana.PublicKeyFromBase58(a.Address)
			if err != nil {
				return nil, instructionError(ix, fmt.Errorf("account %s: %w", a.Name, err))
			}
			pa.source = fixedAccount
			pa.expr = addressExpr(pk)
		case a.PDA != nil:
			fn, err := derive.Synthesize(a.PDA, derive.Context{Instruction: ix, Account: a.Name, Mapper: g.mapper})
			var unsupported *derive.UnsupportedSeedError
			switch {
			case err == nil:
				pa.source = derivedAccount
				pa.fn = fn
			case errors.As(err, &unsupported):
				pa.manual = "seeds cannot be derived statically: " + unsupported.Reason
			default:
				return nil, instructionError(ix, err)
			}
		case !a.Signer:
			pa.manual = "no seeds or fixed address; supply it from application state"
		}
		p.accounts = append(p.accounts, pa)
	}

	p.orderDerivations()
	return p, nil
}

func instructionError(ix *ir.Instruction, err error) error {
	var upe *typemap.UnknownPrimitiveError
	if errors.As(err, &upe) {
		return &GenerationError{Kind: UnknownPrimitive, Instruction: ix.Name, Err: err}
	}
	return &GenerationError{Kind: InternalConsistency, Instruction: ix.Name, Err: err}
}

func addressExpr(pk solana.PublicKey) string {
	if name, ok := wellKnownPrograms[pk]; ok {
		return name
	}
	return fmt.Sprintf("solana.MustPublicKeyFromBase58(%q)", pk.String())
}

// orderDerivations sorts derived accounts so every account seed is
// computed before it is used. When derivations depend on each other in a
// cycle, the first pending account in declared order becomes a caller
// parameter.
func (p *instructionPlan) orderDerivations() {
	ready := make(map[string]bool)
	var pending []*plannedAccount
	for _, pa := range p.accounts {
		if pa.source == derivedAccount {
			pending = append(pending, pa)
		} else {
			ready[pa.acc.Name] = true
		}
	}

	for len(pending) > 0 {
		var next []*plannedAccount
		for _, pa := range pending {
			if dependenciesReady(pa.fn, ready) {
				p.derived = append(p.derived, pa)
				ready[pa.acc.Name] = true
			} else {
				next = append(next, pa)
			}
		}
		if len(next) == len(pending) {
			demoted := next[0]
			demoted.source = callerAccount
			demoted.fn = nil
			demoted.manual = "seeds depend on an account derived from this one"
			ready[demoted.acc.Name] = true
			next = next[1:]
		}
		pending = next
	}
}

func dependenciesReady(fn *derive.Function, ready map[string]bool) bool {
	for _, param := range fn.RuntimeParams() {
		if param.Kind == derive.AccountParam && !ready[param.Name] {
			return false
		}
	}
	return true
}

// commit reserves the constructor's package-level names and registers its
// derivations.
func (g *generator) commit(p *instructionPlan) error {
	if err := g.claim(p.constructor, "instruction "+p.ix.Name); err != nil {
		return err
	}
	if len(p.ix.Discriminator) > 0 {
		if err := g.claim(p.discriminator, "discriminator of "+p.ix.Name); err != nil {
			return err
		}
	}
	for _, pa := range p.derived {
		d, err := g.register(pa.fn, p.ix.Name)
		if err != nil {
			return err
		}
		pa.deriv = d
	}
	return nil
}

// register returns the shared function for fn's seed spec, naming a new
// one after its account and, on a clash, its instruction.
func (g *generator) register(fn *derive.Function, instruction string) (*derivation, error) {
	key := fn.Key()
	if d, ok := g.derivations[key]; ok {
		return d, nil
	}
	name := fn.Name
	if _, taken := g.symbols[name]; taken {
		base := "Find" + typemap.GoName(instruction) + typemap.GoName(fn.Account) + "Address"
		name = base
		for i := 2; ; i++ {
			if _, taken := g.symbols[name]; !taken {
				break
			}
			name = fmt.Sprintf("%s%d", base, i)
		}
	}
	fn.Name = name
	if err := g.claim(name, "derivation of "+fn.Account); err != nil {
		return nil, err
	}
	d := &derivation{fn: fn}
	g.derivations[key] = d
	g.derivOrder = append(g.derivOrder, d)
	return d, nil
}

func flags(a ir.Account) string {
	var out []string
	if a.Writable {
		out = append(out, "writable")
	}
	if a.Signer {
		out = append(out, "signer")
	}
	if a.Optional {
		out = append(out, "optional")
	}
	if len(out) == 0 {
		return ""
	}
	return " (" + strings.Join(out, ", ") + ")"
}

func (pa *plannedAccount) describe() string {
	var how string
	switch pa.source {
	case fixedAccount:
		how = "fixed address " + pa.acc.Address
	case derivedAccount:
		how = "derived with " + pa.deriv.fn.Name
	default:
		how = "parameter " + pa.name
		if pa.acc.Optional {
			how += ", pass ProgramID to omit"
		}
	}
	return pa.acc.Name + flags(pa.acc) + ": " + how
}

func (g *generator) wrapper(p *instructionPlan) {
	w := &g.w

	w.comment(fmt.Sprintf("%s builds the %s instruction.", p.constructor, p.ix.Name))
	if len(p.ix.Docs) > 0 {
		w.comment("")
		w.comment(p.ix.Docs...)
	}
	if len(p.accounts) > 0 {
		w.comment("", "Accounts:")
		for _, pa := range p.accounts {
			w.comment("  - " + pa.describe())
		}
	}
	var manual []*plannedAccount
	for _, pa := range p.accounts {
		if pa.source == callerAccount && pa.manual != "" {
			manual = append(manual, pa)
		}
	}
	if len(manual) > 0 {
		w.comment("", "Requires manual completion:")
		for _, pa := range manual {
			w.comment(fmt.Sprintf("  - %s%s: %s", pa.name, flags(pa.acc), pa.manual))
		}
	}

	var params []string
	for _, a := range p.args {
		params = append(params, a.name+" "+a.typ.Expr)
	}
	for _, pa := range p.accounts {
		if pa.source == callerAccount {
			params = append(params, pa.name+" solana.PublicKey")
		}
	}
	w.line("func %s(%s) (*solana.GenericInstruction, error) {", p.constructor, strings.Join(params, ", "))

	args := make(map[string]string, len(p.args))
	for _, a := range p.args {
		args[a.arg.Name] = a.name
	}
	accounts := make(map[string]string, len(p.accounts))
	for _, pa := range p.accounts {
		accounts[pa.acc.Name] = pa.expr
	}
	for _, pa := range p.derived {
		call := []string{"ProgramID"}
		for _, param := range pa.fn.RuntimeParams() {
			if param.Kind == derive.ArgParam {
				call = append(call, args[param.Name])
			} else {
				call = append(call, accounts[param.Name])
			}
		}
		w.line("%s, _, err := %s(%s)", pa.name, pa.deriv.fn.Name, strings.Join(call, ", "))
		w.line("if err != nil {")
		w.line("return nil, fmt.Errorf(%q, err)", "derive "+pa.acc.Name+": %w")
		w.line("}")
		w.line("")
	}

	data := "nil"
	if len(p.ix.Discriminator) > 0 || len(p.args) > 0 {
		data = "buf.Bytes()"
		w.line("buf := new(bytes.Buffer)")
		w.line("enc := bin.NewBorshEncoder(buf)")
		c := &encoder{w: w, ret: "return nil, err"}
		if len(p.ix.Discriminator) > 0 {
			c.check(fmt.Sprintf("enc.WriteBytes(%s, false)", p.discriminator))
		}
		for _, a := range p.args {
			c.value(a.name, a.typ, false)
		}
		w.line("")
	}

	metas := "nil"
	if len(p.accounts) > 0 {
		metas = "accounts"
		w.line("accounts := solana.AccountMetaSlice{")
		for _, pa := range p.accounts {
			w.line("solana.NewAccountMeta(%s, %t, %t),", pa.expr, pa.acc.Writable, pa.acc.Signer)
		}
		w.line("}")
	}
	w.line("return solana.NewInstruction(ProgramID, %s, %s), nil", metas, data)
	w.line("}")
	w.line("")
}
