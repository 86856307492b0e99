package emit

import (
	"bytes"
	"errors"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"

	"github.com/roach88/solpm/internal/compiler"
	"github.com/roach88/solpm/internal/ir"
	"github.com/roach88/solpm/internal/testutil"
)

const testAddress = "GYVb4hWw8D22pkScWSZZB1QjT7jmuFkPCR1a9DCe1GjY"

func emitFixture(t *testing.T, name string) *Module {
	t.Helper()
	p, err := compiler.CompileProgram(testutil.Fixture(t, name), compiler.CompileOptions{Network: ir.Devnet})
	require.NoError(t, err)
	v, err := compiler.Validate(p)
	require.NoError(t, err)
	m, err := Emit(v, Options{})
	require.NoError(t, err)
	return m
}

func emitProgram(t *testing.T, p *ir.Program) (*Module, error) {
	t.Helper()
	v, err := compiler.Validate(p)
	require.NoError(t, err)
	return Emit(v, Options{Package: "demo"})
}

func program(instructions []ir.Instruction, types ...ir.TypeDef) *ir.Program {
	for i := range instructions {
		if instructions[i].Discriminator == nil {
			instructions[i].Discriminator = ir.DefaultDiscriminator(instructions[i].Name)
		}
	}
	return &ir.Program{
		Identity:     ir.Identity{Name: "demo", Version: "1.0.0", Address: testAddress, Network: ir.Localnet},
		Types:        types,
		Instructions: instructions,
	}
}

// params returns the parameter names of the named function in src.
func params(t *testing.T, src []byte, name string) []string {
	t.Helper()
	f, err := parser.ParseFile(token.NewFileSet(), "client.go", src, 0)
	require.NoError(t, err)
	for _, decl := range f.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Name.Name != name {
			continue
		}
		var out []string
		for _, field := range fn.Type.Params.List {
			for _, n := range field.Names {
				out = append(out, n.Name)
			}
		}
		return out
	}
	t.Fatalf("function %s not found", name)
	return nil
}

var (
	clientImportsOnce sync.Once
	clientImports     map[string]*types.Package
	clientImportsErr  error
)

// loadClientImports type-checks every package a generated client may import.
func loadClientImports() {
	var paths []string
	for _, group := range candidateImports {
		for _, spec := range group {
			paths = append(paths, spec.path)
		}
	}
	pkgs, err := packages.Load(&packages.Config{
		Mode: packages.NeedName | packages.NeedTypes | packages.NeedImports | packages.NeedDeps,
	}, paths...)
	if err != nil {
		clientImportsErr = err
		return
	}
	clientImports = make(map[string]*types.Package, len(pkgs))
	for _, pkg := range pkgs {
		if len(pkg.Errors) > 0 {
			clientImportsErr = pkg.Errors[0]
			return
		}
		clientImports[pkg.PkgPath] = pkg.Types
	}
}

type importerFunc func(path string) (*types.Package, error)

func (f importerFunc) Import(path string) (*types.Package, error) { return f(path) }

// typeCheck fails the test unless src is a well-typed Go file.
func typeCheck(t *testing.T, src []byte) {
	t.Helper()
	clientImportsOnce.Do(loadClientImports)
	require.NoError(t, clientImportsErr)

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "client.go", src, parser.ParseComments)
	require.NoError(t, err)

	conf := types.Config{Importer: importerFunc(func(path string) (*types.Package, error) {
		pkg, ok := clientImports[path]
		if !ok {
			return nil, errors.New("unexpected import " + path)
		}
		return pkg, nil
	})}
	_, err = conf.Check(f.Name.Name, fset, []*ast.File{f}, nil)
	require.NoError(t, err, "generated client does not type-check:\n%s", src)
}

func TestEmitGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".go.golden"),
	)

	for _, name := range []string{"vault", "counter"} {
		t.Run(name, func(t *testing.T) {
			fixture := name + ".json"
			if name == "counter" {
				fixture = "counter_legacy.json"
			}
			m := emitFixture(t, fixture)
			assert.Equal(t, name, m.Package)
			g.Assert(t, name, m.Source)
			typeCheck(t, m.Source)
		})
	}
}

func TestGoldenClientsTypeCheck(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "golden", "*.go.golden"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			src, err := os.ReadFile(path)
			require.NoError(t, err)
			typeCheck(t, src)
		})
	}
}

func TestEmitIsDeterministic(t *testing.T) {
	data := testutil.Fixture(t, "vault.json")

	var outputs [][]byte
	for range 3 {
		v, err := compiler.Load(data, compiler.CompileOptions{Network: ir.Devnet})
		require.NoError(t, err)
		m, err := Emit(v, Options{})
		require.NoError(t, err)
		assert.Contains(t, string(m.Source), "// Document digest: "+v.Digest()+"\n")
		outputs = append(outputs, m.Source)
	}
	assert.Equal(t, outputs[0], outputs[1])
	assert.Equal(t, outputs[0], outputs[2])
}

func TestEmitSkipsUnknownPrimitiveInstruction(t *testing.T) {
	m := emitFixture(t, "vault.json")

	assert.Equal(t, []string{"record_big"}, m.Skipped)
	require.Len(t, m.Warnings, 1)
	assert.Equal(t, "record_big", m.Warnings[0].Instruction)
	assert.Contains(t, m.Warnings[0].Message, `unknown primitive type "u256"`)
	assert.NotContains(t, string(m.Source), "RecordBig")
}

func TestEmitOmitsUnmappableType(t *testing.T) {
	m, err := emitProgram(t, program(
		[]ir.Instruction{{Name: "ping"}},
		ir.TypeDef{Name: "Wide", Body: ir.StructBody{Fields: []ir.Field{{Name: "v", Type: ir.Primitive{Name: "u256"}}}}},
	))
	require.NoError(t, err)

	require.Len(t, m.Warnings, 1)
	assert.Equal(t, "Wide", m.Warnings[0].Type)
	assert.NotContains(t, string(m.Source), "type Wide")
	assert.Contains(t, string(m.Source), "func NewPingInstruction() (*solana.GenericInstruction, error)")
}

func TestWrapperParameterOrder(t *testing.T) {
	m := emitFixture(t, "vault.json")
	assert.Equal(t, []string{"owner", "amount", "depositor", "depositorToken"}, params(t, m.Source, "NewDepositInstruction"))
	assert.Equal(t, []string{"owner", "config", "payer"}, params(t, m.Source, "NewInitializeInstruction"))

	// Args first, then every account that is neither derived nor fixed,
	// in declared order.
	m, err := emitProgram(t, program([]ir.Instruction{{
		Name: "mix",
		Args: []ir.Arg{
			{Name: "seed", Type: ir.Primitive{Name: "u64"}},
			{Name: "memo", Type: ir.Primitive{Name: "string"}},
		},
		Accounts: []ir.Account{
			{Name: "payer", Signer: true, Writable: true},
			{Name: "record", Writable: true, PDA: &ir.PDA{Seeds: []ir.Seed{ir.StringSeed{Value: "record"}, ir.ArgSeed{Name: "seed"}}}},
			{Name: "mint"},
			{Name: "system_program", Address: "11111111111111111111111111111111"},
			{Name: "seed", Signer: true},
		},
	}}))
	require.NoError(t, err)
	assert.Equal(t, []string{"seed", "memo", "payer", "mint", "seedAccount"}, params(t, m.Source, "NewMixInstruction"))
	assert.Contains(t, string(m.Source), "binary.LittleEndian.AppendUint64(nil, seed)")
	assert.Contains(t, string(m.Source), "\t\"encoding/binary\"\n")
	typeCheck(t, m.Source)
}

func TestEmitSharesDerivations(t *testing.T) {
	m := emitFixture(t, "vault.json")
	assert.Equal(t, 1, strings.Count(string(m.Source), "func FindVaultAddress("))
	assert.Equal(t, 2, strings.Count(string(m.Source), "FindVaultAddress(ProgramID, owner)"))
}

func TestEmitRenamesClashingDerivations(t *testing.T) {
	vaultAccount := func(seed string) ir.Account {
		return ir.Account{Name: "vault", Writable: true, PDA: &ir.PDA{Seeds: []ir.Seed{ir.StringSeed{Value: seed}}}}
	}
	m, err := emitProgram(t, program([]ir.Instruction{
		{Name: "open", Accounts: []ir.Account{vaultAccount("a")}},
		{Name: "close", Accounts: []ir.Account{vaultAccount("b")}},
	}))
	require.NoError(t, err)

	src := string(m.Source)
	assert.Contains(t, src, "func FindVaultAddress(")
	assert.Contains(t, src, "func FindCloseVaultAddress(")
	assert.Contains(t, src, "FindCloseVaultAddress(ProgramID)")
	typeCheck(t, m.Source)
}

func TestEmitSeparatesDerivationsByGoType(t *testing.T) {
	vault := ir.Account{Name: "vault", Writable: true, PDA: &ir.PDA{Seeds: []ir.Seed{ir.ArgSeed{Name: "seed"}}}}
	m, err := emitProgram(t, program([]ir.Instruction{
		{Name: "open_text", Args: []ir.Arg{{Name: "seed", Type: ir.Primitive{Name: "string"}}}, Accounts: []ir.Account{vault}},
		{Name: "open_blob", Args: []ir.Arg{{Name: "seed", Type: ir.Primitive{Name: "bytes"}}}, Accounts: []ir.Account{vault}},
	}))
	require.NoError(t, err)

	src := string(m.Source)
	assert.Contains(t, src, "func FindVaultAddress(programID solana.PublicKey, seed string)")
	assert.Contains(t, src, "func FindOpenBlobVaultAddress(programID solana.PublicKey, seed []byte)")
	assert.Contains(t, src, "vault, _, err := FindOpenBlobVaultAddress(ProgramID, seed)")
	typeCheck(t, m.Source)
}

func TestEmitDerivationParamsAvoidBodyIdentifiers(t *testing.T) {
	args := []ir.Arg{
		{Name: "solana", Type: ir.Primitive{Name: "u64"}},
		{Name: "binary", Type: ir.Primitive{Name: "u16"}},
		{Name: "flag", Type: ir.Primitive{Name: "bool"}},
		{Name: "flag_seed", Type: ir.Primitive{Name: "u8"}},
	}
	var seeds []ir.Seed
	for _, a := range args {
		seeds = append(seeds, ir.ArgSeed{Name: a.Name})
	}
	m, err := emitProgram(t, program([]ir.Instruction{{
		Name:     "stamp",
		Args:     args,
		Accounts: []ir.Account{{Name: "slot", Writable: true, PDA: &ir.PDA{Seeds: seeds}}},
	}}))
	require.NoError(t, err)

	src := string(m.Source)
	assert.Contains(t, src, "func FindSlotAddress(programID solana.PublicKey, solanaArg uint64, binaryArg uint16, flag bool, flagSeedArg uint8)")
	assert.Equal(t, []string{"solanaArg", "binaryArg", "flag", "flagSeed"}, params(t, m.Source, "NewStampInstruction"))
	assert.Contains(t, src, "slot, _, err := FindSlotAddress(ProgramID, solanaArg, binaryArg, flag, flagSeed)")
	typeCheck(t, m.Source)
}

func TestEmitOrdersDependentDerivations(t *testing.T) {
	m, err := emitProgram(t, program([]ir.Instruction{{
		Name: "link",
		Accounts: []ir.Account{
			{Name: "child", PDA: &ir.PDA{Seeds: []ir.Seed{ir.StringSeed{Value: "child"}, ir.AccountSeed{Name: "parent"}}}},
			{Name: "parent", PDA: &ir.PDA{Seeds: []ir.Seed{ir.StringSeed{Value: "parent"}, ir.AccountSeed{Name: "owner"}}}},
			{Name: "owner", Signer: true},
		},
	}}))
	require.NoError(t, err)

	src := string(m.Source)
	parent := strings.Index(src, "parent, _, err := FindParentAddress(ProgramID, owner)")
	child := strings.Index(src, "child, _, err := FindChildAddress(ProgramID, parent)")
	require.NotEqual(t, -1, parent)
	require.NotEqual(t, -1, child)
	assert.Less(t, parent, child)
	assert.Equal(t, []string{"owner"}, params(t, m.Source, "NewLinkInstruction"))
	typeCheck(t, m.Source)
}

func TestEmitBreaksDerivationCycles(t *testing.T) {
	m, err := emitProgram(t, program([]ir.Instruction{{
		Name: "tangle",
		Accounts: []ir.Account{
			{Name: "left", PDA: &ir.PDA{Seeds: []ir.Seed{ir.AccountSeed{Name: "right"}}}},
			{Name: "right", PDA: &ir.PDA{Seeds: []ir.Seed{ir.AccountSeed{Name: "left"}}}},
		},
	}}))
	require.NoError(t, err)

	assert.Equal(t, []string{"left"}, params(t, m.Source, "NewTangleInstruction"))
	src := string(m.Source)
	assert.Contains(t, src, "right, _, err := FindRightAddress(ProgramID, left)")
	assert.Contains(t, src, "seeds depend on an account derived from this one")
	typeCheck(t, m.Source)
}

func TestEmitAnnotatesNonDerivableSeeds(t *testing.T) {
	m, err := emitProgram(t, program([]ir.Instruction{{
		Name: "claim",
		Accounts: []ir.Account{
			{Name: "ticket", PDA: &ir.PDA{Seeds: []ir.Seed{ir.AccountSeed{Name: "pool", Path: "mint"}}}},
			{Name: "pool"},
		},
	}}))
	require.NoError(t, err)

	src := string(m.Source)
	assert.Equal(t, []string{"ticket", "pool"}, params(t, m.Source, "NewClaimInstruction"))
	assert.Contains(t, src, "//   - ticket: seeds cannot be derived statically: seed reads field \"mint\" of account pool data\n")
	assert.Contains(t, src, "//   - pool: no seeds or fixed address; supply it from application state\n")
	assert.NotContains(t, src, "func FindTicketAddress")
	typeCheck(t, m.Source)
}

func TestEmitTypeShapes(t *testing.T) {
	m, err := emitProgram(t, program(
		[]ir.Instruction{{
			Name: "configure",
			Args: []ir.Arg{
				{Name: "settings", Type: ir.Named{Name: "Settings"}},
				{Name: "amount", Type: ir.Named{Name: "Amount"}},
				{Name: "label", Type: ir.Named{Name: "Label"}},
				{Name: "steps", Type: ir.Vec{Elem: ir.Named{Name: "Step"}}},
				{Name: "scores", Type: ir.Array{Elem: ir.Primitive{Name: "i32"}, Len: 3}},
			},
		}},
		ir.TypeDef{Name: "Config", Body: ir.StructBody{Fields: []ir.Field{
			{Name: "big", Type: ir.Primitive{Name: "u128"}},
			{Name: "ratio", Type: ir.Primitive{Name: "f64"}},
			{Name: "enabled", Type: ir.Primitive{Name: "bool"}},
			{Name: "blob", Type: ir.Primitive{Name: "bytes"}},
			{Name: "maybe", Type: ir.Option{Elem: ir.Array{Elem: ir.Primitive{Name: "u16"}, Len: 2}}},
		}}},
		ir.TypeDef{Name: "Settings", Body: ir.AliasBody{Target: ir.Named{Name: "Config"}}},
		ir.TypeDef{Name: "Amount", Body: ir.AliasBody{Target: ir.Primitive{Name: "u64"}}},
		ir.TypeDef{Name: "Label", Body: ir.AliasBody{Target: ir.Primitive{Name: "string"}}},
		ir.TypeDef{Name: "Step", Body: ir.EnumBody{Variants: []ir.Variant{
			{Name: "Wait", Fields: []ir.Field{{Name: "slots", Type: ir.Primitive{Name: "u32"}}}},
			{Name: "Stop"},
		}}},
	))
	require.NoError(t, err)

	src := string(m.Source)
	for _, want := range []string{
		"type Settings = Config\n",
		"type Amount uint64\n",
		"enc.WriteUint64(uint64(v), bin.LE)",
		"enc.WriteString(string(v))",
		"enc.WriteUint128(v.Big, bin.LE)",
		"enc.WriteFloat64(v.Ratio, bin.LE)",
		"enc.WriteBool(v.Enabled)",
		"enc.WriteBytes(v.Blob, true)",
		"o0 := *v.Maybe",
		"enc.WriteUint16(e1, bin.LE)",
		"encodeStep(enc, e0)",
		"enc.WriteInt32(e1, bin.LE)",
		"func (StepStop) isStep() {}",
	} {
		assert.Contains(t, src, want)
	}
	assert.Equal(t, []string{"settings", "amount", "label", "steps", "scores"}, params(t, m.Source, "NewConfigureInstruction"))
	typeCheck(t, m.Source)
}

func TestEmitStaticProgramOverride(t *testing.T) {
	m, err := emitProgram(t, program([]ir.Instruction{{
		Name: "mint",
		Accounts: []ir.Account{
			{Name: "metadata", PDA: &ir.PDA{
				Seeds:   []ir.Seed{ir.StringSeed{Value: "metadata"}},
				Program: ir.StringSeed{Value: "11111111111111111111111111111111"},
			}},
		},
	}}))
	require.NoError(t, err)

	src := string(m.Source)
	assert.Contains(t, src, "func FindMetadataAddress(_ solana.PublicKey) (solana.PublicKey, uint8, error)")
	assert.Contains(t, src, "metadata, _, err := FindMetadataAddress(ProgramID)")
	typeCheck(t, m.Source)
}

func TestEmitIdentifierCollision(t *testing.T) {
	_, err := emitProgram(t, program(nil,
		ir.TypeDef{Name: "ProgramID", Body: ir.AliasBody{Target: ir.Primitive{Name: "u8"}}},
	))
	var ge *GenerationError
	require.True(t, errors.As(err, &ge), "got %v", err)
	assert.Equal(t, InternalConsistency, ge.Kind)
}

func TestEmitRejectsBadInput(t *testing.T) {
	_, err := Emit(nil, Options{})
	var ge *GenerationError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, InternalConsistency, ge.Kind)

	v, verr := compiler.Validate(program(nil))
	require.NoError(t, verr)
	_, err = Emit(v, Options{Package: "func"})
	require.True(t, errors.As(err, &ge))
}

func TestEmitImportComment(t *testing.T) {
	v, err := compiler.Validate(program(nil))
	require.NoError(t, err)
	m, err := Emit(v, Options{Package: "demo", ImportPath: "example.com/app/program/client/demo"})
	require.NoError(t, err)
	assert.Contains(t, string(m.Source), "package demo // import \"example.com/app/program/client/demo\"\n")
}

func TestPackageName(t *testing.T) {
	tests := map[string]string{
		"vault":        "vault",
		"feed-ana":     "feedana",
		"My_Program":   "myprogram",
		"2048":         "p2048",
		"":             "client",
		"ünïcode_prog": "ncodeprog",
	}
	for in, want := range tests {
		assert.Equal(t, want, PackageName(in), "PackageName(%q)", in)
	}
}

func TestModuleWriteTo(t *testing.T) {
	m := emitFixture(t, "counter_legacy.json")
	dir := t.TempDir()

	path, err := m.WriteTo(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "counter", "counter.go"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(m.Source, got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	again, err := m.WriteTo(dir)
	require.NoError(t, err)
	assert.Equal(t, path, again)
	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), after.ModTime())
}
