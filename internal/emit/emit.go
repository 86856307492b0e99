package emit

import (
	"bytes"
	"errors"
	"fmt"
	"go/format"
	"go/parser"
	"go/token"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/roach88/solpm/internal/compiler"
	"github.com/roach88/solpm/internal/ir"
	"github.com/roach88/solpm/internal/typemap"
)

// Options configures one generation pass.
type Options struct {
	// Package is the Go package name. Empty derives it from the program name.
	Package string
	// ImportPath, when set, is written as the package's import comment.
	ImportPath string
	Logger     *slog.Logger
}

// Module is a generated client package.
type Module struct {
	Package  string
	Source   []byte
	Warnings []Warning
	// Skipped lists the instructions left out of the package.
	Skipped []string
}

// Path returns where WriteTo places the package source under dir.
func (m *Module) Path(dir string) string {
	return filepath.Join(dir, m.Package, m.Package+".go")
}

// WriteTo writes the package source to <dir>/<package>/<package>.go and
// returns the file path. An existing file with identical content is left
// untouched.
func (m *Module) WriteTo(dir string) (string, error) {
	path := m.Path(dir)
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, m.Source) {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create client directory: %w", err)
	}
	if err := os.WriteFile(path, m.Source, 0o644); err != nil {
		return "", fmt.Errorf("write client source: %w", err)
	}
	return path, nil
}

// PackageName derives a Go package name from a program name: lower case
// letters and digits only, never starting with a digit.
func PackageName(program string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(program) {
		if r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	name := b.String()
	switch {
	case name == "":
		return "client"
	case unicode.IsDigit(rune(name[0])):
		return "p" + name
	}
	return name
}

type generator struct {
	program *ir.Program
	digest  string
	pkg     string
	path    string
	mapper  *typemap.Mapper
	logger  *slog.Logger

	w       writer
	symbols map[string]string

	derivations map[string]*derivation
	derivOrder  []*derivation

	warnings []Warning
	skipped  []string
}

// Emit generates the client package for a validated program.
func Emit(v *compiler.Validated, opts Options) (*Module, error) {
	if v == nil {
		return nil, internalError("no program")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	program := v.Program()
	pkg := opts.Package
	if pkg == "" {
		pkg = PackageName(program.Identity.Name)
	}
	if !token.IsIdentifier(pkg) || token.IsKeyword(pkg) {
		return nil, internalError("invalid package name %q", pkg)
	}

	g := &generator{
		program:     program,
		digest:      v.Digest(),
		pkg:         pkg,
		path:        opts.ImportPath,
		mapper:      typemap.NewMapper(v),
		logger:      logger,
		symbols:     make(map[string]string),
		derivations: make(map[string]*derivation),
	}

	src, err := g.generate()
	if err != nil {
		return nil, err
	}

	logger.Debug("client generated",
		"program", program.Identity.Name,
		"package", pkg,
		"instructions", len(program.Instructions)-len(g.skipped),
		"skipped", len(g.skipped),
	)
	return &Module{Package: pkg, Source: src, Warnings: g.warnings, Skipped: g.skipped}, nil
}

// claim reserves a package-level identifier.
func (g *generator) claim(name, owner string) error {
	if prev, ok := g.symbols[name]; ok {
		return internalError("identifier %s of %s collides with %s", name, owner, prev)
	}
	g.symbols[name] = owner
	return nil
}

func (g *generator) generate() ([]byte, error) {
	if err := g.programSection(); err != nil {
		return nil, err
	}
	if err := g.typeSection(); err != nil {
		return nil, err
	}

	var plans []*instructionPlan
	for i := range g.program.Instructions {
		ix := &g.program.Instructions[i]
		plan, err := g.plan(ix)
		var ge *GenerationError
		if errors.As(err, &ge) && ge.Kind == UnknownPrimitive {
			g.warnings = append(g.warnings, Warning{Instruction: ix.Name, Message: "skipped: " + ge.Err.Error()})
			g.skipped = append(g.skipped, ix.Name)
			g.logger.Warn("instruction skipped", "program", g.program.Identity.Name, "instruction", ix.Name, "error", ge.Err)
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := g.commit(plan); err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}

	g.discriminators(plans)
	for _, d := range g.derivOrder {
		g.w.WriteString(d.fn.Source())
		g.w.line("")
	}
	for _, p := range plans {
		g.wrapper(p)
	}
	return g.finish()
}

func (g *generator) programSection() error {
	id := g.program.Identity
	if err := g.claim("ProgramID", "program address"); err != nil {
		return err
	}
	g.w.comment(fmt.Sprintf("ProgramID is the address of the %s program on %s.", id.Name, id.Network))
	g.w.line("var ProgramID = solana.MustPublicKeyFromBase58(%q)", id.Address)
	g.w.line("")

	if len(g.program.Errors) == 0 {
		return nil
	}
	g.w.comment("Program error codes.")
	g.w.line("const (")
	for _, e := range g.program.Errors {
		name := "Err" + typemap.GoName(e.Name)
		if err := g.claim(name, "error "+e.Name); err != nil {
			return err
		}
		if e.Message != "" {
			g.w.line("%s uint32 = %d // %s", name, e.Code, oneLine(e.Message))
		} else {
			g.w.line("%s uint32 = %d", name, e.Code)
		}
	}
	g.w.line(")")
	g.w.line("")
	return nil
}

func (g *generator) typeSection() error {
	failed := g.mapper.DeclareAll()
	for _, td := range g.program.Types {
		err, ok := failed[td.Name]
		if !ok {
			continue
		}
		var upe *typemap.UnknownPrimitiveError
		if !errors.As(err, &upe) {
			return internalError("%v", err)
		}
		g.warnings = append(g.warnings, Warning{Type: td.Name, Message: "omitted: " + err.Error()})
		g.logger.Warn("type omitted", "program", g.program.Identity.Name, "type", td.Name, "error", err)
	}
	for _, d := range g.mapper.Declarations() {
		if err := g.typeDecl(d); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) discriminators(plans []*instructionPlan) {
	var found bool
	for _, p := range plans {
		if len(p.ix.Discriminator) > 0 {
			found = true
			break
		}
	}
	if !found {
		return
	}
	g.w.comment("Instruction discriminators.")
	g.w.line("var (")
	for _, p := range plans {
		if len(p.ix.Discriminator) == 0 {
			continue
		}
		parts := make([]string, len(p.ix.Discriminator))
		for i, b := range p.ix.Discriminator {
			parts[i] = fmt.Sprintf("0x%02x", b)
		}
		g.w.line("%s = []byte{%s}", p.discriminator, strings.Join(parts, ", "))
	}
	g.w.line(")")
	g.w.line("")
}

type importSpec struct {
	name string
	path string
}

var candidateImports = [][]importSpec{
	{
		{path: "bytes"},
		{path: "encoding/binary"},
		{path: "errors"},
		{path: "fmt"},
	},
	{
		{name: "bin", path: "github.com/gagliardetto/binary"},
		{name: "solana", path: "github.com/gagliardetto/solana-go"},
	},
}

func (g *generator) header() string {
	id := g.program.Identity
	var w writer
	w.comment("Code generated by solpm. DO NOT EDIT.")
	w.line("")
	w.comment(
		fmt.Sprintf("Package %s is a client for the %s program interface.", g.pkg, id.Name),
		"",
		"Program: "+id.Name+" "+id.Version,
		"Network: "+string(id.Network),
		"Address: "+id.Address,
	)
	if g.digest != "" {
		w.comment("Document digest: " + g.digest)
	}
	if g.path != "" {
		w.line("package %s // import %q", g.pkg, g.path)
	} else {
		w.line("package %s", g.pkg)
	}
	w.line("")
	return w.String()
}

func importBlock(groups [][]importSpec, keep func(importSpec) bool) string {
	var w writer
	var lines [][]string
	for _, group := range groups {
		var kept []string
		for _, spec := range group {
			if !keep(spec) {
				continue
			}
			if spec.name != "" {
				kept = append(kept, fmt.Sprintf("%s %q", spec.name, spec.path))
			} else {
				kept = append(kept, fmt.Sprintf("%q", spec.path))
			}
		}
		if len(kept) > 0 {
			lines = append(lines, kept)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	w.line("import (")
	for i, group := range lines {
		if i > 0 {
			w.line("")
		}
		for _, l := range group {
			w.line("%s", l)
		}
	}
	w.line(")")
	w.line("")
	return w.String()
}

// finish keeps only the imports the body refers to and formats the file.
func (g *generator) finish() ([]byte, error) {
	header := g.header()
	body := g.w.String()

	all := header + importBlock(candidateImports, func(importSpec) bool { return true }) + body
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, g.pkg+".go", all, parser.SkipObjectResolution)
	if err != nil {
		return nil, internalError("generated source does not parse: %v", err)
	}
	used := func(spec importSpec) bool { return astutil.UsesImport(f, spec.path) }

	out, err := format.Source([]byte(header + importBlock(candidateImports, used) + body))
	if err != nil {
		return nil, internalError("format generated source: %v", err)
	}
	return out, nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
