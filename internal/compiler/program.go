package compiler

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/roach88/solpm/internal/ir"
)

//go:embed interface.cue
var interfaceSchema string

// CompileOptions supplies identity fields a document may not carry itself.
type CompileOptions struct {
	// Filename is used in error positions.
	Filename string
	// Name is used when the document has no program name.
	Name string
	// Network is used when the document metadata has no network tag.
	Network ir.Network
}

// CompileProgram parses an interface document into a Program.
// Uses the CUE SDK's Go API to check the document's structure against the
// embedded schema before any model is built.
//
// The returned Program is not validated; pass it to Validate.
func CompileProgram(data []byte, opts CompileOptions) (*ir.Program, error) {
	filename := opts.Filename
	if filename == "" {
		filename = "interface.json"
	}

	if err := checkStructure(data, filename); err != nil {
		return nil, err
	}

	var doc rawDocument
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, &CompileError{Field: "document", Message: err.Error()}
	}

	if doc.Instructions == nil {
		return nil, &CompileError{Field: "instructions", Message: "instructions is required"}
	}

	c := &programCompiler{declared: make(map[string]bool)}
	return c.compile(&doc, opts)
}

// checkStructure unifies the document with the #Interface definition.
func checkStructure(data []byte, filename string) error {
	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(interfaceSchema, cue.Filename("interface.cue"))
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile interface schema: %w", schemaValue.Err())
	}

	expr, err := cuejson.Extract(filename, data)
	if err != nil {
		return formatCUEError(err)
	}
	docValue := ctx.BuildExpr(expr, cue.Filename(filename))
	if docValue.Err() != nil {
		return formatCUEError(docValue.Err())
	}

	unified := schemaValue.LookupPath(cue.ParsePath("#Interface")).Unify(docValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

type programCompiler struct {
	declared map[string]bool
}

func (c *programCompiler) compile(doc *rawDocument, opts CompileOptions) (*ir.Program, error) {
	p := &ir.Program{
		Identity: ir.Identity{
			Name:    firstNonEmpty(doc.Metadata.Name, doc.Name, opts.Name),
			Version: firstNonEmpty(doc.Metadata.Version, doc.Version),
			Address: firstNonEmpty(doc.Address, doc.Metadata.Address),
			Network: opts.Network,
		},
		Docs:   doc.Docs,
		Errors: doc.Errors,
	}
	if doc.Metadata.Network != "" {
		// An unknown tag is kept verbatim so validation can report it.
		n, err := ir.ParseNetwork(doc.Metadata.Network)
		if err != nil {
			n = ir.Network(doc.Metadata.Network)
		}
		p.Identity.Network = n
	}

	// Collect declared names first so bare-string references can be
	// classified as named types regardless of declaration order.
	for _, td := range doc.Types {
		c.declared[td.Name] = true
	}
	for _, acc := range doc.Accounts {
		if acc.Type != nil {
			c.declared[acc.Name] = true
		}
	}

	for i, td := range doc.Types {
		def, err := c.compileTypeDef(td.Name, td.Docs, &td.Type, fmt.Sprintf("types[%d]", i))
		if err != nil {
			return nil, err
		}
		p.Types = append(p.Types, def)
	}

	// Legacy documents carry account layouts inline instead of in types.
	for i, acc := range doc.Accounts {
		if acc.Type == nil {
			continue
		}
		if _, exists := p.Type(acc.Name); exists {
			continue
		}
		def, err := c.compileTypeDef(acc.Name, acc.Docs, acc.Type, fmt.Sprintf("accounts[%d]", i))
		if err != nil {
			return nil, err
		}
		p.Types = append(p.Types, def)
	}

	for i, rix := range doc.Instructions {
		ix, err := c.compileInstruction(&rix, fmt.Sprintf("instructions[%d]", i))
		if err != nil {
			return nil, err
		}
		p.Instructions = append(p.Instructions, ix)
	}

	return p, nil
}

func (c *programCompiler) compileTypeDef(name string, docs []string, body *rawTypeBody, field string) (ir.TypeDef, error) {
	def := ir.TypeDef{Name: name, Docs: docs}

	switch body.Kind {
	case "struct":
		fields, err := c.compileFields(body.Fields, field+".type.fields")
		if err != nil {
			return def, err
		}
		def.Body = ir.StructBody{Fields: fields}
	case "enum":
		var variants []ir.Variant
		for i, rv := range body.Variants {
			v, err := c.compileVariant(rv, fmt.Sprintf("%s.type.variants[%d]", field, i))
			if err != nil {
				return def, err
			}
			variants = append(variants, v)
		}
		def.Body = ir.EnumBody{Variants: variants}
	case "type":
		target, err := c.compileTypeRef(body.Alias, field+".type.alias")
		if err != nil {
			return def, err
		}
		def.Body = ir.AliasBody{Target: target}
	default:
		return def, &CompileError{Field: field + ".type.kind", Message: fmt.Sprintf("unsupported type kind %q", body.Kind)}
	}
	return def, nil
}

// compileFields handles both named fields and tuple structs. Tuple struct
// members are named positionally (field0, field1, ...).
func (c *programCompiler) compileFields(raw json.RawMessage, field string) ([]ir.Field, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, &CompileError{Field: field, Message: "fields must be a list"}
	}

	fields := make([]ir.Field, 0, len(elems))
	for i, elem := range elems {
		path := fmt.Sprintf("%s[%d]", field, i)
		var rf rawField
		if isNamedField(elem) {
			if err := json.Unmarshal(elem, &rf); err != nil {
				return nil, &CompileError{Field: path, Message: err.Error()}
			}
		} else {
			rf = rawField{Name: fmt.Sprintf("field%d", i), Type: elem}
		}
		t, err := c.compileTypeRef(rf.Type, path+".type")
		if err != nil {
			return nil, err
		}
		fields = append(fields, ir.Field{Name: rf.Name, Docs: rf.Docs, Type: t})
	}
	return fields, nil
}

func (c *programCompiler) compileVariant(rv rawVariant, field string) (ir.Variant, error) {
	v := ir.Variant{Name: rv.Name}
	for i, elem := range rv.Fields {
		path := fmt.Sprintf("%s.fields[%d]", field, i)
		if isNamedField(elem) {
			var rf rawField
			if err := json.Unmarshal(elem, &rf); err != nil {
				return v, &CompileError{Field: path, Message: err.Error()}
			}
			t, err := c.compileTypeRef(rf.Type, path+".type")
			if err != nil {
				return v, err
			}
			v.Fields = append(v.Fields, ir.Field{Name: rf.Name, Docs: rf.Docs, Type: t})
			continue
		}
		t, err := c.compileTypeRef(elem, path)
		if err != nil {
			return v, err
		}
		v.Tuple = true
		v.Fields = append(v.Fields, ir.Field{Type: t})
	}
	return v, nil
}

// compileTypeRef converts the polymorphic "type" value of a document.
func (c *programCompiler) compileTypeRef(raw json.RawMessage, field string) (ir.TypeRef, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, &CompileError{Field: field, Message: "type is required"}
	}

	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		if c.declared[name] {
			return ir.Named{Name: name}, nil
		}
		return ir.Primitive{Name: name}, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, &CompileError{Field: field, Message: fmt.Sprintf("type must be a string or object, got %s", raw)}
	}

	switch {
	case obj["defined"] != nil:
		return compileDefined(obj["defined"], field+".defined")
	case obj["option"] != nil:
		elem, err := c.compileTypeRef(obj["option"], field+".option")
		if err != nil {
			return nil, err
		}
		return ir.Option{Elem: elem}, nil
	case obj["coption"] != nil:
		// COption uses a 4-byte tag that has no model variant; the mapper
		// reports it as an unknown primitive and skips the owner.
		return ir.Primitive{Name: "coption"}, nil
	case obj["vec"] != nil:
		elem, err := c.compileTypeRef(obj["vec"], field+".vec")
		if err != nil {
			return nil, err
		}
		return ir.Vec{Elem: elem}, nil
	case obj["array"] != nil:
		var parts []json.RawMessage
		if err := json.Unmarshal(obj["array"], &parts); err != nil || len(parts) != 2 {
			return nil, &CompileError{Field: field + ".array", Message: "array must be [type, length]"}
		}
		elem, err := c.compileTypeRef(parts[0], field+".array[0]")
		if err != nil {
			return nil, err
		}
		var n int
		if err := json.Unmarshal(parts[1], &n); err != nil || n < 0 {
			return nil, &CompileError{Field: field + ".array[1]", Message: fmt.Sprintf("array length must be a non-negative integer, got %s", parts[1])}
		}
		return ir.Array{Elem: elem, Len: n}, nil
	case obj["generic"] != nil:
		return nil, &CompileError{Field: field, Message: "generic type parameters are not supported"}
	default:
		return nil, &CompileError{Field: field, Message: fmt.Sprintf("unrecognized type form %s", raw)}
	}
}

// compileDefined handles {"defined": "Name"} and {"defined": {"name": "Name"}}.
// A defined reference is always Named, even when nothing declares it.
func compileDefined(raw json.RawMessage, field string) (ir.TypeRef, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return ir.Named{Name: name}, nil
	}
	var obj struct {
		Name     string            `json:"name"`
		Generics []json.RawMessage `json:"generics"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil || obj.Name == "" {
		return nil, &CompileError{Field: field, Message: "defined must name a type"}
	}
	if len(obj.Generics) > 0 {
		return nil, &CompileError{Field: field, Message: "generic type parameters are not supported"}
	}
	return ir.Named{Name: obj.Name}, nil
}

func (c *programCompiler) compileInstruction(rix *rawInstruction, field string) (ir.Instruction, error) {
	ix := ir.Instruction{Name: rix.Name, Docs: rix.Docs}

	if len(rix.Discriminator) > 0 {
		ix.Discriminator = make([]byte, len(rix.Discriminator))
		for i, b := range rix.Discriminator {
			ix.Discriminator[i] = byte(b)
		}
	} else {
		ix.Discriminator = ir.DefaultDiscriminator(rix.Name)
	}

	for i, ra := range rix.Args {
		t, err := c.compileTypeRef(ra.Type, fmt.Sprintf("%s.args[%d].type", field, i))
		if err != nil {
			return ix, err
		}
		ix.Args = append(ix.Args, ir.Arg{Name: ra.Name, Type: t})
	}

	accounts, err := compileAccounts(rix.Accounts, field+".accounts")
	if err != nil {
		return ix, err
	}
	ix.Accounts = accounts
	return ix, nil
}

// compileAccounts flattens nested account groups in declared order.
func compileAccounts(raws []rawAccount, field string) ([]ir.Account, error) {
	var out []ir.Account
	for i, ra := range raws {
		path := fmt.Sprintf("%s[%d]", field, i)
		if len(ra.Accounts) > 0 {
			nested, err := compileAccounts(ra.Accounts, path+".accounts")
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
			continue
		}

		acc := ir.Account{
			Name:     ra.Name,
			Docs:     ra.Docs,
			Writable: ra.Writable || ra.IsMut,
			Signer:   ra.Signer || ra.IsSigner,
			Optional: ra.Optional || ra.IsOptional,
			Address:  ra.Address,
		}
		if ra.PDA != nil {
			pda, err := compilePDA(ra.PDA, path+".pda")
			if err != nil {
				return nil, err
			}
			acc.PDA = pda
		}
		out = append(out, acc)
	}
	return out, nil
}

func compilePDA(raw *rawPDA, field string) (*ir.PDA, error) {
	pda := &ir.PDA{}
	for i, rs := range raw.Seeds {
		s, err := compileSeed(rs, fmt.Sprintf("%s.seeds[%d]", field, i))
		if err != nil {
			return nil, err
		}
		pda.Seeds = append(pda.Seeds, s)
	}
	if raw.Program != nil {
		s, err := compileSeed(*raw.Program, field+".program")
		if err != nil {
			return nil, err
		}
		pda.Program = s
	}
	return pda, nil
}

func compileSeed(rs rawSeed, field string) (ir.Seed, error) {
	switch rs.Kind {
	case "const", "string":
		var str string
		if err := json.Unmarshal(rs.Value, &str); err == nil {
			return ir.StringSeed{Value: str}, nil
		}
		var ints []int
		if err := json.Unmarshal(rs.Value, &ints); err != nil {
			return nil, &CompileError{Field: field + ".value", Message: "constant seed must be a byte array or string"}
		}
		b := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, &CompileError{Field: fmt.Sprintf("%s.value[%d]", field, i), Message: fmt.Sprintf("byte out of range: %d", v)}
			}
			b[i] = byte(v)
		}
		return ir.LiteralSeed{Bytes: b}, nil
	case "arg":
		name, rest := splitPath(rs.Path)
		if name == "" {
			return nil, &CompileError{Field: field + ".path", Message: "argument seed requires a path"}
		}
		return ir.ArgSeed{Name: name, Path: rest}, nil
	case "account":
		name, rest := splitPath(rs.Path)
		if name == "" {
			return nil, &CompileError{Field: field + ".path", Message: "account seed requires a path"}
		}
		return ir.AccountSeed{Name: name, Path: rest}, nil
	default:
		return nil, &CompileError{Field: field + ".kind", Message: fmt.Sprintf("unsupported seed kind %q", rs.Kind)}
	}
}

func splitPath(path string) (string, string) {
	name, rest, _ := strings.Cut(strings.TrimSpace(path), ".")
	return name, rest
}

func isNamedField(raw json.RawMessage) bool {
	var probe struct {
		Name *string `json:"name"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return probe.Name != nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// CompileError reports a document that cannot be turned into a Program.
type CompileError struct {
	Field   string
	Message string
	Line    int
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts path and position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &CompileError{Field: "document", Message: err.Error()}
	}

	first := errs[0]
	ce := &CompileError{
		Field:   strings.Join(first.Path(), "."),
		Message: first.Error(),
	}
	if ce.Field == "" {
		ce.Field = "document"
	}
	if positions := errors.Positions(first); len(positions) > 0 {
		ce.Line = positions[0].Line()
	}
	return ce
}
