package derive

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Source renders the derivation as a Go function. The rendered code
// imports solana ("github.com/gagliardetto/solana-go") and, for integer
// seeds, "encoding/binary".
func (fn *Function) Source() string {
	var b strings.Builder

	fmt.Fprintf(&b, "// %s derives the %s account address.\n", fn.Name, fn.Account)
	fmt.Fprintf(&b, "// Seeds: %s.\n", fn.describeSeeds())
	if fn.Program != nil {
		fmt.Fprintf(&b, "// The address is derived under program %s, not programID.\n", fn.Program)
	}

	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		name := p.GoName
		if p.Kind == ProgramParam && fn.Program != nil {
			name = "_"
		}
		params[i] = name + " " + p.GoType
	}
	fmt.Fprintf(&b, "func %s(%s) (solana.PublicKey, uint8, error) {\n", fn.Name, strings.Join(params, ", "))

	for _, p := range fn.RuntimeParams() {
		if p.Encoding.Kind == BoolByte {
			fmt.Fprintf(&b, "\tvar %sSeed byte\n\tif %s {\n\t\t%sSeed = 1\n\t}\n", p.GoName, p.GoName, p.GoName)
		}
	}

	program := "programID"
	if fn.Program != nil {
		program = fmt.Sprintf("solana.MustPublicKeyFromBase58(%q)", fn.Program.String())
	}

	b.WriteString("\treturn solana.FindProgramAddress([][]byte{\n")
	for _, s := range fn.Seeds {
		b.WriteString("\t\t" + seedExpr(s) + ",\n")
	}
	fmt.Fprintf(&b, "\t}, %s)\n}\n", program)
	return b.String()
}

// UsesBinary reports whether the rendered source needs "encoding/binary".
func (fn *Function) UsesBinary() bool {
	for _, p := range fn.RuntimeParams() {
		if p.Encoding.Kind == LittleEndian {
			return true
		}
	}
	return false
}

func (fn *Function) describeSeeds() string {
	if len(fn.Seeds) == 0 {
		return "none"
	}
	parts := make([]string, len(fn.Seeds))
	for i, s := range fn.Seeds {
		if s.Param == nil {
			if printable(s.Static) {
				parts[i] = strconv.Quote(string(s.Static))
			} else {
				parts[i] = fmt.Sprintf("0x%x", s.Static)
			}
			continue
		}
		parts[i] = fmt.Sprintf("%s (%s)", s.Param.Name, s.Param.Encoding.Source)
	}
	return strings.Join(parts, ", ")
}

func seedExpr(s SeedPart) string {
	if s.Param == nil {
		return staticExpr(s.Static)
	}
	p := s.Param
	switch p.Encoding.Kind {
	case RawBytes:
		switch {
		case p.Encoding.Width > 0:
			return p.GoName + "[:]"
		case p.GoType == "string":
			return "[]byte(" + p.GoName + ")"
		default:
			return p.GoName
		}
	case PubkeyBytes:
		return p.GoName + "[:]"
	case SingleByte:
		if p.Encoding.Signed {
			return "{byte(" + p.GoName + ")}"
		}
		return "{" + p.GoName + "}"
	case BoolByte:
		return "{" + p.GoName + "Seed}"
	case LittleEndian:
		switch p.Encoding.Width {
		case 16:
			return fmt.Sprintf("binary.LittleEndian.AppendUint64(binary.LittleEndian.AppendUint64(nil, %s.Lo), %s.Hi)", p.GoName, p.GoName)
		default:
			bits := p.Encoding.Width * 8
			value := p.GoName
			if p.Encoding.Signed {
				value = fmt.Sprintf("uint%d(%s)", bits, p.GoName)
			}
			return fmt.Sprintf("binary.LittleEndian.AppendUint%d(nil, %s)", bits, value)
		}
	default:
		panic(fmt.Sprintf("derive: unhandled seed encoding %d", p.Encoding.Kind))
	}
}

// staticExpr renders known seed bytes. Composite literal elements of a
// [][]byte may omit the []byte type, so byte lists are written as {..}.
func staticExpr(b []byte) string {
	if len(b) > 0 && printable(b) {
		return "[]byte(" + strconv.Quote(string(b)) + ")"
	}
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = fmt.Sprintf("0x%02x", c)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func printable(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
