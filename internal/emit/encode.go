package emit

import (
	"fmt"
	"strings"

	"github.com/roach88/solpm/internal/typemap"
)

// writer accumulates generated source. gofmt fixes indentation at the
// end, so statements are written one per line without nesting.
type writer struct {
	strings.Builder
}

func (w *writer) line(format string, args ...any) {
	fmt.Fprintf(w, format, args...)
	w.WriteByte('\n')
}

func (w *writer) comment(lines ...string) {
	for _, l := range lines {
		for _, part := range strings.Split(l, "\n") {
			if part = strings.TrimRight(part, " \t"); part == "" {
				w.line("//")
				continue
			}
			w.line("// %s", part)
		}
	}
}

// encoder renders Borsh encode statements inside one function. ret is
// the statement that returns err from that function.
type encoder struct {
	w    *writer
	ret  string
	vars int
}

func (c *encoder) check(call string) {
	c.w.line("if err := %s; err != nil {", call)
	c.w.line("%s", c.ret)
	c.w.line("}")
}

func (c *encoder) local(prefix string) string {
	name := fmt.Sprintf("%s%d", prefix, c.vars)
	c.vars++
	return name
}

// value encodes expr of type e. named is set when expr has a defined type
// whose underlying type is e.Expr, so scalar writes need a conversion.
func (c *encoder) value(expr string, e typemap.Emitted, named bool) {
	switch codec := e.Codec.(type) {
	case typemap.Fixed:
		if named {
			expr = e.Expr + "(" + expr + ")"
		}
		c.check(fixedCall(expr, codec))
	case typemap.PublicKey:
		c.check(fmt.Sprintf("enc.WriteBytes(%s[:], false)", expr))
	case typemap.Prefixed:
		if codec.Raw {
			if e.Expr == "string" {
				if named {
					expr = "string(" + expr + ")"
				}
				c.check(fmt.Sprintf("enc.WriteString(%s)", expr))
			} else {
				c.check(fmt.Sprintf("enc.WriteBytes(%s, true)", expr))
			}
			return
		}
		c.check(fmt.Sprintf("enc.WriteLength(len(%s))", expr))
		elem := c.local("e")
		c.w.line("for _, %s := range %s {", elem, expr)
		c.value(elem, *codec.Elem, false)
		c.w.line("}")
	case typemap.FixedArray:
		if codec.Elem.IsByte() {
			c.check(fmt.Sprintf("enc.WriteBytes(%s[:], false)", expr))
			return
		}
		elem := c.local("e")
		c.w.line("for _, %s := range %s {", elem, expr)
		c.value(elem, *codec.Elem, false)
		c.w.line("}")
	case typemap.Optional:
		c.w.line("if %s == nil {", expr)
		c.check("enc.WriteOption(false)")
		c.w.line("} else {")
		c.check("enc.WriteOption(true)")
		if composite, ok := codec.Elem.Codec.(typemap.Composite); ok && composite.Decl.Resolve().Sealed {
			c.value(expr, *codec.Elem, false)
		} else {
			inner := c.local("o")
			c.w.line("%s := *%s", inner, expr)
			c.value(inner, *codec.Elem, false)
		}
		c.w.line("}")
	case typemap.Composite:
		if d := codec.Decl.Resolve(); d.Sealed {
			c.check(fmt.Sprintf("%s(enc, %s)", sealedEncoder(d), expr))
			return
		}
		c.check(expr + ".MarshalWithEncoder(enc)")
	default:
		panic(fmt.Sprintf("emit: unhandled codec %T", e.Codec))
	}
}

func fixedCall(expr string, f typemap.Fixed) string {
	switch {
	case f.Bool:
		return fmt.Sprintf("enc.WriteBool(%s)", expr)
	case f.Float:
		return fmt.Sprintf("enc.WriteFloat%d(%s, bin.LE)", f.Width*8, expr)
	case f.Width == 1 && f.Signed:
		return fmt.Sprintf("enc.WriteInt8(%s)", expr)
	case f.Width == 1:
		return fmt.Sprintf("enc.WriteUint8(%s)", expr)
	case f.Signed:
		return fmt.Sprintf("enc.WriteInt%d(%s, bin.LE)", f.Width*8, expr)
	default:
		return fmt.Sprintf("enc.WriteUint%d(%s, bin.LE)", f.Width*8, expr)
	}
}

// sealedEncoder names the helper that encodes a data-carrying enum
// interface value and rejects nil.
func sealedEncoder(d *typemap.Decl) string {
	return "encode" + d.GoName
}
