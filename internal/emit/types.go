package emit

import (
	"fmt"

	"github.com/roach88/solpm/internal/typemap"
)

func (g *generator) typeDecl(d *typemap.Decl) error {
	switch d.Kind {
	case typemap.StructDecl:
		return g.structDecl(d)
	case typemap.EnumDecl:
		if d.Sealed {
			return g.sealedEnumDecl(d)
		}
		return g.unitEnumDecl(d)
	case typemap.AliasDecl:
		return g.aliasDecl(d)
	default:
		return internalError("type %s: unhandled declaration kind %s", d.Name, d.Kind)
	}
}

func (g *generator) docComment(name string, docs []string, fallback string) {
	if len(docs) == 0 {
		g.w.comment(fmt.Sprintf("%s %s", name, fallback))
		return
	}
	g.w.comment(docs...)
}

func (g *generator) fields(fields []typemap.MappedField) {
	for _, f := range fields {
		if len(f.Docs) > 0 {
			g.w.comment(f.Docs...)
		}
		g.w.line("%s %s", f.GoName, f.Type.Expr)
	}
}

func (g *generator) structDecl(d *typemap.Decl) error {
	if err := g.claim(d.GoName, "type "+d.Name); err != nil {
		return err
	}
	g.docComment(d.GoName, d.Docs, fmt.Sprintf("is the %s account or argument type.", d.Name))
	g.w.line("type %s struct {", d.GoName)
	g.fields(d.Fields)
	g.w.line("}")
	g.w.line("")
	g.marshaler(d.GoName, func(c *encoder) {
		for _, f := range d.Fields {
			c.value("v."+f.GoName, f.Type, false)
		}
	})
	return nil
}

func (g *generator) unitEnumDecl(d *typemap.Decl) error {
	if len(d.Variants) > 256 {
		return internalError("enum %s has %d variants, more than a one-byte tag holds", d.Name, len(d.Variants))
	}
	if err := g.claim(d.GoName, "type "+d.Name); err != nil {
		return err
	}
	g.docComment(d.GoName, d.Docs, fmt.Sprintf("enumerates the %s variants.", d.Name))
	g.w.line("type %s uint8", d.GoName)
	g.w.line("")
	if len(d.Variants) > 0 {
		g.w.line("const (")
		for i, v := range d.Variants {
			name := d.GoName + v.GoName
			if err := g.claim(name, "variant "+d.Name+"::"+v.Name); err != nil {
				return err
			}
			if i == 0 {
				g.w.line("%s %s = iota", name, d.GoName)
			} else {
				g.w.line("%s", name)
			}
		}
		g.w.line(")")
		g.w.line("")
	}
	g.marshaler(d.GoName, func(c *encoder) {
		c.check("enc.WriteUint8(uint8(v))")
	})
	return nil
}

// sealedEnumDecl renders an enum with data-carrying variants as an
// interface implemented by one struct per variant.
func (g *generator) sealedEnumDecl(d *typemap.Decl) error {
	if len(d.Variants) > 256 {
		return internalError("enum %s has %d variants, more than a one-byte tag holds", d.Name, len(d.Variants))
	}
	helper := sealedEncoder(d)
	if err := g.claim(d.GoName, "type "+d.Name); err != nil {
		return err
	}
	if err := g.claim(helper, "encoder of "+d.Name); err != nil {
		return err
	}
	marker := "is" + d.GoName

	g.docComment(d.GoName, d.Docs, fmt.Sprintf("is one of the %s variants.", d.Name))
	g.w.line("type %s interface {", d.GoName)
	g.w.line("MarshalWithEncoder(enc *bin.Encoder) error")
	g.w.line("%s()", marker)
	g.w.line("}")
	g.w.line("")

	for i, v := range d.Variants {
		name := d.GoName + v.GoName
		if err := g.claim(name, "variant "+d.Name+"::"+v.Name); err != nil {
			return err
		}
		g.w.comment(fmt.Sprintf("%s is the %s variant of %s.", name, v.Name, d.GoName))
		if len(v.Fields) == 0 {
			g.w.line("type %s struct{}", name)
		} else {
			g.w.line("type %s struct {", name)
			g.fields(v.Fields)
			g.w.line("}")
		}
		g.w.line("")
		g.w.line("func (%s) %s() {}", name, marker)
		g.w.line("")
		tag := i
		g.marshaler(name, func(c *encoder) {
			c.check(fmt.Sprintf("enc.WriteUint8(%d)", tag))
			for _, f := range v.Fields {
				c.value("v."+f.GoName, f.Type, false)
			}
		})
	}

	g.w.line("func %s(enc *bin.Encoder, v %s) error {", helper, d.GoName)
	g.w.line("if v == nil {")
	g.w.line("return errors.New(%q)", fmt.Sprintf("%s: nil %s value", g.pkg, d.GoName))
	g.w.line("}")
	g.w.line("return v.MarshalWithEncoder(enc)")
	g.w.line("}")
	g.w.line("")
	return nil
}

// aliasDecl renders an alias. Aliases of declared types are Go type
// aliases and share the target's encoder; other aliases are defined types
// with their own.
func (g *generator) aliasDecl(d *typemap.Decl) error {
	if err := g.claim(d.GoName, "type "+d.Name); err != nil {
		return err
	}
	if d.Target == nil {
		return internalError("alias %s has no target", d.Name)
	}
	g.docComment(d.GoName, d.Docs, fmt.Sprintf("is the %s type.", d.Name))
	if opt, ok := d.Target.Codec.(typemap.Optional); ok {
		if c, ok := opt.Elem.Codec.(typemap.Composite); ok && c.Decl.Resolve().Sealed {
			return internalError("alias %s: optional %s cannot carry methods", d.Name, c.Decl.GoName)
		}
	}
	if _, ok := d.Target.Codec.(typemap.Composite); ok {
		g.w.line("type %s = %s", d.GoName, d.Target.Expr)
		g.w.line("")
		return nil
	}
	g.w.line("type %s %s", d.GoName, d.Target.Expr)
	g.w.line("")
	target := *d.Target
	g.marshaler(d.GoName, func(c *encoder) {
		c.value("v", target, true)
	})
	return nil
}

func (g *generator) marshaler(typeName string, body func(c *encoder)) {
	g.w.comment(fmt.Sprintf("MarshalWithEncoder writes the Borsh encoding of %s.", typeName))
	g.w.line("func (v %s) MarshalWithEncoder(enc *bin.Encoder) error {", typeName)
	body(&encoder{w: &g.w, ret: "return err"})
	g.w.line("return nil")
	g.w.line("}")
	g.w.line("")
}
