package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/solpm/internal/ir"
)

func structOf(fields ...ir.TypeRef) ir.StructBody {
	body := ir.StructBody{}
	for i, f := range fields {
		body.Fields = append(body.Fields, ir.Field{Name: string(rune('a' + i)), Type: f})
	}
	return body
}

func TestAnalyzeTypeCyclesAcyclic(t *testing.T) {
	p := &ir.Program{Types: []ir.TypeDef{
		{Name: "A", Body: structOf(ir.Named{Name: "B"})},
		{Name: "B", Body: structOf(ir.Primitive{Name: "u8"})},
	}}
	assert.Empty(t, AnalyzeTypeCycles(p))
}

func TestAnalyzeTypeCyclesSelfReference(t *testing.T) {
	p := &ir.Program{Types: []ir.TypeDef{
		{Name: "Node", Body: structOf(ir.Named{Name: "Node"})},
	}}

	cycles := AnalyzeTypeCycles(p)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"Node", "Node"}, cycles[0].Path)
	assert.Contains(t, cycles[0].Message, "contains itself")
}

func TestAnalyzeTypeCyclesMutual(t *testing.T) {
	p := &ir.Program{Types: []ir.TypeDef{
		{Name: "Leaf", Body: structOf(ir.Primitive{Name: "u8"})},
		{Name: "A", Body: structOf(ir.Named{Name: "B"})},
		{Name: "B", Body: structOf(ir.Array{Elem: ir.Named{Name: "C"}, Len: 2})},
		{Name: "C", Body: ir.AliasBody{Target: ir.Option{Elem: ir.Named{Name: "A"}}}},
	}}

	cycles := AnalyzeTypeCycles(p)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"A", "B", "C", "A"}, cycles[0].Path)
	assert.Equal(t, "cyclic type composition: A → B → C → A", cycles[0].Message)
}

func TestAnalyzeTypeCyclesThroughEnumVariant(t *testing.T) {
	p := &ir.Program{Types: []ir.TypeDef{
		{Name: "Expr", Body: ir.EnumBody{Variants: []ir.Variant{
			{Name: "Lit", Tuple: true, Fields: []ir.Field{{Type: ir.Primitive{Name: "u64"}}}},
			{Name: "Neg", Tuple: true, Fields: []ir.Field{{Type: ir.Named{Name: "Expr"}}}},
		}}},
	}}

	cycles := AnalyzeTypeCycles(p)
	require.Len(t, cycles, 1)
	assert.Equal(t, "Expr", cycles[0].Path[0])
}

func TestAnalyzeTypeCyclesBrokenByIndirection(t *testing.T) {
	tests := map[string]ir.TypeRef{
		"vec":          ir.Vec{Elem: ir.Named{Name: "Self"}},
		"empty array":  ir.Array{Elem: ir.Named{Name: "Self"}, Len: 0},
		"vec of array": ir.Vec{Elem: ir.Array{Elem: ir.Named{Name: "Self"}, Len: 4}},
	}

	for name, ref := range tests {
		t.Run(name, func(t *testing.T) {
			p := &ir.Program{Types: []ir.TypeDef{{Name: "Self", Body: structOf(ref)}}}
			assert.Empty(t, AnalyzeTypeCycles(p))
		})
	}
}

func TestAnalyzeTypeCyclesDeterministic(t *testing.T) {
	p := &ir.Program{Types: []ir.TypeDef{
		{Name: "X", Body: structOf(ir.Named{Name: "Y"})},
		{Name: "Y", Body: structOf(ir.Named{Name: "X"})},
		{Name: "P", Body: structOf(ir.Named{Name: "P"})},
	}}

	first := AnalyzeTypeCycles(p)
	for range 10 {
		assert.Equal(t, first, AnalyzeTypeCycles(p))
	}
	require.Len(t, first, 2)
	assert.Equal(t, "X", first[0].Path[0])
	assert.Equal(t, "P", first[1].Path[0])
}

func TestAnalyzeTypeCyclesIgnoresUndeclared(t *testing.T) {
	p := &ir.Program{Types: []ir.TypeDef{
		{Name: "A", Body: structOf(ir.Named{Name: "Ghost"})},
	}}
	assert.Empty(t, AnalyzeTypeCycles(p))
}
