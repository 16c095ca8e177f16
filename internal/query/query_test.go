// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ligand(name string) Expression {
	return FromClause(LigandName(name, "", ""))
}

// --- Clause constructors ---

func TestLigandNameDefaults(t *testing.T) {
	c := LigandName("HEM", "", "")
	assert.Equal(t, KindLigandName, c.Kind())
	assert.Equal(t, []Param{
		{Name: "comparator", Value: "Contains"},
		{Name: "name", Value: "HEM"},
		{Name: "polymericType", Value: "Any"},
	}, c.Params())
}

func TestLigandNameOverrides(t *testing.T) {
	c := LigandName("ATP", "Equals", "Free")
	v, ok := c.Param("comparator")
	require.True(t, ok)
	assert.Equal(t, "Equals", v)
	v, ok = c.Param("polymericType")
	require.True(t, ok)
	assert.Equal(t, "Free", v)
	_, ok = c.Param("missing")
	assert.False(t, ok)
}

func TestHomologueReduction(t *testing.T) {
	c := HomologueReduction(90)
	assert.Equal(t, KindHomologueReduction, c.Kind())
	v, ok := c.Param("identityCutoff")
	require.True(t, ok)
	assert.Equal(t, "90", v)
}

func TestClauseParamsIsCopy(t *testing.T) {
	c := LigandName("HEM", "", "")
	p := c.Params()
	p[1].Value = "XXX"
	v, _ := c.Param("name")
	assert.Equal(t, "HEM", v)
}

func TestValidName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"identityCutoff", true},
		{"polymericType", true},
		{"_private", true},
		{"a-b.c1", true},
		{"", false},
		{"1abc", false},
		{"-abc", false},
		{"x><evil", false},
		{"a b", false},
		{"ns:tag", false},
		{"xmlThing", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidName(tt.name))
		})
	}
}

func TestBuiltInClausesUseValidNames(t *testing.T) {
	for _, c := range []Clause{LigandName("HEM", "", ""), HomologueReduction(90)} {
		for _, p := range c.Params() {
			assert.True(t, ValidName(p.Name), p.Name)
		}
	}
}

// --- ParseOp ---

func TestParseOp(t *testing.T) {
	tests := []struct {
		in      string
		want    Op
		wantErr bool
	}{
		{"or", OpOr, false},
		{"AND", OpAnd, false},
		{" Or ", OpOr, false},
		{"xor", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOp(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// --- Combine ---

func TestFromClause(t *testing.T) {
	e := FromClause(HomologueReduction(90))
	require.Equal(t, 1, e.Len())
	assert.Equal(t, OpOr, e.Refinements()[0].Op)
}

func TestCombineLengthAndOperators(t *testing.T) {
	a := CombineAnd(ligand("A1"), ligand("A2")) // or A1, and A2
	b := CombineAnd(ligand("B1"), CombineOr(ligand("B2"), ligand("B3")))

	tests := []struct {
		name string
		op   Op
	}{
		{"and", OpAnd},
		{"or", OpOr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Combine(a, b, tt.op)
			ar, br, gr := a.Refinements(), b.Refinements(), got.Refinements()

			require.Equal(t, a.Len()+b.Len(), got.Len())
			assert.Equal(t, ar, gr[:len(ar)])
			assert.Equal(t, tt.op, gr[len(ar)].Op)
			assert.Equal(t, br[0].Clause, gr[len(ar)].Clause)
			assert.Equal(t, br[1:], gr[len(ar)+1:])
		})
	}
}

func TestCombineOverridesHeadOperatorOnly(t *testing.T) {
	// b starts with OR and carries an internal AND.
	b := CombineAnd(ligand("B1"), ligand("B2"))
	got := CombineAnd(ligand("A1"), b)

	ops := make([]Op, 0, got.Len())
	for _, r := range got.Refinements() {
		ops = append(ops, r.Op)
	}
	assert.Equal(t, []Op{OpOr, OpAnd, OpAnd}, ops)

	got = CombineOr(ligand("A1"), CombineOr(ligand("B1"), FromClause(HomologueReduction(50))))
	ops = ops[:0]
	for _, r := range got.Refinements() {
		ops = append(ops, r.Op)
	}
	assert.Equal(t, []Op{OpOr, OpOr, OpOr}, ops)
}

func TestCombineDoesNotMutateOperands(t *testing.T) {
	a := CombineAnd(ligand("A1"), ligand("A2"))
	b := CombineAnd(ligand("B1"), ligand("B2"))
	beforeA, beforeB := Render(a), Render(b)

	first := CombineOr(a, b)
	second := CombineAnd(a, ligand("C1"))

	assert.Equal(t, beforeA, Render(a))
	assert.Equal(t, beforeB, Render(b))
	assert.Equal(t, 4, first.Len())
	assert.Equal(t, 3, second.Len())
	// Appending to a twice must not let the second result overwrite the first.
	assert.Equal(t, "B1", mustParam(t, first.Refinements()[2].Clause, "name"))
	assert.Equal(t, "C1", mustParam(t, second.Refinements()[2].Clause, "name"))
}

func TestCombineWithEmpty(t *testing.T) {
	a := ligand("HEM")
	assert.Equal(t, a.Refinements(), Combine(a, Expression{}, OpAnd).Refinements())

	got := Combine(Expression{}, a, OpAnd)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, OpAnd, got.Refinements()[0].Op)
	assert.True(t, Expression{}.IsEmpty())
}

func mustParam(t *testing.T, c Clause, name string) string {
	t.Helper()
	v, ok := c.Param(name)
	require.True(t, ok, "missing param %s", name)
	return v
}

// --- Render ---

const hemQuery = `<orgPdbCompositeQuery version="1.0">

  <queryRefinement>
    <queryRefinementLevel>0</queryRefinementLevel>
    <conjunctionType>or</conjunctionType>
    <orgPdbQuery>
      <queryType>org.pdb.query.simple.ChemCompNameQuery</queryType>
      <comparator>Contains</comparator>
      <name>HEM</name>
      <polymericType>Any</polymericType>
    </orgPdbQuery>
  </queryRefinement>

</orgPdbCompositeQuery>`

func TestRenderSingleClause(t *testing.T) {
	got := Render(ligand("HEM"))
	assert.Equal(t, hemQuery, got)
	assert.Equal(t, 1, strings.Count(got, "<queryRefinement>"))
	assert.Contains(t, got, "<queryRefinementLevel>0</queryRefinementLevel>")
	assert.Contains(t, got, "<conjunctionType>or</conjunctionType>")
}

func TestRenderLevelsIncrement(t *testing.T) {
	e := CombineAnd(CombineOr(ligand("HEM"), FromClause(HomologueReduction(90))), ligand("ATP"))
	got := e.String()

	assert.Equal(t, 3, strings.Count(got, "<queryRefinement>"))
	i0 := strings.Index(got, "<queryRefinementLevel>0<")
	i1 := strings.Index(got, "<queryRefinementLevel>1<")
	i2 := strings.Index(got, "<queryRefinementLevel>2<")
	require.True(t, i0 >= 0 && i1 > i0 && i2 > i1, "levels out of order:\n%s", got)
	assert.Contains(t, got[i1:i2], "<conjunctionType>or</conjunctionType>")
	assert.Contains(t, got[i1:i2], "<identityCutoff>90</identityCutoff>")
	assert.Contains(t, got[i2:], "<conjunctionType>and</conjunctionType>")
	assert.True(t, strings.HasSuffix(got, "</orgPdbCompositeQuery>"))
}

func TestRenderDeterministic(t *testing.T) {
	build := func() Expression {
		return CombineOr(ligand("HEM"), FromClause(HomologueReduction(90)))
	}
	assert.Equal(t, Render(build()), Render(build()))
	e := build()
	assert.Equal(t, Render(e), Render(e))
}

func TestRenderEscapesValues(t *testing.T) {
	got := Render(ligand(`</name><x>&"`))
	assert.Contains(t, got, "<name>&lt;/name&gt;&lt;x&gt;&amp;&#34;</name>")
	assert.NotContains(t, got, "<x>")
}

func TestRenderEmpty(t *testing.T) {
	assert.Equal(t, "<orgPdbCompositeQuery version=\"1.0\">\n</orgPdbCompositeQuery>", Render(Expression{}))
}
