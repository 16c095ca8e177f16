// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package query builds composite search expressions for the RCSB PDB search
// service and renders them to its orgPdbCompositeQuery XML dialect.
//
// The remote service accepts a flat, ordered chain of refinements rather than
// an arbitrary boolean tree, so an Expression is an ordered list of
// (conjunction, clause) pairs and never nests.
package query

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Remote query type tags understood by the search service.
const (
	KindLigandName         = "org.pdb.query.simple.ChemCompNameQuery"
	KindHomologueReduction = "org.pdb.query.simple.HomologueReductionQuery"
)

// Defaults for the ligand name clause.
const (
	DefaultComparator = "Contains"
	DefaultPolymeric  = "Any"
)

// DefaultIdentityCutoff is the sequence identity cutoff sent with homologue
// reduction clauses built from the command line.
const DefaultIdentityCutoff = 90

// ErrEmptyExpression is returned when an expression without clauses is
// submitted or decoded.
var ErrEmptyExpression = errors.New("query expression has no clauses")

// Op is the conjunction joining a refinement to the refinements before it.
type Op string

const (
	OpOr  Op = "or"
	OpAnd Op = "and"
)

// ParseOp converts a conjunction name (case-insensitive) to an Op.
func ParseOp(s string) (Op, error) {
	switch Op(strings.ToLower(strings.TrimSpace(s))) {
	case OpOr:
		return OpOr, nil
	case OpAnd:
		return OpAnd, nil
	}
	return "", fmt.Errorf("unknown conjunction %q (want %q or %q)", s, OpOr, OpAnd)
}

// Param is a single named clause parameter rendered as <Name>Value</Name>.
type Param struct {
	Name  string
	Value string
}

// Clause is one atomic search condition. The zero value is not useful; build
// clauses with NewClause or one of the named constructors.
type Clause struct {
	kind   string
	params []Param
}

// NewClause returns a clause of the given remote query type. Parameters are
// rendered in the order given. Parameter names become element names and are
// not escaped; callers passing names from outside the program check them
// with ValidName first.
func NewClause(kind string, params ...Param) Clause {
	return Clause{kind: kind, params: append([]Param(nil), params...)}
}

// LigandName matches chemical components by name. Empty comparator and
// polymeric arguments fall back to DefaultComparator and DefaultPolymeric.
func LigandName(name, comparator, polymeric string) Clause {
	if comparator == "" {
		comparator = DefaultComparator
	}
	if polymeric == "" {
		polymeric = DefaultPolymeric
	}
	return NewClause(KindLigandName,
		Param{Name: "comparator", Value: comparator},
		Param{Name: "name", Value: name},
		Param{Name: "polymericType", Value: polymeric},
	)
}

// HomologueReduction keeps one representative per cluster of chains sharing
// at least cutoff percent sequence identity.
func HomologueReduction(cutoff int) Clause {
	return NewClause(KindHomologueReduction,
		Param{Name: "identityCutoff", Value: fmt.Sprintf("%d", cutoff)},
	)
}

// ValidName reports whether s is usable as a parameter element name: a
// letter or underscore followed by letters, digits, '-', '_' or '.'.
func ValidName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && (r == '-' || r == '.' || unicode.IsDigit(r)):
		default:
			return false
		}
	}
	return !strings.HasPrefix(strings.ToLower(s), "xml")
}

// Kind returns the remote query type tag.
func (c Clause) Kind() string { return c.kind }

// Params returns a copy of the clause parameters.
func (c Clause) Params() []Param { return append([]Param(nil), c.params...) }

// Param returns the value of the named parameter.
func (c Clause) Param(name string) (string, bool) {
	for _, p := range c.params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Refinement is one link of the composite query chain.
type Refinement struct {
	Op     Op
	Clause Clause
}

// Expression is an ordered chain of refinements. The first refinement's
// operator is always emitted but has no left-hand sibling to act on.
type Expression struct {
	refinements []Refinement
}

// FromClause wraps a single clause as a one-refinement expression joined by OR.
func FromClause(c Clause) Expression {
	return Expression{refinements: []Refinement{{Op: OpOr, Clause: c}}}
}

// Combine appends b to a. The operator of b's first refinement is replaced
// by op; a is left untouched, as are b's remaining operators. Chains built
// left to right therefore bind in submission order. Neither operand is
// modified.
func Combine(a, b Expression, op Op) Expression {
	out := make([]Refinement, 0, len(a.refinements)+len(b.refinements))
	out = append(out, a.refinements...)
	if len(b.refinements) > 0 {
		out = append(out, Refinement{Op: op, Clause: b.refinements[0].Clause})
		out = append(out, b.refinements[1:]...)
	}
	return Expression{refinements: out}
}

// CombineAnd is Combine(a, b, OpAnd).
func CombineAnd(a, b Expression) Expression { return Combine(a, b, OpAnd) }

// CombineOr is Combine(a, b, OpOr).
func CombineOr(a, b Expression) Expression { return Combine(a, b, OpOr) }

// Len returns the number of refinements.
func (e Expression) Len() int { return len(e.refinements) }

// IsEmpty reports whether the expression has no refinements.
func (e Expression) IsEmpty() bool { return len(e.refinements) == 0 }

// Refinements returns a copy of the refinement chain.
func (e Expression) Refinements() []Refinement {
	return append([]Refinement(nil), e.refinements...)
}

// String renders the expression; see Render.
func (e Expression) String() string { return Render(e) }

const (
	refinementIndent = "  "
	clauseIndent     = "      "
)

// Render writes the expression as an orgPdbCompositeQuery document. Each
// refinement becomes a queryRefinement block carrying its zero-based level,
// its conjunction and the clause fields. Parameter values are XML-escaped.
// The output is byte-stable for a given expression.
func Render(e Expression) string {
	var b strings.Builder
	b.WriteString(`<orgPdbCompositeQuery version="1.0">`)
	b.WriteString("\n")
	for level, r := range e.refinements {
		writeRefinement(&b, level, r)
		b.WriteString("\n")
	}
	b.WriteString("</orgPdbCompositeQuery>")
	return b.String()
}

func writeRefinement(b *strings.Builder, level int, r Refinement) {
	in := refinementIndent
	fmt.Fprintf(b, "\n%s<queryRefinement>\n", in)
	fmt.Fprintf(b, "%s  <queryRefinementLevel>%d</queryRefinementLevel>\n", in, level)
	fmt.Fprintf(b, "%s  <conjunctionType>%s</conjunctionType>\n", in, escape(string(r.Op)))
	fmt.Fprintf(b, "%s  <orgPdbQuery>\n", in)
	writeField(b, "queryType", r.Clause.kind)
	for _, p := range r.Clause.params {
		writeField(b, p.Name, p.Value)
	}
	fmt.Fprintf(b, "%s  </orgPdbQuery>\n", in)
	fmt.Fprintf(b, "%s</queryRefinement>\n", in)
}

func writeField(b *strings.Builder, tag, value string) {
	fmt.Fprintf(b, "%s<%s>%s</%s>\n", clauseIndent, tag, escape(value), tag)
}

// escape replaces XML markup characters in s with entities.
func escape(s string) string {
	var b strings.Builder
	// strings.Builder never returns a write error.
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
