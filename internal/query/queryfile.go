// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// File is the on-disk representation of an expression. A composed query can
// be saved, edited by hand and submitted again without rebuilding it from
// command-line arguments.
type File struct {
	Refinements []FileRefinement `yaml:"refinements"`
}

// FileRefinement stores one refinement in a serializable form.
type FileRefinement struct {
	Conjunction string      `yaml:"conjunction"`
	QueryType   string      `yaml:"query_type"`
	Params      []FileParam `yaml:"params,omitempty"`
}

// FileParam stores one clause parameter. A list keeps parameter order stable.
type FileParam struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// ToFile converts an expression into its serializable form.
func ToFile(e Expression) File {
	f := File{Refinements: make([]FileRefinement, 0, len(e.refinements))}
	for _, r := range e.refinements {
		fr := FileRefinement{
			Conjunction: string(r.Op),
			QueryType:   r.Clause.kind,
		}
		for _, p := range r.Clause.params {
			fr.Params = append(fr.Params, FileParam{Name: p.Name, Value: p.Value})
		}
		f.Refinements = append(f.Refinements, fr)
	}
	return f
}

// Expression converts stored refinements back into an Expression.
func (f File) Expression() (Expression, error) {
	if len(f.Refinements) == 0 {
		return Expression{}, ErrEmptyExpression
	}
	out := make([]Refinement, 0, len(f.Refinements))
	for i, fr := range f.Refinements {
		op, err := ParseOp(fr.Conjunction)
		if err != nil {
			return Expression{}, fmt.Errorf("refinement %d: %w", i, err)
		}
		if fr.QueryType == "" {
			return Expression{}, fmt.Errorf("refinement %d: missing query_type", i)
		}
		params := make([]Param, 0, len(fr.Params))
		for _, p := range fr.Params {
			if !ValidName(p.Name) {
				return Expression{}, fmt.Errorf("refinement %d: invalid parameter name %q", i, p.Name)
			}
			params = append(params, Param{Name: p.Name, Value: p.Value})
		}
		out = append(out, Refinement{Op: op, Clause: NewClause(fr.QueryType, params...)})
	}
	return Expression{refinements: out}, nil
}

// WriteFile saves e to path as YAML.
func WriteFile(path string, e Expression) error {
	f := ToFile(e)
	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile loads an expression previously saved with WriteFile.
func ReadFile(path string) (Expression, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Expression{}, fmt.Errorf("reading query file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Expression{}, fmt.Errorf("parsing query file: %w", err)
	}
	e, err := f.Expression()
	if err != nil {
		return Expression{}, fmt.Errorf("query file %s: %w", path, err)
	}
	return e, nil
}
