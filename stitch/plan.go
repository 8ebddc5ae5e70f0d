package stitch

import (
	"bytes"
	"sort"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
)

// subRequest builds the query one backend receives: the root fields it
// owns, the fragments they reach and the variables they use.
func subRequest(doc *ast.QueryDocument, op *ast.OperationDefinition, fields ast.SelectionSet, req *Request) *Request {
	used := &usage{
		vars:  make(map[string]bool),
		frags: make(map[string]bool),
		doc:   doc,
	}
	used.selection(fields)

	sub := &ast.OperationDefinition{
		Operation:    op.Operation,
		Name:         op.Name,
		SelectionSet: fields,
	}
	for _, v := range op.VariableDefinitions {
		if used.vars[v.Variable] {
			sub.VariableDefinitions = append(sub.VariableDefinitions, v)
		}
	}
	out := &ast.QueryDocument{Operations: ast.OperationList{sub}}
	for _, f := range doc.Fragments {
		if used.frags[f.Name] {
			out.Fragments = append(out.Fragments, f)
		}
	}

	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatQueryDocument(out)

	var variables map[string]any
	for name := range used.vars {
		if v, ok := req.Variables[name]; ok {
			if variables == nil {
				variables = make(map[string]any)
			}
			variables[name] = v
		}
	}
	return &Request{
		Query:         buf.String(),
		OperationName: op.Name,
		Variables:     variables,
		Context:       req.Context,
	}
}

// References returns the variables and fragments sel refers to, following
// fragment spreads through doc. Both lists are sorted.
func References(doc *ast.QueryDocument, sel ast.SelectionSet) (vars, fragments []string) {
	used := &usage{vars: make(map[string]bool), frags: make(map[string]bool), doc: doc}
	used.selection(sel)
	for name := range used.vars {
		vars = append(vars, name)
	}
	for name := range used.frags {
		fragments = append(fragments, name)
	}
	sort.Strings(vars)
	sort.Strings(fragments)
	return vars, fragments
}

type usage struct {
	vars  map[string]bool
	frags map[string]bool
	doc   *ast.QueryDocument
}

func (u *usage) selection(sel ast.SelectionSet) {
	for _, s := range sel {
		switch s := s.(type) {
		case *ast.Field:
			for _, a := range s.Arguments {
				u.value(a.Value)
			}
			u.directives(s.Directives)
			u.selection(s.SelectionSet)
		case *ast.InlineFragment:
			u.directives(s.Directives)
			u.selection(s.SelectionSet)
		case *ast.FragmentSpread:
			u.directives(s.Directives)
			if u.frags[s.Name] {
				continue
			}
			u.frags[s.Name] = true
			if def := u.doc.Fragments.ForName(s.Name); def != nil {
				u.directives(def.Directives)
				u.selection(def.SelectionSet)
			}
		}
	}
}

func (u *usage) directives(list ast.DirectiveList) {
	for _, d := range list {
		for _, a := range d.Arguments {
			u.value(a.Value)
		}
	}
}

func (u *usage) value(v *ast.Value) {
	if v == nil {
		return
	}
	if v.Kind == ast.Variable {
		u.vars[v.Raw] = true
	}
	for _, c := range v.Children {
		u.value(c.Value)
	}
}
