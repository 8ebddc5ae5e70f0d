package respcache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/stitch"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"
)

// KeyPrefix starts every cache key.
const KeyPrefix = "respcache:"

type keyField struct {
	Alias      string                    `json:"alias"`
	Name       string                    `json:"name"`
	Args       map[string]any            `json:"args,omitempty"`
	Directives map[string]map[string]any `json:"directives,omitempty"`
	Selection  string                    `json:"selection,omitempty"`
	Vars       map[string]any            `json:"vars,omitempty"`
}

type keyMaterial struct {
	Service   string     `json:"service"`
	Operation string     `json:"operation"`
	Fields    []keyField `json:"fields"`
}

// Key derives the cache key of req sent to service. The second result is
// false for anything but a query operation. Argument values are resolved
// against the request variables, so a literal and a variable carrying the
// same value produce the same key.
func Key(service string, req *stitch.Request) (string, bool, error) {
	doc, perr := parser.ParseQuery(&ast.Source{Input: req.Query})
	if perr != nil {
		return "", false, blame.InvalidQuery(perr)
	}
	op := doc.Operations.ForName(req.OperationName)
	if op == nil || op.Operation != ast.Query {
		return "", false, nil
	}

	vars := make(map[string]any, len(req.Variables)+len(op.VariableDefinitions))
	for k, v := range req.Variables {
		vars[k] = v
	}
	for _, vd := range op.VariableDefinitions {
		if _, ok := vars[vd.Variable]; !ok && vd.DefaultValue != nil {
			v, err := vd.DefaultValue.Value(nil)
			if err != nil {
				return "", false, blame.InvalidQuery(err)
			}
			vars[vd.Variable] = v
		}
	}

	material := keyMaterial{Service: service, Operation: op.Name}
	for _, f := range topLevel(doc, op.SelectionSet) {
		kf, err := describe(doc, f, vars)
		if err != nil {
			return "", false, err
		}
		material.Fields = append(material.Fields, kf)
	}

	raw, err := json.Marshal(material)
	if err != nil {
		return "", false, blame.MarshalFailed(err)
	}
	sum := sha256.Sum256(raw)
	return KeyPrefix + hex.EncodeToString(sum[:]), true, nil
}

func topLevel(doc *ast.QueryDocument, sel ast.SelectionSet) []*ast.Field {
	var out []*ast.Field
	for _, s := range sel {
		switch s := s.(type) {
		case *ast.Field:
			out = append(out, s)
		case *ast.InlineFragment:
			out = append(out, topLevel(doc, s.SelectionSet)...)
		case *ast.FragmentSpread:
			if def := doc.Fragments.ForName(s.Name); def != nil {
				out = append(out, topLevel(doc, def.SelectionSet)...)
			}
		}
	}
	return out
}

func describe(doc *ast.QueryDocument, f *ast.Field, vars map[string]any) (keyField, error) {
	kf := keyField{Alias: f.Alias, Name: f.Name}
	if kf.Alias == "" {
		kf.Alias = f.Name
	}
	var err error
	if kf.Args, err = resolve(f.Arguments, vars); err != nil {
		return kf, err
	}
	for _, d := range f.Directives {
		args, err := resolve(d.Arguments, vars)
		if err != nil {
			return kf, err
		}
		if kf.Directives == nil {
			kf.Directives = make(map[string]map[string]any)
		}
		kf.Directives[d.Name] = args
	}
	if len(f.SelectionSet) == 0 {
		return kf, nil
	}

	// nested selections are keyed by their text plus the values of the
	// variables they mention
	names, frags := stitch.References(doc, f.SelectionSet)
	sub := &ast.QueryDocument{Operations: ast.OperationList{{Operation: ast.Query, SelectionSet: f.SelectionSet}}}
	for _, name := range frags {
		if def := doc.Fragments.ForName(name); def != nil {
			sub.Fragments = append(sub.Fragments, def)
		}
	}
	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatQueryDocument(sub)
	kf.Selection = buf.String()
	for _, name := range names {
		if kf.Vars == nil {
			kf.Vars = make(map[string]any, len(names))
		}
		kf.Vars[name] = vars[name]
	}
	return kf, nil
}

func resolve(args ast.ArgumentList, vars map[string]any) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(args))
	for _, a := range args {
		v, err := a.Value.Value(vars)
		if err != nil {
			return nil, blame.InvalidQuery(err)
		}
		out[a.Name] = v
	}
	return out, nil
}
