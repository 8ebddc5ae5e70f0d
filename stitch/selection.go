package stitch

import (
	"encoding/json"
	"reflect"

	"github.com/abhissng/conduit/blame"
	"github.com/vektah/gqlparser/v2/ast"
)

// collectFields flattens sel for an object of typeName, expanding fragments
// whose type condition matches and honouring @skip and @include.
func collectFields(sel ast.SelectionSet, typeName string, vars map[string]any) []*ast.Field {
	var out []*ast.Field
	for _, s := range sel {
		switch s := s.(type) {
		case *ast.Field:
			if included(s.Directives, vars) {
				out = append(out, s)
			}
		case *ast.InlineFragment:
			if included(s.Directives, vars) && matches(s.TypeCondition, typeName) {
				out = append(out, collectFields(s.SelectionSet, typeName, vars)...)
			}
		case *ast.FragmentSpread:
			if s.Definition == nil || !included(s.Directives, vars) {
				continue
			}
			if matches(s.Definition.TypeCondition, typeName) {
				out = append(out, collectFields(s.Definition.SelectionSet, typeName, vars)...)
			}
		}
	}
	return out
}

func matches(condition, typeName string) bool {
	return condition == "" || condition == typeName
}

func included(directives ast.DirectiveList, vars map[string]any) bool {
	for _, d := range directives {
		var arg *ast.Argument
		if arg = d.Arguments.ForName("if"); arg == nil {
			continue
		}
		v, err := arg.Value.Value(vars)
		if err != nil {
			continue
		}
		cond, _ := v.(bool)
		switch d.Name {
		case "skip":
			if cond {
				return false
			}
		case "include":
			if !cond {
				return false
			}
		}
	}
	return true
}

func responseKey(f *ast.Field) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// project keeps the fields sel asks for, renamed to their aliases.
func project(value any, sel ast.SelectionSet, typeName string, vars map[string]any) any {
	if value == nil || len(sel) == 0 {
		return value
	}
	switch v := value.(type) {
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = project(item, sel, typeName, vars)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(sel))
		for _, f := range collectFields(sel, typeName, vars) {
			key := responseKey(f)
			if f.Name == "__typename" {
				out[key] = typeName
				continue
			}
			child := ""
			if f.Definition != nil {
				child = f.Definition.Type.Name()
			}
			out[key] = project(v[f.Name], f.SelectionSet, child, vars)
		}
		return out
	default:
		return value
	}
}

// normalize converts a resolver result to plain JSON values.
func normalize(value any) (any, error) {
	switch value.(type) {
	case nil, string, bool, float64:
		return value, nil
	}
	if rv := reflect.ValueOf(value); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, blame.MarshalFailed(err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, blame.UnmarshalFailed(err)
	}
	return out, nil
}
