package projection

import (
	"context"
	"fmt"
	"strings"

	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/stitch"
)

// DefaultListLimit bounds list queries that do not pass a limit.
const DefaultListLimit = 50

// Field is one scalar exposed by a Schema. Type defaults to String.
type Field struct {
	Name string `mapstructure:"name" validate:"required"`
	Type string `mapstructure:"type"`
}

// Schema exposes one collection through a query surface.
type Schema struct {
	// Type is the GraphQL object type, e.g. "Entity".
	Type       string  `mapstructure:"type" validate:"required"`
	Collection string  `mapstructure:"collection" validate:"required"`
	Fields     []Field `mapstructure:"fields" validate:"dive"`
	// Relations are exposed as [ID!]! fields.
	Relations []string `mapstructure:"relations"`
	// Single and Plural name the root fields for lookup by id and listing.
	Single string `mapstructure:"single" validate:"required"`
	Plural string `mapstructure:"plural" validate:"required"`
}

func (s Schema) sdl(b *strings.Builder) {
	fmt.Fprintf(b, "type %s {\n  id: ID!\n", s.Type)
	for _, f := range s.Fields {
		typ := f.Type
		if typ == "" {
			typ = "String"
		}
		fmt.Fprintf(b, "  %s: %s\n", f.Name, typ)
	}
	for _, r := range s.Relations {
		fmt.Fprintf(b, "  %s: [ID!]!\n", r)
	}
	b.WriteString("}\n\n")
}

func (s Schema) view(doc *Document) map[string]any {
	out := make(map[string]any, 1+len(s.Fields)+len(s.Relations))
	out["id"] = doc.ID
	for _, f := range s.Fields {
		out[f.Name] = doc.Fields[f.Name]
	}
	for _, r := range s.Relations {
		targets := doc.Related(r)
		if targets == nil {
			targets = []string{}
		}
		out[r] = targets
	}
	return out
}

// SDL renders the schema of every collection plus their root fields.
func SDL(schemas ...Schema) string {
	var b strings.Builder
	for _, s := range schemas {
		s.sdl(&b)
	}
	b.WriteString("type Query {\n")
	for _, s := range schemas {
		fmt.Fprintf(&b, "  %s(id: ID!): %s\n", s.Single, s.Type)
		fmt.Fprintf(&b, "  %s(limit: Int = %d): [%s!]!\n", s.Plural, DefaultListLimit, s.Type)
	}
	b.WriteString("}\n")
	return b.String()
}

// NewSurface exposes the collections described by schemas from store.
// Deleted documents read as null.
func NewSurface(service string, store Store, logger *log.Log, schemas ...Schema) (*stitch.Surface, error) {
	resolvers := make(stitch.Resolvers, 2*len(schemas))
	for _, s := range schemas {
		resolvers["Query."+s.Single] = func(ctx context.Context, args map[string]any) (any, error) {
			id, _ := args["id"].(string)
			doc, err := store.Get(ctx, s.Collection, id)
			if err != nil {
				return nil, err
			}
			if doc == nil || doc.Deleted {
				return nil, nil
			}
			return s.view(doc), nil
		}
		resolvers["Query."+s.Plural] = func(ctx context.Context, args map[string]any) (any, error) {
			docs, err := store.List(ctx, s.Collection, limit(args["limit"]))
			if err != nil {
				return nil, err
			}
			out := make([]any, 0, len(docs))
			for _, doc := range docs {
				out = append(out, s.view(doc))
			}
			return out, nil
		}
	}
	return stitch.NewSurface(service, SDL(schemas...), resolvers, stitch.WithSurfaceLogger(logger))
}

func limit(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return DefaultListLimit
	}
}
