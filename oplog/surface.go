package oplog

import (
	"context"
	"fmt"

	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/stitch"
)

// CommandSDL is the surface a write service exposes: one mutation that
// commits and replicates a record, plus the queues it replicates to.
const CommandSDL = `scalar JSON

type OperationRecord {
  id: ID!
  sequence: Int!
  operation: String!
  collection: String!
  identifier: String
  data: JSON
  occurred_at: String!
}

type Query {
  replicationTargets: [String!]!
}

type Mutation {
  record(operation: String!, collection: String!, identifier: ID, data: JSON): OperationRecord!
}
`

// NewCommandSurface exposes l through the gateway. The log itself is the
// authoritative data, so records are committed without a further mutation.
func NewCommandSurface(service string, l *Log, logger *log.Log) (*stitch.Surface, error) {
	resolvers := stitch.Resolvers{
		"Query.replicationTargets": func(context.Context, map[string]any) (any, error) {
			return l.Targets(), nil
		},
		"Mutation.record": func(ctx context.Context, args map[string]any) (any, error) {
			name, _ := args["operation"].(string)
			op, err := ParseKind(name)
			if err != nil {
				return nil, err
			}
			collection, _ := args["collection"].(string)
			identifier, _ := args["identifier"].(string)

			var data map[string]any
			switch v := args["data"].(type) {
			case nil:
			case map[string]any:
				data = v
			default:
				return nil, blame.InvalidQuery(fmt.Errorf("data must be an object, got %T", v))
			}
			return l.Record(ctx, op, collection, identifier, data, nil)
		},
	}
	return stitch.NewSurface(service, CommandSDL, resolvers, stitch.WithSurfaceLogger(logger))
}
