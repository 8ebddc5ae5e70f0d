package oplog

import (
	"encoding/json"
	"time"
)

// Keys understood in the Data of relation records.
const (
	RelationKey = "relation"
	TargetKey   = "target"
)

// Record describes one committed mutation. Sequence is assigned by the
// Store on append and increases with commit order within one log.
type Record struct {
	ID         string         `json:"id"`
	Sequence   uint64         `json:"sequence"`
	Operation  Kind           `json:"operation"`
	Collection string         `json:"collection"`
	Identifier string         `json:"identifier,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Relation returns the relation name and target of a relation record.
func (r *Record) Relation() (name, target string) {
	name, _ = r.Data[RelationKey].(string)
	target, _ = r.Data[TargetKey].(string)
	return name, target
}

// normalizeData turns arbitrary Go values into the JSON shaped tree
// (map[string]any, []any, float64, string, bool, nil) every store and the
// binary codec agree on.
func normalizeData(data map[string]any) (map[string]any, error) {
	if data == nil {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
