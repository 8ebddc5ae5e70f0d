// Package projection keeps read-side copies of collections up to date by
// applying the operation records a write service replicates.
package projection

import (
	"context"
	"maps"
	"slices"
	"time"
)

// Document is the projected state of one record. A deleted document is
// kept as a tombstone so that a late redelivery of an older record cannot
// bring it back.
type Document struct {
	Collection string              `json:"collection" bson:"collection"`
	ID         string              `json:"id" bson:"identifier"`
	Fields     map[string]any      `json:"fields,omitempty" bson:"fields,omitempty"`
	Relations  map[string][]string `json:"relations,omitempty" bson:"relations,omitempty"`
	Version    uint64              `json:"version" bson:"version"`
	Deleted    bool                `json:"deleted,omitempty" bson:"deleted,omitempty"`
	UpdatedAt  time.Time           `json:"updated_at" bson:"updated_at"`
}

// Store persists documents.
type Store interface {
	// Get returns the document including tombstones, or nil, nil if the
	// identifier was never written.
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Put inserts or replaces doc.
	Put(ctx context.Context, doc *Document) error
	// List returns up to limit live documents of collection ordered by id.
	List(ctx context.Context, collection string, limit int) ([]*Document, error)
}

// Clone returns a deep copy of the document's maps and slices. Field values
// themselves are shared.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Fields = maps.Clone(d.Fields)
	if d.Relations != nil {
		c.Relations = make(map[string][]string, len(d.Relations))
		for name, targets := range d.Relations {
			c.Relations[name] = slices.Clone(targets)
		}
	}
	return &c
}

// Related returns the targets of relation name.
func (d *Document) Related(name string) []string {
	return d.Relations[name]
}

func (d *Document) link(name, target string) {
	if d.Relations == nil {
		d.Relations = make(map[string][]string)
	}
	targets := d.Relations[name]
	i, found := slices.BinarySearch(targets, target)
	if found {
		return
	}
	d.Relations[name] = slices.Insert(targets, i, target)
}

func (d *Document) unlink(name, target string) {
	targets := d.Relations[name]
	i, found := slices.BinarySearch(targets, target)
	if !found {
		return
	}
	targets = slices.Delete(targets, i, i+1)
	if len(targets) == 0 {
		delete(d.Relations, name)
		return
	}
	d.Relations[name] = targets
}
