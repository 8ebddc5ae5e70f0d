package projection

import (
	"context"

	"github.com/abhissng/conduit/adapters/mongo"
	"github.com/abhissng/conduit/blame"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultMongoCollection holds every projected document.
const DefaultMongoCollection = "projections"

type mongoDocument struct {
	Key      string `bson:"_id"`
	Document `bson:",inline"`
}

// MongoStore keeps documents in one MongoDB collection keyed by
// collection and identifier.
type MongoStore struct {
	docs *mongo.Collection[mongoDocument]
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore uses the named collection of m's database and ensures its
// listing index.
func NewMongoStore(ctx context.Context, m *mongo.MongoManager, collection string) (*MongoStore, error) {
	if collection == "" {
		collection = DefaultMongoCollection
	}
	s := &MongoStore{docs: mongo.GetCollection[mongoDocument](m, collection)}
	if err := s.docs.EnsureIndex(ctx, "collection", "identifier"); err != nil {
		return nil, blame.StoreFailed("ensure-index", err)
	}
	return s, nil
}

func mongoKey(collection, id string) string {
	return collection + "/" + id
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	found, err := s.docs.FindOne(ctx, bson.M{"_id": mongoKey(collection, id)})
	if err != nil {
		return nil, blame.StoreFailed("get", err)
	}
	if found == nil {
		return nil, nil
	}
	return &found.Document, nil
}

func (s *MongoStore) Put(ctx context.Context, doc *Document) error {
	key := mongoKey(doc.Collection, doc.ID)
	if _, err := s.docs.Upsert(ctx, bson.M{"_id": key}, mongoDocument{Key: key, Document: *doc}); err != nil {
		return blame.StoreFailed("put", err)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, collection string, limit int) ([]*Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "identifier", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	found, err := s.docs.Find(ctx, bson.M{"collection": collection, "deleted": bson.M{"$ne": true}}, opts)
	if err != nil {
		return nil, blame.StoreFailed("list", err)
	}
	out := make([]*Document, 0, len(found))
	for _, f := range found {
		out = append(out, &f.Document)
	}
	return out, nil
}
