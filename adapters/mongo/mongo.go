package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection is a typed wrapper around mongo.Collection.
type Collection[T any] struct {
	collection *mongo.Collection
	timeout    time.Duration
}

// GetCollection returns a Collection of T stored under collectionName.
func GetCollection[T any](m *MongoManager, collectionName string) *Collection[T] {
	return &Collection[T]{
		collection: m.database.Collection(collectionName),
		timeout:    m.timeout,
	}
}

func (c *Collection[T]) contextWithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	return context.WithTimeout(parent, c.timeout)
}

// FindOne finds a single document matching the filter. It returns nil, nil
// when nothing matches.
func (c *Collection[T]) FindOne(ctx context.Context, filter bson.M, opts ...options.Lister[options.FindOneOptions]) (*T, error) {
	ctx, cancel := c.contextWithTimeout(ctx)
	defer cancel()

	var result T
	err := c.collection.FindOne(ctx, filter, opts...).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

// Find finds every document matching the filter.
func (c *Collection[T]) Find(ctx context.Context, filter bson.M, opts ...options.Lister[options.FindOptions]) ([]*T, error) {
	ctx, cancel := c.contextWithTimeout(ctx)
	defer cancel()

	cursor, err := c.collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []*T
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}
	return results, nil
}

// Upsert replaces the document matching filter, inserting it if absent.
func (c *Collection[T]) Upsert(ctx context.Context, filter bson.M, document T) (*mongo.UpdateResult, error) {
	ctx, cancel := c.contextWithTimeout(ctx)
	defer cancel()
	return c.collection.ReplaceOne(ctx, filter, document, options.Replace().SetUpsert(true))
}

// EnsureIndex creates an ascending index over keys if it does not exist.
func (c *Collection[T]) EnsureIndex(ctx context.Context, keys ...string) error {
	ctx, cancel := c.contextWithTimeout(ctx)
	defer cancel()

	spec := bson.D{}
	for _, k := range keys {
		spec = append(spec, bson.E{Key: k, Value: 1})
	}
	_, err := c.collection.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: spec})
	return err
}
