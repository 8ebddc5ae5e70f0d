package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const DefaultTimeout = 10 * time.Second

// Option pattern for MongoManager configuration
type MongoOption func(*MongoManager) error

// MongoManager holds the MongoDB client and the database projections live in.
type MongoManager struct {
	client   *mongo.Client
	database *mongo.Database
	timeout  time.Duration
}

// NewMongoManager creates a MongoManager with options
func NewMongoManager(opts ...MongoOption) (*MongoManager, error) {
	m := &MongoManager{
		timeout: DefaultTimeout,
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	if m.client == nil || m.database == nil {
		return nil, mongo.ErrClientDisconnected
	}

	return m, nil
}

// WithURI connects to uri and selects dbName. Embedded documents decode
// as bson.M so projected fields keep a map shape.
func WithURI(uri, dbName string) MongoOption {
	return func(m *MongoManager) error {
		ctx, cancel := m.contextWithTimeout(context.Background())
		defer cancel()

		clientOpts := options.Client().
			ApplyURI(uri).
			SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
		client, err := mongo.Connect(clientOpts)
		if err != nil {
			return err
		}

		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.Background())
			return err
		}

		m.client = client
		m.database = client.Database(dbName)
		return nil
	}
}

// WithTimeout sets the per-operation timeout. It must precede WithURI to
// bound the initial ping.
func WithTimeout(d time.Duration) MongoOption {
	return func(m *MongoManager) error {
		m.timeout = d
		return nil
	}
}

func (m *MongoManager) contextWithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		m.timeout = DefaultTimeout
	}
	return context.WithTimeout(parent, m.timeout)
}

// GetDB returns the underlying mongo.Database.
func (m *MongoManager) GetDB() *mongo.Database {
	return m.database
}

// Ping checks the primary is reachable.
func (m *MongoManager) Ping(ctx context.Context) error {
	ctx, cancel := m.contextWithTimeout(ctx)
	defer cancel()
	return m.client.Ping(ctx, readpref.Primary())
}

// Disconnect closes the MongoDB connection
func (m *MongoManager) Disconnect(ctx context.Context) error {
	if m.client != nil {
		if err := m.client.Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to disconnect from mongo: %w", err)
		}
	}
	return nil
}
