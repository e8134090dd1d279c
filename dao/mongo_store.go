package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

const (
	defaultMongoDatabase   = "cryptocagua"
	mongoEntriesCollection = "kv_entries"
)

type mongoEntry struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"v"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore keeps one document per key.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// OpenMongoStore connects using a mongodb:// URI. The database named in the
// URI path is used, falling back to "cryptocagua".
func OpenMongoStore(ctx context.Context, uri string) (*MongoStore, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid mongo uri: %w", err)
	}
	dbName := cs.Database
	if dbName == "" {
		dbName = defaultMongoDatabase
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(dbName).Collection(mongoEntriesCollection),
	}, nil
}

func (s *MongoStore) Get(ctx context.Context, key string) (string, bool, error) {
	var e mongoEntry
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return e.Value, true, nil
}

func (s *MongoStore) Set(ctx context.Context, key, value string) error {
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": key},
		mongoEntry{Key: key, Value: value, UpdatedAt: time.Now()},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, key string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}
