package output

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mpetrenko/RecordHarvester/pkg/records"
)

const mongoOpTimeout = 30 * time.Second

// MongoSink writes records to a MongoDB collection. Documents are keyed by
// identity so re-delivered records upsert instead of duplicating.
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
	buf        []mongo.WriteModel
	closed     bool
}

// NewMongoSink connects, pings, and binds the target collection.
func NewMongoSink(connectionString, database, collection string) (*MongoSink, error) {
	if connectionString == "" {
		return nil, fmt.Errorf("MongoDB connection string is required")
	}
	if database == "" {
		return nil, fmt.Errorf("MongoDB database name is required")
	}
	if collection == "" {
		collection = "records"
	}

	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoSink{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

// Write buffers one record as an upsert keyed by identity.
func (s *MongoSink) Write(record *records.MergedRecord) error {
	doc := bson.M{
		"identity_key": record.Key,
		"sources":      record.Sources,
		"first_seen":   record.FirstSeen,
		"last_seen":    record.LastSeen,
		"sightings":    record.Sightings,
	}
	for name, value := range record.Row() {
		doc[name] = value
	}
	if len(record.Conflicts) > 0 {
		doc["conflicts"] = record.Conflicts
	}

	s.buf = append(s.buf, mongo.NewReplaceOneModel().
		SetFilter(bson.M{"identity_key": record.Key}).
		SetReplacement(doc).
		SetUpsert(true))

	if len(s.buf) >= defaultBatchSize {
		return s.Flush()
	}
	return nil
}

// Flush bulk-writes the buffered upserts.
func (s *MongoSink) Flush() error {
	if len(s.buf) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	if _, err := s.collection.BulkWrite(ctx, s.buf, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to bulk write records: %w", err)
	}
	s.buf = s.buf[:0]
	return nil
}

// Close flushes and disconnects.
func (s *MongoSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	flushErr := s.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	return flushErr
}
