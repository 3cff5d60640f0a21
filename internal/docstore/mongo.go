package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore maps collections onto MongoDB collections; document ids are
// stored as string _id values.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects to uri and verifies the connection.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	return &MongoStore{client: client, db: client.Database(database)}, nil
}

// EnsureUniqueIndex creates a unique index on field. CreateUnique relies on it
// to reject concurrent upserts that race past the filter.
func (s *MongoStore) EnsureUniqueIndex(ctx context.Context, collection, field string) error {
	if err := checkField(field); err != nil {
		return err
	}
	_, err := s.db.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("creating unique index on %s.%s: %w", collection, field, classifyMongo(err))
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	var m bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying document: %w", classifyMongo(err))
	}
	return toDocument(m)
}

func (s *MongoStore) Set(ctx context.Context, collection, id string, data json.RawMessage) error {
	doc, err := fromJSON(data)
	if err != nil {
		return err
	}
	_, err = s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("setting document: %w", classifyMongo(err))
	}
	return nil
}

func (s *MongoStore) Add(ctx context.Context, collection string, data json.RawMessage) (string, error) {
	id := uuid.New().String()
	if err := s.Set(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MongoStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := checkFields(fields); err != nil {
		return err
	}

	// Round-trip through JSON so nested values are stored under their json
	// tag names, not bson's lowercased field names.
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding fields: %w", err)
	}
	set, err := fromJSON(raw)
	if err != nil {
		return err
	}

	result, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("updating document: %w", classifyMongo(err))
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("deleting document: %w", classifyMongo(err))
	}
	return nil
}

func (s *MongoStore) Query(ctx context.Context, collection string, filter Filter, limit int) ([]Document, error) {
	if err := checkField(filter.Field); err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.find(ctx, collection, bson.M{filter.Field: filter.Value}, opts)
}

func (s *MongoStore) All(ctx context.Context, collection string) ([]Document, error) {
	return s.find(ctx, collection, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

// CreateUnique upserts with $setOnInsert keyed on the unique field, so an
// existing match leaves the collection untouched.
func (s *MongoStore) CreateUnique(ctx context.Context, collection, id string, unique Filter, data json.RawMessage) (string, error) {
	if err := checkField(unique.Field); err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.New().String()
	}

	doc, err := fromJSON(data)
	if err != nil {
		return "", err
	}
	// The filter's equality field is copied into the upserted document.
	delete(doc, unique.Field)
	doc["_id"] = id

	result, err := s.db.Collection(collection).UpdateOne(ctx,
		bson.M{unique.Field: unique.Value},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", s.duplicateCause(ctx, collection, unique)
		}
		return "", fmt.Errorf("inserting document: %w", classifyMongo(err))
	}
	if result.UpsertedCount == 0 {
		return "", ErrConflict
	}
	return id, nil
}

// duplicateCause tells an _id collision apart from a unique-index collision.
func (s *MongoStore) duplicateCause(ctx context.Context, collection string, unique Filter) error {
	n, err := s.db.Collection(collection).CountDocuments(ctx, bson.M{unique.Field: unique.Value})
	if err != nil {
		return fmt.Errorf("resolving duplicate key: %w", classifyMongo(err))
	}
	if n > 0 {
		return ErrConflict
	}
	return ErrDuplicateID
}

func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return classifyMongo(err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

func (s *MongoStore) find(ctx context.Context, collection string, filter bson.M, opts *options.FindOptions) ([]Document, error) {
	cursor, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", classifyMongo(err))
	}
	defer cursor.Close(ctx)

	docs := make([]Document, 0)
	for cursor.Next(ctx) {
		var m bson.M
		if err := cursor.Decode(&m); err != nil {
			return nil, fmt.Errorf("decoding document: %w", err)
		}
		d, err := toDocument(m)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", classifyMongo(err))
	}
	return docs, nil
}

func fromJSON(data []byte) (bson.M, error) {
	var m bson.M
	if err := bson.UnmarshalExtJSON(data, false, &m); err != nil {
		return nil, fmt.Errorf("converting document to bson: %w", err)
	}
	if m == nil {
		m = bson.M{}
	}
	return m, nil
}

func toDocument(m bson.M) (*Document, error) {
	id, _ := m["_id"].(string)
	delete(m, "_id")

	data, err := bson.MarshalExtJSON(m, false, false)
	if err != nil {
		return nil, fmt.Errorf("converting document to json: %w", err)
	}
	return &Document{ID: id, Data: data}, nil
}

func classifyMongo(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
