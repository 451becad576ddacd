// Package mongo implements docstore.Store over MongoDB
package mongo

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"lexportal-backend/internal/repository/docstore"
)

// revField carries the optimistic concurrency token of every document
const revField = "_rev"

// DefaultMaxRetries bounds the compare-and-replace attempts of Mutate and
// the duplicate-key retries of FindOrCreate
const DefaultMaxRetries = 5

// Store is a docstore.Store backed by one MongoDB database
type Store struct {
	db         *mongo.Database
	maxRetries int
}

// NewStore creates a Mongo store
func NewStore(db *mongo.Database) *Store {
	return &Store{db: db, maxRetries: DefaultMaxRetries}
}

// EnsureIndexes creates the indexes the store relies on. The unique
// (clientId, caseId) index is what makes FindOrCreate of conversations safe.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		docstore.CollectionConversations: {
			{
				Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "caseId", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("unique_conversation_per_client_case"),
			},
		},
		docstore.CollectionCases: {
			{Keys: bson.D{{Key: "clientId", Value: 1}}},
		},
		docstore.CollectionAppointments: {
			{Keys: bson.D{{Key: "caseId", Value: 1}}},
			{Keys: bson.D{{Key: "clientId", Value: 1}}},
		},
		docstore.CollectionInvoices: {
			{Keys: bson.D{{Key: "clientId", Value: 1}}},
		},
		docstore.CollectionNotifications: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "read", Value: 1}}},
		},
	}

	for name, models := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes for %s: %w", name, err)
		}
	}
	return nil
}

// Get loads one document
func (s *Store) Get(ctx context.Context, collection, id string, dst any) error {
	err := s.db.Collection(collection).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(dst)
	return translate(err)
}

// Query loads every matching document
func (s *Store) Query(ctx context.Context, collection string, filters []docstore.Filter, dst any) error {
	cur, err := s.db.Collection(collection).Find(ctx, toFilter(filters))
	if err != nil {
		return translate(err)
	}
	if err := cur.All(ctx, dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", collection, err)
	}
	ensureSlice(dst)
	return nil
}

// Create inserts a new document
func (s *Store) Create(ctx context.Context, collection, id string, data any) error {
	doc, err := toDocument(data)
	if err != nil {
		return err
	}
	doc["_id"] = id
	doc[revField] = newRev()

	_, err = s.db.Collection(collection).InsertOne(ctx, doc)
	return translate(err)
}

// Update overwrites top-level fields of an existing document
func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	set := bson.M{revField: newRev()}
	for k, v := range fields {
		set[k] = v
	}

	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.M{"$set": set})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

// Set writes a whole document, creating it if needed
func (s *Store) Set(ctx context.Context, collection, id string, data any, merge bool) error {
	doc, err := toDocument(data)
	if err != nil {
		return err
	}
	delete(doc, "_id")
	doc[revField] = newRev()

	filter := bson.D{{Key: "_id", Value: id}}
	coll := s.db.Collection(collection)
	if merge {
		_, err = coll.UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	} else {
		_, err = coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	}
	return translate(err)
}

// FindOrCreate upserts with $setOnInsert on the key filter. Two concurrent
// upserts can both miss and race to insert; the unique index rejects the
// loser, which retries and finds the winner's document.
func (s *Store) FindOrCreate(ctx context.Context, collection string, key []docstore.Filter, id string, data any, dst any) (bool, error) {
	doc, err := toDocument(data)
	if err != nil {
		return false, err
	}
	doc["_id"] = id
	doc[revField] = newRev()

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		var raw bson.Raw
		err := s.db.Collection(collection).
			FindOneAndUpdate(ctx, toFilter(key), bson.M{"$setOnInsert": doc}, opts).
			Decode(&raw)
		if mongo.IsDuplicateKeyError(err) {
			continue
		}
		if err != nil {
			return false, translate(err)
		}

		created := false
		if storedID, ok := raw.Lookup("_id").StringValueOK(); ok {
			created = storedID == id
		}
		if err := bson.Unmarshal(raw, dst); err != nil {
			return false, fmt.Errorf("failed to decode %s: %w", collection, err)
		}
		return created, nil
	}
	return false, docstore.ErrContention
}

// Mutate reads the document with its revision, applies fn and replaces the
// document only if the revision is unchanged, retrying on a lost race
func (s *Store) Mutate(ctx context.Context, collection, id string, dst any, fn func() error) error {
	coll := s.db.Collection(collection)

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		var raw bson.Raw
		err := coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&raw)
		if err != nil {
			return translate(err)
		}

		filter := bson.D{{Key: "_id", Value: id}}
		if rev, ok := raw.Lookup(revField).StringValueOK(); ok {
			filter = append(filter, bson.E{Key: revField, Value: rev})
		} else {
			filter = append(filter, bson.E{Key: revField, Value: bson.M{"$exists": false}})
		}

		resetValue(dst)
		if err := bson.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
		}
		if err := fn(); err != nil {
			return err
		}

		doc, err := toDocument(dst)
		if err != nil {
			return err
		}
		doc["_id"] = id
		doc[revField] = newRev()

		res, err := coll.ReplaceOne(ctx, filter, doc)
		if err != nil {
			return translate(err)
		}
		if res.MatchedCount == 1 {
			return nil
		}
	}
	return docstore.ErrContention
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return docstore.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return docstore.ErrAlreadyExists
	}
	return err
}

func toFilter(filters []docstore.Filter) bson.D {
	filter := bson.D{}
	for _, f := range filters {
		filter = append(filter, bson.E{Key: f.Field, Value: f.Value})
	}
	return filter
}

// toDocument converts a tagged struct or map into a mutable bson.M
func toDocument(data any) (bson.M, error) {
	raw, err := bson.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return doc, nil
}

func newRev() string {
	return uuid.NewString()
}

func resetValue(dst any) {
	v := reflect.ValueOf(dst)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		v.Elem().Set(reflect.Zero(v.Elem().Type()))
	}
}

// ensureSlice turns a nil result slice into an empty one
func ensureSlice(dst any) {
	v := reflect.ValueOf(dst)
	if v.Kind() == reflect.Pointer && v.Elem().Kind() == reflect.Slice && v.Elem().IsNil() {
		v.Elem().Set(reflect.MakeSlice(v.Elem().Type(), 0, 0))
	}
}
