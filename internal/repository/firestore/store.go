// Package firestore implements docstore.Store over Cloud Firestore
package firestore

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"lexportal-backend/internal/repository/docstore"
)

// Store is a docstore.Store backed by Firestore collections
type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store
func NewStore(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) doc(collection, id string) *firestore.DocumentRef {
	return s.client.Collection(collection).Doc(id)
}

func (s *Store) query(collection string, filters []docstore.Filter) firestore.Query {
	q := s.client.Collection(collection).Query
	for _, f := range filters {
		q = q.Where(f.Field, "==", f.Value)
	}
	return q
}

// Get loads one document
func (s *Store) Get(ctx context.Context, collection, id string, dst any) error {
	snap, err := s.doc(collection, id).Get(ctx)
	if err != nil {
		return translate(err)
	}
	if err := snap.DataTo(dst); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
	}
	return nil
}

// Query loads every matching document
func (s *Store) Query(ctx context.Context, collection string, filters []docstore.Filter, dst any) error {
	snaps, err := s.query(collection, filters).Documents(ctx).GetAll()
	if err != nil {
		return translate(err)
	}
	return decodeAll(snaps, dst)
}

// Create inserts a new document
func (s *Store) Create(ctx context.Context, collection, id string, data any) error {
	if _, err := s.doc(collection, id).Create(ctx, data); err != nil {
		return translate(err)
	}
	return nil
}

// Update overwrites top-level fields of an existing document
func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if _, err := s.doc(collection, id).Update(ctx, toUpdates(fields)); err != nil {
		return translate(err)
	}
	return nil
}

// Set writes a whole document. Firestore only merges map data, so merge
// requires a map[string]any.
func (s *Store) Set(ctx context.Context, collection, id string, data any, merge bool) error {
	var opts []firestore.SetOption
	if merge {
		if _, ok := data.(map[string]any); !ok {
			return fmt.Errorf("merge set on %s/%s requires map data, got %T", collection, id, data)
		}
		opts = append(opts, firestore.MergeAll)
	}
	if _, err := s.doc(collection, id).Set(ctx, data, opts...); err != nil {
		return translate(err)
	}
	return nil
}

// FindOrCreate runs the key query and the insert in one transaction, so a
// concurrent creator makes the transaction retry and then observe the winner
func (s *Store) FindOrCreate(ctx context.Context, collection string, key []docstore.Filter, id string, data any, dst any) (bool, error) {
	var created bool
	var found *firestore.DocumentSnapshot

	ref := s.doc(collection, id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		created, found = false, nil

		snaps, err := tx.Documents(s.query(collection, key).Limit(1)).GetAll()
		if err != nil {
			return err
		}
		if len(snaps) > 0 {
			found = snaps[0]
			return nil
		}

		created = true
		return tx.Create(ref, data)
	})
	if err != nil {
		return false, translate(err)
	}

	if found == nil {
		if found, err = ref.Get(ctx); err != nil {
			return false, translate(err)
		}
	}
	if err := found.DataTo(dst); err != nil {
		return false, fmt.Errorf("failed to decode %s/%s: %w", collection, found.Ref.ID, err)
	}
	return created, nil
}

// Mutate performs the read-modify-write inside a Firestore transaction
func (s *Store) Mutate(ctx context.Context, collection, id string, dst any, fn func() error) error {
	ref := s.doc(collection, id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}

		// The transaction may rerun; start each attempt from a clean value
		resetValue(dst)
		if err := snap.DataTo(dst); err != nil {
			return fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
		}
		if err := fn(); err != nil {
			return err
		}
		return tx.Set(ref, dst)
	})
	return translate(err)
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return docstore.ErrNotFound
	case codes.AlreadyExists:
		return docstore.ErrAlreadyExists
	case codes.Aborted:
		return fmt.Errorf("%w: %v", docstore.ErrContention, err)
	}
	return err
}

func toUpdates(fields map[string]any) []firestore.Update {
	paths := make([]string, 0, len(fields))
	for path := range fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	updates := make([]firestore.Update, 0, len(paths))
	for _, path := range paths {
		updates = append(updates, firestore.Update{Path: path, Value: fields[path]})
	}
	return updates
}

// decodeAll appends every snapshot to the slice dst points to
func decodeAll(snaps []*firestore.DocumentSnapshot, dst any) error {
	slice := reflect.ValueOf(dst)
	if slice.Kind() != reflect.Pointer || slice.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("query destination must be a pointer to a slice, got %T", dst)
	}
	out := slice.Elem()
	elemType := out.Type().Elem()

	result := reflect.MakeSlice(out.Type(), 0, len(snaps))
	for _, snap := range snaps {
		elem := reflect.New(elemType)
		if err := snap.DataTo(elem.Interface()); err != nil {
			return fmt.Errorf("failed to decode %s: %w", snap.Ref.ID, err)
		}
		result = reflect.Append(result, elem.Elem())
	}
	out.Set(result)
	return nil
}

func resetValue(dst any) {
	v := reflect.ValueOf(dst)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		v.Elem().Set(reflect.Zero(v.Elem().Type()))
	}
}
