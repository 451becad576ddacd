// Package memory implements docstore.Store in process memory. Documents are
// kept as JSON so reads never alias caller memory and values compare the
// same way the JSONB backend compares them.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"lexportal-backend/internal/repository/docstore"
)

type collection struct {
	docs  map[string][]byte
	order []string
}

// Store is a docstore.Store guarded by a single lock
type Store struct {
	mu          sync.Mutex
	collections map[string]*collection
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) coll(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[string][]byte)}
		s.collections[name] = c
	}
	return c
}

func (c *collection) put(id string, raw []byte) {
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = raw
}

// Get loads one document
func (s *Store) Get(ctx context.Context, collection, id string, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.coll(collection).docs[id]
	if !ok {
		return docstore.ErrNotFound
	}
	return json.Unmarshal(raw, dst)
}

// Query loads the matching documents in insertion order
func (s *Store) Query(ctx context.Context, collection string, filters []docstore.Filter, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := s.match(collection, filters, 0)
	if err != nil {
		return err
	}
	return decodeList(matches, dst)
}

// Create inserts a new document
func (s *Store) Create(ctx context.Context, collection, id string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(collection)
	if _, exists := c.docs[id]; exists {
		return docstore.ErrAlreadyExists
	}
	c.put(id, raw)
	return nil
}

// Update overwrites top-level fields of an existing document
func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(collection)
	raw, ok := c.docs[id]
	if !ok {
		return docstore.ErrNotFound
	}
	merged, err := overlay(raw, fields)
	if err != nil {
		return err
	}
	c.put(id, merged)
	return nil
}

// Set writes a whole document, optionally merging into the stored one
func (s *Store) Set(ctx context.Context, collection, id string, data any, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(collection)
	if existing, ok := c.docs[id]; ok && merge {
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return fmt.Errorf("merge requires an object document: %w", err)
		}
		if raw, err = overlay(existing, fields); err != nil {
			return err
		}
	}
	c.put(id, raw)
	return nil
}

// FindOrCreate returns the document matching key or inserts data under id
func (s *Store) FindOrCreate(ctx context.Context, collection string, key []docstore.Filter, id string, data any, dst any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return false, fmt.Errorf("failed to encode document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := s.match(collection, key, 1)
	if err != nil {
		return false, err
	}
	if len(matches) > 0 {
		return false, json.Unmarshal(matches[0], dst)
	}

	c := s.coll(collection)
	if _, exists := c.docs[id]; exists {
		return false, docstore.ErrAlreadyExists
	}
	c.put(id, raw)
	return true, json.Unmarshal(raw, dst)
}

// Mutate runs fn on the decoded document and stores the result
func (s *Store) Mutate(ctx context.Context, collection, id string, dst any, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(collection)
	raw, ok := c.docs[id]
	if !ok {
		return docstore.ErrNotFound
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	if err := fn(); err != nil {
		return err
	}
	updated, err := json.Marshal(dst)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	c.put(id, updated)
	return nil
}

// match returns the raw documents satisfying every filter; limit 0 means all.
// Caller holds s.mu.
func (s *Store) match(collection string, filters []docstore.Filter, limit int) ([][]byte, error) {
	wanted := make([][]byte, len(filters))
	for i, f := range filters {
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode filter %s: %w", f.Field, err)
		}
		wanted[i] = v
	}

	c := s.coll(collection)
	var matches [][]byte
	for _, id := range c.order {
		raw := c.docs[id]
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
		}
		if !matchesAll(fields, filters, wanted) {
			continue
		}
		matches = append(matches, raw)
		if limit > 0 && len(matches) == limit {
			break
		}
	}
	return matches, nil
}

func matchesAll(fields map[string]json.RawMessage, filters []docstore.Filter, wanted [][]byte) bool {
	for i, f := range filters {
		got, ok := fields[f.Field]
		if !ok {
			got = json.RawMessage("null")
		}
		if !jsonEqual(got, wanted[i]) {
			return false
		}
	}
	return true
}

// jsonEqual compares two encoded values after normalization, so 1 and 1.0
// or differently spaced objects compare equal
func jsonEqual(a, b []byte) bool {
	if bytes.Equal(a, b) {
		return true
	}
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	na, errA := json.Marshal(va)
	nb, errB := json.Marshal(vb)
	return errA == nil && errB == nil && bytes.Equal(na, nb)
}

func overlay(raw []byte, fields map[string]any) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	for k, v := range fields {
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return merged, nil
}

func decodeList(docs [][]byte, dst any) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, raw := range docs {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(raw)
	}
	buf.WriteByte(']')
	return json.Unmarshal(buf.Bytes(), dst)
}
