// Package docstore defines the document store contract shared by every
// persistence backend. Documents are addressed by collection and id; ids are
// generated by callers so all backends behave the same.
package docstore

import (
	"context"
	"errors"
)

// Collections
const (
	CollectionClients       = "clients"
	CollectionCases         = "cases"
	CollectionConversations = "conversations"
	CollectionAppointments  = "appointments"
	CollectionInvoices      = "invoices"
	CollectionNotifications = "notifications"
)

var (
	// ErrNotFound is returned when the addressed document does not exist
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned by Create when the id is taken
	ErrAlreadyExists = errors.New("document already exists")
	// ErrContention is returned when an atomic update kept losing races
	ErrContention = errors.New("document update contention")
)

// Filter is an equality condition on a top-level field
type Filter struct {
	Field string
	Value any
}

// Eq builds an equality filter
func Eq(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Store is the document store used by the services.
//
// dst arguments are pointers to the document type (Get, FindOrCreate, Mutate)
// or to a slice of it (Query).
type Store interface {
	// Get loads one document, ErrNotFound if missing
	Get(ctx context.Context, collection, id string, dst any) error

	// Query loads every document matching all filters
	Query(ctx context.Context, collection string, filters []Filter, dst any) error

	// Create inserts a new document, ErrAlreadyExists if the id is taken
	Create(ctx context.Context, collection, id string, data any) error

	// Update overwrites top-level fields of an existing document
	Update(ctx context.Context, collection, id string, fields map[string]any) error

	// Set writes a whole document, creating it if needed. With merge the given
	// fields are overlaid on the stored document instead of replacing it.
	Set(ctx context.Context, collection, id string, data any, merge bool) error

	// FindOrCreate atomically returns the document matching key or inserts
	// data under id. Concurrent callers with the same key observe one document.
	FindOrCreate(ctx context.Context, collection string, key []Filter, id string, data any, dst any) (created bool, err error)

	// Mutate loads the document into dst, runs fn and writes dst back as one
	// atomic read-modify-write. An error from fn aborts without writing. fn may
	// run more than once and must not call the store.
	Mutate(ctx context.Context, collection, id string, dst any, fn func() error) error
}
