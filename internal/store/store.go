// Package store provides the per-root metadata store backed by SQLite.
// Each store root (one global, one per project) owns one memories.db.
package store

import (
	"context"

	"github.com/memkeep/memkeep/internal/model"
)

// Filter selects memories in Query. Zero values mean "no constraint".
type Filter struct {
	Scope          model.Scope
	Category       model.Category
	PinnedOnly     bool
	Groups         []string // match records owned by any of these groups
	ContentLike    string   // substring match on content
	IncludeExpired bool
	Limit          int // 0 means no limit
}

// UpdateParams holds optional field updates. Nil pointers are left unchanged.
type UpdateParams struct {
	Content      *string
	Category     *model.Category
	Pinned       *bool
	Metadata     map[string]string
	HasEmbedding *bool

	// SetScope atomically rewrites scope, project path, and owner groups in
	// one statement so readers never observe a half-changed record.
	SetScope    *model.Scope
	ProjectPath *string
	Groups      *[]string
}

// Store is the metadata store contract the core depends on.
type Store interface {
	// Put inserts a new memory record.
	Put(ctx context.Context, m *model.Memory) error

	// Get retrieves a memory by id. Returns a typed NotFoundError miss.
	Get(ctx context.Context, id string) (*model.Memory, error)

	// Query lists memories matching the filter, newest first.
	Query(ctx context.Context, f Filter) ([]model.Memory, error)

	// Update applies field updates and returns the updated record.
	Update(ctx context.Context, id string, p UpdateParams) (*model.Memory, error)

	// Delete removes a record. Reports whether a row was deleted.
	Delete(ctx context.Context, id string) (bool, error)

	// RecordAccess bumps access counters for the given ids. Best effort.
	RecordAccess(ctx context.Context, ids ...string)

	// Count returns the number of records in this root.
	Count(ctx context.Context) (int, error)

	// Reset deletes every record in this root.
	Reset(ctx context.Context) (int, error)

	// Close closes the store.
	Close() error
}
