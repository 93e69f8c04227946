// Package roots opens and caches the per-root store pairs: one SQLite
// metadata store and one vector index side by side in each store root.
package roots

import (
	"path/filepath"

	"github.com/memkeep/memkeep/internal/config"
	"github.com/memkeep/memkeep/internal/scope"
	"github.com/memkeep/memkeep/internal/store"
	"github.com/memkeep/memkeep/internal/vector"
)

// Roots hands out store handles keyed by root directory. Handles are opened
// lazily and reused for the lifetime of the invocation.
type Roots struct {
	cfg     *config.Config
	stores  map[string]*store.SQLiteStore
	vectors map[string]*vector.Index
}

// New creates a root manager over the configured storage layout.
func New(cfg *config.Config) *Roots {
	return &Roots{
		cfg:     cfg,
		stores:  make(map[string]*store.SQLiteStore),
		vectors: make(map[string]*vector.Index),
	}
}

func (r *Roots) storeAt(dir string) (*store.SQLiteStore, error) {
	if s, ok := r.stores[dir]; ok {
		return s, nil
	}
	s, err := store.Open(filepath.Join(dir, "memories.db"))
	if err != nil {
		return nil, err
	}
	r.stores[dir] = s
	return s, nil
}

func (r *Roots) vectorsAt(dir string) (*vector.Index, error) {
	if ix, ok := r.vectors[dir]; ok {
		return ix, nil
	}
	ix, err := vector.Open(filepath.Join(dir, "vectors"))
	if err != nil {
		return nil, err
	}
	r.vectors[dir] = ix
	return ix, nil
}

// GlobalStore returns the metadata store of the global root.
func (r *Roots) GlobalStore() (*store.SQLiteStore, error) {
	return r.storeAt(r.cfg.GlobalPath())
}

// ProjectStore returns the metadata store of a project root, creating the
// root on first write from that path.
func (r *Roots) ProjectStore(projectPath string) (*store.SQLiteStore, error) {
	storage, err := r.cfg.ProjectStorage(projectPath)
	if err != nil {
		return nil, err
	}
	return r.storeAt(storage)
}

// GlobalVectors returns the vector index of the global root.
func (r *Roots) GlobalVectors() (*vector.Index, error) {
	return r.vectorsAt(r.cfg.GlobalPath())
}

// ProjectVectors returns the vector index of a project root.
func (r *Roots) ProjectVectors(projectPath string) (*vector.Index, error) {
	storage, err := r.cfg.ProjectStorage(projectPath)
	if err != nil {
		return nil, err
	}
	return r.vectorsAt(storage)
}

// StoreFor returns the metadata store backing a resolved target.
func (r *Roots) StoreFor(t scope.Target) (*store.SQLiteStore, error) {
	if t.Root == scope.RootGlobal {
		return r.GlobalStore()
	}
	return r.ProjectStore(t.ProjectPath)
}

// VectorsFor returns the vector index backing a resolved target.
func (r *Roots) VectorsFor(t scope.Target) (*vector.Index, error) {
	if t.Root == scope.RootGlobal {
		return r.GlobalVectors()
	}
	return r.ProjectVectors(t.ProjectPath)
}

// ProjectPaths enumerates the original paths of every known project root.
func (r *Roots) ProjectPaths() ([]string, error) {
	known, err := r.cfg.ProjectRoots()
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(known))
	for _, root := range known {
		paths = append(paths, root.ProjectPath)
	}
	return paths, nil
}

// Close closes every opened store.
func (r *Roots) Close() {
	for _, s := range r.stores {
		s.Close()
	}
}
