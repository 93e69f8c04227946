// Package vector provides the per-root nearest-neighbor index backed by
// chromem-go, a pure-Go embedded vector database. Each store root owns one
// persistent collection keyed by memory id.
package vector

import (
	"context"
	"encoding/json"

	chromem "github.com/philippgille/chromem-go"
	"github.com/pkg/errors"

	"github.com/memkeep/memkeep/internal/model"
)

const collectionName = "memories"

// noEmbed guards against accidental embedding calls: vectors are always
// computed by the embedding provider and supplied explicitly.
func noEmbed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("vector index does not embed")
}

// Hit is one nearest-neighbor result.
type Hit struct {
	ID       string
	Score    float64
	Content  string
	Category model.Category
	Scope    model.Scope
	Groups   []string
}

// Index is the vector store for one root.
type Index struct {
	db   *chromem.DB
	col  *chromem.Collection
	root string
}

// Open opens or creates the persistent vector index under dir.
func Open(dir string) (*Index, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, &model.StoreError{Store: "vector", Root: dir, Err: errors.Wrap(err, "open vector db")}
	}
	col, err := db.GetOrCreateCollection(collectionName, nil, noEmbed)
	if err != nil {
		return nil, &model.StoreError{Store: "vector", Root: dir, Err: errors.Wrap(err, "open collection")}
	}
	return &Index{db: db, col: col, root: dir}, nil
}

// Upsert stores (or replaces) the embedding entry for a memory.
func (ix *Index) Upsert(ctx context.Context, m *model.Memory, vec []float32) error {
	groupsJSON, _ := json.Marshal(m.Groups)
	doc := chromem.Document{
		ID:        m.ID,
		Content:   m.Content,
		Embedding: vec,
		Metadata: map[string]string{
			"category": string(m.Category),
			"scope":    string(m.Scope),
			"groups":   string(groupsJSON),
		},
	}
	if err := ix.col.AddDocument(ctx, doc); err != nil {
		return &model.StoreError{Store: "vector", Root: ix.root, Err: errors.Wrap(err, "upsert vector")}
	}
	return nil
}

// Delete removes a memory's embedding entry. Missing ids are a no-op.
func (ix *Index) Delete(ctx context.Context, id string) error {
	if ix.col.Count() == 0 {
		return nil
	}
	if err := ix.col.Delete(ctx, nil, nil, id); err != nil {
		return &model.StoreError{Store: "vector", Root: ix.root, Err: errors.Wrap(err, "delete vector")}
	}
	return nil
}

// Nearest returns up to k entries ranked by cosine similarity to vec.
func (ix *Index) Nearest(ctx context.Context, vec []float32, k int) ([]Hit, error) {
	count := ix.col.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := ix.col.QueryEmbedding(ctx, vec, k, nil, nil)
	if err != nil {
		return nil, &model.StoreError{Store: "vector", Root: ix.root, Err: errors.Wrap(err, "query vectors")}
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		var groups []string
		json.Unmarshal([]byte(r.Metadata["groups"]), &groups)
		hits = append(hits, Hit{
			ID:       r.ID,
			Score:    float64(r.Similarity),
			Content:  r.Content,
			Category: model.Category(r.Metadata["category"]),
			Scope:    model.Scope(r.Metadata["scope"]),
			Groups:   groups,
		})
	}
	return hits, nil
}

// Count returns the number of indexed entries.
func (ix *Index) Count() int {
	return ix.col.Count()
}

// Reset drops every entry in this root's index.
func (ix *Index) Reset(ctx context.Context) error {
	if ix.col.Count() == 0 {
		return nil
	}
	// chromem deletes by id or metadata filter only; drop and recreate.
	if err := ix.db.DeleteCollection(collectionName); err != nil {
		return &model.StoreError{Store: "vector", Root: ix.root, Err: errors.Wrap(err, "reset vectors")}
	}
	col, err := ix.db.GetOrCreateCollection(collectionName, nil, noEmbed)
	if err != nil {
		return &model.StoreError{Store: "vector", Root: ix.root, Err: errors.Wrap(err, "recreate collection")}
	}
	ix.col = col
	return nil
}
