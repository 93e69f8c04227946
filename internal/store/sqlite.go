package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/memkeep/memkeep/internal/model"
)

// SQLiteStore implements Store for one store root.
type SQLiteStore struct {
	db      *sql.DB
	root    string
	entropy *rand.Rand
}

// Open opens or creates the memories database at the given path.
func Open(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &model.StoreError{Store: "metadata", Root: dir, Err: errors.Wrap(err, "create db dir")}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, &model.StoreError{Store: "metadata", Root: dbPath, Err: errors.Wrap(err, "open db")}
	}

	s := &SQLiteStore{
		db:      db,
		root:    dbPath,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, &model.StoreError{Store: "metadata", Root: dbPath, Err: errors.Wrap(err, "migrate")}
	}

	return s, nil
}

// NewID returns a fresh memory id.
func (s *SQLiteStore) NewID() string {
	return "mem_" + ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id               TEXT PRIMARY KEY,
		content          TEXT NOT NULL,
		category         TEXT NOT NULL DEFAULT 'factual',
		scope            TEXT NOT NULL,
		project_path     TEXT,
		pinned           INTEGER NOT NULL DEFAULT 0,
		groups           TEXT NOT NULL DEFAULT '[]',
		source           TEXT NOT NULL DEFAULT 'user_explicit',
		metadata         TEXT NOT NULL DEFAULT '{}',
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL,
		expires_at       TEXT,
		access_count     INTEGER NOT NULL DEFAULT 0,
		last_accessed_at TEXT,
		has_embedding    INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_memories_scope ON memories(scope);
	CREATE INDEX IF NOT EXISTS idx_memories_category ON memories(category);
	CREATE INDEX IF NOT EXISTS idx_memories_pinned ON memories(pinned);
	CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_expires ON memories(expires_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

const memoryColumns = `id, content, category, scope, project_path, pinned, groups,
	source, metadata, created_at, updated_at, expires_at, access_count, last_accessed_at, has_embedding`

func (s *SQLiteStore) Put(ctx context.Context, m *model.Memory) error {
	groupsJSON, _ := json.Marshal(m.Groups)
	if m.Groups == nil {
		groupsJSON = []byte("[]")
	}
	metaJSON, _ := json.Marshal(m.Metadata)
	if m.Metadata == nil {
		metaJSON = []byte("{}")
	}

	var projectPath *string
	if m.ProjectPath != "" {
		projectPath = &m.ProjectPath
	}
	var expiresAt *string
	if m.ExpiresAt != nil {
		e := m.ExpiresAt.UTC().Format(time.RFC3339)
		expiresAt = &e
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (`+memoryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Content, string(m.Category), string(m.Scope), projectPath,
		boolInt(m.Pinned), string(groupsJSON), m.Source, string(metaJSON),
		m.CreatedAt.UTC().Format(time.RFC3339), m.UpdatedAt.UTC().Format(time.RFC3339),
		expiresAt, m.AccessCount, nil, boolInt(m.HasEmbedding))
	if err != nil {
		return &model.StoreError{Store: "metadata", Root: s.root, Err: errors.Wrap(err, "insert memory")}
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, &model.NotFoundError{Kind: "memory", ID: id}
	}
	if err != nil {
		return nil, &model.StoreError{Store: "metadata", Root: s.root, Err: err}
	}
	return &m, nil
}

func (s *SQLiteStore) Query(ctx context.Context, f Filter) ([]model.Memory, error) {
	where := []string{"1=1"}
	var args []any

	if f.Scope != "" {
		where = append(where, "scope = ?")
		args = append(args, string(f.Scope))
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(f.Category))
	}
	if f.PinnedOnly {
		where = append(where, "pinned = 1")
	}
	if f.ContentLike != "" {
		where = append(where, "content LIKE ?")
		args = append(args, "%"+f.ContentLike+"%")
	}
	if !f.IncludeExpired {
		where = append(where, "(expires_at IS NULL OR expires_at > ?)")
		args = append(args, time.Now().UTC().Format(time.RFC3339))
	}
	if len(f.Groups) > 0 {
		// groups is a JSON array; any-of match on quoted names.
		ors := make([]string, 0, len(f.Groups))
		for _, g := range f.Groups {
			ors = append(ors, "groups LIKE ?")
			args = append(args, `%"`+g+`"%`)
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}

	query := fmt.Sprintf(
		`SELECT `+memoryColumns+` FROM memories WHERE %s ORDER BY created_at DESC`,
		strings.Join(where, " AND "))
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &model.StoreError{Store: "metadata", Root: s.root, Err: err}
	}
	defer rows.Close()

	var memories []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, &model.StoreError{Store: "metadata", Root: s.root, Err: err}
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

func (s *SQLiteStore) Update(ctx context.Context, id string, p UpdateParams) (*model.Memory, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Format(time.RFC3339)}

	if p.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *p.Content)
	}
	if p.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, string(*p.Category))
	}
	if p.Pinned != nil {
		sets = append(sets, "pinned = ?")
		args = append(args, boolInt(*p.Pinned))
	}
	if p.Metadata != nil {
		b, _ := json.Marshal(p.Metadata)
		sets = append(sets, "metadata = ?")
		args = append(args, string(b))
	}
	if p.HasEmbedding != nil {
		sets = append(sets, "has_embedding = ?")
		args = append(args, boolInt(*p.HasEmbedding))
	}
	if p.SetScope != nil {
		sets = append(sets, "scope = ?")
		args = append(args, string(*p.SetScope))
	}
	if p.ProjectPath != nil {
		sets = append(sets, "project_path = ?")
		if *p.ProjectPath == "" {
			args = append(args, nil)
		} else {
			args = append(args, *p.ProjectPath)
		}
	}
	if p.Groups != nil {
		b, _ := json.Marshal(*p.Groups)
		if *p.Groups == nil {
			b = []byte("[]")
		}
		sets = append(sets, "groups = ?")
		args = append(args, string(b))
	}

	args = append(args, id)
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE memories SET %s WHERE id = ?", strings.Join(sets, ", ")), args...)
	if err != nil {
		return nil, &model.StoreError{Store: "metadata", Root: s.root, Err: errors.Wrap(err, "update memory")}
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return false, &model.StoreError{Store: "metadata", Root: s.root, Err: errors.Wrap(err, "delete memory")}
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) RecordAccess(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for _, id := range ids {
		s.db.ExecContext(ctx,
			`UPDATE memories SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?`,
			now, id)
	}
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n); err != nil {
		return 0, &model.StoreError{Store: "metadata", Root: s.root, Err: err}
	}
	return n, nil
}

func (s *SQLiteStore) Reset(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories`)
	if err != nil {
		return 0, &model.StoreError{Store: "metadata", Root: s.root, Err: err}
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var category, scope, createdAt, updatedAt string
	var projectPath, expiresAt, lastAccessed sql.NullString
	var groupsJSON, metaJSON string
	var pinned, hasEmbedding int

	err := row.Scan(
		&m.ID, &m.Content, &category, &scope, &projectPath, &pinned, &groupsJSON,
		&m.Source, &metaJSON, &createdAt, &updatedAt, &expiresAt, &m.AccessCount,
		&lastAccessed, &hasEmbedding,
	)
	if err != nil {
		return m, err
	}

	m.Category = model.Category(category)
	m.Scope = model.Scope(scope)
	m.Pinned = pinned != 0
	m.HasEmbedding = hasEmbedding != 0
	if projectPath.Valid {
		m.ProjectPath = projectPath.String
	}
	json.Unmarshal([]byte(groupsJSON), &m.Groups)
	json.Unmarshal([]byte(metaJSON), &m.Metadata)
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	m.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if expiresAt.Valid {
		t, _ := time.Parse(time.RFC3339, expiresAt.String)
		m.ExpiresAt = &t
	}
	if lastAccessed.Valid {
		t, _ := time.Parse(time.RFC3339, lastAccessed.String)
		m.LastAccessedAt = &t
	}
	return m, nil
}
