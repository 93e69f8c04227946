// Package lifecycle implements memory write operations: save, pin, forget,
// scope moves between store roots, group cascade deletes, and TTL cleanup.
//
// Compound operations order the metadata store write before the vector index
// write. A crash between the two leaves a memory without an embedding, which
// degrades search quality but never loses the record.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/memkeep/memkeep/internal/config"
	"github.com/memkeep/memkeep/internal/embedding"
	"github.com/memkeep/memkeep/internal/model"
	"github.com/memkeep/memkeep/internal/registry"
	"github.com/memkeep/memkeep/internal/roots"
	"github.com/memkeep/memkeep/internal/store"
	"github.com/memkeep/memkeep/internal/vector"
)

// Manager coordinates lifecycle operations across store roots.
type Manager struct {
	cfg   *config.Config
	reg   *registry.Registry
	roots *roots.Roots
	embed embedding.Embedder

	now func() time.Time
}

// New creates a lifecycle manager. embedder may be nil when semantic search
// is disabled; every operation still works, minus embeddings.
func New(cfg *config.Config, reg *registry.Registry, r *roots.Roots, embedder embedding.Embedder) *Manager {
	return &Manager{cfg: cfg, reg: reg, roots: r, embed: embedder, now: time.Now}
}

// Result is the outcome of a lifecycle operation. Warnings report degraded
// side effects (embedding failures, implicit scope conversions) that did not
// prevent the operation from committing.
type Result struct {
	Memory   *model.Memory `json:"memory,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
}

// SaveParams describes a new memory to store.
type SaveParams struct {
	Content     string
	Category    string // empty means auto-detect from content
	Scope       model.Scope
	ProjectPath string
	Groups      []string
	Pinned      bool
	Source      string
	Metadata    map[string]string
}

// Save validates, stamps, and persists a new memory in the root its scope
// dictates. Embedding failures degrade to a warning; the save still commits.
func (m *Manager) Save(ctx context.Context, p SaveParams) (*Result, error) {
	if p.Content == "" {
		return nil, &model.ValidationError{Field: "content", Reason: "content is required"}
	}
	category, err := model.NormalizeCategory(p.Category, p.Content)
	if err != nil {
		return nil, err
	}

	scope := p.Scope
	if scope == "" {
		scope = model.ScopeProject
	}
	if !model.ValidScopes[scope] {
		return nil, &model.ValidationError{Field: "scope", Reason: fmt.Sprintf("unknown scope %q", scope)}
	}

	switch scope {
	case model.ScopeProject:
		if p.ProjectPath == "" {
			return nil, &model.ValidationError{Field: "project", Reason: "project scope requires a current project"}
		}
	case model.ScopeGroup:
		if len(p.Groups) == 0 {
			return nil, &model.ValidationError{Field: "groups", Reason: "group scope requires at least one group"}
		}
		if err := m.requireGroups(p.Groups); err != nil {
			return nil, err
		}
	}

	st, ix, err := m.rootFor(scope, p.ProjectPath)
	if err != nil {
		return nil, err
	}

	source := p.Source
	if source == "" {
		source = model.SourceUserExplicit
	}

	now := m.now().UTC()
	mem := &model.Memory{
		ID:        st.NewID(),
		Content:   p.Content,
		Category:  category,
		Scope:     scope,
		Pinned:    p.Pinned,
		Source:    source,
		Metadata:  p.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: m.expiryFor(category, now),
	}
	if scope != model.ScopeGlobal {
		// Group-scoped memories keep the origin project as provenance.
		mem.ProjectPath = p.ProjectPath
	}
	if scope == model.ScopeGroup {
		mem.Groups = p.Groups
	}

	vec, warning := m.embedBestEffort(ctx, mem.Content)
	mem.HasEmbedding = vec != nil

	if err := st.Put(ctx, mem); err != nil {
		return nil, err
	}
	res := &Result{Memory: mem}
	if warning != "" {
		res.Warnings = append(res.Warnings, warning)
	}
	if vec != nil {
		if err := ix.Upsert(ctx, mem, vec); err != nil {
			res.Warnings = append(res.Warnings, "embedding not indexed: "+err.Error())
			hasEmbedding := false
			mem.HasEmbedding = hasEmbedding
			st.Update(ctx, mem.ID, store.UpdateParams{HasEmbedding: &hasEmbedding})
		}
	}
	return res, nil
}

// Get retrieves a memory visible from the given project: the project root is
// checked first, then the global root. Reads bump the access counters.
func (m *Manager) Get(ctx context.Context, id, projectPath string) (*model.Memory, error) {
	mem, loc, err := m.locate(ctx, id, projectPath)
	if err != nil {
		return nil, err
	}
	loc.store.RecordAccess(ctx, id)
	return mem, nil
}

// Pin marks a memory for unconditional startup inclusion. Idempotent.
func (m *Manager) Pin(ctx context.Context, id, projectPath string) (*model.Memory, error) {
	return m.setPinned(ctx, id, projectPath, true)
}

// Unpin clears the pinned flag. Idempotent.
func (m *Manager) Unpin(ctx context.Context, id, projectPath string) (*model.Memory, error) {
	return m.setPinned(ctx, id, projectPath, false)
}

func (m *Manager) setPinned(ctx context.Context, id, projectPath string, pinned bool) (*model.Memory, error) {
	_, loc, err := m.locate(ctx, id, projectPath)
	if err != nil {
		return nil, err
	}
	return loc.store.Update(ctx, id, store.UpdateParams{Pinned: &pinned})
}

// Forget permanently deletes a memory from whichever visible root holds it.
// The metadata row is deleted first; a failed vector delete leaves an inert
// orphan vector and is reported as a warning.
func (m *Manager) Forget(ctx context.Context, id, projectPath string) (*Result, error) {
	mem, loc, err := m.locate(ctx, id, projectPath)
	if err != nil {
		return nil, err
	}
	if _, err := loc.store.Delete(ctx, id); err != nil {
		return nil, err
	}
	res := &Result{Memory: mem}
	if err := loc.vectors.Delete(ctx, id); err != nil {
		res.Warnings = append(res.Warnings, "embedding not removed: "+err.Error())
	}
	return res, nil
}

// Promote moves a project-scoped memory into the global root, retagged as
// global, or as group-scoped when groups are given. The memory id is stable
// across the move.
func (m *Manager) Promote(ctx context.Context, id, projectPath string, groups []string) (*Result, error) {
	if projectPath == "" {
		return nil, &model.ValidationError{Field: "project", Reason: "promote requires a current project"}
	}
	if len(groups) > 0 {
		if err := m.requireGroups(groups); err != nil {
			return nil, err
		}
	}

	src, err := m.roots.ProjectStore(projectPath)
	if err != nil {
		return nil, err
	}
	mem, err := src.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if mem.Scope != model.ScopeProject {
		return nil, &model.ValidationError{Field: "scope", Reason: fmt.Sprintf("memory %s is %s-scoped, not project-scoped", id, mem.Scope)}
	}

	target := *mem
	if len(groups) > 0 {
		target.Scope = model.ScopeGroup
		target.Groups = groups
	} else {
		target.Scope = model.ScopeGlobal
		target.ProjectPath = ""
		target.Groups = nil
	}
	return m.move(ctx, mem, &target, scopeRoot{scope: target.Scope})
}

// Unpromote moves a global or group-scoped memory into a project root,
// retagged as project-scoped. The project root is created on demand.
func (m *Manager) Unpromote(ctx context.Context, id, projectPath string) (*Result, error) {
	if projectPath == "" {
		return nil, &model.ValidationError{Field: "project", Reason: "unpromote requires a target project"}
	}

	src, err := m.roots.GlobalStore()
	if err != nil {
		return nil, err
	}
	mem, err := src.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if mem.Scope == model.ScopeProject {
		return nil, &model.ValidationError{Field: "scope", Reason: fmt.Sprintf("memory %s is already project-scoped", id)}
	}

	target := *mem
	target.Scope = model.ScopeProject
	target.ProjectPath = projectPath
	target.Groups = nil
	return m.move(ctx, mem, &target, scopeRoot{scope: model.ScopeProject, projectPath: projectPath})
}

// Share grants one or more groups visibility of a memory. Sharing a
// project-scoped or global memory converts it to group scope, which is
// reported as a warning; sharing an already group-scoped memory merges the
// names into its owner set.
func (m *Manager) Share(ctx context.Context, id, projectPath string, groups []string) (*Result, error) {
	if len(groups) == 0 {
		return nil, &model.ValidationError{Field: "groups", Reason: "share requires at least one group"}
	}
	if err := m.requireGroups(groups); err != nil {
		return nil, err
	}

	mem, loc, err := m.locate(ctx, id, projectPath)
	if err != nil {
		return nil, err
	}

	switch mem.Scope {
	case model.ScopeGroup:
		merged := mergeNames(mem.Groups, groups)
		updated, err := loc.store.Update(ctx, id, store.UpdateParams{Groups: &merged})
		if err != nil {
			return nil, err
		}
		return &Result{Memory: updated}, nil

	case model.ScopeGlobal:
		// Same root; a single atomic retag suffices.
		scope := model.ScopeGroup
		updated, err := loc.store.Update(ctx, id, store.UpdateParams{SetScope: &scope, Groups: &groups})
		if err != nil {
			return nil, err
		}
		return &Result{
			Memory:   updated,
			Warnings: []string{"memory converted from global to group scope"},
		}, nil

	default: // project
		target := *mem
		target.Scope = model.ScopeGroup
		target.Groups = groups
		res, err := m.move(ctx, mem, &target, scopeRoot{scope: model.ScopeGroup})
		if err != nil {
			return nil, err
		}
		res.Warnings = append([]string{"memory converted from project to group scope"}, res.Warnings...)
		return res, nil
	}
}

// Unshare revokes groups from a group-scoped memory. Revoking every group
// leaves the memory group-scoped with no owners: invisible to retrieval but
// recoverable with set-scope, which is reported as a warning.
func (m *Manager) Unshare(ctx context.Context, id string, groups []string, all bool) (*Result, error) {
	if !all && len(groups) == 0 {
		return nil, &model.ValidationError{Field: "groups", Reason: "unshare requires group names or --all"}
	}

	st, err := m.roots.GlobalStore()
	if err != nil {
		return nil, err
	}
	mem, err := st.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if mem.Scope != model.ScopeGroup {
		return nil, &model.ValidationError{Field: "scope", Reason: fmt.Sprintf("memory %s is %s-scoped, not group-scoped", id, mem.Scope)}
	}

	var remaining []string
	if !all {
		drop := make(map[string]bool, len(groups))
		for _, g := range groups {
			drop[g] = true
		}
		for _, g := range mem.Groups {
			if !drop[g] {
				remaining = append(remaining, g)
			}
		}
	}

	updated, err := st.Update(ctx, id, store.UpdateParams{Groups: &remaining})
	if err != nil {
		return nil, err
	}
	res := &Result{Memory: updated}
	if len(remaining) == 0 {
		res.Warnings = append(res.Warnings,
			"memory has no owner groups and is visible to no project; use set-scope to recover it")
	}
	return res, nil
}

// SetScope retags a memory to any scope, moving it between roots when needed.
// This is the general transition covering all six scope pairs, and the
// recovery path for orphaned group memories.
func (m *Manager) SetScope(ctx context.Context, id, projectPath string, newScope model.Scope, groups []string) (*Result, error) {
	if !model.ValidScopes[newScope] {
		return nil, &model.ValidationError{Field: "scope", Reason: fmt.Sprintf("unknown scope %q", newScope)}
	}
	if newScope == model.ScopeGroup {
		if len(groups) == 0 {
			return nil, &model.ValidationError{Field: "groups", Reason: "group scope requires at least one group"}
		}
		if err := m.requireGroups(groups); err != nil {
			return nil, err
		}
	}
	if newScope == model.ScopeProject && projectPath == "" {
		return nil, &model.ValidationError{Field: "project", Reason: "project scope requires a current project"}
	}

	mem, loc, err := m.locate(ctx, id, projectPath)
	if err != nil {
		return nil, err
	}

	target := *mem
	target.Scope = newScope
	switch newScope {
	case model.ScopeProject:
		target.ProjectPath = projectPath
		target.Groups = nil
	case model.ScopeGlobal:
		target.ProjectPath = ""
		target.Groups = nil
	case model.ScopeGroup:
		target.Groups = groups
	}

	sameRoot := (loc.root == model.ScopeProject) == (newScope == model.ScopeProject)
	if sameRoot && loc.root != model.ScopeProject {
		// Global root retag (global <-> group).
		var pp *string
		empty := ""
		if newScope == model.ScopeGlobal {
			pp = &empty
		}
		updated, err := loc.store.Update(ctx, id, store.UpdateParams{
			SetScope: &newScope, Groups: &target.Groups, ProjectPath: pp,
		})
		if err != nil {
			return nil, err
		}
		return &Result{Memory: updated}, nil
	}
	if sameRoot {
		// Project root, staying project-scoped: nothing to move.
		return &Result{Memory: mem}, nil
	}

	return m.move(ctx, mem, &target, scopeRoot{scope: newScope, projectPath: projectPath})
}

// GroupDeleteResult reports a group cascade delete.
type GroupDeleteResult struct {
	Group    string   `json:"group"`
	Updated  int      `json:"memories_updated"`
	Orphaned []string `json:"orphaned_memory_ids,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// DeleteGroup removes a group definition. Without force it refuses while the
// group still owns memories. With force it strips the name from every owning
// memory first; memories left with no owner groups are reported, never
// deleted.
func (m *Manager) DeleteGroup(ctx context.Context, name string, force bool) (*GroupDeleteResult, error) {
	if ok, err := m.reg.Exists(name); err != nil {
		return nil, err
	} else if !ok {
		return nil, &model.NotFoundError{Kind: "group", ID: name}
	}

	st, err := m.roots.GlobalStore()
	if err != nil {
		return nil, err
	}
	owned, err := st.Query(ctx, store.Filter{
		Scope:          model.ScopeGroup,
		Groups:         []string{name},
		IncludeExpired: true,
	})
	if err != nil {
		return nil, err
	}

	if len(owned) > 0 && !force {
		return nil, &model.ValidationError{
			Field:  "group",
			Reason: fmt.Sprintf("group %s still owns %d memories; re-run with --force to strip it from them", name, len(owned)),
		}
	}

	res := &GroupDeleteResult{Group: name}
	for i := range owned {
		mem := &owned[i]
		var kept []string
		for _, g := range mem.Groups {
			if g != name {
				kept = append(kept, g)
			}
		}
		if _, err := st.Update(ctx, mem.ID, store.UpdateParams{Groups: &kept}); err != nil {
			return nil, err
		}
		res.Updated++
		if len(kept) == 0 {
			res.Orphaned = append(res.Orphaned, mem.ID)
		}
	}
	if len(res.Orphaned) > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"%d memories no longer have owner groups and are visible to no project; use set-scope to recover them",
			len(res.Orphaned)))
	}

	if err := m.reg.Delete(name); err != nil {
		return nil, err
	}
	return res, nil
}

// ExpiredMemory is one cleanup candidate.
type ExpiredMemory struct {
	ID        string         `json:"id"`
	Root      string         `json:"root"`
	Scope     model.Scope    `json:"scope"`
	Category  model.Category `json:"category"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiredAt time.Time      `json:"expired_at"`
}

// CleanupReport summarizes a cleanup pass.
type CleanupReport struct {
	DryRun   bool            `json:"dry_run"`
	Expired  []ExpiredMemory `json:"expired"`
	Deleted  int             `json:"deleted"`
	Warnings []string        `json:"warnings,omitempty"`
}

// Cleanup removes memories whose age exceeds the current per-category TTL,
// scanning the global root and every project root. Pinned memories never
// expire. TTLs are recomputed from the live configuration, so changing a TTL
// retroactively applies to existing memories. With dryRun the candidates are
// reported and nothing is deleted.
func (m *Manager) Cleanup(ctx context.Context, dryRun bool) (*CleanupReport, error) {
	report := &CleanupReport{DryRun: dryRun}
	if !m.cfg.Expiration.Enabled {
		return report, nil
	}

	type rootRef struct {
		label   string
		store   *store.SQLiteStore
		vectors func() (*vector.Index, error)
	}

	gst, err := m.roots.GlobalStore()
	if err != nil {
		return nil, err
	}
	refs := []rootRef{{label: "global", store: gst, vectors: m.roots.GlobalVectors}}

	paths, err := m.roots.ProjectPaths()
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		p := p
		pst, err := m.roots.ProjectStore(p)
		if err != nil {
			return nil, err
		}
		refs = append(refs, rootRef{
			label:   p,
			store:   pst,
			vectors: func() (*vector.Index, error) { return m.roots.ProjectVectors(p) },
		})
	}

	now := m.now().UTC()
	for _, ref := range refs {
		memories, err := ref.store.Query(ctx, store.Filter{IncludeExpired: true})
		if err != nil {
			return nil, err
		}
		for i := range memories {
			mem := &memories[i]
			if mem.Pinned {
				continue
			}
			days, ok := m.cfg.Expiration.TTLDays(mem.Category)
			if !ok {
				continue
			}
			expiredAt := mem.CreatedAt.AddDate(0, 0, days)
			if !now.After(expiredAt) {
				continue
			}

			report.Expired = append(report.Expired, ExpiredMemory{
				ID:        mem.ID,
				Root:      ref.label,
				Scope:     mem.Scope,
				Category:  mem.Category,
				CreatedAt: mem.CreatedAt,
				ExpiredAt: expiredAt,
			})
			if dryRun {
				continue
			}
			if _, err := ref.store.Delete(ctx, mem.ID); err != nil {
				return nil, err
			}
			report.Deleted++
			if ix, verr := ref.vectors(); verr == nil {
				if derr := ix.Delete(ctx, mem.ID); derr != nil {
					report.Warnings = append(report.Warnings, "embedding not removed for "+mem.ID+": "+derr.Error())
				}
			}
		}
	}
	return report, nil
}

// Reset wipes every record in one root: the current project's root, or the
// global root when projectPath is empty.
func (m *Manager) Reset(ctx context.Context, projectPath string) (int, error) {
	var (
		st  *store.SQLiteStore
		ix  *vector.Index
		err error
	)
	if projectPath == "" {
		st, err = m.roots.GlobalStore()
		if err == nil {
			ix, err = m.roots.GlobalVectors()
		}
	} else {
		st, err = m.roots.ProjectStore(projectPath)
		if err == nil {
			ix, err = m.roots.ProjectVectors(projectPath)
		}
	}
	if err != nil {
		return 0, err
	}

	n, err := st.Reset(ctx)
	if err != nil {
		return 0, err
	}
	if err := ix.Reset(ctx); err != nil {
		return n, err
	}
	return n, nil
}

// ListSessionSummaries returns a project's session_summary memories, newest
// first.
func (m *Manager) ListSessionSummaries(ctx context.Context, projectPath string) ([]model.Memory, error) {
	st, err := m.roots.ProjectStore(projectPath)
	if err != nil {
		return nil, err
	}
	return st.Query(ctx, store.Filter{
		Scope:    model.ScopeProject,
		Category: model.CategorySessionSummary,
	})
}

// --- internals ---

type location struct {
	root    model.Scope // project or global; identifies the physical root
	store   *store.SQLiteStore
	vectors *vector.Index
}

// locate finds a memory in the roots visible from a project: the project
// root first, then the global root.
func (m *Manager) locate(ctx context.Context, id, projectPath string) (*model.Memory, *location, error) {
	if projectPath != "" {
		st, err := m.roots.ProjectStore(projectPath)
		if err != nil {
			return nil, nil, err
		}
		mem, err := st.Get(ctx, id)
		if err == nil {
			ix, verr := m.roots.ProjectVectors(projectPath)
			if verr != nil {
				return nil, nil, verr
			}
			return mem, &location{root: model.ScopeProject, store: st, vectors: ix}, nil
		}
		if _, ok := err.(*model.NotFoundError); !ok {
			return nil, nil, err
		}
	}

	st, err := m.roots.GlobalStore()
	if err != nil {
		return nil, nil, err
	}
	mem, err := st.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ix, err := m.roots.GlobalVectors()
	if err != nil {
		return nil, nil, err
	}
	return mem, &location{root: model.ScopeGlobal, store: st, vectors: ix}, nil
}

type scopeRoot struct {
	scope       model.Scope
	projectPath string
}

// rootFor maps a scope to its physical root. Group-scoped memories live in
// the global root.
func (m *Manager) rootFor(scope model.Scope, projectPath string) (*store.SQLiteStore, *vector.Index, error) {
	if scope == model.ScopeProject {
		st, err := m.roots.ProjectStore(projectPath)
		if err != nil {
			return nil, nil, err
		}
		ix, err := m.roots.ProjectVectors(projectPath)
		if err != nil {
			return nil, nil, err
		}
		return st, ix, nil
	}
	st, err := m.roots.GlobalStore()
	if err != nil {
		return nil, nil, err
	}
	ix, err := m.roots.GlobalVectors()
	if err != nil {
		return nil, nil, err
	}
	return st, ix, nil
}

// move transfers a memory between roots preserving its id: insert into the
// target root, delete from the source root, then reconcile vector indexes.
// The embedding is recomputed for the target index; when the provider is
// unavailable the move still commits and the memory is searchable
// structurally only.
func (m *Manager) move(ctx context.Context, src *model.Memory, target *model.Memory, dst scopeRoot) (*Result, error) {
	srcStore, srcVec, err := m.rootFor(src.Scope, src.ProjectPath)
	if err != nil {
		return nil, err
	}
	dstStore, dstVec, err := m.rootFor(dst.scope, dst.projectPath)
	if err != nil {
		return nil, err
	}

	vec, warning := m.embedBestEffort(ctx, target.Content)
	target.UpdatedAt = m.now().UTC()
	target.HasEmbedding = vec != nil

	if err := dstStore.Put(ctx, target); err != nil {
		return nil, err
	}
	if _, err := srcStore.Delete(ctx, src.ID); err != nil {
		// Roll back the copy so the id stays unique across roots.
		dstStore.Delete(ctx, target.ID)
		return nil, err
	}

	res := &Result{Memory: target}
	if warning != "" {
		res.Warnings = append(res.Warnings, warning)
	}
	if err := srcVec.Delete(ctx, src.ID); err != nil {
		res.Warnings = append(res.Warnings, "stale embedding left in source root: "+err.Error())
	}
	if vec != nil {
		if err := dstVec.Upsert(ctx, target, vec); err != nil {
			res.Warnings = append(res.Warnings, "embedding not indexed: "+err.Error())
			hasEmbedding := false
			target.HasEmbedding = hasEmbedding
			dstStore.Update(ctx, target.ID, store.UpdateParams{HasEmbedding: &hasEmbedding})
		}
	}
	return res, nil
}

// embedBestEffort computes an embedding, degrading to a warning on provider
// failure. A nil embedder yields neither vector nor warning.
func (m *Manager) embedBestEffort(ctx context.Context, content string) (embedding.Vector, string) {
	if m.embed == nil {
		return nil, ""
	}
	vec, err := m.embed.Embed(ctx, content)
	if err != nil {
		return nil, "embedding unavailable: " + err.Error()
	}
	return vec, ""
}

// expiryFor stamps the expiry for a category under the current TTL policy.
func (m *Manager) expiryFor(category model.Category, now time.Time) *time.Time {
	days, ok := m.cfg.Expiration.TTLDays(category)
	if !ok {
		return nil
	}
	t := now.AddDate(0, 0, days)
	return &t
}

// requireGroups fails on the first name missing from the registry.
func (m *Manager) requireGroups(names []string) error {
	for _, name := range names {
		ok, err := m.reg.Exists(name)
		if err != nil {
			return err
		}
		if !ok {
			return &model.ValidationError{Field: "groups", Reason: fmt.Sprintf("no such group %q", name)}
		}
	}
	return nil
}

func mergeNames(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
