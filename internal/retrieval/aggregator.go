// Package retrieval implements read-side aggregation across store roots:
// search, listing, startup bundles, export, and stats. Results from multiple
// roots are merged in resolution order (project, then global, then group)
// and deduplicated by memory id.
package retrieval

import (
	"context"
	"sort"
	"time"

	"github.com/memkeep/memkeep/internal/config"
	"github.com/memkeep/memkeep/internal/embedding"
	"github.com/memkeep/memkeep/internal/model"
	"github.com/memkeep/memkeep/internal/roots"
	"github.com/memkeep/memkeep/internal/scope"
	"github.com/memkeep/memkeep/internal/store"
)

// Mode labels how a search was executed.
type Mode string

const (
	ModeSemantic   Mode = "semantic"
	ModeStructural Mode = "structural"
)

// ScoredMemory is one search result with its relevance score. Structural
// matches carry a synthetic score of zero and rank below any semantic match.
type ScoredMemory struct {
	model.Memory
	Score    float64 `json:"score"`
	Semantic bool    `json:"semantic"`
}

// SearchResult is the merged outcome of one search.
type SearchResult struct {
	Query    string         `json:"query"`
	Mode     Mode           `json:"mode"`
	Results  []ScoredMemory `json:"results"`
	Warnings []string       `json:"warnings,omitempty"`
}

// SearchParams refines a search beyond its scope context.
type SearchParams struct {
	Query    string
	Category string // optional category filter
	Limit    int    // overall result cap; 0 means the configured default
}

// Aggregator executes read operations across the roots a context resolves to.
type Aggregator struct {
	cfg      *config.Config
	roots    *roots.Roots
	resolver *scope.Resolver
	embed    embedding.Embedder

	now func() time.Time
}

// New creates an aggregator. embedder may be nil; searches then run
// structurally.
func New(cfg *config.Config, r *roots.Roots, resolver *scope.Resolver, embedder embedding.Embedder) *Aggregator {
	return &Aggregator{cfg: cfg, roots: r, resolver: resolver, embed: embedder, now: time.Now}
}

// Search runs a semantic search when an embedding provider is available,
// falling back to structural substring matching when it is not or when the
// provider fails mid-flight. Semantic hits below the similarity threshold are
// dropped; structural matches top each root up at score zero. The merged
// results are ordered by score descending with resolution order breaking
// ties. Expired and out-of-scope records never appear.
func (a *Aggregator) Search(ctx context.Context, sctx scope.Context, p SearchParams) (*SearchResult, error) {
	if p.Query == "" {
		return nil, &model.ValidationError{Field: "query", Reason: "query is required"}
	}
	category, err := normalizeCategoryFilter(p.Category)
	if err != nil {
		return nil, err
	}

	targets, err := a.resolver.Resolve(sctx)
	if err != nil {
		return nil, err
	}

	limit := p.Limit
	if limit <= 0 {
		limit = a.cfg.Relevance.SearchLimit
	}
	perScope := a.cfg.Relevance.PerScopeLimit
	if perScope <= 0 {
		perScope = limit
	}

	result := &SearchResult{Query: p.Query, Mode: ModeStructural}

	var queryVec embedding.Vector
	if a.embed != nil {
		vec, embErr := a.embed.Embed(ctx, p.Query)
		if embErr != nil {
			result.Warnings = append(result.Warnings,
				"semantic search unavailable, falling back to keyword match: "+embErr.Error())
		} else {
			queryVec = vec
			result.Mode = ModeSemantic
		}
	}

	seen := make(map[string]bool)
	accessed := make(map[*store.SQLiteStore][]string)

	for _, t := range targets {
		st, err := a.roots.StoreFor(t)
		if err != nil {
			return nil, err
		}

		var scoped []ScoredMemory

		if queryVec != nil {
			ix, err := a.roots.VectorsFor(t)
			if err != nil {
				return nil, err
			}
			hits, err := ix.Nearest(ctx, queryVec, perScope)
			if err != nil {
				return nil, err
			}
			for _, h := range hits {
				if h.Score < a.cfg.Semantic.Threshold {
					continue
				}
				if !hitMatchesTarget(h.Scope, h.Groups, t) {
					continue
				}
				mem, err := st.Get(ctx, h.ID)
				if err != nil {
					// Vector entries can outlive their metadata row.
					continue
				}
				if mem.Expired(a.now()) {
					continue
				}
				if category != "" && mem.Category != category {
					continue
				}
				scoped = append(scoped, ScoredMemory{Memory: *mem, Score: h.Score, Semantic: true})
			}
			sort.SliceStable(scoped, func(i, j int) bool { return scoped[i].Score > scoped[j].Score })
		}

		if len(scoped) < perScope {
			rows, err := st.Query(ctx, store.Filter{
				Scope:       t.Visibility,
				Category:    category,
				Groups:      t.Groups,
				ContentLike: p.Query,
				Limit:       perScope,
			})
			if err != nil {
				return nil, err
			}
			inScoped := make(map[string]bool, len(scoped))
			for _, s := range scoped {
				inScoped[s.ID] = true
			}
			for i := range rows {
				if len(scoped) >= perScope {
					break
				}
				if inScoped[rows[i].ID] {
					continue
				}
				scoped = append(scoped, ScoredMemory{Memory: rows[i], Score: 0, Semantic: false})
			}
		}

		for _, s := range scoped {
			if seen[s.ID] {
				continue
			}
			seen[s.ID] = true
			result.Results = append(result.Results, s)
			accessed[st] = append(accessed[st], s.ID)
		}
	}

	// Merge across roots: score descending, resolver order as tie-break.
	// Structural zero scores always sink below kept semantic hits.
	sort.SliceStable(result.Results, func(i, j int) bool {
		return result.Results[i].Score > result.Results[j].Score
	})
	if len(result.Results) > limit {
		result.Results = result.Results[:limit]
	}

	kept := make(map[string]bool, len(result.Results))
	for _, r := range result.Results {
		kept[r.ID] = true
	}
	for st, ids := range accessed {
		var hit []string
		for _, id := range ids {
			if kept[id] {
				hit = append(hit, id)
			}
		}
		st.RecordAccess(ctx, hit...)
	}

	return result, nil
}

// ListParams refines a listing.
type ListParams struct {
	Category   string
	PinnedOnly bool
	Limit      int // 0 means no limit
}

// List returns memories across the resolved roots, newest first within each
// root, without touching the embedding provider.
func (a *Aggregator) List(ctx context.Context, sctx scope.Context, p ListParams) ([]model.Memory, error) {
	category, err := normalizeCategoryFilter(p.Category)
	if err != nil {
		return nil, err
	}
	targets, err := a.resolver.Resolve(sctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []model.Memory
	for _, t := range targets {
		st, err := a.roots.StoreFor(t)
		if err != nil {
			return nil, err
		}
		rows, err := st.Query(ctx, store.Filter{
			Scope:      t.Visibility,
			Category:   category,
			PinnedOnly: p.PinnedOnly,
			Groups:     t.Groups,
			Limit:      p.Limit,
		})
		if err != nil {
			return nil, err
		}
		for i := range rows {
			if seen[rows[i].ID] {
				continue
			}
			seen[rows[i].ID] = true
			out = append(out, rows[i])
		}
	}
	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

// AutosaveHints are advisory flags surfaced to the calling agent at startup.
type AutosaveHints struct {
	Enabled                 bool `json:"enabled"`
	OnTaskComplete          bool `json:"on_task_complete"`
	SessionSummary          bool `json:"session_summary"`
	SummaryIntervalMessages int  `json:"summary_interval_messages"`
}

// StartupBundle is the context block loaded at the start of an agent session.
type StartupBundle struct {
	Project  string         `json:"project,omitempty"`
	Pinned   []model.Memory `json:"pinned"`
	Autosave AutosaveHints  `json:"autosave"`
	Warnings []string       `json:"warnings,omitempty"`
}

// Startup collects every pinned memory visible from the context, in
// resolution order. Pins bypass relevance thresholds and limits, and no
// embedding call is ever made.
func (a *Aggregator) Startup(ctx context.Context, sctx scope.Context) (*StartupBundle, error) {
	targets, err := a.resolver.Resolve(sctx)
	if err != nil {
		return nil, err
	}

	bundle := &StartupBundle{
		Project: sctx.ProjectPath,
		Pinned:  []model.Memory{},
		Autosave: AutosaveHints{
			Enabled:                 a.cfg.Autosave.Enabled,
			OnTaskComplete:          a.cfg.Autosave.OnTaskComplete,
			SessionSummary:          a.cfg.Autosave.SessionSummary,
			SummaryIntervalMessages: a.cfg.Autosave.SummaryIntervalMessages,
		},
	}
	if !a.cfg.Startup.AutoLoadPinned {
		return bundle, nil
	}

	seen := make(map[string]bool)
	for _, t := range targets {
		st, err := a.roots.StoreFor(t)
		if err != nil {
			return nil, err
		}
		rows, err := st.Query(ctx, store.Filter{
			Scope:      t.Visibility,
			PinnedOnly: true,
			Groups:     t.Groups,
		})
		if err != nil {
			return nil, err
		}
		var ids []string
		for i := range rows {
			if seen[rows[i].ID] {
				continue
			}
			seen[rows[i].ID] = true
			bundle.Pinned = append(bundle.Pinned, rows[i])
			ids = append(ids, rows[i].ID)
		}
		st.RecordAccess(ctx, ids...)
	}
	return bundle, nil
}

// Export returns every memory visible from the context, including expired
// records, for backup or migration.
func (a *Aggregator) Export(ctx context.Context, sctx scope.Context) ([]model.Memory, error) {
	targets, err := a.resolver.Resolve(sctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	out := []model.Memory{}
	for _, t := range targets {
		st, err := a.roots.StoreFor(t)
		if err != nil {
			return nil, err
		}
		rows, err := st.Query(ctx, store.Filter{
			Scope:          t.Visibility,
			Groups:         t.Groups,
			IncludeExpired: true,
		})
		if err != nil {
			return nil, err
		}
		for i := range rows {
			if seen[rows[i].ID] {
				continue
			}
			seen[rows[i].ID] = true
			out = append(out, rows[i])
		}
	}
	return out, nil
}

// AccessStat is one frequently read memory.
type AccessStat struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	AccessCount int    `json:"access_count"`
	Pinned      bool   `json:"pinned"`
}

// RootStats describes one store root.
type RootStats struct {
	Root          string       `json:"root"`
	Project       string       `json:"project,omitempty"`
	Memories      int          `json:"memories"`
	Pinned        int          `json:"pinned"`
	Embedded      int          `json:"embedded"`
	Group         int          `json:"group_scoped,omitempty"`
	MostAccessed  []AccessStat `json:"most_accessed,omitempty"`
	PinCandidates []string     `json:"pin_candidates,omitempty"`
}

// Stats summarizes every store root on this machine.
type Stats struct {
	Global   RootStats   `json:"global"`
	Projects []RootStats `json:"projects"`
	Total    int         `json:"total"`
}

// CollectStats walks the global root and every project root.
func (a *Aggregator) CollectStats(ctx context.Context) (*Stats, error) {
	gst, err := a.roots.GlobalStore()
	if err != nil {
		return nil, err
	}
	global, err := rootStats(ctx, gst, "global", "")
	if err != nil {
		return nil, err
	}

	stats := &Stats{Global: global, Projects: []RootStats{}, Total: global.Memories}

	paths, err := a.roots.ProjectPaths()
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		st, err := a.roots.ProjectStore(p)
		if err != nil {
			return nil, err
		}
		rs, err := rootStats(ctx, st, "project", p)
		if err != nil {
			return nil, err
		}
		stats.Projects = append(stats.Projects, rs)
		stats.Total += rs.Memories
	}
	sort.Slice(stats.Projects, func(i, j int) bool { return stats.Projects[i].Project < stats.Projects[j].Project })
	return stats, nil
}

// pinCandidateReads is the access count at which an unpinned memory is
// suggested for pinning.
const pinCandidateReads = 5

func rootStats(ctx context.Context, st *store.SQLiteStore, root, project string) (RootStats, error) {
	rs := RootStats{Root: root, Project: project}
	rows, err := st.Query(ctx, store.Filter{IncludeExpired: true})
	if err != nil {
		return rs, err
	}

	var accessed []AccessStat
	for i := range rows {
		rs.Memories++
		if rows[i].Pinned {
			rs.Pinned++
		}
		if rows[i].HasEmbedding {
			rs.Embedded++
		}
		if rows[i].Scope == model.ScopeGroup {
			rs.Group++
		}
		if rows[i].AccessCount > 0 {
			accessed = append(accessed, AccessStat{
				ID:          rows[i].ID,
				Content:     rows[i].Content,
				AccessCount: rows[i].AccessCount,
				Pinned:      rows[i].Pinned,
			})
		}
	}

	sort.SliceStable(accessed, func(i, j int) bool { return accessed[i].AccessCount > accessed[j].AccessCount })
	if len(accessed) > 5 {
		accessed = accessed[:5]
	}
	rs.MostAccessed = accessed
	for _, a := range accessed {
		if !a.Pinned && a.AccessCount >= pinCandidateReads {
			rs.PinCandidates = append(rs.PinCandidates, a.ID)
		}
	}
	return rs, nil
}

// hitMatchesTarget checks a vector hit against the target's visibility class.
// The global root's index mixes global and group entries, so scope and owner
// groups are re-checked from the hit metadata.
func hitMatchesTarget(s model.Scope, groups []string, t scope.Target) bool {
	if s != t.Visibility {
		return false
	}
	if t.Visibility != model.ScopeGroup {
		return true
	}
	want := make(map[string]bool, len(t.Groups))
	for _, g := range t.Groups {
		want[g] = true
	}
	for _, g := range groups {
		if want[g] {
			return true
		}
	}
	return false
}

func normalizeCategoryFilter(category string) (model.Category, error) {
	if category == "" {
		return "", nil
	}
	c := model.Category(category)
	if !model.ValidCategories[c] {
		return "", &model.ValidationError{Field: "category", Reason: "unknown category " + category}
	}
	return c, nil
}
