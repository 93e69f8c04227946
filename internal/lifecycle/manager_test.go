package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memkeep/memkeep/internal/config"
	"github.com/memkeep/memkeep/internal/embedding"
	"github.com/memkeep/memkeep/internal/model"
	"github.com/memkeep/memkeep/internal/registry"
	"github.com/memkeep/memkeep/internal/roots"
)

const testProject = "/work/api"

type fakeEmbedder struct {
	fail bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) (embedding.Vector, error) {
	if f.fail {
		return nil, &model.ProviderError{Provider: f.Name(), Err: context.DeadlineExceeded}
	}
	vec := make([]float32, 3)
	for i, b := range []byte(text) {
		vec[i%3] += float32(b)
	}
	return vec, nil
}

func (f *fakeEmbedder) Name() string { return "fake" }
func (f *fakeEmbedder) Dims() int    { return 3 }

func newTestManager(t *testing.T, embedder embedding.Embedder) (*Manager, *config.Config, *registry.Registry) {
	t.Helper()
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	reg := registry.New(cfg.GroupsFile())
	r := roots.New(cfg)
	t.Cleanup(r.Close)

	return New(cfg, reg, r, embedder), cfg, reg
}

func TestSaveDefaultsToProjectScope(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t, nil)

	res, err := m.Save(ctx, SaveParams{Content: "the API rate limit is 100 req/min", ProjectPath: testProject})
	require.NoError(t, err)
	require.NotNil(t, res.Memory)

	mem := res.Memory
	assert.Equal(t, model.ScopeProject, mem.Scope)
	assert.Equal(t, model.CategoryFactual, mem.Category)
	assert.Equal(t, model.SourceUserExplicit, mem.Source)
	assert.Equal(t, testProject, mem.ProjectPath)
	assert.Nil(t, mem.ExpiresAt, "expiration disabled by default")
	assert.False(t, mem.HasEmbedding)

	got, err := m.Get(ctx, mem.ID, testProject)
	require.NoError(t, err)
	assert.Equal(t, mem.Content, got.Content)
}

func TestSaveRejectsEmptyContent(t *testing.T) {
	m, _, _ := newTestManager(t, nil)

	_, err := m.Save(context.Background(), SaveParams{ProjectPath: testProject})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSaveGroupRequiresExistingGroup(t *testing.T) {
	m, _, _ := newTestManager(t, nil)

	_, err := m.Save(context.Background(), SaveParams{
		Content:     "shared note",
		Scope:       model.ScopeGroup,
		ProjectPath: testProject,
		Groups:      []string{"ghost"},
	})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSaveGroupLivesInGlobalRoot(t *testing.T) {
	ctx := context.Background()
	m, _, reg := newTestManager(t, nil)
	_, err := reg.Create("backend")
	require.NoError(t, err)

	res, err := m.Save(ctx, SaveParams{
		Content:     "shared convention: handlers return typed errors",
		Scope:       model.ScopeGroup,
		ProjectPath: testProject,
		Groups:      []string{"backend"},
	})
	require.NoError(t, err)

	gst, err := m.roots.GlobalStore()
	require.NoError(t, err)
	got, err := gst.Get(ctx, res.Memory.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScopeGroup, got.Scope)
	assert.Equal(t, []string{"backend"}, got.Groups)
	assert.Equal(t, testProject, got.ProjectPath, "origin project kept as provenance")
}

func TestSaveStampsExpiry(t *testing.T) {
	ctx := context.Background()
	m, cfg, _ := newTestManager(t, nil)
	cfg.Expiration.Enabled = true

	res, err := m.Save(ctx, SaveParams{
		Content:     "completed the cache warmup job",
		Category:    "task_history",
		ProjectPath: testProject,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Memory.ExpiresAt)

	want := res.Memory.CreatedAt.AddDate(0, 0, 30)
	assert.WithinDuration(t, want, *res.Memory.ExpiresAt, time.Second)

	// Decision TTL is 0: never expires.
	res, err = m.Save(ctx, SaveParams{
		Content:     "we chose grpc over rest here",
		Category:    "decision",
		ProjectPath: testProject,
	})
	require.NoError(t, err)
	assert.Nil(t, res.Memory.ExpiresAt)
}

func TestSaveEmbeddingFailureDegrades(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t, &fakeEmbedder{fail: true})

	res, err := m.Save(ctx, SaveParams{Content: "still saved", ProjectPath: testProject})
	require.NoError(t, err, "provider failure must not fail the save")
	assert.False(t, res.Memory.HasEmbedding)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "embedding unavailable")
}

func TestSaveWithEmbedding(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t, &fakeEmbedder{})

	res, err := m.Save(ctx, SaveParams{Content: "vectorized", ProjectPath: testProject})
	require.NoError(t, err)
	assert.True(t, res.Memory.HasEmbedding)
	assert.Empty(t, res.Warnings)

	ix, err := m.roots.ProjectVectors(testProject)
	require.NoError(t, err)
	assert.Equal(t, 1, ix.Count())
}

func TestPinUnpin(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t, nil)

	res, err := m.Save(ctx, SaveParams{Content: "keep me around", ProjectPath: testProject})
	require.NoError(t, err)

	pinned, err := m.Pin(ctx, res.Memory.ID, testProject)
	require.NoError(t, err)
	assert.True(t, pinned.Pinned)

	// Pin is idempotent.
	pinned, err = m.Pin(ctx, res.Memory.ID, testProject)
	require.NoError(t, err)
	assert.True(t, pinned.Pinned)

	unpinned, err := m.Unpin(ctx, res.Memory.ID, testProject)
	require.NoError(t, err)
	assert.False(t, unpinned.Pinned)
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t, nil)

	res, err := m.Save(ctx, SaveParams{Content: "ephemeral", ProjectPath: testProject})
	require.NoError(t, err)

	_, err = m.Forget(ctx, res.Memory.ID, testProject)
	require.NoError(t, err)

	_, err = m.Get(ctx, res.Memory.ID, testProject)
	var nf *model.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestPromoteUnpromoteRoundTrip(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t, nil)

	res, err := m.Save(ctx, SaveParams{Content: "worth sharing everywhere", ProjectPath: testProject})
	require.NoError(t, err)
	id := res.Memory.ID

	promoted, err := m.Promote(ctx, id, testProject, nil)
	require.NoError(t, err)
	assert.Equal(t, id, promoted.Memory.ID, "id survives the move")
	assert.Equal(t, model.ScopeGlobal, promoted.Memory.Scope)
	assert.Empty(t, promoted.Memory.ProjectPath)

	pst, err := m.roots.ProjectStore(testProject)
	require.NoError(t, err)
	_, err = pst.Get(ctx, id)
	var nf *model.NotFoundError
	require.ErrorAs(t, err, &nf, "gone from the project root")

	demoted, err := m.Unpromote(ctx, id, testProject)
	require.NoError(t, err)
	assert.Equal(t, id, demoted.Memory.ID)
	assert.Equal(t, model.ScopeProject, demoted.Memory.Scope)
	assert.Equal(t, testProject, demoted.Memory.ProjectPath)

	got, err := pst.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "worth sharing everywhere", got.Content)
}

func TestPromoteToGroups(t *testing.T) {
	ctx := context.Background()
	m, _, reg := newTestManager(t, nil)
	_, err := reg.Create("backend")
	require.NoError(t, err)

	res, err := m.Save(ctx, SaveParams{Content: "team convention", ProjectPath: testProject})
	require.NoError(t, err)

	promoted, err := m.Promote(ctx, res.Memory.ID, testProject, []string{"backend"})
	require.NoError(t, err)
	assert.Equal(t, model.ScopeGroup, promoted.Memory.Scope)
	assert.Equal(t, []string{"backend"}, promoted.Memory.Groups)
}

func TestPromoteRejectsNonProjectScope(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t, nil)

	res, err := m.Save(ctx, SaveParams{Content: "already global", Scope: model.ScopeGlobal, ProjectPath: testProject})
	require.NoError(t, err)

	_, err = m.Promote(ctx, res.Memory.ID, testProject, nil)
	var nf *model.NotFoundError
	require.ErrorAs(t, err, &nf, "global memories are not in the project root")
}

func TestShareConvertsScope(t *testing.T) {
	ctx := context.Background()
	m, _, reg := newTestManager(t, nil)
	_, err := reg.Create("backend")
	require.NoError(t, err)
	_, err = reg.Create("infra")
	require.NoError(t, err)

	res, err := m.Save(ctx, SaveParams{Content: "project detail", ProjectPath: testProject})
	require.NoError(t, err)

	shared, err := m.Share(ctx, res.Memory.ID, testProject, []string{"backend"})
	require.NoError(t, err)
	assert.Equal(t, model.ScopeGroup, shared.Memory.Scope)
	require.NotEmpty(t, shared.Warnings)
	assert.Contains(t, shared.Warnings[0], "converted")

	// Sharing again merges owner groups without another conversion.
	shared, err = m.Share(ctx, res.Memory.ID, testProject, []string{"infra"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"backend", "infra"}, shared.Memory.Groups)
	assert.Empty(t, shared.Warnings)
}

func TestUnshareAllLeavesOrphan(t *testing.T) {
	ctx := context.Background()
	m, _, reg := newTestManager(t, nil)
	_, err := reg.Create("backend")
	require.NoError(t, err)

	res, err := m.Save(ctx, SaveParams{
		Content:     "shared then revoked",
		Scope:       model.ScopeGroup,
		ProjectPath: testProject,
		Groups:      []string{"backend"},
	})
	require.NoError(t, err)

	unshared, err := m.Unshare(ctx, res.Memory.ID, nil, true)
	require.NoError(t, err)
	assert.Equal(t, model.ScopeGroup, unshared.Memory.Scope, "stays group-scoped")
	assert.Empty(t, unshared.Memory.Groups)
	require.NotEmpty(t, unshared.Warnings)
	assert.Contains(t, unshared.Warnings[0], "set-scope")

	// set-scope is the recovery path.
	recovered, err := m.SetScope(ctx, res.Memory.ID, testProject, model.ScopeProject, nil)
	require.NoError(t, err)
	assert.Equal(t, model.ScopeProject, recovered.Memory.Scope)
	assert.Equal(t, testProject, recovered.Memory.ProjectPath)
}

func TestSetScopeGlobalToGroup(t *testing.T) {
	ctx := context.Background()
	m, _, reg := newTestManager(t, nil)
	_, err := reg.Create("backend")
	require.NoError(t, err)

	res, err := m.Save(ctx, SaveParams{Content: "machine-wide fact", Scope: model.ScopeGlobal, ProjectPath: testProject})
	require.NoError(t, err)

	moved, err := m.SetScope(ctx, res.Memory.ID, testProject, model.ScopeGroup, []string{"backend"})
	require.NoError(t, err)
	assert.Equal(t, model.ScopeGroup, moved.Memory.Scope)
	assert.Equal(t, []string{"backend"}, moved.Memory.Groups)

	back, err := m.SetScope(ctx, res.Memory.ID, testProject, model.ScopeGlobal, nil)
	require.NoError(t, err)
	assert.Equal(t, model.ScopeGlobal, back.Memory.Scope)
	assert.Empty(t, back.Memory.Groups)
	assert.Empty(t, back.Memory.ProjectPath)
}

func TestDeleteGroupCascade(t *testing.T) {
	ctx := context.Background()
	m, _, reg := newTestManager(t, nil)
	_, err := reg.Create("backend")
	require.NoError(t, err)
	_, err = reg.Create("infra")
	require.NoError(t, err)

	solo, err := m.Save(ctx, SaveParams{
		Content: "owned by backend only", Scope: model.ScopeGroup,
		ProjectPath: testProject, Groups: []string{"backend"},
	})
	require.NoError(t, err)
	dual, err := m.Save(ctx, SaveParams{
		Content: "owned by both", Scope: model.ScopeGroup,
		ProjectPath: testProject, Groups: []string{"backend", "infra"},
	})
	require.NoError(t, err)

	_, err = m.DeleteGroup(ctx, "backend", false)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr, "refuses while memories are owned")

	res, err := m.DeleteGroup(ctx, "backend", true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, []string{solo.Memory.ID}, res.Orphaned)

	gst, err := m.roots.GlobalStore()
	require.NoError(t, err)
	got, err := gst.Get(ctx, dual.Memory.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"infra"}, got.Groups, "other owners keep the memory")

	ok, err := reg.Exists("backend")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	m, cfg, _ := newTestManager(t, nil)
	cfg.Expiration.Enabled = true

	stale, err := m.Save(ctx, SaveParams{
		Content: "completed an old migration", Category: "task_history", ProjectPath: testProject,
	})
	require.NoError(t, err)
	pinnedStale, err := m.Save(ctx, SaveParams{
		Content: "completed but pinned", Category: "task_history", ProjectPath: testProject, Pinned: true,
	})
	require.NoError(t, err)
	forever, err := m.Save(ctx, SaveParams{
		Content: "we chose sqlite", Category: "decision", ProjectPath: testProject,
	})
	require.NoError(t, err)

	// task_history TTL is 30 days; jump past it.
	m.now = func() time.Time { return time.Now().UTC().AddDate(0, 0, 31) }

	report, err := m.Cleanup(ctx, true)
	require.NoError(t, err)
	require.Len(t, report.Expired, 1)
	assert.Equal(t, stale.Memory.ID, report.Expired[0].ID)
	assert.Equal(t, 0, report.Deleted, "dry run deletes nothing")

	report, err = m.Cleanup(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)

	pst, err := m.roots.ProjectStore(testProject)
	require.NoError(t, err)
	_, err = pst.Get(ctx, stale.Memory.ID)
	var nf *model.NotFoundError
	require.ErrorAs(t, err, &nf)

	_, err = pst.Get(ctx, pinnedStale.Memory.ID)
	require.NoError(t, err, "pinned memories never expire")
	_, err = pst.Get(ctx, forever.Memory.ID)
	require.NoError(t, err, "zero TTL never expires")
}

func TestCleanupDisabled(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t, nil)

	_, err := m.Save(ctx, SaveParams{Content: "anything", ProjectPath: testProject})
	require.NoError(t, err)
	m.now = func() time.Time { return time.Now().UTC().AddDate(1, 0, 0) }

	report, err := m.Cleanup(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, report.Expired)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t, nil)

	_, err := m.Save(ctx, SaveParams{Content: "one", ProjectPath: testProject})
	require.NoError(t, err)
	_, err = m.Save(ctx, SaveParams{Content: "two", ProjectPath: testProject})
	require.NoError(t, err)

	n, err := m.Reset(ctx, testProject)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pst, err := m.roots.ProjectStore(testProject)
	require.NoError(t, err)
	count, err := pst.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
