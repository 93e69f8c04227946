package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memkeep/memkeep/internal/config"
	"github.com/memkeep/memkeep/internal/lifecycle"
	"github.com/memkeep/memkeep/internal/model"
	"github.com/memkeep/memkeep/internal/registry"
	"github.com/memkeep/memkeep/internal/roots"
)

const testProject = "/work/api"

func newTestSessions(t *testing.T) (*Manager, *lifecycle.Manager) {
	t.Helper()
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	reg := registry.New(cfg.GroupsFile())
	r := roots.New(cfg)
	t.Cleanup(r.Close)
	life := lifecycle.New(cfg, reg, r, nil)

	return New(cfg, life), life
}

func TestStartEndsOpenSession(t *testing.T) {
	m, _ := newTestSessions(t)

	first, err := m.Start(testProject)
	require.NoError(t, err)
	assert.True(t, first.Open())

	second, err := m.Start(testProject)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	sessions, err := m.List(testProject, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, second.ID, sessions[0].ID, "newest first")
	assert.True(t, sessions[0].Open())
	assert.False(t, sessions[1].Open(), "starting a session ends the open one")
}

func TestEndWithoutOpenSession(t *testing.T) {
	m, _ := newTestSessions(t)

	_, err := m.End(testProject)
	var nf *model.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestCurrentAndLast(t *testing.T) {
	m, _ := newTestSessions(t)

	first, err := m.Start(testProject)
	require.NoError(t, err)

	// Nothing closed yet: last falls back to the open session.
	last, err := m.Last(testProject)
	require.NoError(t, err)
	assert.Equal(t, first.ID, last.ID)

	_, err = m.End(testProject)
	require.NoError(t, err)
	second, err := m.Start(testProject)
	require.NoError(t, err)

	current, err := m.Current(testProject)
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)

	last, err = m.Last(testProject)
	require.NoError(t, err)
	assert.Equal(t, first.ID, last.ID, "last prefers the most recently closed session")
}

func TestSummarizeStartsImplicitly(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestSessions(t)

	res, err := m.Summarize(ctx, testProject, "worked on the resolver and the registry")
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	require.NotNil(t, res.Memory)

	assert.Equal(t, 1, res.Session.SummaryCount)
	assert.Equal(t, res.Memory.ID, res.Session.LastSummaryID)
	assert.Equal(t, model.CategorySessionSummary, res.Memory.Category)
	assert.Equal(t, model.ScopeProject, res.Memory.Scope)
	assert.Equal(t, model.SourceAutoSession, res.Memory.Source)
	assert.Equal(t, res.Session.ID, res.Memory.Metadata["session_id"])

	summaries, err := m.Summaries(ctx, testProject, res.Session.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, res.Memory.ID, summaries[0].ID)
}

func TestSummarizeBumpsCount(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestSessions(t)

	_, err := m.Start(testProject)
	require.NoError(t, err)

	_, err = m.Summarize(ctx, testProject, "first pass on the store layer")
	require.NoError(t, err)
	res, err := m.Summarize(ctx, testProject, "second pass, fixed the scan helper")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Session.SummaryCount)

	summaries, err := m.Summaries(ctx, testProject, res.Session.ID)
	require.NoError(t, err)
	assert.Len(t, summaries, 2)
}

func TestLedgerRetention(t *testing.T) {
	m, _ := newTestSessions(t)
	m.cfg.Sessions.Keep = 2

	for i := 0; i < 4; i++ {
		_, err := m.Start(testProject)
		require.NoError(t, err)
	}

	sessions, err := m.List(testProject, 0)
	require.NoError(t, err)
	assert.Len(t, sessions, 2, "ledger is capped to the configured keep count")
}
