// Package session tracks work sessions per project. Sessions live in a
// sessions.json ledger inside the project root, newest first, and session
// summaries are stored as regular session_summary memories so they flow
// through search and startup like everything else.
package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/memkeep/memkeep/internal/config"
	"github.com/memkeep/memkeep/internal/lifecycle"
	"github.com/memkeep/memkeep/internal/model"
)

// Session is one tracked work session.
type Session struct {
	ID            string     `json:"id"`
	ProjectPath   string     `json:"project_path"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	SummaryCount  int        `json:"summary_count"`
	LastSummaryID string     `json:"last_summary_memory_id,omitempty"`
}

// Open reports whether the session has not been ended.
func (s *Session) Open() bool { return s.EndedAt == nil }

// Manager reads and writes per-project session ledgers.
type Manager struct {
	cfg  *config.Config
	life *lifecycle.Manager

	now func() time.Time
}

// New creates a session manager.
func New(cfg *config.Config, life *lifecycle.Manager) *Manager {
	return &Manager{cfg: cfg, life: life, now: time.Now}
}

func (m *Manager) ledgerPath(projectPath string) (string, error) {
	storage, err := m.cfg.ProjectStorage(projectPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(storage, "summaries", "sessions.json"), nil
}

// load returns the ledger newest first. A missing file is an empty ledger.
func (m *Manager) load(projectPath string) ([]Session, string, error) {
	path, err := m.ledgerPath(projectPath)
	if err != nil {
		return nil, "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, path, nil
		}
		return nil, path, &model.StoreError{Store: "metadata", Root: path, Err: errors.Wrap(err, "read sessions")}
	}
	var sessions []Session
	if err := json.Unmarshal(b, &sessions); err != nil {
		return nil, path, &model.StoreError{Store: "metadata", Root: path, Err: errors.Wrap(err, "parse sessions")}
	}
	return sessions, path, nil
}

// save trims the ledger to the retention policy and writes it back.
func (m *Manager) save(path string, sessions []Session) error {
	keep := m.cfg.Sessions.Keep
	if keep <= 0 {
		keep = 100
	}
	if len(sessions) > keep {
		sessions = sessions[:keep]
	}
	if days := m.cfg.Sessions.KeepDays; days > 0 {
		cutoff := m.now().UTC().AddDate(0, 0, -days)
		kept := sessions[:0]
		for _, s := range sessions {
			if s.Open() || s.StartedAt.After(cutoff) {
				kept = append(kept, s)
			}
		}
		sessions = kept
	}

	b, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return &model.StoreError{Store: "metadata", Root: path, Err: errors.Wrap(err, "encode sessions")}
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return &model.StoreError{Store: "metadata", Root: path, Err: errors.Wrap(err, "write sessions")}
	}
	return nil
}

// Start opens a new session. An already-open session is ended first, so at
// most one session is open per project.
func (m *Manager) Start(projectPath string) (*Session, error) {
	if projectPath == "" {
		return nil, &model.ValidationError{Field: "project", Reason: "sessions require a current project"}
	}
	sessions, path, err := m.load(projectPath)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	for i := range sessions {
		if sessions[i].Open() {
			ended := now
			sessions[i].EndedAt = &ended
		}
	}

	s := Session{
		ID:          "sess_" + uuid.NewString(),
		ProjectPath: projectPath,
		StartedAt:   now,
	}
	sessions = append([]Session{s}, sessions...)
	if err := m.save(path, sessions); err != nil {
		return nil, err
	}
	return &s, nil
}

// End closes the open session.
func (m *Manager) End(projectPath string) (*Session, error) {
	sessions, path, err := m.load(projectPath)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].Open() {
			ended := m.now().UTC()
			sessions[i].EndedAt = &ended
			if err := m.save(path, sessions); err != nil {
				return nil, err
			}
			return &sessions[i], nil
		}
	}
	return nil, &model.NotFoundError{Kind: "session", ID: "open"}
}

// Current returns the open session, if any.
func (m *Manager) Current(projectPath string) (*Session, error) {
	sessions, _, err := m.load(projectPath)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].Open() {
			return &sessions[i], nil
		}
	}
	return nil, &model.NotFoundError{Kind: "session", ID: "open"}
}

// Last returns the most recently ended session, falling back to the open one
// when nothing has been closed yet.
func (m *Manager) Last(projectPath string) (*Session, error) {
	sessions, _, err := m.load(projectPath)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if !sessions[i].Open() {
			return &sessions[i], nil
		}
	}
	if len(sessions) > 0 {
		return &sessions[0], nil
	}
	return nil, &model.NotFoundError{Kind: "session", ID: "last"}
}

// List returns sessions newest first, up to limit (0 means all).
func (m *Manager) List(projectPath string, limit int) ([]Session, error) {
	sessions, _, err := m.load(projectPath)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// SummarizeResult reports a saved session summary.
type SummarizeResult struct {
	Session  *Session      `json:"session"`
	Memory   *model.Memory `json:"memory"`
	Warnings []string      `json:"warnings,omitempty"`
}

// Summarize records a summary for the open session, starting one implicitly
// when needed. The summary is stored as a project-scoped session_summary
// memory tagged with the session id.
func (m *Manager) Summarize(ctx context.Context, projectPath, content string) (*SummarizeResult, error) {
	if content == "" {
		return nil, &model.ValidationError{Field: "content", Reason: "summary content is required"}
	}

	current, err := m.Current(projectPath)
	if err != nil {
		if _, ok := err.(*model.NotFoundError); !ok {
			return nil, err
		}
		current, err = m.Start(projectPath)
		if err != nil {
			return nil, err
		}
	}

	saved, err := m.life.Save(ctx, lifecycle.SaveParams{
		Content:     content,
		Category:    string(model.CategorySessionSummary),
		Scope:       model.ScopeProject,
		ProjectPath: projectPath,
		Source:      model.SourceAutoSession,
		Metadata:    map[string]string{"session_id": current.ID},
	})
	if err != nil {
		return nil, err
	}

	sessions, path, err := m.load(projectPath)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].ID == current.ID {
			sessions[i].SummaryCount++
			sessions[i].LastSummaryID = saved.Memory.ID
			current = &sessions[i]
			break
		}
	}
	if err := m.save(path, sessions); err != nil {
		return nil, err
	}

	return &SummarizeResult{Session: current, Memory: saved.Memory, Warnings: saved.Warnings}, nil
}

// Summaries returns the stored summary memories of one session, newest first.
func (m *Manager) Summaries(ctx context.Context, projectPath, sessionID string) ([]model.Memory, error) {
	all, err := m.life.ListSessionSummaries(ctx, projectPath)
	if err != nil {
		return nil, err
	}
	var out []model.Memory
	for i := range all {
		if all[i].Metadata["session_id"] == sessionID {
			out = append(out, all[i])
		}
	}
	return out, nil
}
