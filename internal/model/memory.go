// Package model defines the core memory data types.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Scope is the visibility class of a memory.
type Scope string

const (
	ScopeProject Scope = "project"
	ScopeGroup   Scope = "group"
	ScopeGlobal  Scope = "global"
)

// ValidScopes are the allowed memory scopes.
var ValidScopes = map[Scope]bool{
	ScopeProject: true,
	ScopeGroup:   true,
	ScopeGlobal:  true,
}

// Category classifies what kind of knowledge a memory records.
type Category string

const (
	CategoryFactual        Category = "factual"
	CategoryDecision       Category = "decision"
	CategoryTaskHistory    Category = "task_history"
	CategorySessionSummary Category = "session_summary"
)

// ValidCategories are the allowed memory categories.
var ValidCategories = map[Category]bool{
	CategoryFactual:        true,
	CategoryDecision:       true,
	CategoryTaskHistory:    true,
	CategorySessionSummary: true,
}

// Sources a memory can originate from.
const (
	SourceUserExplicit = "user_explicit"
	SourceAutoTask     = "auto_task"
	SourceAutoSession  = "auto_session"
)

// Memory represents a stored memory record.
type Memory struct {
	ID             string            `json:"id"`
	Content        string            `json:"content"`
	Category       Category          `json:"category"`
	Scope          Scope             `json:"scope"`
	ProjectPath    string            `json:"project_path,omitempty"`
	Pinned         bool              `json:"pinned"`
	Groups         []string          `json:"groups,omitempty"`
	Source         string            `json:"source"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	ExpiresAt      *time.Time        `json:"expires_at,omitempty"`
	AccessCount    int               `json:"access_count"`
	LastAccessedAt *time.Time        `json:"last_accessed_at,omitempty"`
	HasEmbedding   bool              `json:"has_embedding,omitempty"`
}

// Expired reports whether the memory's stamped expiry has passed.
func (m *Memory) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && now.After(*m.ExpiresAt)
}

// OwnedByGroup reports whether name is in the memory's owner groups.
func (m *Memory) OwnedByGroup(name string) bool {
	for _, g := range m.Groups {
		if g == name {
			return true
		}
	}
	return false
}

var decisionKeywords = []string{
	"prefer", "chose", "decided", "rejected", "instead of", "rather than",
	"don't use", "always use", "never use", "should use", "shouldn't",
}

var taskKeywords = []string{
	"completed", "implemented", "fixed", "added", "removed",
	"refactored", "updated", "created", "deployed", "migrated",
}

var summaryKeywords = []string{
	"session", "summary", "discussed", "covered", "worked on",
	"today we", "in this session",
}

// DetectCategory guesses a category from content keywords. Defaults to factual.
func DetectCategory(content string) Category {
	lower := strings.ToLower(content)
	for _, k := range decisionKeywords {
		if strings.Contains(lower, k) {
			return CategoryDecision
		}
	}
	for _, k := range taskKeywords {
		if strings.Contains(lower, k) {
			return CategoryTaskHistory
		}
	}
	for _, k := range summaryKeywords {
		if strings.Contains(lower, k) {
			return CategorySessionSummary
		}
	}
	return CategoryFactual
}

// NormalizeCategory validates a category name, auto-detecting from content
// when it is empty. An unknown non-empty category is a validation error.
func NormalizeCategory(category string, content string) (Category, error) {
	if category == "" {
		return DetectCategory(content), nil
	}
	c := Category(category)
	if !ValidCategories[c] {
		return "", &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", category)}
	}
	return c, nil
}
