package model

import "fmt"

// ValidationError reports input rejected before any store mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a memory, group, project, or session that does not
// exist or is not visible under the current scope resolution.
type NotFoundError struct {
	Kind string // "memory", "group", "project", "session"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ProviderError reports an embedding provider failure. It is never fatal to
// a save; callers surface it as a warning on an otherwise successful result.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// StoreError reports an unavailable or corrupted underlying store. Fatal;
// the core performs no retries of its own.
type StoreError struct {
	Store string // "metadata" or "vector"
	Root  string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s store (%s): %v", e.Store, e.Root, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// InvariantViolation reports an operation that would break a scope or
// lifecycle invariant. Rejected before mutation.
type InvariantViolation struct {
	Reason string
}

func (e *InvariantViolation) Error() string {
	return "invariant violation: " + e.Reason
}
