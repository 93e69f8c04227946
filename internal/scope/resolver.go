// Package scope computes which store roots and visibility classes an
// operation may touch. Resolution is deterministic: project results first,
// then global, then group; group visibility is strictly opt-in.
package scope

import (
	"strings"

	"github.com/memkeep/memkeep/internal/model"
	"github.com/memkeep/memkeep/internal/registry"
)

// GroupAll is the sentinel group filter meaning "every group".
const GroupAll = "all"

// RootKind identifies a physical store root.
type RootKind string

const (
	RootProject RootKind = "project"
	RootGlobal  RootKind = "global"
)

// Target is one (root, visibility) pair to query, in resolution order.
type Target struct {
	Root        RootKind
	ProjectPath string      // set when Root == RootProject
	Visibility  model.Scope // scope tag to filter within the root
	Groups      []string    // resolved owner-group filter when Visibility == group
}

// Context describes one operation's identity and requested visibility.
// It is derived once per invocation at the CLI boundary and passed explicitly.
type Context struct {
	// ProjectPath is the current project identity. Empty only for
	// explicitly global-only or all-projects operations.
	ProjectPath string

	// GroupFilter opts in to group-scoped memories: nil for none, explicit
	// names, or the GroupAll sentinel. Sharing is opt-in per retrieval.
	GroupFilter []string

	// ExcludeGroups is applied only when GroupFilter is GroupAll.
	ExcludeGroups []string

	// IncludeGlobal includes the global root (default true for callers).
	IncludeGlobal bool

	// AllProjects replaces the current project root with every known
	// project root. Valid only for user-facing operations.
	AllProjects bool

	// AgentOp marks agent-driven operations (save, startup without an
	// explicit user flag), for which AllProjects is rejected.
	AgentOp bool

	// EnforceMembership restricts the group filter to groups the current
	// project is a member of. Set for agent-driven startup.
	EnforceMembership bool
}

// GroupSource provides registry reads for group-filter resolution.
type GroupSource interface {
	List() ([]registry.Group, error)
	GroupsForProject(projectPath string) ([]registry.Group, error)
}

// ProjectSource enumerates every known project root path.
type ProjectSource func() ([]string, error)

// Resolver resolves operation contexts against the group registry and the
// set of known project roots.
type Resolver struct {
	Groups   GroupSource
	Projects ProjectSource
}

// Resolve computes the ordered (root, visibility) targets for a context.
func (r *Resolver) Resolve(ctx Context) ([]Target, error) {
	if ctx.AllProjects && ctx.AgentOp {
		return nil, &model.InvariantViolation{Reason: "all-projects is not permitted for agent-driven operations"}
	}
	if ctx.ProjectPath == "" && !ctx.AllProjects && !ctx.IncludeGlobal {
		return nil, &model.ValidationError{Field: "project", Reason: "current project could not be determined and no global or all-projects fallback was requested"}
	}

	var targets []Target

	switch {
	case ctx.AllProjects:
		paths, err := r.Projects()
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			targets = append(targets, Target{Root: RootProject, ProjectPath: p, Visibility: model.ScopeProject})
		}
	case ctx.ProjectPath != "":
		targets = append(targets, Target{Root: RootProject, ProjectPath: ctx.ProjectPath, Visibility: model.ScopeProject})
	}

	if ctx.IncludeGlobal {
		targets = append(targets, Target{Root: RootGlobal, Visibility: model.ScopeGlobal})
	}

	groups, err := r.resolveGroupFilter(ctx)
	if err != nil {
		return nil, err
	}
	if len(groups) > 0 {
		targets = append(targets, Target{Root: RootGlobal, Visibility: model.ScopeGroup, Groups: groups})
	}

	return targets, nil
}

// resolveGroupFilter expands the requested filter into concrete group names.
// Group visibility never appears without an explicit non-empty filter.
func (r *Resolver) resolveGroupFilter(ctx Context) ([]string, error) {
	if len(ctx.GroupFilter) == 0 {
		return nil, nil
	}

	wantAll := false
	for _, g := range ctx.GroupFilter {
		if strings.EqualFold(g, GroupAll) {
			wantAll = true
			break
		}
	}

	var names []string
	switch {
	case wantAll && ctx.EnforceMembership:
		member, err := r.Groups.GroupsForProject(ctx.ProjectPath)
		if err != nil {
			return nil, err
		}
		for _, g := range member {
			names = append(names, g.Name)
		}
	case wantAll:
		all, err := r.Groups.List()
		if err != nil {
			return nil, err
		}
		for _, g := range all {
			names = append(names, g.Name)
		}
	case ctx.EnforceMembership:
		member, err := r.Groups.GroupsForProject(ctx.ProjectPath)
		if err != nil {
			return nil, err
		}
		memberSet := make(map[string]bool, len(member))
		for _, g := range member {
			memberSet[g.Name] = true
		}
		for _, g := range ctx.GroupFilter {
			if memberSet[g] {
				names = append(names, g)
			}
		}
	default:
		names = append(names, ctx.GroupFilter...)
	}

	if wantAll && len(ctx.ExcludeGroups) > 0 {
		excluded := make(map[string]bool, len(ctx.ExcludeGroups))
		for _, g := range ctx.ExcludeGroups {
			excluded[g] = true
		}
		kept := names[:0]
		for _, n := range names {
			if !excluded[n] {
				kept = append(kept, n)
			}
		}
		names = kept
	}

	return names, nil
}
