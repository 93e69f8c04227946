// Package registry manages workspace groups: named sets of projects that can
// see each other's group-scoped memories. The registry is a single YAML file
// beside the global store root, independent of any project root.
package registry

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/memkeep/memkeep/internal/model"
)

// Group is a named collection of project paths.
type Group struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Projects  []string  `json:"projects"`
}

// Contains reports whether the project is a member of the group.
func (g *Group) Contains(projectPath string) bool {
	resolved := resolvePath(projectPath)
	for _, p := range g.Projects {
		if p == resolved {
			return true
		}
	}
	return false
}

type groupEntry struct {
	CreatedAt string   `yaml:"created_at"`
	Projects  []string `yaml:"projects"`
}

type registryFile struct {
	Groups map[string]groupEntry `yaml:"groups"`
}

// Registry reads and writes the shared groups file.
type Registry struct {
	path string
}

// New creates a registry over the given groups file path.
func New(path string) *Registry {
	return &Registry{path: path}
}

func (r *Registry) load() (map[string]*Group, error) {
	b, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*Group{}, nil
		}
		return nil, &model.StoreError{Store: "metadata", Root: r.path, Err: errors.Wrap(err, "read groups file")}
	}

	var file registryFile
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, &model.StoreError{Store: "metadata", Root: r.path, Err: errors.Wrap(err, "parse groups file")}
	}

	groups := make(map[string]*Group, len(file.Groups))
	for name, entry := range file.Groups {
		created, _ := time.Parse(time.RFC3339, entry.CreatedAt)
		groups[name] = &Group{Name: name, CreatedAt: created, Projects: entry.Projects}
	}
	return groups, nil
}

func (r *Registry) save(groups map[string]*Group) error {
	file := registryFile{Groups: make(map[string]groupEntry, len(groups))}
	for name, g := range groups {
		file.Groups[name] = groupEntry{
			CreatedAt: g.CreatedAt.UTC().Format(time.RFC3339),
			Projects:  g.Projects,
		}
	}

	b, err := yaml.Marshal(&file)
	if err != nil {
		return &model.StoreError{Store: "metadata", Root: r.path, Err: errors.Wrap(err, "encode groups file")}
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return &model.StoreError{Store: "metadata", Root: r.path, Err: errors.Wrap(err, "create registry dir")}
	}
	if err := os.WriteFile(r.path, b, 0o644); err != nil {
		return &model.StoreError{Store: "metadata", Root: r.path, Err: errors.Wrap(err, "write groups file")}
	}
	return nil
}

// Create registers a new group. Fails if the name already exists.
func (r *Registry) Create(name string) (*Group, error) {
	if name == "" {
		return nil, &model.ValidationError{Field: "group", Reason: "name is required"}
	}
	groups, err := r.load()
	if err != nil {
		return nil, err
	}
	if _, ok := groups[name]; ok {
		return nil, &model.ValidationError{Field: "group", Reason: "group " + name + " already exists"}
	}
	g := &Group{Name: name, CreatedAt: time.Now().UTC()}
	groups[name] = g
	if err := r.save(groups); err != nil {
		return nil, err
	}
	return g, nil
}

// Delete removes a group definition. The caller is responsible for stripping
// the name from owning memories first (see lifecycle.DeleteGroup).
func (r *Registry) Delete(name string) error {
	groups, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := groups[name]; !ok {
		return &model.NotFoundError{Kind: "group", ID: name}
	}
	delete(groups, name)
	return r.save(groups)
}

// Get returns a group by name.
func (r *Registry) Get(name string) (*Group, error) {
	groups, err := r.load()
	if err != nil {
		return nil, err
	}
	g, ok := groups[name]
	if !ok {
		return nil, &model.NotFoundError{Kind: "group", ID: name}
	}
	return g, nil
}

// Exists reports whether a group is registered.
func (r *Registry) Exists(name string) (bool, error) {
	groups, err := r.load()
	if err != nil {
		return false, err
	}
	_, ok := groups[name]
	return ok, nil
}

// List returns all groups sorted by name. Empty registry yields an empty list.
func (r *Registry) List() ([]Group, error) {
	groups, err := r.load()
	if err != nil {
		return nil, err
	}
	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Join adds a project to a group. Joining an existing member is a no-op.
func (r *Registry) Join(name, projectPath string) (*Group, error) {
	groups, err := r.load()
	if err != nil {
		return nil, err
	}
	g, ok := groups[name]
	if !ok {
		return nil, &model.NotFoundError{Kind: "group", ID: name}
	}
	resolved := resolvePath(projectPath)
	if !g.Contains(resolved) {
		g.Projects = append(g.Projects, resolved)
		sort.Strings(g.Projects)
		if err := r.save(groups); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Leave removes a project from a group. Leaving a non-member is a no-op.
func (r *Registry) Leave(name, projectPath string) (*Group, error) {
	groups, err := r.load()
	if err != nil {
		return nil, err
	}
	g, ok := groups[name]
	if !ok {
		return nil, &model.NotFoundError{Kind: "group", ID: name}
	}
	resolved := resolvePath(projectPath)
	kept := g.Projects[:0]
	changed := false
	for _, p := range g.Projects {
		if p == resolved {
			changed = true
			continue
		}
		kept = append(kept, p)
	}
	if changed {
		g.Projects = kept
		if err := r.save(groups); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Members returns the project paths in a group. An unknown group yields an
// empty list, not an error.
func (r *Registry) Members(name string) ([]string, error) {
	groups, err := r.load()
	if err != nil {
		return nil, err
	}
	g, ok := groups[name]
	if !ok {
		return []string{}, nil
	}
	out := make([]string, len(g.Projects))
	copy(out, g.Projects)
	return out, nil
}

// GroupsForProject returns every group the project belongs to.
func (r *Registry) GroupsForProject(projectPath string) ([]Group, error) {
	groups, err := r.load()
	if err != nil {
		return nil, err
	}
	resolved := resolvePath(projectPath)
	var out []Group
	for _, g := range groups {
		if g.Contains(resolved) {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func resolvePath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
