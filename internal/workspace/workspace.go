// Package workspace resolves the transitive closure of manifests reachable
// from a root project's `modules` list into a frozen Workspace value.
package workspace

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/forgebuild/forge/internal/forgeerr"
	"github.com/forgebuild/forge/internal/manifest"
)

// Project is one node of the workspace: its manifest, its resolved absolute
// path, and the path to its own .forge/ state directory.
type Project struct {
	Manifest  *manifest.Manifest
	Path      string // absolute directory containing forge.toml
	StateDir  string // absolute path to this project's .forge/ directory
}

// Name is the project's manifest name, used as the stable project component
// of every task ID belonging to it.
func (p *Project) Name() string { return p.Manifest.Project.Name }

// Edge is a directed module reference: Parent declares Child in its modules list.
type Edge struct {
	Parent int // index into Workspace.Projects
	Child  int
}

// Workspace is the immutable, validated closure of one root manifest and
// every module it transitively references. Kept as an index-addressed node
// list plus an edge list (never node-owns-neighbor pointers), so cycle
// detection and traversal operate on plain indices.
type Workspace struct {
	Projects []*Project
	Edges    []Edge

	indexByName map[string]int
	indexByPath map[string]int
}

// ProjectByName returns the project with the given manifest name, if any.
func (w *Workspace) ProjectByName(name string) (*Project, bool) {
	i, ok := w.indexByName[name]
	if !ok {
		return nil, false
	}
	return w.Projects[i], true
}

// Upstream returns the projects that idx's project directly declares as
// modules (idx is the Parent side of the Edge).
func (w *Workspace) Upstream(idx int) []int {
	var out []int
	for _, e := range w.Edges {
		if e.Parent == idx {
			out = append(out, e.Child)
		}
	}
	return out
}

// Load resolves the workspace rooted at rootDir: loads rootDir/forge.toml,
// then depth-first resolves every module path it (transitively) lists,
// rejecting revisits of an in-progress node as a module cycle.
func Load(rootDir string) (*Workspace, error) {
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, forgeerr.Wrap(forgeerr.Config, rootDir, "resolving workspace root", err)
	}

	l := &loader{
		root:   abs,
		byPath: make(map[string]int),
		state:  make(map[string]visitState),
	}
	if _, err := l.resolve(abs, nil); err != nil {
		return nil, err
	}

	ws := &Workspace{
		Projects:    l.projects,
		Edges:       l.edges,
		indexByName: make(map[string]int, len(l.projects)),
		indexByPath: l.byPath,
	}
	for i, p := range ws.Projects {
		ws.indexByName[p.Name()] = i
	}
	return ws, nil
}

type visitState int

const (
	unvisited visitState = iota
	inProgress
	done
)

type loader struct {
	root     string
	projects []*Project
	edges    []Edge
	byPath   map[string]int
	state    map[string]visitState
}

// resolve loads the manifest at dir (if not already loaded), recurses into
// its modules, and returns dir's project index. chain carries the path of
// directories currently being resolved, for cycle reporting.
func (l *loader) resolve(dir string, chain []string) (int, error) {
	if idx, ok := l.byPath[dir]; ok {
		if l.state[dir] == inProgress {
			return 0, forgeerr.New(forgeerr.CyclicModules, cycleMessage(append(chain, dir)))
		}
		return idx, nil
	}

	l.state[dir] = inProgress
	chain = append(chain, dir)

	m, err := manifest.Load(dir)
	if err != nil {
		return 0, err
	}

	idx := len(l.projects)
	l.byPath[dir] = idx
	l.projects = append(l.projects, &Project{
		Manifest: m,
		Path:     dir,
		StateDir: filepath.Join(dir, ".forge"),
	})

	for i, rel := range m.Modules {
		childDir := filepath.Join(dir, rel)
		if !withinRoot(l.root, childDir) {
			return 0, forgeerr.Newf(forgeerr.Config, "modules[%d]: %q resolves outside the workspace root %q", i, rel, l.root)
		}
		childIdx, err := l.resolve(childDir, chain)
		if err != nil {
			return 0, err
		}
		l.edges = append(l.edges, Edge{Parent: idx, Child: childIdx})
	}

	l.state[dir] = done
	return idx, nil
}

// withinRoot reports whether dir is root itself or a descendant of root.
func withinRoot(root, dir string) bool {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func cycleMessage(chain []string) string {
	names := make([]string, len(chain))
	for i, dir := range chain {
		names[i] = filepath.Base(dir)
	}
	return strings.Join(names, " → ")
}

// SortedNames returns every project's name in lexicographic order, used for
// deterministic reporting.
func (w *Workspace) SortedNames() []string {
	names := make([]string, len(w.Projects))
	for i, p := range w.Projects {
		names[i] = p.Name()
	}
	sort.Strings(names)
	return names
}
