package workspace

import (
	"sort"

	"github.com/forgebuild/forge/internal/manifest"
)

// TransitiveUpstream returns every project idx depends on (directly or
// transitively) via module edges, excluding idx itself. The result is
// ordered by project name for deterministic classpath construction.
//
// Per §4.1, a JVM project's compile classpath must be prepended with the
// package outputs of its transitive upstream JVM projects; this is the
// design reason modules form a DAG rather than a free graph.
func (w *Workspace) TransitiveUpstream(idx int) []int {
	seen := make(map[int]bool)
	var walk func(int)
	walk = func(i int) {
		for _, up := range w.Upstream(i) {
			if seen[up] {
				continue
			}
			seen[up] = true
			walk(up)
		}
	}
	walk(idx)

	out := make([]int, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return w.Projects[out[a]].Name() < w.Projects[out[b]].Name() })
	return out
}

// JVMClasspathUpstream is TransitiveUpstream filtered to Java/Kotlin
// projects, the only languages whose package outputs are classpath entries.
func (w *Workspace) JVMClasspathUpstream(idx int) []int {
	var out []int
	for _, i := range w.TransitiveUpstream(idx) {
		lang := w.Projects[i].Manifest.Project.Language
		if lang == manifest.Java || lang == manifest.Kotlin {
			out = append(out, i)
		}
	}
	return out
}
