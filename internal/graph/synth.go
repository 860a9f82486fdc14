package graph

import (
	"fmt"
	"sort"

	"github.com/forgebuild/forge/internal/manifest"
	"github.com/forgebuild/forge/internal/workspace"
)

// Build synthesizes the full task graph for a workspace: per project, a
// resolve-deps task, a compile task, a package task, a test task, the four
// hook phases wired in as synthetic tasks, and every user-declared custom
// task. Nothing is pruned for a particular goal here; callers select a
// goal's subgraph with Reachable.
func Build(ws *workspace.Workspace) (*Graph, error) {
	g := New()

	for idx, p := range ws.Projects {
		project := p.Name()
		m := p.Manifest

		resolveDeps := NewID(project, ResolveDeps, "")
		g.Add(&Task{
			ID:      resolveDeps,
			Project: project,
			Kind:    ResolveDeps,
		})

		preBuild := addHookChain(g, project, "pre-build", m.Hooks.PreBuild, []ID{resolveDeps})
		compileUpstream := []ID{resolveDeps}
		if len(preBuild) > 0 {
			compileUpstream = []ID{preBuild[len(preBuild)-1]}
		}
		for _, upIdx := range ws.JVMClasspathUpstream(idx) {
			compileUpstream = append(compileUpstream, NewID(ws.Projects[upIdx].Name(), Package, ""))
		}

		compile := NewID(project, Compile, "")
		g.Add(&Task{
			ID:         compile,
			Project:    project,
			Kind:       Compile,
			Upstream:   compileUpstream,
			SourceDirs: []string{m.SourceDir()},
		})

		pkg := NewID(project, Package, "")
		g.Add(&Task{
			ID:       pkg,
			Project:  project,
			Kind:     Package,
			Upstream: []ID{compile},
			Outputs:  []string{m.Project.OutputDir},
		})
		postBuild := addHookChain(g, project, "post-build", m.Hooks.PostBuild, []ID{pkg})

		preTest := addHookChain(g, project, "pre-test", m.Hooks.PreTest, []ID{compile, resolveDeps})
		testUpstream := []ID{compile, resolveDeps}
		if len(preTest) > 0 {
			testUpstream = []ID{preTest[len(preTest)-1]}
		}

		test := NewID(project, Test, "")
		g.Add(&Task{
			ID:         test,
			Project:    project,
			Kind:       Test,
			Upstream:   dedupIDs(testUpstream),
			SourceDirs: []string{m.SourceDir()},
		})
		postTest := addHookChain(g, project, "post-test", m.Hooks.PostTest, []ID{test})

		addCustomTasks(g, project, m)

		// Terminal markers: nothing downstream depends on post-build/post-test,
		// so goal selection needs an explicit handle on the last task of each
		// phase rather than discovering it by walking forward from package/test.
		buildTerminal := pkg
		if len(postBuild) > 0 {
			buildTerminal = postBuild[len(postBuild)-1]
		}
		testTerminal := test
		if len(postTest) > 0 {
			testTerminal = postTest[len(postTest)-1]
		}
		g.buildGoals = append(g.buildGoals, buildTerminal)
		g.testGoals = append(g.testGoals, testTerminal)
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}
	return g, nil
}

// addHookChain synthesizes one Custom task per command in a hook phase,
// chained sequentially (§4.7: commands within a phase run in declared
// order), with the first command depending on seed and the chain's final
// task IDs returned so the caller can wire them as upstream of whatever
// follows the phase.
func addHookChain(g *Graph, project, phase string, commands []string, seed []ID) []ID {
	if len(commands) == 0 {
		return nil
	}
	var chain []ID
	upstream := seed
	for i, cmd := range commands {
		id := NewID(project, Custom, fmt.Sprintf("hook-%s-%d", phase, i))
		g.Add(&Task{
			ID:       id,
			Project:  project,
			Kind:     Custom,
			Command:  cmd,
			Upstream: append([]ID{}, upstream...),
		})
		upstream = []ID{id}
		chain = append(chain, id)
	}
	return chain
}

// addCustomTasks wires each `[tasks.<name>]` entry into the graph. A
// depends-on entry containing "/" is treated as a fully-qualified task ID
// (cross-project); otherwise it is resolved to one of the project's own
// built-in tasks or another custom task of the same project.
func addCustomTasks(g *Graph, project string, m *manifest.Manifest) {
	names := make([]string, 0, len(m.Tasks))
	for name := range m.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := m.Tasks[name]
		id := NewID(project, Custom, name)
		var upstream []ID
		for _, dep := range spec.DependsOn {
			upstream = append(upstream, resolveTaskRef(project, dep))
		}
		g.Add(&Task{
			ID:       id,
			Project:  project,
			Kind:     Custom,
			Command:  spec.Command,
			Upstream: upstream,
		})
	}
}

func resolveTaskRef(project, ref string) ID {
	for _, k := range []Kind{ResolveDeps, Compile, Test, Package, Run} {
		if ref == string(k) {
			return NewID(project, k, "")
		}
	}
	if containsSlash(ref) {
		return ID(ref)
	}
	return NewID(project, Custom, ref)
}

func containsSlash(s string) bool {
	for _, r := range s {
		if r == '/' {
			return true
		}
	}
	return false
}

func dedupIDs(ids []ID) []ID {
	seen := make(map[ID]bool, len(ids))
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
