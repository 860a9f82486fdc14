package graph

import (
	"sort"
	"strings"

	"github.com/forgebuild/forge/internal/forgeerr"
)

// Graph is the typed DAG of tasks for one build goal.
type Graph struct {
	tasks map[ID]*Task
	order []ID // insertion order, for stable iteration in tests/logs

	// buildGoals/testGoals are the per-project terminal task IDs Build
	// populates: the last post-build/post-test hook task if the project
	// declares one, otherwise the package/test task itself.
	buildGoals []ID
	testGoals  []ID
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{tasks: make(map[ID]*Task)}
}

// BuildGoals returns the per-project terminal task IDs for the "build" goal.
func (g *Graph) BuildGoals() []ID { return append([]ID(nil), g.buildGoals...) }

// TestGoals returns the per-project terminal task IDs for the "test" goal.
func (g *Graph) TestGoals() []ID { return append([]ID(nil), g.testGoals...) }

// Reachable returns the subgraph reachable backward (through Upstream) from
// the given goal task IDs, inclusive of the goals themselves. Used to carve
// a "build" or "test" invocation's subgraph out of the full synthesized graph.
func (g *Graph) Reachable(goals []ID) *Graph {
	out := New()
	seen := make(map[ID]bool)

	var visit func(id ID)
	visit = func(id ID) {
		if seen[id] {
			return
		}
		seen[id] = true
		t, ok := g.tasks[id]
		if !ok {
			return
		}
		for _, up := range t.Upstream {
			visit(up)
		}
	}
	for _, goal := range goals {
		visit(goal)
	}

	for _, id := range g.order {
		if seen[id] {
			out.Add(g.tasks[id])
		}
	}
	return out
}

// Add inserts a task. Upstream IDs are not required to exist yet (a graph is
// typically built incrementally); Validate checks referential integrity once
// construction is complete.
func (g *Graph) Add(t *Task) {
	if _, exists := g.tasks[t.ID]; !exists {
		g.order = append(g.order, t.ID)
	}
	g.tasks[t.ID] = t
}

// Get returns the task with the given ID, if present.
func (g *Graph) Get(id ID) (*Task, bool) {
	t, ok := g.tasks[id]
	return t, ok
}

// Tasks returns every task in insertion order.
func (g *Graph) Tasks() []*Task {
	out := make([]*Task, len(g.order))
	for i, id := range g.order {
		out[i] = g.tasks[id]
	}
	return out
}

// Validate checks that every upstream ID referenced by a task actually
// exists in the graph (§3 Task invariant).
func (g *Graph) Validate() error {
	for _, t := range g.Tasks() {
		for _, up := range t.Upstream {
			if _, ok := g.tasks[up]; !ok {
				return forgeerr.Newf(forgeerr.Config, "task %s references unknown upstream task %s", t.ID, up)
			}
		}
	}
	return nil
}

// color is used by cycle detection's depth-first traversal.
type color int

const (
	white color = iota
	gray
	black
)

// DetectCycles performs a white/gray/black depth-first traversal; a gray
// node reached again indicates a cycle. Traversal order over roots is
// lexicographic by ID for deterministic cycle reporting.
func (g *Graph) DetectCycles() error {
	colors := make(map[ID]color, len(g.tasks))
	ids := g.sortedIDs()

	var stack []ID
	var visit func(id ID) error
	visit = func(id ID) error {
		colors[id] = gray
		stack = append(stack, id)
		defer func() { stack = stack[:len(stack)-1] }()

		t := g.tasks[id]
		upstream := append([]ID(nil), t.Upstream...)
		sort.Slice(upstream, func(i, j int) bool { return upstream[i] < upstream[j] })

		for _, up := range upstream {
			switch colors[up] {
			case white:
				if err := visit(up); err != nil {
					return err
				}
			case gray:
				return forgeerr.New(forgeerr.CyclicTasks, cycleMessage(stack, up))
			case black:
				// already fully explored, safe
			}
		}
		colors[id] = black
		return nil
	}

	for _, id := range ids {
		if colors[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

func cycleMessage(stack []ID, repeat ID) string {
	// Trim the stack down to the cycle itself: from the first occurrence of
	// repeat to the end, then back to repeat.
	start := 0
	for i, id := range stack {
		if id == repeat {
			start = i
			break
		}
	}
	cycle := append(append([]ID(nil), stack[start:]...), repeat)
	parts := make([]string, len(cycle))
	for i, id := range cycle {
		parts[i] = string(id)
	}
	return strings.Join(parts, " → ")
}

func (g *Graph) sortedIDs() []ID {
	ids := make([]ID, 0, len(g.tasks))
	for id := range g.tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Layers computes Kahn-style longest-path layering: layer(t) = 1 +
// max(layer(u) for u in upstream(t)), layer(leaf) = 0. Must only be called
// after DetectCycles has returned nil. Within each layer, task IDs are
// sorted lexicographically for deterministic dispatch order.
func (g *Graph) Layers() [][]ID {
	layerOf := make(map[ID]int, len(g.tasks))

	var layer func(id ID) int
	layer = func(id ID) int {
		if l, ok := layerOf[id]; ok {
			return l
		}
		t := g.tasks[id]
		if len(t.Upstream) == 0 {
			layerOf[id] = 0
			return 0
		}
		max := -1
		for _, up := range t.Upstream {
			if l := layer(up); l > max {
				max = l
			}
		}
		l := max + 1
		layerOf[id] = l
		return l
	}

	maxLayer := -1
	for _, id := range g.sortedIDs() {
		if l := layer(id); l > maxLayer {
			maxLayer = l
		}
	}

	layers := make([][]ID, maxLayer+1)
	for _, id := range g.sortedIDs() {
		l := layerOf[id]
		layers[l] = append(layers[l], id)
	}
	for _, l := range layers {
		sort.Slice(l, func(i, j int) bool { return l[i] < l[j] })
	}
	return layers
}
