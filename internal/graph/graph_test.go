package graph

import (
	"testing"

	"github.com/forgebuild/forge/internal/forgeerr"
)

func TestGraphValidateRejectsUnknownUpstream(t *testing.T) {
	g := New()
	g.Add(&Task{ID: NewID("api", Compile, ""), Project: "api", Kind: Compile, Upstream: []ID{NewID("api", ResolveDeps, "")}})

	err := g.Validate()
	if err == nil {
		t.Fatal("expected an error for a task referencing a nonexistent upstream task")
	}
	if k, _ := forgeerr.KindOf(err); k != forgeerr.Config {
		t.Fatalf("KindOf() = %v, want Config", k)
	}
}

func TestGraphValidatePassesWithSatisfiedUpstream(t *testing.T) {
	g := New()
	resolve := NewID("api", ResolveDeps, "")
	g.Add(&Task{ID: resolve, Project: "api", Kind: ResolveDeps})
	g.Add(&Task{ID: NewID("api", Compile, ""), Project: "api", Kind: Compile, Upstream: []ID{resolve}})

	if err := g.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestDetectCyclesFindsDirectCycle(t *testing.T) {
	g := New()
	a := NewID("a", Custom, "x")
	b := NewID("b", Custom, "x")
	g.Add(&Task{ID: a, Upstream: []ID{b}})
	g.Add(&Task{ID: b, Upstream: []ID{a}})

	err := g.DetectCycles()
	if err == nil {
		t.Fatal("expected a cycle error")
	}
	if k, _ := forgeerr.KindOf(err); k != forgeerr.CyclicTasks {
		t.Fatalf("KindOf() = %v, want CyclicTasks", k)
	}
}

func TestDetectCyclesAcceptsDAG(t *testing.T) {
	g := New()
	resolve := NewID("api", ResolveDeps, "")
	compile := NewID("api", Compile, "")
	pkg := NewID("api", Package, "")
	g.Add(&Task{ID: resolve})
	g.Add(&Task{ID: compile, Upstream: []ID{resolve}})
	g.Add(&Task{ID: pkg, Upstream: []ID{compile}})

	if err := g.DetectCycles(); err != nil {
		t.Fatalf("DetectCycles() error = %v, want nil", err)
	}
}

func TestLayersLeafIsZero(t *testing.T) {
	g := New()
	resolve := NewID("api", ResolveDeps, "")
	compile := NewID("api", Compile, "")
	pkg := NewID("api", Package, "")
	g.Add(&Task{ID: resolve})
	g.Add(&Task{ID: compile, Upstream: []ID{resolve}})
	g.Add(&Task{ID: pkg, Upstream: []ID{compile}})

	layers := g.Layers()
	if len(layers) != 3 {
		t.Fatalf("len(layers) = %d, want 3", len(layers))
	}
	if layers[0][0] != resolve {
		t.Fatalf("layers[0] = %v, want [%s]", layers[0], resolve)
	}
	if layers[1][0] != compile {
		t.Fatalf("layers[1] = %v, want [%s]", layers[1], compile)
	}
	if layers[2][0] != pkg {
		t.Fatalf("layers[2] = %v, want [%s]", layers[2], pkg)
	}
}

func TestLayersLongestPath(t *testing.T) {
	// fan-in: d depends on b and c; b depends on a, c has no upstream.
	// d's layer must be 1 + max(layer(b), layer(c)) = 1 + max(1, 0) = 2.
	g := New()
	a := NewID("p", Custom, "a")
	b := NewID("p", Custom, "b")
	c := NewID("p", Custom, "c")
	d := NewID("p", Custom, "d")
	g.Add(&Task{ID: a})
	g.Add(&Task{ID: b, Upstream: []ID{a}})
	g.Add(&Task{ID: c})
	g.Add(&Task{ID: d, Upstream: []ID{b, c}})

	layers := g.Layers()
	if len(layers) != 3 {
		t.Fatalf("len(layers) = %d, want 3", len(layers))
	}
	if len(layers[0]) != 2 || layers[0][0] != a || layers[0][1] != c {
		t.Fatalf("layers[0] = %v, want [a c] lexicographically", layers[0])
	}
	if len(layers[1]) != 1 || layers[1][0] != b {
		t.Fatalf("layers[1] = %v, want [b]", layers[1])
	}
	if len(layers[2]) != 1 || layers[2][0] != d {
		t.Fatalf("layers[2] = %v, want [d]", layers[2])
	}
}

func TestReachableCarvesBackwardClosure(t *testing.T) {
	g := New()
	resolve := NewID("api", ResolveDeps, "")
	compile := NewID("api", Compile, "")
	pkg := NewID("api", Package, "")
	test := NewID("api", Test, "")
	g.Add(&Task{ID: resolve})
	g.Add(&Task{ID: compile, Upstream: []ID{resolve}})
	g.Add(&Task{ID: pkg, Upstream: []ID{compile}})
	g.Add(&Task{ID: test, Upstream: []ID{compile, resolve}})

	sub := g.Reachable([]ID{pkg})
	if _, ok := sub.Get(test); ok {
		t.Fatal("Reachable([package]) should not include the sibling test task")
	}
	for _, want := range []ID{resolve, compile, pkg} {
		if _, ok := sub.Get(want); !ok {
			t.Fatalf("Reachable([package]) missing %s", want)
		}
	}
}
