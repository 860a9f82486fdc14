// Package graph builds the typed task DAG from a workspace, detects cycles,
// and computes execution layers.
package graph

import "fmt"

// Kind identifies what a Task does.
type Kind string

const (
	ResolveDeps Kind = "resolve-deps"
	Compile     Kind = "compile"
	Test        Kind = "test"
	Package     Kind = "package"
	Run         Kind = "run"
	Custom      Kind = "custom"
)

// State is a Task's position in its lifecycle, per §3.
type State string

const (
	Pending         State = "pending"
	Ready           State = "ready"
	Running         State = "running"
	Success         State = "success"
	Cached          State = "cached"
	Failed          State = "failed"
	SkippedUpstream State = "skipped-upstream"
)

// IsTerminal reports whether s is one of the lifecycle's terminal states.
func (s State) IsTerminal() bool {
	switch s {
	case Success, Cached, Failed, SkippedUpstream:
		return true
	default:
		return false
	}
}

// IsSuccessLike reports whether s counts as "succeeded" for the purpose of
// unblocking downstream tasks (§4.5 ordering guarantee).
func (s State) IsSuccessLike() bool {
	return s == Success || s == Cached
}

// ID is a task's stable identifier: project/kind[/qualifier].
type ID string

// NewID builds a task ID from its components, per §3 ("project/kind[/qualifier]").
func NewID(project string, kind Kind, qualifier string) ID {
	if qualifier == "" {
		return ID(fmt.Sprintf("%s/%s", project, kind))
	}
	return ID(fmt.Sprintf("%s/%s/%s", project, kind, qualifier))
}

// Task is one node of the task graph.
type Task struct {
	ID      ID
	Project string
	Kind    Kind

	// Command is the shell command template for custom tasks and hooks; the
	// empty string for built-in compile/test/package/resolve-deps tasks,
	// which are driven through the Driver interface instead.
	Command string

	// Upstream lists the task IDs this task depends on.
	Upstream []ID

	// Inputs/Outputs are opaque to the graph layer; they are populated by
	// the caller (scheduler) from the workspace + driver before fingerprinting.
	SourceDirs []string
	Outputs    []string

	// Timeout, if non-zero, overrides the language default per §4.5.
	TimeoutSeconds int
}
