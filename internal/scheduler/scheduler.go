// Package scheduler runs a task graph to completion: a bounded worker pool
// dispatches ready tasks layer by layer, consulting the cache before
// invoking a driver, and streaming the six-step task lifecycle of §4.5
// through the event bus.
package scheduler

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/forgebuild/forge/internal/cache"
	"github.com/forgebuild/forge/internal/cache/history"
	"github.com/forgebuild/forge/internal/driver"
	"github.com/forgebuild/forge/internal/events"
	"github.com/forgebuild/forge/internal/fingerprint"
	"github.com/forgebuild/forge/internal/forgeerr"
	"github.com/forgebuild/forge/internal/graph"
	"github.com/forgebuild/forge/internal/manifest"
	"github.com/forgebuild/forge/internal/workspace"
)

// defaultTimeout is the language-default per-task timeout (§4.5) applied
// when a task's manifest does not override it.
const defaultTimeout = 10 * time.Minute

// defaultGracePeriod records the grace period a cancelled task's driver
// gets (§4.5/§5). The scheduler does not read it; shell.Run enforces its
// own SIGTERM-to-SIGKILL grace period.
const defaultGracePeriod = 5 * time.Second

// Scheduler runs a graph.Graph's tasks to completion.
type Scheduler struct {
	Workspace *workspace.Workspace
	Drivers   map[manifest.Language]driver.Driver
	Cache     *cache.Engine
	Bus       *events.Bus
	Tracker   *fingerprint.Tracker
	History   *history.Store // optional; nil disables build history recording

	// Workers bounds scheduler concurrency; zero means runtime.NumCPU().
	Workers int

	// ProducerVersion is stamped into every cache.Meta record this
	// scheduler writes (§6 "producer-version"); typically the forge build
	// version.
	ProducerVersion string
}

// cacheStats accumulates the per-tier hit/miss counters published as the
// CacheStats event at the end of a build (§4.6).
type cacheStats struct {
	mu           sync.Mutex
	localHits    int
	remoteHits   int
	misses       int
	bytesAvoided int64
}

func (c *cacheStats) recordHit(source string, objectSize int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch source {
	case "local":
		c.localHits++
	case "remote":
		c.remoteHits++
	}
	c.bytesAvoided += int64(objectSize)
}

func (c *cacheStats) recordMiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses++
}

func (c *cacheStats) snapshot() (localHits, remoteHits, misses int, bytesAvoided int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localHits, c.remoteHits, c.misses, c.bytesAvoided
}

// taskOutcome is the settled state of one task, recorded for downstream
// failure-containment decisions.
type taskOutcome struct {
	state graph.State
}

// Run executes every task in g, dispatching layer by layer per
// graph.Layers. It returns a non-nil error if any task failed or the build
// was cancelled; tasks that already started are always allowed to settle
// before Run returns (§4.5 containment policy).
func (s *Scheduler) Run(ctx context.Context, g *graph.Graph, buildID, goal string) error {
	workers := s.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	sem := semaphore.NewWeighted(int64(workers))

	if s.History != nil {
		if err := s.History.BeginBuild(buildID, goal); err != nil {
			return err
		}
	}

	s.Bus.Publish(events.Event{Kind: events.BuildStarted})

	outcomes := make(map[graph.ID]taskOutcome)
	var mu sync.Mutex
	buildFailed := false
	stats := &cacheStats{}

	for _, layer := range g.Layers() {
		var wg sync.WaitGroup
		for _, id := range layer {
			id := id
			task, _ := g.Get(id)

			mu.Lock()
			skip := false
			for _, up := range task.Upstream {
				if o, ok := outcomes[up]; ok && !o.state.IsSuccessLike() {
					skip = true
					break
				}
			}
			mu.Unlock()

			if skip || ctx.Err() != nil {
				s.recordSkipped(buildID, task)
				mu.Lock()
				outcomes[id] = taskOutcome{state: graph.SkippedUpstream}
				buildFailed = true
				mu.Unlock()
				continue
			}

			if err := sem.Acquire(ctx, 1); err != nil {
				s.recordSkipped(buildID, task)
				mu.Lock()
				outcomes[id] = taskOutcome{state: graph.SkippedUpstream}
				buildFailed = true
				mu.Unlock()
				continue
			}

			wg.Add(1)
			go func() {
				defer sem.Release(1)
				defer wg.Done()

				state := s.runTask(ctx, buildID, task, stats)
				mu.Lock()
				outcomes[id] = taskOutcome{state: state}
				if !state.IsSuccessLike() {
					buildFailed = true
				}
				mu.Unlock()
			}()
		}
		wg.Wait()
	}

	if s.History != nil {
		if err := s.History.FinishBuild(buildID, buildFailed); err != nil {
			return err
		}
	}

	localHits, remoteHits, misses, bytesAvoided := stats.snapshot()
	s.Bus.Publish(events.Event{
		Kind:         events.CacheStats,
		LocalHits:    localHits,
		RemoteHits:   remoteHits,
		Misses:       misses,
		BytesAvoided: bytesAvoided,
	})
	s.Bus.Publish(events.Event{Kind: events.BuildFinished, Success: !buildFailed})

	if buildFailed {
		if ctx.Err() != nil {
			return forgeerr.New(forgeerr.Interrupted, "build cancelled")
		}
		return forgeerr.New(forgeerr.DriverFailure, "one or more tasks failed")
	}
	return nil
}

// recordSkipped emits the TaskFinished event and history row for a task
// that transitions to skipped-upstream without ever invoking its driver.
func (s *Scheduler) recordSkipped(buildID string, task *graph.Task) {
	s.Bus.Publish(events.Event{Kind: events.TaskFinished, TaskName: string(task.ID), Failed: true})
	if s.History != nil {
		_ = s.History.RecordTask(buildID, string(task.ID), "", string(graph.SkippedUpstream), "", 0)
	}
}

// runTask executes the six-step lifecycle of §4.5 for one task and returns
// its settled state.
func (s *Scheduler) runTask(ctx context.Context, buildID string, task *graph.Task, stats *cacheStats) graph.State {
	start := time.Now()
	s.Bus.Publish(events.Event{Kind: events.TaskStarted, TaskName: string(task.ID)})

	project, ok := s.Workspace.ProjectByName(task.Project)
	if !ok {
		return s.finish(buildID, task, start, graph.Failed, false, "")
	}

	key, err := s.fingerprintTask(project, task)
	if err != nil {
		return s.finish(buildID, task, start, graph.Failed, false, "")
	}
	fingerprintKey := key.String()
	outputDir := filepath.Join(project.Path, project.Manifest.Project.OutputDir)

	// §4.4's lookup protocol assumes caching is enabled; a project that
	// disables it (forge.toml [cache] enabled = false) always invokes the
	// driver directly and never consults either tier.
	if !project.Manifest.Cache.Enabled {
		if _, _, err := s.invokeDriver(ctx, project, task, fingerprintKey, false); err != nil {
			return s.finish(buildID, task, start, graph.Failed, false, "")
		}
		return s.finish(buildID, task, start, graph.Success, false, "")
	}

	result, err := s.Cache.Execute(ctx, fingerprintKey, func(ctx context.Context) ([]byte, []byte, error) {
		return s.invokeDriver(ctx, project, task, fingerprintKey, true)
	})
	if err != nil {
		return s.finish(buildID, task, start, graph.Failed, false, "")
	}

	if result.Cached {
		stats.recordHit(result.Source, len(result.Object))
	} else {
		stats.recordMiss()
	}

	state := graph.Success
	if result.Cached {
		if err := unpackOutputs(outputDir, result.Object); err != nil {
			return s.finish(buildID, task, start, graph.Failed, false, "")
		}
		state = graph.Cached
	}
	return s.finish(buildID, task, start, state, result.Cached, result.Source)
}

func (s *Scheduler) finish(buildID string, task *graph.Task, start time.Time, state graph.State, cached bool, source string) graph.State {
	duration := time.Since(start)
	s.Bus.Publish(events.Event{
		Kind:        events.TaskFinished,
		TaskName:    string(task.ID),
		DurationMS:  duration.Milliseconds(),
		Cached:      cached,
		CacheSource: source,
		Failed:      state == graph.Failed,
	})
	if s.History != nil {
		_ = s.History.RecordTask(buildID, string(task.ID), "", string(state), source, duration.Milliseconds())
	}
	return state
}

// invokeDriver runs step 3/4 of the task lifecycle: building the driver
// request, invoking the language driver, and streaming its log lines
// through the event bus as they are produced (§4.5 step 4). When pack is
// true it returns the object bytes cache.Engine stores on a miss — a
// gzip-compressed tar of the task's declared outputs, restorable to disk by
// unpackOutputs on a later cache hit — alongside an encoded cache.Meta
// record (§6). When pack is false (caching disabled for this project) it
// invokes the driver and leaves its outputs on disk without packing them.
func (s *Scheduler) invokeDriver(ctx context.Context, project *workspace.Project, task *graph.Task, fingerprintKey string, pack bool) ([]byte, []byte, error) {
	d, ok := s.Drivers[project.Manifest.Project.Language]
	if !ok {
		return nil, nil, forgeerr.Newf(forgeerr.Config, "no driver registered for language %q", project.Manifest.Project.Language)
	}

	outputDir := filepath.Join(project.Path, project.Manifest.Project.OutputDir)
	req := driver.Request{
		ProjectName: task.Project,
		ProjectDir:  project.Path,
		SourceDirs:  absoluteDirs(project.Path, task.SourceDirs),
		OutputDir:   outputDir,
		Classpath:   s.classpathFor(project),
		Command:     driverCommand(task),
		Timeout:     taskTimeout(task),
		OnLog: func(line driver.LogLine) {
			s.Bus.Publish(events.Event{Kind: events.LogMessage, TaskName: string(task.ID), Level: line.Level, Text: line.Text})
		},
	}

	start := time.Now()
	result, err := d.Execute(ctx, req)
	duration := time.Since(start)
	if err != nil {
		return nil, nil, forgeerr.Wrap(forgeerr.DriverFailure, string(task.ID), "driver execution", err)
	}
	if result.ExitStatus != 0 {
		return nil, nil, forgeerr.Newf(forgeerr.DriverFailure, "task %s exited %d", task.ID, result.ExitStatus)
	}
	if !pack {
		return nil, nil, nil
	}

	object, err := packOutputs(outputDir, result.Outputs)
	if err != nil {
		return nil, nil, forgeerr.Wrap(forgeerr.DriverFailure, string(task.ID), "packing task outputs for cache", err)
	}
	meta, err := cache.NewMeta(fingerprintKey, string(task.Kind), duration, object, s.ProducerVersion).Encode()
	if err != nil {
		return nil, nil, forgeerr.Wrap(forgeerr.DriverFailure, string(task.ID), "encoding cache metadata", err)
	}
	return object, meta, nil
}

// driverCommand resolves the string a driver dispatches on: the built-in
// task kind for compile/test/package/resolve-deps/run, or the task's own
// shell command template for custom tasks and hooks.
func driverCommand(task *graph.Task) string {
	if task.Kind == graph.Custom {
		return task.Command
	}
	return string(task.Kind)
}

func taskTimeout(task *graph.Task) time.Duration {
	if task.TimeoutSeconds > 0 {
		return time.Duration(task.TimeoutSeconds) * time.Second
	}
	return defaultTimeout
}

func absoluteDirs(projectDir string, dirs []string) []string {
	out := make([]string, len(dirs))
	for i, d := range dirs {
		if filepath.IsAbs(d) {
			out[i] = d
		} else {
			out[i] = filepath.Join(projectDir, d)
		}
	}
	return out
}

// classpathFor prepends every JVM upstream project's output directory to
// the project's own compile/test classpath (§4.1 module-edge projection).
func (s *Scheduler) classpathFor(project *workspace.Project) []string {
	idx, ok := s.indexOf(project)
	if !ok {
		return nil
	}
	var classpath []string
	for _, upIdx := range s.Workspace.JVMClasspathUpstream(idx) {
		up := s.Workspace.Projects[upIdx]
		classpath = append(classpath, filepath.Join(up.Path, up.Manifest.Project.OutputDir))
	}
	return classpath
}

func (s *Scheduler) indexOf(project *workspace.Project) (int, bool) {
	for i, p := range s.Workspace.Projects {
		if p == project {
			return i, true
		}
	}
	return 0, false
}

// fingerprintTask computes the content-addressed fingerprint of one task
// per §4.2, using the shared per-project tree-hash tracker so repeated
// tasks in the same project do not re-walk the source tree.
func (s *Scheduler) fingerprintTask(project *workspace.Project, task *graph.Task) (fingerprint.Hash, error) {
	m := project.Manifest

	var sourceHash fingerprint.Hash
	if len(task.SourceDirs) > 0 {
		root := filepath.Join(project.Path, m.SourceDir())
		h, err := s.Tracker.TreeHash(task.Project, root, nil, nil)
		if err != nil {
			return fingerprint.Hash{}, err
		}
		sourceHash = h
	}

	deps := task.Kind == graph.Test || task.Kind == graph.ResolveDeps
	depSet := dependencySet(m, deps)

	return fingerprint.Task(fingerprint.TaskInputs{
		Language:        string(m.Project.Language),
		LanguageVersion: m.LanguageVersion(),
		CommandTemplate: driverCommand(task),
		SourceTreeHash:  sourceHash,
		DependencySet:   depSet,
		ManifestSubTree: manifestSubTree(m),
	}), nil
}

func dependencySet(m *manifest.Manifest, includeTestDeps bool) fingerprint.Hash {
	coords := make([]fingerprint.Coordinate, 0, len(m.Dependencies)+len(m.TestDeps))
	for name, version := range m.Dependencies {
		coords = append(coords, fingerprint.Coordinate{Name: name, Version: version})
	}
	if includeTestDeps {
		for name, version := range m.TestDeps {
			coords = append(coords, fingerprint.Coordinate{Name: name, Version: version})
		}
	}
	return fingerprint.HashDependencySet(coords)
}

// manifestSubTree canonicalizes the manifest fields that affect a task's
// behavior but are not otherwise captured by the source tree or dependency
// set: hook commands and the output directory.
func manifestSubTree(m *manifest.Manifest) []byte {
	var b []byte
	for _, phase := range m.Hooks.Phases() {
		b = append(b, []byte(phase.Name)...)
		for _, cmd := range phase.Commands {
			b = append(b, []byte(cmd)...)
		}
	}
	b = append(b, []byte(m.Project.OutputDir)...)
	return b
}

// packOutputs tars and gzip-compresses every output path (relative to
// outputDir) into the cache's stored "object" bytes for a task (§6: "a
// gzip-compressed tar"), so a later cache hit can restore the build
// artifacts without re-invoking the driver.
func packOutputs(outputDir string, outputs []string) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for _, rel := range outputs {
		data, err := os.ReadFile(filepath.Join(outputDir, rel))
		if err != nil {
			return nil, fmt.Errorf("reading output %s: %w", rel, err)
		}
		hdr := &tar.Header{Name: rel, Size: int64(len(data)), Mode: 0o644}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("adding %s to cache object: %w", rel, err)
		}
		if _, err := tw.Write(data); err != nil {
			return nil, fmt.Errorf("writing %s to cache object: %w", rel, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("closing cache object tar: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing cache object gzip: %w", err)
	}
	return buf.Bytes(), nil
}

// unpackOutputs restores a cache hit's object bytes into outputDir.
func unpackOutputs(outputDir string, object []byte) error {
	if len(object) == 0 {
		return nil
	}
	gr, err := gzip.NewReader(bytes.NewReader(object))
	if err != nil {
		return forgeerr.Wrap(forgeerr.CacheCorrupt, outputDir, "opening cache object gzip", err)
	}
	defer gr.Close()
	tr := tar.NewReader(gr)

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return forgeerr.Wrap(forgeerr.CacheCorrupt, outputDir, "reading cache object tar", err)
		}
		dest := filepath.Join(outputDir, hdr.Name)
		if !withinDir(outputDir, dest) {
			return forgeerr.Newf(forgeerr.CacheCorrupt, "cache object entry %q escapes output dir", hdr.Name)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("creating output subdir: %w", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return fmt.Errorf("reading cache object entry %s: %w", hdr.Name, err)
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", dest, err)
		}
	}
	return nil
}

func withinDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && rel != "..")
}
