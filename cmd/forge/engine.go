package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/forgebuild/forge/internal/buildlock"
	"github.com/forgebuild/forge/internal/cache"
	"github.com/forgebuild/forge/internal/cache/history"
	"github.com/forgebuild/forge/internal/cliutil"
	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/internal/driver"
	"github.com/forgebuild/forge/internal/driver/javadriver"
	"github.com/forgebuild/forge/internal/driver/kotlindriver"
	"github.com/forgebuild/forge/internal/driver/pythondriver"
	"github.com/forgebuild/forge/internal/events"
	"github.com/forgebuild/forge/internal/events/sink"
	"github.com/forgebuild/forge/internal/events/sse"
	"github.com/forgebuild/forge/internal/fingerprint"
	"github.com/forgebuild/forge/internal/forgelog"
	"github.com/forgebuild/forge/internal/graph"
	"github.com/forgebuild/forge/internal/manifest"
	"github.com/forgebuild/forge/internal/scheduler"
	"github.com/forgebuild/forge/internal/workspace"
)

func signalContext() context.Context {
	return cliutil.WithSignalCancel(context.Background())
}

// engine bundles every component a build/test/package/run invocation wires
// together: the loaded workspace, the two-tier cache, the event bus and its
// subscribers, and the scheduler that drives tasks through it.
type engine struct {
	cfg       *config.Config
	logger    *zap.Logger
	ws        *workspace.Workspace
	graph     *graph.Graph
	lock      *buildlock.Lock
	bus       *events.Bus
	history   *history.Store
	scheduler *scheduler.Scheduler

	closers []func()
}

// close runs every registered cleanup in reverse acquisition order.
func (e *engine) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// newEngine wires a full scheduler-capable engine for the workspace rooted
// at flagWorkspaceDir. Commands that only touch cache/history state (cache
// stats, cache purge, history) do not call it: they don't need the build
// lock, the workspace graph, or a scheduler.
func newEngine() (*engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	colorize := isatty.IsTerminal(os.Stdout.Fd())
	logger, err := forgelog.Build(cfg.LogLevel, cfg.LogFormat, colorize)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	ws, err := workspace.Load(flagWorkspaceDir)
	if err != nil {
		logger.Sync()
		return nil, err
	}

	stateDir := filepath.Join(ws.Projects[0].Path, ".forge")
	lock, err := buildlock.Acquire(stateDir)
	if err != nil {
		logger.Sync()
		return nil, err
	}

	e := &engine{cfg: cfg, logger: logger, ws: ws, lock: lock}
	e.closers = append(e.closers, func() { lock.Release() })
	e.closers = append(e.closers, func() { logger.Sync() })

	g, err := graph.Build(ws)
	if err != nil {
		e.close()
		return nil, err
	}
	e.graph = g

	localCache, err := cache.NewLocal(cfg.CacheDir)
	if err != nil {
		e.close()
		return nil, err
	}
	var remoteCache cache.ObjectStore
	if cfg.RemoteCacheEndpoint != "" {
		remoteCache = cache.NewHTTPObjectStore(cfg.RemoteCacheEndpoint, cfg.RemoteAccessKey)
	}
	cacheEngine := cache.NewEngine(localCache, remoteCache)

	histPath := filepath.Join(stateDir, "history.db")
	hist, err := history.Open(histPath)
	if err != nil {
		e.close()
		return nil, err
	}
	e.history = hist
	e.closers = append(e.closers, func() { hist.Close() })

	bus := events.New(256)
	e.bus = bus

	logSubID, logCh := bus.Subscribe()
	go streamToLogger(logger, logCh)
	e.closers = append(e.closers, func() { bus.Unsubscribe(logSubID) })

	if flagEventsFile != "" {
		f, err := sink.Open(flagEventsFile)
		if err != nil {
			e.close()
			return nil, fmt.Errorf("opening events file: %w", err)
		}
		e.closers = append(e.closers, func() { f.Close() })
		id, ch := bus.Subscribe()
		go f.Run(ch)
		e.closers = append(e.closers, func() { bus.Unsubscribe(id) })
	}

	if flagSSEAddr != "" {
		serveSSE(flagSSEAddr, sse.NewHandler(bus, nil), logger)
	}

	drivers := map[manifest.Language]driver.Driver{
		manifest.Java:   javadriver.New(),
		manifest.Kotlin: kotlindriver.New(),
		manifest.Python: pythondriver.New(),
	}

	e.scheduler = &scheduler.Scheduler{
		Workspace:       ws,
		Drivers:         drivers,
		Cache:           cacheEngine,
		Bus:             bus,
		Tracker:         fingerprint.NewTracker(),
		History:         hist,
		Workers:         cfg.Workers,
		ProducerVersion: version,
	}

	return e, nil
}

// runGoal resolves the reachable subgraph for goals and runs it to
// completion under a fresh random build ID.
func (e *engine) runGoal(ctx context.Context, goals []graph.ID, goalName string) error {
	sub := e.graph.Reachable(goals)
	return e.scheduler.Run(ctx, sub, newBuildID(), goalName)
}

func newBuildID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func streamToLogger(logger *zap.Logger, ch <-chan events.Event) {
	for e := range ch {
		switch e.Kind {
		case events.TaskStarted:
			logger.Debug("task started", zap.String("task", e.TaskName))
		case events.TaskFinished:
			fields := []zap.Field{
				zap.String("task", e.TaskName),
				zap.Int64("duration_ms", e.DurationMS),
				zap.Bool("cached", e.Cached),
				zap.String("cache_source", e.CacheSource),
			}
			if e.Failed {
				logger.Warn("task failed", fields...)
			} else {
				logger.Info("task finished", fields...)
			}
		case events.BuildStarted:
			logger.Info("build started")
		case events.BuildFinished:
			logger.Info("build finished", zap.Bool("success", e.Success))
		case events.LogMessage:
			logger.Info(e.Text, zap.String("task", e.TaskName), zap.String("level", e.Level))
		case events.CacheStats:
			logger.Info("cache stats",
				zap.Int("local_hits", e.LocalHits),
				zap.Int("remote_hits", e.RemoteHits),
				zap.Int("misses", e.Misses),
				zap.Int64("bytes_avoided", e.BytesAvoided),
			)
		case events.DroppedEvents:
			logger.Warn("dropped subscriber events", zap.Int("count", e.DroppedCount))
		}
	}
}
