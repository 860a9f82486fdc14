// Package pythondriver implements driver.Driver for Python projects.
// Python has no compile step: "compile" is a syntax-check pass over the
// source tree, "test" shells out to pytest, and "package" builds a
// zipapp-style archive.
package pythondriver

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/forgebuild/forge/internal/driver"
	"github.com/forgebuild/forge/internal/driver/shell"
	"github.com/forgebuild/forge/internal/graph"
)

// Driver drives the python interpreter for compile (py_compile) and test
// (pytest), and builds the package output directly.
type Driver struct {
	PythonBinary string
}

// New returns a Driver that invokes "python3" from PATH.
func New() *Driver {
	return &Driver{PythonBinary: "python3"}
}

func (d *Driver) Execute(ctx context.Context, req driver.Request) (*driver.Result, error) {
	switch graph.Kind(req.Command) {
	case graph.Compile:
		return d.compile(ctx, req)
	case graph.Test:
		return d.test(ctx, req)
	case graph.Package:
		return d.pkg(ctx, req)
	default:
		return d.runShellCommand(ctx, req)
	}
}

// compile runs py_compile over every source file as a syntax check; it
// produces no outputs of its own, since Python modules are their own
// build artifacts.
func (d *Driver) compile(ctx context.Context, req driver.Request) (*driver.Result, error) {
	sources, err := collectSources(req.SourceDirs, ".py")
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return &driver.Result{ExitStatus: 0}, nil
	}

	args := append([]string{"-m", "py_compile"}, sources...)
	var logs []driver.LogLine
	res, err := shell.Run(ctx, shell.Config{
		Command: d.PythonBinary,
		Args:    args,
		Dir:     req.ProjectDir,
		Env:     req.Env,
		Timeout: req.Timeout,
		OnLine:  classify(&logs, req.OnLog),
	})
	if err != nil {
		return nil, fmt.Errorf("py_compile: %w", err)
	}
	return &driver.Result{ExitStatus: res.ExitCode, Logs: logs}, nil
}

func (d *Driver) test(ctx context.Context, req driver.Request) (*driver.Result, error) {
	var logs []driver.LogLine
	res, err := shell.Run(ctx, shell.Config{
		Command: d.PythonBinary,
		Args:    []string{"-m", "pytest"},
		Dir:     req.ProjectDir,
		Env:     req.Env,
		Timeout: req.Timeout,
		OnLine:  classify(&logs, req.OnLog),
	})
	if err != nil {
		return nil, fmt.Errorf("pytest: %w", err)
	}
	return &driver.Result{ExitStatus: res.ExitCode, Logs: logs}, nil
}

// pkg zips every source file under req.SourceDirs into
// OutputDir/<project>.pyz, the zipapp layout python3 -m <project> expects.
func (d *Driver) pkg(_ context.Context, req driver.Request) (*driver.Result, error) {
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	sources, err := collectSources(req.SourceDirs, ".py")
	if err != nil {
		return nil, err
	}

	archivePath := filepath.Join(req.OutputDir, req.ProjectName+".pyz")
	if err := writeZipapp(archivePath, req.SourceDirs, sources); err != nil {
		return nil, err
	}
	return &driver.Result{Outputs: []string{req.ProjectName + ".pyz"}, ExitStatus: 0}, nil
}

func writeZipapp(archivePath string, sourceDirs, sources []string) error {
	f, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("creating zipapp: %w", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for _, src := range sources {
		rel := relativeToAny(sourceDirs, src)
		entry, err := w.Create(rel)
		if err != nil {
			return fmt.Errorf("adding %s to zipapp: %w", rel, err)
		}
		data, err := os.ReadFile(src)
		if err != nil {
			return fmt.Errorf("reading %s: %w", src, err)
		}
		if _, err := io.Copy(entry, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("writing %s to zipapp: %w", rel, err)
		}
	}
	return w.Close()
}

func relativeToAny(dirs []string, path string) string {
	for _, dir := range dirs {
		if rel, err := filepath.Rel(dir, path); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return filepath.Base(path)
}

func (d *Driver) runShellCommand(ctx context.Context, req driver.Request) (*driver.Result, error) {
	var logs []driver.LogLine
	res, err := shell.Run(ctx, shell.Config{
		Command: "/bin/sh",
		Args:    []string{"-c", req.Command},
		Dir:     req.ProjectDir,
		Env:     req.Env,
		Timeout: req.Timeout,
		OnLine:  classify(&logs, req.OnLog),
	})
	if err != nil {
		return nil, fmt.Errorf("running %q: %w", req.Command, err)
	}
	return &driver.Result{ExitStatus: res.ExitCode, Logs: logs}, nil
}

// classify tags pytest/py_compile lines: pytest failures start with
// "FAILED", tracebacks and SyntaxError lines are errors, everything else
// is info. If onLog is non-nil it is also called synchronously per line
// for live streaming.
func classify(logs *[]driver.LogLine, onLog func(driver.LogLine)) func(string) {
	return func(line string) {
		level := "info"
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "FAILED"), strings.Contains(trimmed, "Error:"), strings.HasPrefix(trimmed, "Traceback"):
			level = "error"
		case strings.HasPrefix(trimmed, "warning") || strings.Contains(trimmed, "Warning:"):
			level = "warn"
		}
		ll := driver.LogLine{Level: level, Text: line}
		*logs = append(*logs, ll)
		if onLog != nil {
			onLog(ll)
		}
	}
}

func collectSources(dirs []string, ext string) ([]string, error) {
	var sources []string
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if !entry.IsDir() && strings.HasSuffix(path, ext) {
				sources = append(sources, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking source dir %s: %w", dir, err)
		}
	}
	return sources, nil
}
