// Package javadriver implements driver.Driver for Java projects by
// shelling out to javac/jar/java.
package javadriver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forgebuild/forge/internal/driver"
	"github.com/forgebuild/forge/internal/driver/shell"
	"github.com/forgebuild/forge/internal/graph"
)

// Driver drives javac for compile, java for test/run, and jar for package.
// JavacBinary/JarBinary/JavaBinary default to the bare command names, which
// resolve against PATH; set them explicitly to pin a toolchain.
type Driver struct {
	JavacBinary string
	JarBinary   string
	JavaBinary  string
}

// New returns a Driver with default binary names.
func New() *Driver {
	return &Driver{JavacBinary: "javac", JarBinary: "jar", JavaBinary: "java"}
}

func (d *Driver) Execute(ctx context.Context, req driver.Request) (*driver.Result, error) {
	kind := graph.Kind(req.Command)
	switch kind {
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

func (d *Driver) compile(ctx context.Context, req driver.Request) (*driver.Result, error) {
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	sources, err := collectSources(req.SourceDirs, ".java")
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return &driver.Result{Outputs: nil, ExitStatus: 0}, nil
	}

	args := []string{"-d", req.OutputDir}
	if len(req.Classpath) > 0 {
		args = append(args, "-cp", strings.Join(req.Classpath, string(os.PathListSeparator)))
	}
	args = append(args, sources...)

	var logs []driver.LogLine
	res, err := shell.Run(ctx, shell.Config{
		Command: d.JavacBinary,
		Args:    args,
		Dir:     req.ProjectDir,
		Env:     req.Env,
		Timeout: req.Timeout,
		OnLine:  classify(&logs, req.OnLog),
	})
	if err != nil {
		return nil, fmt.Errorf("javac: %w", err)
	}

	outputs, err := walkOutputs(req.OutputDir, ".class")
	if err != nil {
		return nil, err
	}
	return &driver.Result{Outputs: outputs, ExitStatus: res.ExitCode, Logs: logs}, nil
}

func (d *Driver) test(ctx context.Context, req driver.Request) (*driver.Result, error) {
	classpath := append(append([]string{}, req.Classpath...), req.OutputDir)
	var logs []driver.LogLine
	res, err := shell.Run(ctx, shell.Config{
		Command: d.JavaBinary,
		Args:    []string{"-cp", strings.Join(classpath, string(os.PathListSeparator)), "org.junit.platform.console.ConsoleLauncher", "--scan-classpath"},
		Dir:     req.ProjectDir,
		Env:     req.Env,
		Timeout: req.Timeout,
		OnLine:  classify(&logs, req.OnLog),
	})
	if err != nil {
		return nil, fmt.Errorf("java (test): %w", err)
	}
	return &driver.Result{ExitStatus: res.ExitCode, Logs: logs}, nil
}

func (d *Driver) pkg(ctx context.Context, req driver.Request) (*driver.Result, error) {
	jarName := req.ProjectName + ".jar"
	jarPath := filepath.Join(req.OutputDir, jarName)
	args := []string{"cf", jarPath, "-C", req.OutputDir, "."}

	var logs []driver.LogLine
	res, err := shell.Run(ctx, shell.Config{
		Command: d.JarBinary,
		Args:    args,
		Dir:     req.ProjectDir,
		Env:     req.Env,
		Timeout: req.Timeout,
		OnLine:  classify(&logs, req.OnLog),
	})
	if err != nil {
		return nil, fmt.Errorf("jar: %w", err)
	}
	return &driver.Result{Outputs: []string{jarName}, ExitStatus: res.ExitCode, Logs: logs}, nil
}

// runShellCommand executes a custom task or hook's literal command line
// through /bin/sh, for the subset of requests that carry a shell template
// rather than a built-in task kind.
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

// classify returns a shell.LineFunc that appends to logs, tagging each line
// "error" when javac/java prefixes it with "error:", "warn" for "warning:",
// and "info" otherwise. If onLog is non-nil it is also called synchronously
// per line, so a caller can stream output live instead of waiting for the
// batched Result.Logs.
func classify(logs *[]driver.LogLine, onLog func(driver.LogLine)) func(string) {
	return func(line string) {
		level := "info"
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.Contains(trimmed, "error:") || strings.HasPrefix(trimmed, "Exception"):
			level = "error"
		case strings.Contains(trimmed, "warning:"):
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

func walkOutputs(dir, ext string) ([]string, error) {
	var outputs []string
	err := filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() && strings.HasSuffix(path, ext) {
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			outputs = append(outputs, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking output dir %s: %w", dir, err)
	}
	return outputs, nil
}
