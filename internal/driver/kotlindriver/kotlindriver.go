// Package kotlindriver implements driver.Driver for Kotlin projects by
// shelling out to kotlinc and java.
package kotlindriver

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

// Driver drives kotlinc for compile/package and java for test/run.
type Driver struct {
	KotlincBinary string
	JavaBinary    string
}

// New returns a Driver with default binary names.
func New() *Driver {
	return &Driver{KotlincBinary: "kotlinc", JavaBinary: "java"}
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

func (d *Driver) compile(ctx context.Context, req driver.Request) (*driver.Result, error) {
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	args := []string{"-d", req.OutputDir}
	if len(req.Classpath) > 0 {
		args = append(args, "-cp", strings.Join(req.Classpath, string(os.PathListSeparator)))
	}
	for _, dir := range req.SourceDirs {
		if _, err := os.Stat(dir); err == nil {
			args = append(args, dir)
		}
	}

	var logs []driver.LogLine
	res, err := shell.Run(ctx, shell.Config{
		Command: d.KotlincBinary,
		Args:    args,
		Dir:     req.ProjectDir,
		Env:     req.Env,
		Timeout: req.Timeout,
		OnLine:  classify(&logs, req.OnLog),
	})
	if err != nil {
		return nil, fmt.Errorf("kotlinc: %w", err)
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
	args := []string{"-include-runtime", "-d", jarPath}
	for _, dir := range req.SourceDirs {
		if _, err := os.Stat(dir); err == nil {
			args = append(args, dir)
		}
	}

	var logs []driver.LogLine
	res, err := shell.Run(ctx, shell.Config{
		Command: d.KotlincBinary,
		Args:    args,
		Dir:     req.ProjectDir,
		Env:     req.Env,
		Timeout: req.Timeout,
		OnLine:  classify(&logs, req.OnLog),
	})
	if err != nil {
		return nil, fmt.Errorf("kotlinc (package): %w", err)
	}
	return &driver.Result{Outputs: []string{jarName}, ExitStatus: res.ExitCode, Logs: logs}, nil
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

// classify tags kotlinc diagnostic lines by the "path: error:"/"path: warning:"
// convention kotlinc shares with javac. If onLog is non-nil it is also
// called synchronously per line for live streaming.
func classify(logs *[]driver.LogLine, onLog func(driver.LogLine)) func(string) {
	return func(line string) {
		level := "info"
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.Contains(trimmed, "error:"):
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
