package javadriver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/forgebuild/forge/internal/driver"
)

func TestExecuteRunsShellCommandForCustomTasks(t *testing.T) {
	d := New()
	res, err := d.Execute(context.Background(), driver.Request{
		ProjectDir: t.TempDir(),
		Command:    "echo hello",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.ExitStatus != 0 {
		t.Fatalf("ExitStatus = %d, want 0", res.ExitStatus)
	}
	if len(res.Logs) != 1 || res.Logs[0].Text != "hello" {
		t.Fatalf("Logs = %+v, want a single \"hello\" line", res.Logs)
	}
}

func TestClassifyTagsErrorsAndWarnings(t *testing.T) {
	var logs []driver.LogLine
	onLine := classify(&logs, nil)
	onLine("Foo.java:3: error: cannot find symbol")
	onLine("Foo.java:5: warning: deprecated API")
	onLine("note: Recompile with -Xlint")

	if logs[0].Level != "error" {
		t.Fatalf("logs[0].Level = %q, want error", logs[0].Level)
	}
	if logs[1].Level != "warn" {
		t.Fatalf("logs[1].Level = %q, want warn", logs[1].Level)
	}
	if logs[2].Level != "info" {
		t.Fatalf("logs[2].Level = %q, want info", logs[2].Level)
	}
}

func TestCollectSourcesFindsFilesByExtension(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Main.java"), []byte("class Main {}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	sources, err := collectSources([]string{dir}, ".java")
	if err != nil {
		t.Fatalf("collectSources() error = %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("len(sources) = %d, want 1", len(sources))
	}
}

func TestCollectSourcesIgnoresMissingDir(t *testing.T) {
	sources, err := collectSources([]string{filepath.Join(t.TempDir(), "missing")}, ".java")
	if err != nil {
		t.Fatalf("collectSources() error = %v", err)
	}
	if len(sources) != 0 {
		t.Fatalf("len(sources) = %d, want 0", len(sources))
	}
}
