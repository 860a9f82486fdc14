package pythondriver

import (
	"archive/zip"
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

func TestPackageBuildsZipapp(t *testing.T) {
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "app.py"), []byte("print('hi')\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	outDir := t.TempDir()
	d := New()
	res, err := d.Execute(context.Background(), driver.Request{
		ProjectName: "widget",
		SourceDirs:  []string{srcDir},
		OutputDir:   outDir,
		Command:     "package",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(res.Outputs) != 1 || res.Outputs[0] != "widget.pyz" {
		t.Fatalf("Outputs = %v, want [widget.pyz]", res.Outputs)
	}

	archivePath := filepath.Join(outDir, "widget.pyz")
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		t.Fatalf("opening zipapp: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 1 || zr.File[0].Name != "app.py" {
		t.Fatalf("zip entries = %v, want [app.py]", zr.File)
	}
}

func TestClassifyTagsFailuresAndTracebacks(t *testing.T) {
	var logs []driver.LogLine
	onLine := classify(&logs, nil)
	onLine("FAILED tests/test_app.py::test_ok")
	onLine("Traceback (most recent call last):")
	onLine("collected 3 items")

	if logs[0].Level != "error" {
		t.Fatalf("logs[0].Level = %q, want error", logs[0].Level)
	}
	if logs[1].Level != "error" {
		t.Fatalf("logs[1].Level = %q, want error", logs[1].Level)
	}
	if logs[2].Level != "info" {
		t.Fatalf("logs[2].Level = %q, want info", logs[2].Level)
	}
}
