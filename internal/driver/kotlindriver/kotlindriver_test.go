package kotlindriver

import (
	"context"
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
	onLine("Foo.kt:3:5: error: unresolved reference")
	onLine("Foo.kt:5:1: warning: parameter never used")
	onLine("info: using incremental compilation")

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
