package shell

import (
	"context"
	"runtime"
	"testing"
	"time"
)

func shCommand(script string) (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C", script}
	}
	return "/bin/sh", []string{"-c", script}
}

func TestRunCapturesExitCode(t *testing.T) {
	cmd, args := shCommand("exit 3")
	res, err := Run(context.Background(), Config{Command: cmd, Args: args})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("ExitCode = %d, want 3", res.ExitCode)
	}
}

func TestRunStreamsLines(t *testing.T) {
	cmd, args := shCommand("echo one; echo two")
	var lines []string
	_, err := Run(context.Background(), Config{
		Command: cmd,
		Args:    args,
		OnLine:  func(line string) { lines = append(lines, line) },
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
		t.Fatalf("lines = %v, want [one two]", lines)
	}
}

func TestRunRespectsTimeout(t *testing.T) {
	cmd, args := shCommand("sleep 5")
	start := time.Now()
	_, err := Run(context.Background(), Config{
		Command: cmd,
		Args:    args,
		Timeout: 100 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("Run() error = nil, want context deadline error")
	}
	if time.Since(start) > 4*time.Second {
		t.Fatalf("Run() took %v, want well under the 5s sleep", time.Since(start))
	}
}

func TestRunCancelledByContext(t *testing.T) {
	cmd, args := shCommand("sleep 5")
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := Run(ctx, Config{Command: cmd, Args: args})
	if err == nil {
		t.Fatal("Run() error = nil, want cancellation error")
	}
}
