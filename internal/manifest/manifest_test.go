package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(contents), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
}

func TestLoadValidJavaManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "api"
version = "1.0.0"
language = "java"

[java]
source = "src"
target = "21"

[dependencies]
"com.example:lib" = "^1.2.0"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.Project.Name != "api" {
		t.Errorf("Name = %q, want api", m.Project.Name)
	}
	if m.Project.OutputDir != "build" {
		t.Errorf("OutputDir default = %q, want build", m.Project.OutputDir)
	}
	if m.SourceDir() != "src" {
		t.Errorf("SourceDir() = %q, want src", m.SourceDir())
	}
}

func TestLoadDefaultsCacheEnabled(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "api"
language = "java"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !m.Cache.Enabled {
		t.Error("Cache.Enabled = false, want true when [cache] is omitted")
	}
}

func TestLoadHonorsExplicitCacheDisabled(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "api"
language = "java"

[cache]
enabled = false
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.Cache.Enabled {
		t.Error("Cache.Enabled = true, want false when explicitly disabled")
	}
}

func TestLoadRejectsLowJavaTarget(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "api"
language = "java"

[java]
target = "9"
`)

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected validation error for java.target below 17")
	}
}

func TestLoadRejectsUnknownLanguage(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "api"
language = "ruby"
`)

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected validation error for unknown language")
	}
}

func TestLoadRejectsTaskNameCollision(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "api"
language = "python"

[tasks.compile]
command = "echo hi"
`)

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected validation error for task name colliding with a built-in")
	}
}

func TestLoadRejectsAbsoluteModulePath(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
modules = ["/outside"]

[project]
name = "root"
language = "python"
`)

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected validation error for an absolute module path")
	}
}

func TestLoadRejectsInvalidVersionSpecifier(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "api"
language = "python"

[dependencies]
"requests" = "not a version"
`)

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected validation error for invalid version specifier")
	}
}
