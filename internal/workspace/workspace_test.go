package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/forgebuild/forge/internal/forgeerr"
)

func writeManifest(t *testing.T, dir, contents string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "forge.toml"), []byte(contents), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
}

func TestLoadResolvesModulesTransitively(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
modules = ["core", "api"]

[project]
name = "ws"
language = "java"
`)
	writeManifest(t, filepath.Join(root, "core"), `
[project]
name = "core"
language = "java"

[java]
source = "src"
`)
	writeManifest(t, filepath.Join(root, "api"), `
[project]
name = "api"
language = "java"

[java]
source = "src"
`)

	ws, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(ws.Projects) != 3 {
		t.Fatalf("len(Projects) = %d, want 3", len(ws.Projects))
	}
	if _, ok := ws.ProjectByName("core"); !ok {
		t.Fatal("expected to find project \"core\"")
	}
	if _, ok := ws.ProjectByName("api"); !ok {
		t.Fatal("expected to find project \"api\"")
	}
}

func TestLoadRejectsModuleCycle(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
modules = ["a"]

[project]
name = "ws"
language = "python"
`)
	writeManifest(t, filepath.Join(root, "a"), `
modules = ["../b"]

[project]
name = "a"
language = "python"
`)
	bDir := filepath.Join(root, "b")
	if err := os.MkdirAll(bDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, bDir, `
modules = ["../a"]

[project]
name = "b"
language = "python"
`)

	_, err := Load(root)
	if err == nil {
		t.Fatal("expected a cyclic modules error")
	}
	k, ok := forgeerr.KindOf(err)
	if !ok || k != forgeerr.CyclicModules {
		t.Fatalf("KindOf(err) = %v, %v, want CyclicModules, true", k, ok)
	}
}

func TestLoadRejectsMissingModule(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
modules = ["missing"]

[project]
name = "ws"
language = "python"
`)

	if _, err := Load(root); err == nil {
		t.Fatal("expected an error for a module with no readable manifest")
	}
}
