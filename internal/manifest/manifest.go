// Package manifest loads and validates a single project's forge.toml.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"

	"github.com/forgebuild/forge/internal/forgeerr"
)

// Language identifies the JVM/Python language a project is written in.
type Language string

const (
	Java   Language = "java"
	Kotlin Language = "kotlin"
	Python Language = "python"
)

// FileName is the manifest file every project directory must contain.
const FileName = "forge.toml"

// Project is the `[project]` table.
type Project struct {
	Name        string   `toml:"name"`
	Version     string   `toml:"version"`
	Language    Language `toml:"language"`
	OutputDir   string   `toml:"output_dir"`
	Description string   `toml:"description"`
}

// JavaSection is the `[java]` table.
type JavaSection struct {
	Source     string `toml:"source"`
	TestSource string `toml:"test-source"`
	Target     string `toml:"target"`
	MainClass  string `toml:"main-class"`
}

// KotlinSection is the `[kotlin]` table.
type KotlinSection struct {
	Source    string `toml:"source"`
	JVMTarget string `toml:"jvm_target"`
	MainClass string `toml:"main-class"`
}

// PythonSection is the `[python]` table.
type PythonSection struct {
	Source     string `toml:"source"`
	MainScript string `toml:"main-script"`
}

// Hooks is the `[hooks]` table: four ordered phases of shell commands.
type Hooks struct {
	PreBuild  []string `toml:"pre-build"`
	PostBuild []string `toml:"post-build"`
	PreTest   []string `toml:"pre-test"`
	PostTest  []string `toml:"post-test"`
}

// Phases returns the four hook phases in a stable, named order.
func (h Hooks) Phases() []HookPhase {
	return []HookPhase{
		{Name: "pre-build", Commands: h.PreBuild},
		{Name: "post-build", Commands: h.PostBuild},
		{Name: "pre-test", Commands: h.PreTest},
		{Name: "post-test", Commands: h.PostTest},
	}
}

// HookPhase names one of the four lifecycle phases and its ordered commands.
type HookPhase struct {
	Name     string
	Commands []string
}

// TaskSpec is one `[tasks.<name>]` entry.
type TaskSpec struct {
	Command     string   `toml:"command"`
	DependsOn   []string `toml:"depends-on"`
	Description string   `toml:"description"`
}

// CacheSection is the `[cache]` table.
type CacheSection struct {
	Enabled      bool   `toml:"enabled"`
	Endpoint     string `toml:"endpoint"`
	AccessKeyRef string `toml:"access-key-ref"`
}

// Manifest is the fully parsed, not-yet-validated contents of a forge.toml.
type Manifest struct {
	Project         Project             `toml:"project"`
	Java            JavaSection         `toml:"java"`
	Kotlin          KotlinSection       `toml:"kotlin"`
	Python          PythonSection       `toml:"python"`
	Dependencies    map[string]string   `toml:"dependencies"`
	TestDeps        map[string]string   `toml:"test-dependencies"`
	Hooks           Hooks               `toml:"hooks"`
	Modules         []string            `toml:"modules"`
	Tasks           map[string]TaskSpec `toml:"tasks"`
	Cache           CacheSection        `toml:"cache"`

	// Dir is the absolute directory the manifest was loaded from. Not part
	// of the TOML schema; populated by Load.
	Dir string `toml:"-"`
}

var builtinTaskNames = map[string]bool{
	"resolve-deps": true,
	"compile":      true,
	"test":         true,
	"package":      true,
	"run":          true,
}

const minJavaTarget = 17

// Load reads and parses the forge.toml at dir/forge.toml, then validates it.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, forgeerr.Wrap(forgeerr.Config, path, "reading manifest", err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, forgeerr.Wrap(forgeerr.Config, path, "parsing manifest", err)
	}
	// A manifest with no [cache] table (or no enabled key within it) means
	// "use the default", which is caching on; toml decodes a missing bool
	// to false, so that default has to be applied explicitly here.
	if !md.IsDefined("cache", "enabled") {
		m.Cache.Enabled = true
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, forgeerr.Wrap(forgeerr.Config, path, "resolving manifest directory", err)
	}
	m.Dir = absDir

	if errs := m.Validate(); len(errs) > 0 {
		return nil, forgeerr.Wrap(forgeerr.Config, path, errs.Error(), errs)
	}
	return &m, nil
}

// ValidationErrors collects every validation failure found in one manifest,
// each qualified with the TOML path that produced it (e.g. "java.target").
type ValidationErrors []ValidationError

// ValidationError is a single structured validation failure.
type ValidationError struct {
	Path   string
	Reason string
}

func (e ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Path, e.Reason) }

func (es ValidationErrors) Error() string {
	if len(es) == 1 {
		return es[0].Error()
	}
	s := fmt.Sprintf("%d validation errors:", len(es))
	for _, e := range es {
		s += "\n  - " + e.Error()
	}
	return s
}

// Validate checks every invariant documented for a Manifest and returns the
// full set of violations (not just the first).
func (m *Manifest) Validate() ValidationErrors {
	var errs ValidationErrors

	if m.Project.Name == "" {
		errs = append(errs, ValidationError{"project.name", "must be non-empty"})
	}
	switch m.Project.Language {
	case Java, Kotlin, Python:
	case "":
		errs = append(errs, ValidationError{"project.language", `required, one of "java", "kotlin", "python"`})
	default:
		errs = append(errs, ValidationError{"project.language", fmt.Sprintf("unknown language %q", m.Project.Language)})
	}
	if m.Project.OutputDir == "" {
		m.Project.OutputDir = "build"
	}

	errs = append(errs, m.validateLanguageSection()...)
	errs = append(errs, m.validateDependencySpecifiers()...)
	errs = append(errs, m.validateTaskNames()...)
	errs = append(errs, m.validateModulePaths()...)

	return errs
}

func (m *Manifest) validateLanguageSection() ValidationErrors {
	var errs ValidationErrors
	switch m.Project.Language {
	case Java:
		if m.Java.Source == "" {
			m.Java.Source = "src/main/java"
		}
		if m.Java.Target != "" {
			v, err := semver.NewVersion(normalizeJavaTarget(m.Java.Target))
			if err != nil {
				errs = append(errs, ValidationError{"java.target", fmt.Sprintf("not a valid version: %v", err)})
			} else if v.Major() < minJavaTarget {
				errs = append(errs, ValidationError{"java.target", fmt.Sprintf("value %q is below minimum %d", m.Java.Target, minJavaTarget)})
			}
		}
	case Kotlin:
		if m.Kotlin.Source == "" {
			m.Kotlin.Source = "src/main/kotlin"
		}
	case Python:
		if m.Python.Source == "" {
			m.Python.Source = "src"
		}
	}
	return errs
}

// normalizeJavaTarget turns a bare major version ("17") into a semver the
// Masterminds/semver parser accepts ("17.0.0"); `target` is documented as a
// plain JDK release number, not a full semver string.
func normalizeJavaTarget(target string) string {
	for _, c := range target {
		if c == '.' {
			return target
		}
	}
	return target + ".0.0"
}

func (m *Manifest) validateDependencySpecifiers() ValidationErrors {
	var errs ValidationErrors
	check := func(section string, deps map[string]string) {
		for coord, spec := range deps {
			if spec == "" {
				errs = append(errs, ValidationError{fmt.Sprintf("%s.%s", section, coord), "version specifier must be non-empty"})
				continue
			}
			if _, err := semver.NewConstraint(spec); err != nil {
				errs = append(errs, ValidationError{fmt.Sprintf("%s.%s", section, coord), fmt.Sprintf("invalid version specifier %q: %v", spec, err)})
			}
		}
	}
	check("dependencies", m.Dependencies)
	check("test-dependencies", m.TestDeps)
	return errs
}

func (m *Manifest) validateTaskNames() ValidationErrors {
	var errs ValidationErrors
	for name := range m.Tasks {
		if builtinTaskNames[name] {
			errs = append(errs, ValidationError{fmt.Sprintf("tasks.%s", name), "collides with a built-in task name"})
		}
	}
	return errs
}

// validateModulePaths checks syntactic sanity only (non-empty, not an
// absolute path). Containment within the overall workspace root can only be
// checked once the root directory is known, which happens during
// workspace.Load, not here.
func (m *Manifest) validateModulePaths() ValidationErrors {
	var errs ValidationErrors
	for i, rel := range m.Modules {
		if rel == "" {
			errs = append(errs, ValidationError{fmt.Sprintf("modules[%d]", i), "must be non-empty"})
			continue
		}
		if filepath.IsAbs(rel) {
			errs = append(errs, ValidationError{fmt.Sprintf("modules[%d]", i), "must be a relative path"})
		}
	}
	return errs
}

// SourceDir returns the configured source directory for the project's language.
func (m *Manifest) SourceDir() string {
	switch m.Project.Language {
	case Java:
		return m.Java.Source
	case Kotlin:
		return m.Kotlin.Source
	case Python:
		return m.Python.Source
	default:
		return ""
	}
}

// LanguageVersion returns the version string the fingerprint should bind to
// (target JDK release, Kotlin JVM target, or empty for Python).
func (m *Manifest) LanguageVersion() string {
	switch m.Project.Language {
	case Java:
		return m.Java.Target
	case Kotlin:
		return m.Kotlin.JVMTarget
	default:
		return ""
	}
}
