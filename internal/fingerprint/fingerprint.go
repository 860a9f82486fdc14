// Package fingerprint computes the deterministic, content-addressed
// identity of a file tree, a dependency set, and ultimately a task.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/forgebuild/forge/internal/forgeerr"
)

// Hash is a 256-bit content-addressed identity, rendered as lowercase hex.
type Hash [sha256.Size]byte

// String renders the hash as lowercase hex.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// IsZero reports whether h is the zero value.
func (h Hash) IsZero() bool { return h == Hash{} }

// domainTag is mixed into every task fingerprint so that a schema change
// between FORGE versions can never collide with a prior version's hashes.
const domainTag = byte(1)

func newFramer() *framer {
	return &framer{h: sha256.New()}
}

// framer is a SHA-256 accumulator where every Write call is length-prefixed,
// preventing field-concatenation ambiguity.
type framer struct {
	h interface {
		Write([]byte) (int, error)
		Sum([]byte) []byte
	}
}

func (f *framer) write(b []byte) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(b)))
	_, _ = f.h.Write(lenBuf[:])
	_, _ = f.h.Write(b)
}

func (f *framer) writeByte(b byte) {
	f.write([]byte{b})
}

func (f *framer) sum() Hash {
	var out Hash
	copy(out[:], f.h.Sum(nil))
	return out
}

// FileEntry is one (relative path, content hash) pair in a hashed tree.
type FileEntry struct {
	RelPath string
	Content Hash
}

// HashFile returns the SHA-256 of a single file's bytes. Symlinks are
// resolved to their target's content before hashing; a symlink cycle fails
// with a BadInputs error.
func HashFile(path string) (Hash, error) {
	resolved, err := resolveSymlink(path, make(map[string]bool))
	if err != nil {
		return Hash{}, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return Hash{}, forgeerr.Wrap(forgeerr.BadInputs, path, "reading file", err)
	}
	return Hash(sha256.Sum256(data)), nil
}

func resolveSymlink(path string, seen map[string]bool) (string, error) {
	for {
		info, err := os.Lstat(path)
		if err != nil {
			return "", forgeerr.Wrap(forgeerr.BadInputs, path, "stat", err)
		}
		if info.Mode()&os.ModeSymlink == 0 {
			return path, nil
		}
		if seen[path] {
			return "", forgeerr.New(forgeerr.BadInputs, fmt.Sprintf("symlink cycle at %s", path))
		}
		seen[path] = true
		target, err := os.Readlink(path)
		if err != nil {
			return "", forgeerr.Wrap(forgeerr.BadInputs, path, "reading symlink target", err)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(path), target)
		}
		path = target
	}
}

// HashTree walks root (a directory), hashing every regular file (and every
// symlink, resolved to its target's content) matched by include and not
// matched by exclude, and returns a tree hash over the sorted
// (relative_path, content_hash) sequence plus the entries themselves.
//
// Directory entries are not hashed, only files. Traversal order does not
// matter: entries are sorted by relative path before hashing, so the result
// is stable regardless of the filesystem's directory iteration order.
func HashTree(root string, include, exclude []string) (Hash, []FileEntry, error) {
	var entries []FileEntry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return forgeerr.Wrap(forgeerr.BadInputs, path, "walking source tree", err)
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if !matches(rel, include, exclude) {
			return nil
		}

		h, err := HashFile(path)
		if err != nil {
			return err
		}
		entries = append(entries, FileEntry{RelPath: rel, Content: h})
		return nil
	})
	if err != nil {
		if _, ok := forgeerr.KindOf(err); ok {
			return Hash{}, nil, err
		}
		return Hash{}, nil, forgeerr.Wrap(forgeerr.BadInputs, root, "walking source tree", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].RelPath < entries[j].RelPath })

	f := newFramer()
	for _, e := range entries {
		f.write([]byte(e.RelPath))
		f.write(e.Content[:])
	}
	return f.sum(), entries, nil
}

func matches(rel string, include, exclude []string) bool {
	for _, pat := range exclude {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, pat := range include {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

// Coordinate is one dependency entry (e.g. Maven "group:artifact" or a PyPI
// package name) paired with its version specifier.
type Coordinate struct {
	Name    string
	Version string
}

// HashDependencySet canonicalizes a dependency set by sorting on
// coordinate-then-version and hashes the resulting sequence.
func HashDependencySet(deps []Coordinate) Hash {
	sorted := append([]Coordinate(nil), deps...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].Version < sorted[j].Version
	})

	f := newFramer()
	for _, d := range sorted {
		f.write([]byte(d.Name))
		f.write([]byte(d.Version))
	}
	return f.sum()
}

// TaskInputs is everything that determines a task's fingerprint, per §4.2.
type TaskInputs struct {
	Language        string
	LanguageVersion string
	CommandTemplate string
	SourceTreeHash  Hash
	DependencySet   Hash
	// Upstream is the set of upstream task fingerprints; order-independent
	// (sorted internally before hashing).
	Upstream []Hash
	// ManifestSubTree is the canonical form of the manifest fields relevant
	// to this task (e.g. its own hooks, task definition, cache settings).
	ManifestSubTree []byte
}

// Task computes the fingerprint of a task from its inputs, per §4.2: SHA-256
// over domain tag, language tag, language version, command template, input
// tree hash, dependency set hash, sorted upstream fingerprints, and the
// manifest sub-tree canonical form.
func Task(in TaskInputs) Hash {
	upstream := append([]Hash(nil), in.Upstream...)
	sort.Slice(upstream, func(i, j int) bool {
		return upstream[i].String() < upstream[j].String()
	})

	f := newFramer()
	f.writeByte(domainTag)
	f.write([]byte(in.Language))
	f.write([]byte(in.LanguageVersion))
	f.write([]byte(in.CommandTemplate))
	f.write(in.SourceTreeHash[:])
	f.write(in.DependencySet[:])
	for _, u := range upstream {
		f.write(u[:])
	}
	f.write(in.ManifestSubTree)
	return f.sum()
}
