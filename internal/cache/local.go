// Package cache implements the two-tier content-addressed cache described in
// §4.4: a local filesystem store consulted first, and an optional remote
// object store consulted on a local miss.
package cache

import (
	"os"
	"path/filepath"

	"github.com/forgebuild/forge/internal/forgeerr"
)

// Local is the filesystem cache tier rooted at a directory such as
// ~/.forge/cache. Layout: objects/<first2>/<fingerprint_hex> for artifact
// bundles, meta/<fingerprint_hex>.json for metadata. Entries are written by
// temp-file-plus-rename so a reader never observes a partial entry.
type Local struct {
	Root string
}

// NewLocal returns a Local tier rooted at root, creating it if necessary.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(filepath.Join(root, "objects"), 0o755); err != nil {
		return nil, forgeerr.Wrap(forgeerr.CacheCorrupt, root, "creating local cache objects directory", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "meta"), 0o755); err != nil {
		return nil, forgeerr.Wrap(forgeerr.CacheCorrupt, root, "creating local cache meta directory", err)
	}
	return &Local{Root: root}, nil
}

func (l *Local) objectPath(key string) string {
	return filepath.Join(l.Root, "objects", key[:2], key)
}

func (l *Local) metaPath(key string) string {
	return filepath.Join(l.Root, "meta", key+".json")
}

// Head reports whether key is present in the local tier.
func (l *Local) Head(key string) bool {
	_, err := os.Stat(l.objectPath(key))
	return err == nil
}

// Get returns the object bytes and metadata bytes for key. Local entries are
// assumed trusted (owner-only directory permissions), so no integrity check
// is performed here; that only applies to the remote tier.
func (l *Local) Get(key string) (object []byte, meta []byte, err error) {
	object, err = os.ReadFile(l.objectPath(key))
	if err != nil {
		return nil, nil, forgeerr.Wrap(forgeerr.CacheCorrupt, key, "reading local cache object", err)
	}
	meta, err = os.ReadFile(l.metaPath(key))
	if err != nil {
		return nil, nil, forgeerr.Wrap(forgeerr.CacheCorrupt, key, "reading local cache metadata", err)
	}
	return object, meta, nil
}

// Put atomically writes key's object and metadata bytes via temp-file-plus-rename.
func (l *Local) Put(key string, object []byte, meta []byte) error {
	if err := os.MkdirAll(filepath.Join(l.Root, "objects", key[:2]), 0o755); err != nil {
		return forgeerr.Wrap(forgeerr.CacheCorrupt, key, "creating object shard directory", err)
	}
	if err := writeAtomic(l.objectPath(key), object); err != nil {
		return forgeerr.Wrap(forgeerr.CacheCorrupt, key, "writing local cache object", err)
	}
	if err := writeAtomic(l.metaPath(key), meta); err != nil {
		return forgeerr.Wrap(forgeerr.CacheCorrupt, key, "writing local cache metadata", err)
	}
	return nil
}

func writeAtomic(dest string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, dest)
}
