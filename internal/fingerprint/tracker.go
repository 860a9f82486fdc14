package fingerprint

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Tracker caches per-project source-tree hashes so that every task in a
// project (compile, test, package, custom) reuses one tree walk instead of
// re-hashing the same files once per task. Package-inputs hashes must be
// computed before any task fingerprint that depends on them; computation is
// safe to run concurrently across distinct projects.
type Tracker struct {
	mu         sync.RWMutex
	treeHashes map[string]Hash
	entries    map[string][]FileEntry
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		treeHashes: make(map[string]Hash),
		entries:    make(map[string][]FileEntry),
	}
}

// ProjectInput names one project's source tree to be hashed.
type ProjectInput struct {
	Key     string // usually the project name
	Root    string
	Include []string
	Exclude []string
}

// HashAll hashes every project's source tree concurrently, bounded by
// workerCount, and memoizes the results for later TreeHash lookups.
func (t *Tracker) HashAll(ctx context.Context, inputs []ProjectInput, workerCount int) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount)

	for _, in := range inputs {
		in := in
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			h, entries, err := HashTree(in.Root, in.Include, in.Exclude)
			if err != nil {
				return fmt.Errorf("hashing source tree for %s: %w", in.Key, err)
			}
			t.mu.Lock()
			t.treeHashes[in.Key] = h
			t.entries[in.Key] = entries
			t.mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// TreeHash returns the memoized source-tree hash for key, computing it now
// (uncached) if HashAll was never called for it.
func (t *Tracker) TreeHash(key string, root string, include, exclude []string) (Hash, error) {
	t.mu.RLock()
	h, ok := t.treeHashes[key]
	t.mu.RUnlock()
	if ok {
		return h, nil
	}

	h, entries, err := HashTree(root, include, exclude)
	if err != nil {
		return Hash{}, err
	}
	t.mu.Lock()
	t.treeHashes[key] = h
	t.entries[key] = entries
	t.mu.Unlock()
	return h, nil
}

// Entries returns the file entries backing key's tree hash, if known.
func (t *Tracker) Entries(key string) ([]FileEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[key]
	return e, ok
}
