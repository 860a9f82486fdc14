package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	return l
}

func keyOf(object []byte) string {
	sum := sha256.Sum256(object)
	return hex.EncodeToString(sum[:])
}

func TestExecuteMissInvokesDriverAndPopulatesLocal(t *testing.T) {
	local := newTestLocal(t)
	e := NewEngine(local, nil)

	object := []byte("built-artifact")
	meta := []byte(`{"ok":true}`)
	key := keyOf(object)

	calls := 0
	result, err := e.Execute(context.Background(), key, func(ctx context.Context) ([]byte, []byte, error) {
		calls++
		return object, meta, nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Cached {
		t.Fatal("expected Cached = false on a full miss")
	}
	if calls != 1 {
		t.Fatalf("driver calls = %d, want 1", calls)
	}
	if !local.Head(key) {
		t.Fatal("expected the local tier to be populated after a miss")
	}
}

func TestExecuteLocalHit(t *testing.T) {
	local := newTestLocal(t)
	e := NewEngine(local, nil)

	object := []byte("cached-artifact")
	meta := []byte(`{}`)
	key := keyOf(object)
	if err := local.Put(key, object, meta); err != nil {
		t.Fatal(err)
	}

	result, err := e.Execute(context.Background(), key, func(ctx context.Context) ([]byte, []byte, error) {
		t.Fatal("driver should not run on a local hit")
		return nil, nil, nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Cached || result.Source != "local" {
		t.Fatalf("result = %+v, want Cached=true Source=local", result)
	}
}

type fakeRemote struct {
	objects map[string][]byte
}

func (f *fakeRemote) Head(ctx context.Context, key string) (bool, error) {
	_, ok := f.objects[key]
	return ok, nil
}
func (f *fakeRemote) Get(ctx context.Context, key string) ([]byte, error) {
	b, ok := f.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return b, nil
}
func (f *fakeRemote) Put(ctx context.Context, key string, data []byte) error {
	f.objects[key] = data
	return nil
}

func TestExecuteRemoteHitVerifiesIntegrityAndPopulatesLocal(t *testing.T) {
	local := newTestLocal(t)
	object := []byte("remote-artifact")
	key := keyOf(object)
	meta, err := NewMeta(key, "compile", time.Millisecond, object, "test").Encode()
	if err != nil {
		t.Fatal(err)
	}

	remote := &fakeRemote{objects: map[string][]byte{
		key:             {1},
		key + "/object": object,
		key + "/meta":   meta,
	}}
	e := NewEngine(local, remote)

	result, err := e.Execute(context.Background(), key, func(ctx context.Context) ([]byte, []byte, error) {
		t.Fatal("driver should not run on a remote hit")
		return nil, nil, nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Cached || result.Source != "remote" {
		t.Fatalf("result = %+v, want Cached=true Source=remote", result)
	}
	if !local.Head(key) {
		t.Fatal("expected a remote hit to populate the local tier")
	}
}

func TestExecuteCorruptRemoteFallsThroughToDriver(t *testing.T) {
	local := newTestLocal(t)
	expected := []byte("expected-object")
	key := keyOf(expected)
	meta, err := NewMeta(key, "compile", time.Millisecond, expected, "test").Encode()
	if err != nil {
		t.Fatal(err)
	}

	remote := &fakeRemote{objects: map[string][]byte{
		key:             {1},
		key + "/object": []byte("tampered-bytes"),
		key + "/meta":   meta,
	}}
	e := NewEngine(local, remote)

	calls := 0
	_, err = e.Execute(context.Background(), key, func(ctx context.Context) ([]byte, []byte, error) {
		calls++
		return []byte("rebuilt"), []byte(`{}`), nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("driver calls = %d, want 1 (corrupt remote entry should fall through to a miss)", calls)
	}
}

func TestExecuteDedupsConcurrentCallsForSameKey(t *testing.T) {
	local := newTestLocal(t)
	e := NewEngine(local, nil)

	object := []byte("shared-artifact")
	key := keyOf(object)

	var calls int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := e.Execute(context.Background(), key, func(ctx context.Context) ([]byte, []byte, error) {
				atomic.AddInt32(&calls, 1)
				return object, []byte(`{}`), nil
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("driver calls = %d, want exactly 1 under singleflight dedup", calls)
	}
}
