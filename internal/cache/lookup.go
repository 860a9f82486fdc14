package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/forgebuild/forge/internal/retry"
)

// DriverFunc invokes the language driver that produces a cache miss's
// object and metadata bytes.
type DriverFunc func(ctx context.Context) (object []byte, meta []byte, err error)

// Result is the outcome of one Execute call, reported by the scheduler as
// the task's TaskFinished{cached, source} fields (§4.5).
type Result struct {
	Cached bool
	Source string // "local", "remote", or "" on a miss
	Object []byte
	Meta   []byte

	// RemoteWarning is set when a best-effort remote put failed after a
	// miss. It never causes Execute to return an error.
	RemoteWarning error
}

// Engine orchestrates the two-tier lookup protocol of §4.4: local head,
// remote head+get+verify, and on a full miss, driver invocation followed by
// a local put and a best-effort remote put. At-most-one concurrent build per
// fingerprint is enforced by a singleflight group keyed on the fingerprint.
type Engine struct {
	Local  *Local
	Remote ObjectStore // nil disables the remote tier

	sf singleflight.Group
}

// NewEngine returns an Engine over the given tiers. remote may be nil.
func NewEngine(local *Local, remote ObjectStore) *Engine {
	return &Engine{Local: local, Remote: remote}
}

// Execute runs the lookup protocol for fingerprint key, invoking driver on a
// full miss. Concurrent Execute calls for the same key within the process
// share one in-flight attempt.
func (e *Engine) Execute(ctx context.Context, key string, driver DriverFunc) (*Result, error) {
	v, err, _ := e.sf.Do(key, func() (interface{}, error) {
		return e.execute(ctx, key, driver)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (e *Engine) execute(ctx context.Context, key string, driver DriverFunc) (*Result, error) {
	if e.Local.Head(key) {
		object, meta, err := e.Local.Get(key)
		if err == nil {
			return &Result{Cached: true, Source: "local", Object: object, Meta: meta}, nil
		}
		// A corrupt local entry falls through to the remote tier / driver
		// rather than failing the task outright.
	}

	if e.Remote != nil {
		if object, meta, ok := e.tryRemote(ctx, key); ok {
			if err := e.Local.Put(key, object, meta); err != nil {
				return nil, err
			}
			return &Result{Cached: true, Source: "remote", Object: object, Meta: meta}, nil
		}
	}

	object, meta, err := driver(ctx)
	if err != nil {
		return nil, err
	}

	if err := e.Local.Put(key, object, meta); err != nil {
		return nil, err
	}

	result := &Result{Cached: false, Object: object, Meta: meta}
	if e.Remote != nil {
		result.RemoteWarning = e.putRemoteBestEffort(ctx, key, object, meta)
	}
	return result, nil
}

// tryRemote performs remote head+get+integrity-verify. ok is false for any
// miss, transient failure, or integrity violation; all three are treated
// identically by the caller (fall through to the driver).
func (e *Engine) tryRemote(ctx context.Context, key string) (object []byte, meta []byte, ok bool) {
	present, err := e.Remote.Head(ctx, key)
	if err != nil || !present {
		return nil, nil, false
	}

	meta, err = e.Remote.Get(ctx, key+"/meta")
	if err != nil {
		return nil, nil, false
	}

	object, err = e.Remote.Get(ctx, key+"/object")
	if err != nil {
		return nil, nil, false
	}
	if !verifyIntegrity(meta, object) {
		return nil, nil, false
	}

	return object, meta, true
}

// verifyIntegrity checks object against the content hash recorded in its own
// meta record at write time. The fingerprint key hashes task inputs, not the
// output bundle, so it cannot serve as an integrity check on the object
// itself.
func verifyIntegrity(meta, object []byte) bool {
	m, err := DecodeMeta(meta)
	if err != nil || m.ContentSHA256 == "" {
		return false
	}
	return m.ContentSHA256 == contentHash(object)
}

// putRemoteBestEffort retries transient failures a bounded number of times
// and returns the final error (if any) without ever failing the build.
func (e *Engine) putRemoteBestEffort(ctx context.Context, key string, object, meta []byte) error {
	put := func(ctx context.Context) error {
		if err := e.Remote.Put(ctx, key+"/object", object); err != nil {
			return err
		}
		return e.Remote.Put(ctx, key+"/meta", meta)
	}

	return retry.Do(ctx, put,
		retry.WithMaxAttempts(3),
		retry.WithInitialDelay(200*time.Millisecond),
		retry.WithMaxDelay(2*time.Second),
		retry.WithRetryCondition(IsTransientError),
	)
}
