// Package telemetry reports DriverFailure and unrecoverable Config/Cyclic*
// errors to Sentry when a DSN is configured. It is a purely ambient
// observability hook: cmd/forge calls Report once with a command's final
// error; it never changes control flow.
package telemetry

import (
	"os"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/forgebuild/forge/internal/forgeerr"
)

const flushTimeout = 2 * time.Second

// reportableKinds are the failure classes worth forwarding: driver
// failures and the unrecoverable config/cycle errors that abort a build
// entirely. RemoteTransient and Interrupted are expected, routine outcomes
// and are never reported.
var reportableKinds = map[forgeerr.Kind]bool{
	forgeerr.DriverFailure: true,
	forgeerr.Config:        true,
	forgeerr.CyclicModules: true,
	forgeerr.CyclicTasks:   true,
}

// Init initializes the Sentry SDK if SENTRY_DSN is set. If it is not,
// Report becomes a no-op. Returns a cleanup function to defer.
func Init(version string) func() {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		return func() {}
	}

	env := os.Getenv("SENTRY_ENVIRONMENT")
	if env == "" {
		env = "production"
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          "forge@" + version,
		Environment:      env,
		AttachStacktrace: true,
		SampleRate:       1.0,
	}); err != nil {
		return func() {}
	}

	return func() {
		sentry.Flush(flushTimeout)
	}
}

// Report forwards err to Sentry if its Kind is one of reportableKinds and
// Sentry was initialized. Safe to call unconditionally, including with a
// nil or unclassified error.
func Report(err error) {
	if err == nil {
		return
	}
	kind, ok := forgeerr.KindOf(err)
	if !ok || !reportableKinds[kind] {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("forge.error_kind", string(kind))
		sentry.CaptureException(err)
	})
}
