package telemetry

import (
	"errors"
	"testing"

	"github.com/forgebuild/forge/internal/forgeerr"
)

func TestInitIsNoopWithoutDSN(t *testing.T) {
	t.Setenv("SENTRY_DSN", "")
	cleanup := Init("test")
	cleanup() // must not panic
}

func TestReportIgnoresUnreportableKinds(t *testing.T) {
	// Report must not panic even when Sentry was never initialized.
	Report(nil)
	Report(errors.New("plain error, not a forgeerr.Error"))
	Report(forgeerr.New(forgeerr.RemoteTransient, "transient"))
	Report(forgeerr.New(forgeerr.Interrupted, "cancelled"))
	Report(forgeerr.New(forgeerr.DriverFailure, "javac exited 1"))
}
