package forgeerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesByKind(t *testing.T) {
	err := Wrap(CacheCorrupt, "ab12cd34", "sha256 mismatch", errors.New("boom"))

	if !errors.Is(err, Sentinel(CacheCorrupt)) {
		t.Fatalf("expected errors.Is to match on Kind")
	}
	if errors.Is(err, Sentinel(Config)) {
		t.Fatalf("did not expect match against a different Kind")
	}
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(DriverFailure, "exit status 1"))

	k, ok := KindOf(err)
	if !ok || k != DriverFailure {
		t.Fatalf("KindOf() = %v, %v, want DriverFailure, true", k, ok)
	}

	if _, ok := KindOf(errors.New("plain")); ok {
		t.Fatalf("KindOf() on a plain error should report ok=false")
	}
}

func TestExitCodes(t *testing.T) {
	cases := map[Kind]int{
		Config:          2,
		CyclicModules:   2,
		CyclicTasks:     2,
		CacheCorrupt:    3,
		Interrupted:     130,
		DriverFailure:   1,
		BadInputs:       1,
		RemoteTransient: 1,
	}
	for k, want := range cases {
		if got := k.ExitCode(); got != want {
			t.Errorf("%s.ExitCode() = %d, want %d", k, got, want)
		}
	}
}
