package pkgerr

import (
	"errors"
	"testing"
)

func TestErrorsIsMatchesByKind(t *testing.T) {
	err := CatalogMissf("video %q", "clip_a")
	if !errors.Is(err, CatalogMiss) {
		t.Error("expected errors.Is to match CatalogMiss sentinel")
	}
	if errors.Is(err, BadSpec) {
		t.Error("CatalogMiss error should not match BadSpec sentinel")
	}
}

func TestExternalToolFailureUnwraps(t *testing.T) {
	cause := errors.New("exit status 1")
	err := ExternalToolFailuref(cause, "ffmpeg failed")
	if !errors.Is(err, ExternalToolFailure) {
		t.Error("expected errors.Is to match ExternalToolFailure sentinel")
	}
	if !errors.Is(err, cause) {
		t.Error("expected the wrapped cause to be reachable via errors.Is")
	}
}
