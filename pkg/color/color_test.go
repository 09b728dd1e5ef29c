package color

import (
	"testing"
)

func restore(t *testing.T) {
	origEnabled := state.enabled.Load()
	origOverridden := state.overridden.Load()
	t.Cleanup(func() {
		state.enabled.Store(origEnabled)
		state.overridden.Store(origOverridden)
	})
}

func TestEnableDisable(t *testing.T) {
	restore(t)

	Enable()
	if !Enabled() {
		t.Error("expected colors to be enabled")
	}
	Disable()
	if Enabled() {
		t.Error("expected colors to be disabled")
	}
}

func TestWrapping(t *testing.T) {
	restore(t)

	Enable()
	if got := Error("boom"); got != Red+"boom"+Reset {
		t.Errorf("unexpected error color: %q", got)
	}
	if got := Successf("%d files", 3); got != Green+"3 files"+Reset {
		t.Errorf("unexpected success color: %q", got)
	}

	Disable()
	for _, fn := range []func(string) string{Success, Error, Warning, Path, Header, Dim} {
		if got := fn("plain"); got != "plain" {
			t.Errorf("expected plain text when disabled, got %q", got)
		}
	}
}
