package common

import (
	"errors"
	"testing"
)

type pauseMap map[string]bool

func (p pauseMap) IsPaused(module string) (bool, error) { return p[module], nil }

type failingView struct{}

func (failingView) IsPaused(string) (bool, error) { return false, errors.New("boom") }

func TestGuard(t *testing.T) {
	view := pauseMap{"vault": true}
	if err := Guard(view, "vault"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected paused error, got %v", err)
	}
	if err := Guard(view, "staking"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Guard(nil, "vault"); err != nil {
		t.Fatalf("nil view must not pause: %v", err)
	}
	if err := Guard(failingView{}, "vault"); err == nil {
		t.Fatalf("expected state error to surface")
	}
}
