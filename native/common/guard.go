package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a module has been paused by an operator.
type PauseView interface {
	IsPaused(module string) (bool, error)
}

// Guard rejects the call when module is paused. A nil view never pauses.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	paused, err := p.IsPaused(module)
	if err != nil {
		return err
	}
	if paused {
		return ErrModulePaused
	}
	return nil
}
