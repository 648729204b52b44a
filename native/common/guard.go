package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a named module's mutating operations are halted
// by the global circuit breaker.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the operation when the module is paused. A nil view or empty
// module name means no breaker is wired and the call proceeds.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
