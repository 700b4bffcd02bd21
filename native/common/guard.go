package common

import "errors"

// ErrActionPaused is returned when a mutating ledger action has been disabled
// by operator configuration.
var ErrActionPaused = errors.New("action paused")

// PauseView reports whether an individual ledger action is paused.
type PauseView interface {
	IsPaused(action string) bool
}

// Guard rejects the action when the pause view marks it disabled. A nil view
// or empty action never blocks.
func Guard(p PauseView, action string) error {
	if p == nil || action == "" {
		return nil
	}
	if p.IsPaused(action) {
		return ErrActionPaused
	}
	return nil
}

// StaticPauses is a fixed PauseView backed by a set of action names.
type StaticPauses map[string]bool

func (s StaticPauses) IsPaused(action string) bool {
	if s == nil {
		return false
	}
	return s[action]
}
