package state

import "strings"

// PauseSet is a static pause view assembled from configuration. Module names
// are matched case-insensitively.
type PauseSet map[string]bool

// NewPauseSet builds a PauseSet from a list of paused module names.
func NewPauseSet(modules []string) PauseSet {
	set := make(PauseSet, len(modules))
	for _, module := range modules {
		trimmed := strings.ToLower(strings.TrimSpace(module))
		if trimmed != "" {
			set[trimmed] = true
		}
	}
	return set
}

// IsPaused reports whether the module is administratively paused.
func (p PauseSet) IsPaused(module string) bool {
	if p == nil {
		return false
	}
	return p[strings.ToLower(strings.TrimSpace(module))]
}
