// Package store defines how gridded variables are loaded from storage.
package store

import (
	"errors"

	"go.ngs.io/geothermophone/internal/domain"
)

// ErrNotFound is returned when no file holds the requested variable.
var ErrNotFound = errors.New("variable not found")

// VariableLoader is the interface for loading decoded gridded variables.
type VariableLoader interface {
	// Load returns the named variable (e.g., "air") unpacked to physical units.
	Load(name string) (*domain.Variable, error)

	// Available lists the variable names that can be loaded.
	Available() ([]string, error)
}
