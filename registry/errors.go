package registry

import "errors"

var (
	// ErrModuleExists is returned when initializing a module that already exists.
	ErrModuleExists = errors.New("registry: module already exists")

	// ErrModuleNotFound is returned when a module has not been initialized.
	ErrModuleNotFound = errors.New("registry: module not found")

	// ErrVersionExists is returned when adding a version that is already present.
	ErrVersionExists = errors.New("registry: version already exists")

	// ErrVersionNotFound is returned when deleting a version that is not present.
	ErrVersionNotFound = errors.New("registry: version not found")

	// ErrInvalidModule is returned when a module description is incomplete
	// or its MODULE.bazel does not describe it.
	ErrInvalidModule = errors.New("registry: invalid module")
)
