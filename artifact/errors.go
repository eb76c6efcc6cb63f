package artifact

import "errors"

var (
	// ErrNotFound is returned when an artifact for the given namespace / id
	// pair does not exist in the underlying store.
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalidName is returned for ids or namespaces that are empty or
	// would escape the store root.
	ErrInvalidName = errors.New("invalid artifact name")
)
