package artifact

import (
	"path/filepath"
	"strings"
)

// Store persists artifact bytes under a namespace and id.
type Store interface {
	// Save stores (or overwrites) the artifact.
	Save(namespace, id string, data []byte) error
	// Get returns the artifact bytes or ErrNotFound.
	Get(namespace, id string) ([]byte, error)
	// List returns the ids stored in namespace in lexical order.
	List(namespace string) ([]string, error)
	// Delete removes the artifact or returns ErrNotFound.
	Delete(namespace, id string) error
}

// ValidateName rejects ids that are empty, contain path separators or are
// relative path elements.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, `/\`) || filepath.IsAbs(name) {
		return ErrInvalidName
	}
	return nil
}
