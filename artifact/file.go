package artifact

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

// FileStore keeps every artifact as a regular file. The empty namespace maps
// to the root directory itself, any other namespace to a subdirectory.
type FileStore struct {
	root string
	perm fs.FileMode
}

// FileStoreOptions configures a FileStore.
type FileStoreOptions struct {
	// Perm is the permission used for newly written files.
	Perm fs.FileMode
}

// NewFileStore returns a store rooted at dir. The directory is created on
// first write.
func NewFileStore(dir string, optFns ...func(o *FileStoreOptions)) *FileStore {
	opts := FileStoreOptions{Perm: 0o644}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &FileStore{root: dir, perm: opts.Perm}
}

// Root returns the directory the store writes to.
func (f *FileStore) Root() string { return f.root }

func (f *FileStore) dir(namespace string) (string, error) {
	if namespace == "" {
		return f.root, nil
	}
	if err := ValidateName(namespace); err != nil {
		return "", err
	}
	return filepath.Join(f.root, namespace), nil
}

func (f *FileStore) path(namespace, id string) (string, error) {
	if err := ValidateName(id); err != nil {
		return "", err
	}
	dir, err := f.dir(namespace)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, id), nil
}

// Save writes data to <root>/<namespace>/<id>.
func (f *FileStore) Save(namespace, id string, data []byte) error {
	p, err := f.path(namespace, id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, f.perm)
}

// Get reads the artifact file or returns ErrNotFound.
func (f *FileStore) Get(namespace, id string) ([]byte, error) {
	p, err := f.path(namespace, id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// List returns the regular files of the namespace directory in lexical order.
func (f *FileStore) List(namespace string) ([]string, error) {
	dir, err := f.dir(namespace)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			ids = append(ids, e.Name())
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Delete removes the artifact file or returns ErrNotFound.
func (f *FileStore) Delete(namespace, id string) error {
	p, err := f.path(namespace, id)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}
