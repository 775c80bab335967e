package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"estatesync/pkg/errors"
)

// File persists each key as one JSON file under a directory. Writes go
// through a temp file and rename so a crash mid-write never leaves a
// half-written snapshot behind.
type File struct {
	dir string
}

func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Storage(fmt.Sprintf("create cache dir %s", dir), err)
	}
	return &File{dir: dir}, nil
}

func (f *File) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Storage(fmt.Sprintf("read key %s", key), err)
	}
	return data, true, nil
}

func (f *File) Set(ctx context.Context, key string, value []byte) error {
	target := f.path(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return errors.Storage(fmt.Sprintf("write key %s", key), err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return errors.Storage(fmt.Sprintf("commit key %s", key), err)
	}
	return nil
}

func (f *File) Delete(ctx context.Context, key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.Storage(fmt.Sprintf("delete key %s", key), err)
	}
	return nil
}

// path maps a cache key to a file name. Keys use ":" as a namespace
// separator, which is not portable as a file name character.
func (f *File) path(key string) string {
	name := strings.ReplaceAll(key, ":", "_") + ".json"
	return filepath.Join(f.dir, name)
}
