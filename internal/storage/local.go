package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStore keeps artifacts as files under a root directory.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) Save(_ context.Context, key string, data []byte, contentType string) (Object, error) {
	key, err := CleanKey(key)
	if err != nil {
		return Object{}, err
	}
	p := filepath.Join(s.root, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return Object{}, fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return Object{}, fmt.Errorf("write artifact: %w", err)
	}

	info, err := os.Stat(p)
	if err != nil {
		return Object{}, fmt.Errorf("stat artifact: %w", err)
	}
	return s.object(key, p, info, contentType), nil
}

func (s *LocalStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	return f, nil
}

// List walks the root and returns objects whose key starts with prefix,
// sorted by key. A missing root is an empty store.
func (s *LocalStore) List(_ context.Context, prefix string) ([]Object, error) {
	var objects []Object
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == s.root {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, s.object(key, p, info, ""))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (s *LocalStore) object(key, p string, info fs.FileInfo, contentType string) Object {
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(p))
	}
	return Object{
		Key:         key,
		Size:        info.Size(),
		ContentType: contentType,
		Updated:     info.ModTime(),
		Location:    p,
	}
}
