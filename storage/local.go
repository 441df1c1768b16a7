package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore 把对象存在本地磁盘 <Root>/<bucket>/<key>
type LocalStore struct {
	Root     string
	MaxBytes int64
}

func NewLocalStore(root string, maxBytes int64) *LocalStore {
	return &LocalStore{Root: root, MaxBytes: maxBytes}
}

func (s *LocalStore) path(bucket, key string) (string, error) {
	rel := filepath.Join(filepath.FromSlash(bucket), filepath.FromSlash(key))
	if bucket == "" || key == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("invalid object path %q/%q", bucket, key)
	}
	return filepath.Join(s.Root, rel), nil
}

func (s *LocalStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	p, err := s.path(bucket, key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("get %s: %w", p, ErrNotFound)
		}
		return nil, fmt.Errorf("stat %s: %w", p, err)
	}
	if s.MaxBytes > 0 && info.Size() > s.MaxBytes {
		return nil, fmt.Errorf("get %s: %d bytes: %w", p, info.Size(), ErrTooLarge)
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return data, nil
}

func (s *LocalStore) Put(_ context.Context, bucket, key string, data []byte, _ string) error {
	p, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}
