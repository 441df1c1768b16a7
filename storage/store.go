package storage

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("object not found")
	ErrTooLarge = errors.New("object exceeds size limit")
)

// ObjectStore 读取源图片，写入处理后的图片
type ObjectStore interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
}
