package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ReadInput 读取本地文件或 http(s) 图片，path 为 "-" 时读标准输入
func ReadInput(ctx context.Context, path string) ([]byte, error) {
	switch {
	case path == "-":
		return io.ReadAll(os.Stdin)
	case strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://"):
		return download(ctx, path)
	default:
		return os.ReadFile(path)
	}
}

// WriteOutput 写入文件，目录不存在时自动创建，path 为 "-" 时写标准输出
func WriteOutput(path string, data []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status code %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
