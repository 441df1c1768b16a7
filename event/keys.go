package event

import (
	"path"
	"strings"

	"github.com/segmentio/ksuid"
)

const (
	DefaultSourcePrefix    = "closet/"
	DefaultProcessedPrefix = "closet/processed"
)

// KeyDeriver 根据源图片的 key 计算抠图结果的 key
type KeyDeriver struct {
	SourcePrefix    string
	ProcessedPrefix string
	// Flatten 丢弃 SourcePrefix 下面的子目录
	Flatten bool
	Suffix  func() string
}

func NewKeyDeriver(sourcePrefix, processedPrefix string, flatten bool) KeyDeriver {
	return KeyDeriver{
		SourcePrefix:    sourcePrefix,
		ProcessedPrefix: processedPrefix,
		Flatten:         flatten,
		Suffix:          NewSuffix,
	}
}

// NewSuffix 返回一个 ksuid，按生成时间排序
func NewSuffix() string {
	return ksuid.New().String()
}

func (d KeyDeriver) Derive(inputKey string) string {
	tail := strings.TrimLeft(inputKey, "/")
	if p := dirPrefix(d.SourcePrefix); p != "" {
		tail = strings.TrimPrefix(tail, p)
	}

	dir, base := path.Split(tail)
	if d.Flatten {
		dir = ""
	}
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "" {
		stem = "image"
	}

	suffix := d.Suffix
	if suffix == nil {
		suffix = NewSuffix
	}

	parts := make([]string, 0, 3)
	if p := strings.Trim(d.processedPrefix(), "/"); p != "" {
		parts = append(parts, p)
	}
	if dir = strings.Trim(dir, "/"); dir != "" {
		parts = append(parts, dir)
	}
	parts = append(parts, stem+"-"+suffix()+".png")
	return strings.Join(parts, "/")
}

// IsProcessed 判断 key 是否已经在 processed 前缀下
// 结果写回被监听的 bucket 时不会再处理一遍
func (d KeyDeriver) IsProcessed(key string) bool {
	p := dirPrefix(d.processedPrefix())
	if p == "" {
		return false
	}
	return strings.HasPrefix(strings.TrimLeft(key, "/"), p)
}

func (d KeyDeriver) processedPrefix() string {
	if d.ProcessedPrefix == "" {
		return DefaultProcessedPrefix
	}
	return d.ProcessedPrefix
}

func dirPrefix(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}
