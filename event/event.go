// Package event 把各种调用事件解析成源图片的 (bucket, key)，并计算抠图结果的存放位置
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

var (
	ErrInvalidEvent  = errors.New("event is not a JSON object")
	ErrMissingKey    = errors.New("unable to determine source key from event")
	ErrMissingBucket = errors.New("unable to determine source bucket from event")
)

// Source 的来源
const (
	OriginS3          = "s3"
	OriginSQS         = "sqs"
	OriginEventBridge = "eventbridge"
	OriginDirect      = "direct"
	OriginItem        = "item"
	OriginURI         = "uri"
)

var (
	bucketFields = []string{"bucket", "Bucket", "sourceBucket", "uploadsBucket"}
	keyFields    = []string{"key", "Key", "s3Key", "rawMediaKey", "inputKey", "imageKey"}
)

type Source struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Origin string `json:"origin"`
}

func (s Source) String() string {
	return "s3://" + s.Bucket + "/" + s.Key
}

// Normalize 从任意形状的调用事件中取出源图片的 bucket 和 key
// 先看通知（S3、SQS 包着的 S3、EventBridge），再看顶层字段，最后看嵌套的 item
// 事件里没有 bucket 时使用 fallbackBucket
func Normalize(raw []byte, fallbackBucket string) (Source, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return Source{}, ErrInvalidEvent
	}
	return NormalizeMap(m, fallbackBucket)
}

func NormalizeMap(m map[string]any, fallbackBucket string) (Source, error) {
	src := resolve(m)

	if src.Bucket == "" {
		src.Bucket = strings.TrimSpace(fallbackBucket)
	}

	if src.Key == "" {
		return Source{}, fmt.Errorf("%w: keys_in_event=%v", ErrMissingKey, fieldNames(m))
	}
	if src.Bucket == "" {
		return Source{}, fmt.Errorf("%w: keys_in_event=%v", ErrMissingBucket, fieldNames(m))
	}
	return src, nil
}

// resolve 按优先级查找，bucket 和 key 各自取第一个非空值，找不到就留空
func resolve(m map[string]any) Source {
	var src Source

	if rec, ok := firstRecord(m); ok {
		src = fromRecord(rec)
	}

	if detail, ok := m["detail"].(map[string]any); ok && (src.Bucket == "" || src.Key == "") {
		b := stringAt(detail, "bucket", "name")
		k := stringAt(detail, "object", "key")
		if k != "" {
			src.merge(b, decodeKey(k), OriginEventBridge)
		}
	}

	src.merge(firstString(m, bucketFields), firstString(m, keyFields), OriginDirect)

	if item, ok := m["item"].(map[string]any); ok {
		src.merge(firstString(item, bucketFields), firstString(item, keyFields), OriginItem)
	}

	if b, k, ok := splitURI(src.Key); ok {
		if src.Bucket == "" {
			src.Bucket = b
		}
		src.Key = k
		src.Origin = OriginURI
	}

	src.Key = strings.TrimLeft(src.Key, "/")
	return src
}

// merge 只填还空着的 bucket/key，Origin 跟着 key 走
func (s *Source) merge(bucket, key, origin string) {
	if s.Bucket == "" {
		s.Bucket = bucket
	}
	if s.Key == "" && key != "" {
		s.Key = key
		s.Origin = origin
	}
}

func firstRecord(m map[string]any) (map[string]any, bool) {
	records, ok := m["Records"].([]any)
	if !ok || len(records) == 0 {
		return nil, false
	}
	rec, ok := records[0].(map[string]any)
	return rec, ok
}

// fromRecord 只读 bucket 和 key 两个字段，记录里其他字段的类型不影响结果
func fromRecord(rec map[string]any) Source {
	if body, ok := rec["body"].(string); ok {
		// 消息体不是 JSON 或者没有 key 时交给外层事件
		var inner map[string]any
		if err := json.Unmarshal([]byte(body), &inner); err != nil || inner == nil {
			return Source{}
		}
		src := resolve(inner)
		if src.Key != "" {
			src.Origin = OriginSQS
		}
		return src
	}

	s3, _ := rec["s3"].(map[string]any)
	src := Source{Bucket: stringAt(s3, "bucket", "name")}
	if k := stringAt(s3, "object", "key"); k != "" {
		src.Key = decodeKey(k)
		src.Origin = OriginS3
	}
	return src
}

// decodeKey 还原 S3 通知里做过表单编码的 key（"+" 是空格），解码失败时原样返回
func decodeKey(k string) string {
	d, err := url.QueryUnescape(k)
	if err != nil {
		return k
	}
	return d
}

func splitURI(key string) (bucket, rest string, ok bool) {
	trimmed, found := strings.CutPrefix(key, "s3://")
	if !found {
		return "", "", false
	}
	bucket, rest, _ = strings.Cut(trimmed, "/")
	if bucket == "" {
		return "", "", false
	}
	return bucket, rest, true
}

func firstString(m map[string]any, names []string) string {
	for _, n := range names {
		if s, ok := m[n].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func stringAt(m map[string]any, obj, field string) string {
	inner, ok := m[obj].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := inner[field].(string)
	return strings.TrimSpace(s)
}

func fieldNames(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
