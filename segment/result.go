package segment

import "fmt"

// Result 同一个位置用下游可能读取的各个字段名都返回一遍
// bucket/inputBucket、outputKey/processedKey、segmentation.*
type Result struct {
	OK           bool   `json:"ok"`
	Bucket       string `json:"bucket"`
	InputBucket  string `json:"inputBucket"`
	InputKey     string `json:"inputKey"`
	OutputBucket string `json:"outputBucket,omitempty"`
	OutputKey    string `json:"outputKey,omitempty"`
	ProcessedKey string `json:"processedKey,omitempty"`
	ContentType  string `json:"contentType,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	Bytes        int    `json:"bytes,omitempty"`
	HasAlpha     bool   `json:"hasAlpha"`
	Skipped      bool   `json:"skipped"`

	Segmentation *Segmentation `json:"segmentation,omitempty"`
}

type Segmentation struct {
	Bucket       string `json:"bucket"`
	InputKey     string `json:"inputKey"`
	ProcessedKey string `json:"processedKey"`
}

// StageError 记录失败的处理步骤
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

const (
	StageNormalize = "normalize"
	StageFetch     = "fetch"
	StageDecode    = "decode"
	StageResize    = "resize"
	StageRemove    = "remove"
	StageTrim      = "trim"
	StageEnhance   = "enhance"
	StageEncode    = "encode"
	StageStore     = "store"
)
