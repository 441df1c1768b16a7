package http

import (
	"context"
	"net/http"
	"time"
)

//go:generate mockgen -destination=mocks/http.go -package=mocks . IClient
type IClient interface {
	DoHTTPRequest(ctx context.Context, requestParam *RequestParam) error
}

// RequestParam 描述一次请求
// Body 可以是 nil、io.Reader、[]byte 或任意可 JSON 序列化的值
// Response 可以是 nil、接收原始响应体的 *[]byte，或用来解析 JSON 响应的指针
type RequestParam struct {
	RequestURI string
	Method     string
	Header     map[string]string
	Body       interface{}
	Response   interface{}

	Timeout time.Duration

	// 请求完成后填充
	StatusCode     int
	ResponseHeader http.Header
}
