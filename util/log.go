package util

import (
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

// NewLogger 创建进程日志，format 为 "json" 或 "text"
// level 为 debug/info/warn/error，无法识别时按 info 处理
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	if strings.EqualFold(format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Trace 记录所在函数的耗时
//
//	defer util.Trace("fetch")()
func Trace(msg string, args ...any) func() {
	return TraceTo(slog.Default(), msg, args...)
}

func TraceTo(logger *slog.Logger, msg string, args ...any) func() {
	start := time.Now()
	return func() {
		logger.Debug(msg, append(args, "elapsed", time.Since(start).String())...)
	}
}

// Truncate 截断到最多 n 字节用于日志，不会切开多字节字符
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n < 0 {
		n = 0
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
