// Package logger 提供进程级日志门面：slog 文本输出 + printf 风格接口。
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var (
	level slog.LevelVar
	root  atomic.Pointer[slog.Logger]
)

func init() {
	level.Set(slog.LevelInfo)
	root.Store(textLogger(os.Stdout))
}

func textLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &level}))
}

// SetOutput 重定向日志输出（如 MultiWriter 到 stdout + 文件）。
func SetOutput(w io.Writer) {
	root.Store(textLogger(w))
}

// SetLevel 按名称切换级别，未知名称回落到 info。
func SetLevel(name string) {
	level.Set(parseLevel(name))
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

func Debugf(format string, v ...any) {
	root.Load().Debug(fmt.Sprintf(format, v...))
}

func Infof(format string, v ...any) {
	root.Load().Info(fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...any) {
	root.Load().Warn(fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...any) {
	root.Load().Error(fmt.Sprintf(format, v...))
}
