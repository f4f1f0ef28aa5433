package logging

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger 将 Logger 接口适配到 zerolog，输出结构化 JSON
type ZerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger 创建 JSON 输出的 Logger
func NewZerologLogger(w io.Writer, min Level) *ZerologLogger {
	zl := zerolog.New(w).Level(toZerologLevel(min)).With().Timestamp().Logger()
	return &ZerologLogger{zl: zl}
}

// NewConsoleLogger 创建人类可读的控制台输出（开发/示例用）
func NewConsoleLogger(w io.Writer, min Level) *ZerologLogger {
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	zl := zerolog.New(out).Level(toZerologLevel(min)).With().Timestamp().Logger()
	return &ZerologLogger{zl: zl}
}

func toZerologLevel(l Level) zerolog.Level {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel
	case InfoLevel:
		return zerolog.InfoLevel
	case WarnLevel:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (l *ZerologLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	emit(l.zl.Debug(), msg, fields)
}

func (l *ZerologLogger) Info(ctx context.Context, msg string, fields ...Field) {
	emit(l.zl.Info(), msg, fields)
}

func (l *ZerologLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	emit(l.zl.Warn(), msg, fields)
}

func (l *ZerologLogger) Error(ctx context.Context, msg string, fields ...Field) {
	emit(l.zl.Error(), msg, fields)
}

func (l *ZerologLogger) WithFields(fields ...Field) Logger {
	c := l.zl.With()
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			c = c.Str(f.Key, v)
		case int:
			c = c.Int(f.Key, v)
		case int64:
			c = c.Int64(f.Key, v)
		case bool:
			c = c.Bool(f.Key, v)
		case error:
			c = c.AnErr(f.Key, v)
		case fmt.Stringer:
			c = c.Str(f.Key, v.String())
		default:
			c = c.Interface(f.Key, v)
		}
	}
	return &ZerologLogger{zl: c.Logger()}
}

func emit(ev *zerolog.Event, msg string, fields []Field) {
	// 级别被过滤时 ev 为 nil
	if ev == nil {
		return
	}
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			ev = ev.Str(f.Key, v)
		case int:
			ev = ev.Int(f.Key, v)
		case int64:
			ev = ev.Int64(f.Key, v)
		case bool:
			ev = ev.Bool(f.Key, v)
		case time.Duration:
			ev = ev.Dur(f.Key, v)
		case error:
			ev = ev.AnErr(f.Key, v)
		case fmt.Stringer:
			ev = ev.Str(f.Key, v.String())
		default:
			ev = ev.Interface(f.Key, v)
		}
	}
	ev.Msg(msg)
}
