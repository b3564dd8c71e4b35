package logbus

import (
	"sort"

	"github.com/mattn/go-colorable"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewConsoleLogger 彩色控制台输出，level 解析失败时使用 info。
func NewConsoleLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	return zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(colorable.NewColorableStdout()),
		lvl,
	))
}

// Tee mirrors every log event on the bus to logger.
func (b *Bus) Tee(logger *zap.Logger) {
	if logger == nil {
		return
	}
	b.Attach(func(m Message) {
		d, ok := m.Data.(LogData)
		if !ok {
			return
		}
		lvl, err := zapcore.ParseLevel(d.Level)
		if err != nil {
			lvl = zapcore.InfoLevel
		}
		if ce := logger.Check(lvl, d.Msg); ce != nil {
			ce.Write(zapFields(d.Fields)...)
		}
	})
}

func zapFields(fields map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}
