// Package logger は zap を用いた構造化ロガーを提供します。
package logger

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// ErrInvalidLevel は未知のログレベルが指定された場合のエラーです。
	ErrInvalidLevel = errors.New("invalid logging level")
	// ErrInvalidEncoding は未知のエンコーディングが指定された場合のエラーです。
	ErrInvalidEncoding = errors.New("invalid log encoding format")
)

// Interface はエンジンの各コンポーネントが依存するロガーです。
// fields はキーと値を交互に並べるか、zap.Field を直接渡します。
type Interface interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
	With(fields ...any) Interface
}

// Config はロガーの設定です。
type Config struct {
	// Level は出力する最低レベルです (debug, info, warn, error)。
	Level string `mapstructure:"level"`
	// Encoding は console または json です。
	Encoding string `mapstructure:"encoding"`
	// Development は色付きレベルと短い時刻表示を有効にします。
	Development bool `mapstructure:"development"`
}

// Logger は Interface の zap 実装です。
type Logger struct {
	zapLogger *zap.Logger
}

var logLevels = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

// New は設定からロガーを作成します。出力先は標準エラーです。
func New(cfg Config) (Interface, error) {
	levelName := strings.ToLower(strings.TrimSpace(cfg.Level))
	if levelName == "" {
		levelName = "info"
	}
	level, ok := logLevels[levelName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLevel, cfg.Level)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if cfg.Development {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfig.ConsoleSeparator = " | "
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(cfg.Encoding) {
	case "", "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidEncoding, cfg.Encoding)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1)}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}
	return &Logger{zapLogger: zap.New(core, opts...)}, nil
}

// NewFromZap は既存の zap.Logger をラップします。テストでは observer のコアと組み合わせます。
func NewFromZap(z *zap.Logger) Interface {
	return &Logger{zapLogger: z}
}

// NewNop は何も出力しないロガーを返します。
func NewNop() Interface {
	return &Logger{zapLogger: zap.NewNop()}
}

func (l *Logger) Debug(msg string, fields ...any) {
	l.zapLogger.Debug(msg, toZapFields(fields)...)
}

func (l *Logger) Info(msg string, fields ...any) {
	l.zapLogger.Info(msg, toZapFields(fields)...)
}

func (l *Logger) Warn(msg string, fields ...any) {
	l.zapLogger.Warn(msg, toZapFields(fields)...)
}

func (l *Logger) Error(msg string, fields ...any) {
	l.zapLogger.Error(msg, toZapFields(fields)...)
}

// With はフィールドを付与した子ロガーを返します。
func (l *Logger) With(fields ...any) Interface {
	return &Logger{zapLogger: l.zapLogger.With(toZapFields(fields)...)}
}

// Sync はバッファされたログを書き出します。
func (l *Logger) Sync() error {
	return l.zapLogger.Sync()
}

// toZapFields はキーと値の並びを zap.Field に変換します。
// 値のないキーや文字列以外のキーは "!BADKEY" として残します。
func toZapFields(fields []any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}

	zapFields := make([]zap.Field, 0, len(fields)/2+1)
	for i := 0; i < len(fields); i++ {
		switch field := fields[i].(type) {
		case zap.Field:
			zapFields = append(zapFields, field)
		case string:
			if i+1 >= len(fields) {
				zapFields = append(zapFields, zap.String("!BADKEY", field))
				continue
			}
			zapFields = append(zapFields, zap.Any(field, fields[i+1]))
			i++
		default:
			zapFields = append(zapFields, zap.Any("!BADKEY", field))
		}
	}
	return zapFields
}
