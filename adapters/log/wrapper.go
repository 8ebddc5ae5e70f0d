package log

import (
	"time"

	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/utils/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity level of a log message.
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
	FatalLevel LogLevel = "fatal"
)

// Helper functions to create fields without directly using zap

func String(key string, value string) types.Field {
	return zap.String(key, value)
}

func Int(key string, value int) types.Field {
	return zap.Int(key, value)
}

func Int64(key string, value int64) types.Field {
	return zap.Int64(key, value)
}

func Uint64(key string, value uint64) types.Field {
	return zap.Uint64(key, value)
}

func Bool(key string, value bool) types.Field {
	return zap.Bool(key, value)
}

func Time(key string, value time.Time) types.Field {
	return zap.Time(key, value)
}

func Duration(key string, value time.Duration) types.Field {
	return zap.Duration(key, value)
}

func Any(key string, value any) types.Field {
	return zap.Any(key, value)
}

func Strings(key string, value []string) types.Field {
	return zap.Strings(key, value)
}

// Err creates a single types.Field (error) for a given error.
func Err(err error) types.Field {
	return zap.Error(err)
}

type errorArray []error

func (a errorArray) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, e := range a {
		if e == nil {
			enc.AppendString("<nil>")
		} else {
			enc.AppendString(e.Error())
		}
	}
	return nil
}

type blameObject struct {
	b blame.Blame
}

func (o blameObject) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("code", o.b.FetchErrCode().String())
	enc.AddString("component", o.b.FetchComponent().String())
	enc.AddString("message", o.b.FetchMessage())
	if src := o.b.FetchSource(); src != "" {
		enc.AddString("source", src)
	}
	if causes := o.b.FetchCauses(); len(causes) > 0 {
		return enc.AddArray("causes", errorArray(causes))
	}
	return nil
}

// Blame logs the code, component, message and causes of b.
func Blame(b blame.Blame) zap.Field {
	if b == nil {
		return zap.Skip()
	}
	return zap.Object("blame", blameObject{b: b})
}

// GetLogLevelForEnvironment returns the appropriate log level based on environment
func GetLogLevelForEnvironment(isProd bool) LogLevel {
	if isProd {
		return InfoLevel
	}
	return DebugLevel
}

func getZapLevel(level LogLevel) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// LoggerConfig configures NewLogger.
type LoggerConfig struct {
	IsProd            bool
	Level             LogLevel
	ServiceName       string
	Environment       string
	EncoderTailLength int
	RotationFile      string
	RotationMaxSizeMB int
	ZapOptions        []zap.Option
}

// LoggerOption mutates a LoggerConfig.
type LoggerOption func(*LoggerConfig)

// NewLoggerConfig returns environment defaults with opts applied.
func NewLoggerConfig(isProd bool, opts ...LoggerOption) *LoggerConfig {
	cfg := &LoggerConfig{
		IsProd:            isProd,
		Level:             GetLogLevelForEnvironment(isProd),
		EncoderTailLength: 3,
		RotationMaxSizeMB: 50,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func WithZapOptions(opts ...zap.Option) LoggerOption {
	return func(cfg *LoggerConfig) {
		cfg.ZapOptions = append(cfg.ZapOptions, opts...)
	}
}

func WithServiceName(name string) LoggerOption {
	return func(cfg *LoggerConfig) {
		cfg.ServiceName = name
	}
}

func WithEnvironment(env string) LoggerOption {
	return func(cfg *LoggerConfig) {
		cfg.Environment = env
	}
}

// WithLevel overrides the environment default level. Empty keeps the default.
func WithLevel(level LogLevel) LoggerOption {
	return func(cfg *LoggerConfig) {
		if level != "" {
			cfg.Level = level
		}
	}
}

func WithEncoderTailLength(length int) LoggerOption {
	return func(cfg *LoggerConfig) {
		cfg.EncoderTailLength = length
	}
}

// WithRotation additionally writes JSON logs to file, rotated by lumberjack.
func WithRotation(file string, maxSizeMB int) LoggerOption {
	return func(cfg *LoggerConfig) {
		cfg.RotationFile = file
		if maxSizeMB > 0 {
			cfg.RotationMaxSizeMB = maxSizeMB
		}
	}
}
