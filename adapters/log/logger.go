package log

import (
	"fmt"
	"os"

	"github.com/abhissng/conduit/utils/helpers"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log struct holds the zap Logger instance.
type Log struct {
	*zap.Logger
	level    zap.AtomicLevel
	closeLog func() error
}

// NewBasicLogger creates a logger with the default configuration for the environment.
func NewBasicLogger(isProd bool) *Log {
	l, err := NewLogger(NewLoggerConfig(isProd))
	if err != nil {
		return &Log{Logger: zap.NewExample(), level: zap.NewAtomicLevel()}
	}
	return l
}

// NewNopLogger discards everything, for tests and optional collaborators.
func NewNopLogger() *Log {
	return &Log{Logger: zap.NewNop(), level: zap.NewAtomicLevel()}
}

// NewLogger creates a new Log instance from cfg.
func NewLogger(cfg *LoggerConfig) (*Log, error) {
	atomicLevel := zap.NewAtomicLevelAt(getZapLevel(cfg.Level))

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:       "time",
		LevelKey:      "level",
		NameKey:       "log",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stacktrace",
		EncodeLevel: func() zapcore.LevelEncoder {
			if cfg.IsProd {
				return zapcore.CapitalLevelEncoder
			}
			return zapcore.CapitalColorLevelEncoder
		}(),
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeCaller:   helpers.TailCallerEncoder(cfg.EncoderTailLength),
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	var encoder zapcore.Encoder
	if cfg.IsProd {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), atomicLevel)}

	var closeFunc func() error
	if cfg.RotationFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   helpers.CreateLogDirectory(cfg.RotationFile),
			MaxSize:    cfg.RotationMaxSizeMB,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
		// the file always gets JSON regardless of environment
		fileEncoderConfig := encoderConfig
		fileEncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoderConfig), zapcore.AddSync(rotator), atomicLevel))
		closeFunc = rotator.Close
	}

	options := append([]zap.Option{
		zap.Fields(
			zap.String("environment", cfg.Environment),
			zap.String("service", cfg.ServiceName),
		),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	}, cfg.ZapOptions...)

	l := zap.New(zapcore.NewTee(cores...), options...)
	return &Log{Logger: l, level: atomicLevel, closeLog: closeFunc}, nil
}

// Debug logs a message at the DebugLevel.
func (l *Log) Debug(msg string, fields ...zap.Field) {
	l.Logger.Debug(msg, fields...)
}

// Info logs a message at the InfoLevel.
func (l *Log) Info(msg string, fields ...zap.Field) {
	l.Logger.Info(msg, fields...)
}

// Warn logs a message at the WarnLevel.
func (l *Log) Warn(msg string, fields ...zap.Field) {
	l.Logger.Warn(msg, fields...)
}

// Error logs a message at the ErrorLevel.
func (l *Log) Error(msg string, fields ...zap.Field) {
	l.Logger.Error(msg, fields...)
}

// Fatal logs a message at the FatalLevel and then exits the program.
func (l *Log) Fatal(msg string, fields ...zap.Field) {
	l.Logger.Fatal(msg, fields...)
}

// With creates a child Log with the specified fields.
func (l *Log) With(fields ...zap.Field) *Log {
	return &Log{Logger: l.Logger.With(fields...), level: l.level}
}

// Named creates a child Log scoped to a component.
func (l *Log) Named(name string) *Log {
	return &Log{Logger: l.Logger.Named(name), level: l.level}
}

// SetLevel changes the level of this logger and every child sharing it.
func (l *Log) SetLevel(level LogLevel) {
	l.level.SetLevel(getZapLevel(level))
}

// Sync flushes any buffered log entries and closes the rotation file.
// Applications should take care to call Sync before exiting.
func (l *Log) Sync() error {
	err := l.Logger.Sync()
	if l.closeLog != nil {
		if closeErr := l.closeLog(); closeErr != nil {
			if err != nil {
				return fmt.Errorf("zap sync error: %w; close error: %v", err, closeErr)
			}
			return closeErr
		}
	}
	return err
}
