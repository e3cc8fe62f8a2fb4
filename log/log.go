package log

import (
	"io"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"moul.io/zapfilter"
)

type Level = zapcore.Level

const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
	PanicLevel = zapcore.PanicLevel
	FatalLevel = zapcore.FatalLevel
)

type (
	Field  = zap.Field
	Option = zap.Option
)

var (
	Skip          = zap.Skip
	Binary        = zap.Binary
	Bool          = zap.Bool
	ByteString    = zap.ByteString
	Float64       = zap.Float64
	Int           = zap.Int
	Int32         = zap.Int32
	Int64         = zap.Int64
	Uint32        = zap.Uint32
	Uint64        = zap.Uint64
	String        = zap.String
	Strings       = zap.Strings
	Stringer      = zap.Stringer
	Time          = zap.Time
	Duration      = zap.Duration
	Any           = zap.Any
	ErrorField    = zap.Error
	Namespace     = zap.Namespace
	WithCaller    = zap.WithCaller
	AddCallerSkip = zap.AddCallerSkip
	AddStacktrace = zap.AddStacktrace
)

type Logger struct {
	l     *zap.Logger
	level Level
}

var std atomic.Pointer[Logger]

func init() {
	std.Store(New(os.Stderr, InfoLevel))
}

// ParseLevel accepts the zap level names (debug, info, warn, error, ...).
func ParseLevel(text string) (Level, error) {
	return zapcore.ParseLevel(text)
}

// New creates a json logger writing to w.
func New(w io.Writer, level Level, opts ...Option) *Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	)
	return newLogger(core, level, opts...)
}

// DevLogger creates a colored console logger writing to w.
func DevLogger(w io.Writer, level Level, opts ...Option) *Logger {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	)
	return newLogger(core, level, opts...)
}

// the base core accepts everything, filtering is done by the zapfilter core
// which combines the global level with the per-namespace rules.
func newLogger(core zapcore.Core, level Level, opts ...Option) *Logger {
	filtered := zapfilter.NewFilteringCore(core, func(e zapcore.Entry, f []zapcore.Field) bool {
		if e.Level >= level {
			return true
		}
		return activeRules().Allowed(e, f)
	})
	return &Logger{l: zap.New(filtered, opts...), level: level}
}

// Default returns the process wide logger
func Default() *Logger {
	return std.Load()
}

// ResetDefault replaces the logger returned by Default and used by the package
// level functions.
func ResetDefault(l *Logger) {
	std.Store(l)
}

func (l *Logger) Named(name string) *Logger {
	return &Logger{l: l.l.Named(name), level: l.level}
}

func (l *Logger) WithOptions(opts ...Option) *Logger {
	return &Logger{l: l.l.WithOptions(opts...), level: l.level}
}

func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{l: l.l.With(fields...), level: l.level}
}

func (l *Logger) Level() Level {
	return l.level
}

func (l *Logger) Debug(msg string, fields ...Field) {
	l.l.Debug(msg, fields...)
}

func (l *Logger) Info(msg string, fields ...Field) {
	l.l.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.l.Warn(msg, fields...)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.l.Error(msg, fields...)
}

func (l *Logger) Fatal(msg string, fields ...Field) {
	l.l.Fatal(msg, fields...)
}

// Check returns nil if an entry at level would be dropped.
func (l *Logger) Check(level Level, msg string) *zapcore.CheckedEntry {
	return l.l.Check(level, msg)
}

func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.l.Sugar()
}

func (l *Logger) Sync() error {
	return l.l.Sync()
}

func Debug(msg string, fields ...Field) { Default().l.Debug(msg, fields...) }
func Info(msg string, fields ...Field)  { Default().l.Info(msg, fields...) }
func Warn(msg string, fields ...Field)  { Default().l.Warn(msg, fields...) }
func Error(msg string, fields ...Field) { Default().l.Error(msg, fields...) }
func Fatal(msg string, fields ...Field) { Default().l.Fatal(msg, fields...) }

func Sync() error {
	return Default().Sync()
}
