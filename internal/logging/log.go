package logging

import (
	"os"
	"strings"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the log severity used in configuration.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "INFO"
}

// ParseLevel maps DEBUG, INFO, WARN or ERROR (any case) to a Level.
func ParseLevel(s string) (Level, error) {
	for level, name := range levelNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return level, nil
		}
	}
	return LevelInfo, errors.Errorf("unknown log level %q", s)
}

// Module names.
const (
	ModuleTrainer = "[Trainer]"
	ModuleServer  = "[Server]"
	ModuleRender  = "[Render]"
	ModuleCLI     = "[CLI]"
)

// LogConfig controls where and how loggers write.
type LogConfig struct {
	ModuleLevel map[string]Level // per-module override of LogLevel

	LogPath        string // empty disables the rotating file sink
	LogLevel       Level
	RotationMaxAge int // days
	RotationTime   int // hours
	RotationSize   int // MB
	ShowLine       bool
	LogInConsole   bool
}

// DefaultLogConfig returns the development or production defaults.
func DefaultLogConfig(isDev bool) *LogConfig {
	if isDev {
		return &LogConfig{
			LogLevel:       LevelDebug,
			RotationMaxAge: 1,
			RotationTime:   1,
			RotationSize:   10,
			ShowLine:       true,
			LogInConsole:   true,
		}
	}
	return &LogConfig{
		LogPath:        "./spiral-forge.log",
		LogLevel:       LevelInfo,
		RotationMaxAge: 7,
		RotationTime:   24,
		RotationSize:   30,
		ShowLine:       true,
		LogInConsole:   false,
	}
}

// NewSugaredLogger builds a named zap logger for lc.
func NewSugaredLogger(name string, lc *LogConfig) (*zap.SugaredLogger, error) {
	level, ok := lc.ModuleLevel[name]
	if !ok {
		level = lc.LogLevel
	}
	zapLevel := zap.InfoLevel
	switch level {
	case LevelDebug:
		zapLevel = zap.DebugLevel
	case LevelWarn:
		zapLevel = zap.WarnLevel
	case LevelError:
		zapLevel = zap.ErrorLevel
	}
	enabler := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapLevel
	})

	var syncers []zapcore.WriteSyncer
	if lc.LogInConsole {
		syncers = append(syncers, zapcore.AddSync(os.Stdout))
	}
	if lc.LogPath != "" {
		writer, err := rotatelogs.New(
			lc.LogPath+".%Y%m%d%H",
			rotatelogs.WithRotationTime(time.Duration(lc.RotationTime)*time.Hour),
			rotatelogs.WithRotationSize(int64(lc.RotationSize)*1024*1024),
			rotatelogs.WithMaxAge(24*time.Hour*time.Duration(lc.RotationMaxAge)),
		)
		if err != nil {
			return nil, errors.Wrap(err, "new rotation log")
		}
		syncers = append(syncers, zapcore.AddSync(writer))
	}
	if len(syncers) == 0 {
		return zap.NewNop().Sugar(), nil
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:       "time",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "line",
		MessageKey:    "msg",
		StacktraceKey: "stacktrace",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel: func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + level.CapitalString() + "]")
		},
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
		},
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.NewMultiWriteSyncer(syncers...), enabler)

	// Logger wraps the sugared logger, so skip one frame for caller info.
	opts := []zap.Option{zap.AddCallerSkip(1)}
	if lc.ShowLine {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(core, opts...).Named(name).Sugar(), nil
}

// Logger is the logging surface used across the module.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// ModuleLogger is a swappable named logger.
type ModuleLogger struct {
	mu   sync.RWMutex
	zlog *zap.SugaredLogger
	name string
}

func (l *ModuleLogger) Debugf(format string, args ...interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.zlog.Debugf(format, args...)
}

func (l *ModuleLogger) Infof(format string, args ...interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.zlog.Infof(format, args...)
}

func (l *ModuleLogger) Warnf(format string, args ...interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.zlog.Warnf(format, args...)
}

func (l *ModuleLogger) Errorf(format string, args ...interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.zlog.Errorf(format, args...)
}

// Sync flushes buffered entries.
func (l *ModuleLogger) Sync() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.zlog.Sync()
}

func (l *ModuleLogger) set(zlog *zap.SugaredLogger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.zlog = zlog
}

var (
	loggers   = make(map[string]*ModuleLogger)
	loggersMu sync.Mutex
	globalCfg *LogConfig
)

// GetLogger returns the cached logger for name, creating it on first use.
// If the configured sink cannot be opened the logger falls back to stderr.
func GetLogger(name string) *ModuleLogger {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[name]; ok {
		return l
	}
	if globalCfg == nil {
		globalCfg = DefaultLogConfig(true)
	}
	l := &ModuleLogger{name: name, zlog: build(name, globalCfg)}
	loggers[name] = l
	return l
}

// SetLogConfig installs cfg and rebuilds every cached logger.
func SetLogConfig(cfg *LogConfig) {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	globalCfg = cfg
	for name, l := range loggers {
		l.set(build(name, cfg))
	}
}

func build(name string, cfg *LogConfig) *zap.SugaredLogger {
	zlog, err := NewSugaredLogger(name, cfg)
	if err != nil {
		fallback, _ := zap.NewDevelopment()
		fallback.Sugar().Warnf("logger %s: %v, falling back to stderr", name, err)
		return fallback.Named(name).Sugar()
	}
	return zlog
}
