package objcodec

import (
	"os"
	"reflect"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	FieldNameType   = "type"
	FieldNameMember = "member"
	FieldNameNodeID = "node_id"
)

var _globalL atomic.Value

func init() {
	_globalL.Store(newStdLogger())
}

// newStdLogger logs warnings and errors to stderr in console form.
func newStdLogger() *zap.Logger {
	enc := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stderr), zapcore.WarnLevel)
	return zap.New(core)
}

// L returns the package-global logger.
func L() *zap.Logger {
	return _globalL.Load().(*zap.Logger)
}

// ReplaceGlobal swaps the package-global logger and returns a function restoring the previous one.
func ReplaceGlobal(logger *zap.Logger) func() {
	if logger == nil {
		logger = zap.NewNop()
	}
	prev := _globalL.Swap(logger).(*zap.Logger)
	return func() { _globalL.Store(prev) }
}

// LogConfig configures a logger built by NewLogger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`
	// Format is json or console.
	Format string `mapstructure:"format"`
	// Stdout also writes to standard output when a file is configured.
	Stdout bool `mapstructure:"stdout"`
	// File is the rotating log file; empty disables file output.
	File FileLogConfig `mapstructure:"file"`
}

// FileLogConfig is the lumberjack rotation setup.
type FileLogConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max-size"` // MB
	MaxDays    int    `mapstructure:"max-days"`
	MaxBackups int    `mapstructure:"max-backups"`
}

// NewLogger builds a zap logger from cfg.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level := zapcore.WarnLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, err
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	var enc zapcore.Encoder
	if cfg.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	var outputs []zapcore.WriteSyncer
	if cfg.File.Filename != "" {
		maxSize := cfg.File.MaxSize
		if maxSize == 0 {
			maxSize = 100
		}
		outputs = append(outputs, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File.Filename,
			MaxSize:    maxSize,
			MaxAge:     cfg.File.MaxDays,
			MaxBackups: cfg.File.MaxBackups,
			LocalTime:  true,
		}))
	}
	if cfg.Stdout {
		outputs = append(outputs, zapcore.Lock(os.Stdout))
	}
	if len(outputs) == 0 {
		outputs = append(outputs, zapcore.Lock(os.Stderr))
	}

	core := zapcore.NewCore(enc, zap.CombineWriteSyncers(outputs...), level)
	return zap.New(core), nil
}

// FieldType returns a zap field naming a Go type.
func FieldType(t reflect.Type) zap.Field {
	if t == nil {
		return zap.String(FieldNameType, "<nil>")
	}
	return zap.Stringer(FieldNameType, t)
}

// FieldMember returns a zap field naming a class member.
func FieldMember(name string) zap.Field {
	return zap.String(FieldNameMember, name)
}

// FieldNodeID returns a zap field carrying a node ID.
func FieldNodeID(id int32) zap.Field {
	return zap.Int32(FieldNameNodeID, id)
}
