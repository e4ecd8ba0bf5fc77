package reporter

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	timeLayout = "2006-01-02 15:04:05"

	logMaxSizeMB  = 500
	logMaxAgeDays = 30
)

// LogConfig controls the zap logger built by NewLog.
type LogConfig struct {
	Debug bool
	// Quiet drops Info events from the console.
	Quiet bool
	// Color enables colored levels on the console.
	Color bool
	// File is an optional rotated JSON log file.
	File string
}

// NewLog builds a console logger on stderr, teed into File when set.
func NewLog(cfg LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	switch {
	case cfg.Debug:
		level = zapcore.DebugLevel
	case cfg.Quiet:
		level = zapcore.WarnLevel
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder(cfg.Color), zapcore.Lock(os.Stderr), level),
	}
	if cfg.File != "" {
		w, err := logWriter(cfg.File)
		if err != nil {
			return nil, err
		}
		fileLevel := zapcore.InfoLevel
		if cfg.Debug {
			fileLevel = zapcore.DebugLevel
		}
		cores = append(cores, zapcore.NewCore(fileEncoder(), w, fileLevel))
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}

func consoleEncoder(color bool) zapcore.Encoder {
	encodeLevel := CustomLevelEncoder
	if color {
		encodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:  "message",
		TimeKey:     "time",
		LevelKey:    "level",
		EncodeLevel: encodeLevel,
		EncodeTime:  SyslogTimeEncoder,
	})
}

func fileEncoder() zapcore.Encoder {
	return zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		MessageKey:  "message",
		TimeKey:     "time",
		LevelKey:    "level",
		EncodeLevel: zapcore.CapitalLevelEncoder,
		EncodeTime:  SyslogTimeEncoder,
	})
}

func SyslogTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format(timeLayout))
}

func CustomLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + level.CapitalString() + "]")
}

func logWriter(path string) (zapcore.WriteSyncer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename: path,
		MaxSize:  logMaxSizeMB,
		MaxAge:   logMaxAgeDays,
	}), nil
}

// Logger renders events through zap.
type Logger struct {
	log       *zap.Logger
	verbosity int
}

// NewLogger returns a Logger. Info2 events are only emitted when verbosity
// is at least 2.
func NewLogger(log *zap.Logger, verbosity int) *Logger {
	return &Logger{log: log, verbosity: verbosity}
}

func (l *Logger) Info(msg string) { l.log.Info(msg) }

func (l *Logger) Info2(msg string) {
	if l.verbosity >= 2 {
		l.log.Info(msg)
	}
}

func (l *Logger) Warn(msg string)  { l.log.Warn(msg) }
func (l *Logger) Debug(msg string) { l.log.Debug(msg) }
func (l *Logger) Error(msg string) { l.log.Error(msg) }
