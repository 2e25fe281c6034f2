// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package log

import (
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// DiscardLogger drops every entry
	DiscardLogger Logger = discardLogger{}
	// DefaultLogger writes Info and above to os.Stdout
	DefaultLogger Logger = NewZap(InfoLevel, os.Stdout)
)

const (
	fileBufferSize    = 256 * 1024
	fileFlushInterval = 30 * time.Second
	timeLayout        = "2006-01-02T15:04:05.000000Z0700"
)

// zapLevels maps every valid Level to its zap counterpart
var zapLevels = map[Level]zapcore.Level{
	DebugLevel:   zapcore.DebugLevel,
	InfoLevel:    zapcore.InfoLevel,
	WarningLevel: zapcore.WarnLevel,
	ErrorLevel:   zapcore.ErrorLevel,
	PanicLevel:   zapcore.PanicLevel,
	FatalLevel:   zapcore.FatalLevel,
}

// Zap implements Logger on top of zap, encoding entries as JSON.
//
// Terminal streams are written through. Files are buffered and flushed every
// thirty seconds, on every entry at Error or above, and on Flush.
type Zap struct {
	sugared *zap.SugaredLogger
	level   zap.AtomicLevel
	outputs []io.Writer
	files   *zapcore.BufferedWriteSyncer
}

// enforce compilation and linter error
var _ Logger = &Zap{}

// NewZap creates a Zap writing entries at level and above to writers, os.Stdout when none is given.
// An unknown level logs everything.
func NewZap(level Level, writers ...io.Writer) *Zap {
	if len(writers) == 0 {
		writers = []io.Writer{os.Stdout}
	}

	z := &Zap{level: zap.NewAtomicLevelAt(zapLevelOf(level)), outputs: writers}

	var streams, files []zapcore.WriteSyncer
	for _, writer := range writers {
		if file, ok := writer.(*os.File); ok && !isTerminalStream(file) {
			files = append(files, zapcore.AddSync(file))
			continue
		}
		streams = append(streams, zapcore.AddSync(writer))
	}

	encoder := zapcore.NewJSONEncoder(encoderConfig())
	cores := make([]zapcore.Core, 0, 2)
	if len(streams) > 0 {
		cores = append(cores, zapcore.NewCore(encoder, zap.CombineWriteSyncers(streams...), z.level))
	}
	if len(files) > 0 {
		z.files = &zapcore.BufferedWriteSyncer{
			WS:            zap.CombineWriteSyncers(files...),
			Size:          fileBufferSize,
			FlushInterval: fileFlushInterval,
		}
		cores = append(cores, syncOnError{zapcore.NewCore(encoder.Clone(), z.files, z.level)})
	}

	z.sugared = zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel)).Sugar()
	return z
}

// Debug starts a message with debug level
func (z *Zap) Debug(v ...any) { z.sugared.Debug(v...) }

// Debugf starts a message with debug level
func (z *Zap) Debugf(format string, v ...any) { z.sugared.Debugf(format, v...) }

// Info starts a message with info level
func (z *Zap) Info(v ...any) { z.sugared.Info(v...) }

// Infof starts a message with info level
func (z *Zap) Infof(format string, v ...any) { z.sugared.Infof(format, v...) }

// Warn starts a message with warn level
func (z *Zap) Warn(v ...any) { z.sugared.Warn(v...) }

// Warnf starts a message with warn level
func (z *Zap) Warnf(format string, v ...any) { z.sugared.Warnf(format, v...) }

// Error starts a message with error level
func (z *Zap) Error(v ...any) { z.sugared.Error(v...) }

// Errorf starts a message with error level
func (z *Zap) Errorf(format string, v ...any) { z.sugared.Errorf(format, v...) }

// Fatal logs then calls os.Exit(1)
func (z *Zap) Fatal(v ...any) { z.sugared.Fatal(v...) }

// Fatalf logs then calls os.Exit(1)
func (z *Zap) Fatalf(format string, v ...any) { z.sugared.Fatalf(format, v...) }

// Enabled reports whether entries at level are written
func (z *Zap) Enabled(level Level) bool {
	return z.level.Enabled(zapLevelOf(level))
}

// LogLevel returns the current level
func (z *Zap) LogLevel() Level {
	current := z.level.Level()
	for level, zapLevel := range zapLevels {
		if zapLevel == current {
			return level
		}
	}
	return InvalidLevel
}

// SetLevel changes the level of the logger and of every logger derived from it with With
func (z *Zap) SetLevel(level Level) {
	z.level.SetLevel(zapLevelOf(level))
}

// With returns a Logger adding the given key-value pairs to every entry.
// Pairs with a non-string key are skipped and a trailing key is logged under "_".
func (z *Zap) With(keyValues ...any) Logger {
	var fields []zap.Field
	for i := 0; i < len(keyValues); i += 2 {
		if i == len(keyValues)-1 {
			fields = append(fields, field("_", keyValues[i]))
			break
		}
		if key, ok := keyValues[i].(string); ok {
			fields = append(fields, field(key, keyValues[i+1]))
		}
	}
	if len(fields) == 0 {
		return z
	}

	derived := *z
	derived.sugared = z.sugared.Desugar().With(fields...).Sugar()
	return &derived
}

// LogOutput returns the writers given at creation
func (z *Zap) LogOutput() []io.Writer {
	return z.outputs
}

// Flush writes out the buffered file entries and stops the periodic flush.
// Entries logged afterwards reach the files on the next error entry or Flush.
func (z *Zap) Flush() error {
	if z.files == nil {
		return nil
	}
	return z.files.Stop()
}

// syncOnError flushes its buffered output after every entry at Error or above
type syncOnError struct {
	zapcore.Core
}

func (c syncOnError) With(fields []zapcore.Field) zapcore.Core {
	return syncOnError{c.Core.With(fields)}
}

func (c syncOnError) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c syncOnError) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	if err := c.Core.Write(entry, fields); err != nil {
		return err
	}
	if entry.Level >= zapcore.ErrorLevel {
		return c.Sync()
	}
	return nil
}

// field picks the typed zap field of the common shard lifecycle values
func field(key string, value any) zap.Field {
	switch v := value.(type) {
	case string:
		return zap.String(key, v)
	case int:
		return zap.Int(key, v)
	case int64:
		return zap.Int64(key, v)
	case uint64:
		return zap.Uint64(key, v)
	case bool:
		return zap.Bool(key, v)
	case time.Duration:
		return zap.Duration(key, v)
	case error:
		return zap.NamedError(key, v)
	case interface{ String() string }:
		return zap.Stringer(key, v)
	default:
		return zap.Any(key, v)
	}
}

func zapLevelOf(level Level) zapcore.Level {
	if zapLevel, ok := zapLevels[level]; ok {
		return zapLevel
	}
	return zapcore.DebugLevel
}

func isTerminalStream(file *os.File) bool {
	fd := file.Fd()
	return fd == os.Stdout.Fd() || fd == os.Stderr.Fd()
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(timeLayout),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}
