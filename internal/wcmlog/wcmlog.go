// Package wcmlog provides the logging conventions shared by every WCM
// package: a single sugared zap logger per process, plus throttled
// variants for conditions that would otherwise flood the log (repeated
// scan-result misses, repeated sleep-confirm retries).
package wcmlog

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	atomicLevel = zap.NewAtomicLevel()
	daemonName  string
	tloggers    = make(map[string]*Throttled)
)

func zapTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006/01/02 15:04:05.000"))
}

// zapCallerEncoder tags every log line with the daemon name and the file
// that produced it, mirroring the convention used across the rest of this
// codebase's daemons.
func zapCallerEncoder(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
	dir, fileName := filepath.Split(caller.File)
	dir = filepath.Base(dir)
	if dir != daemonName {
		fileName = filepath.Join(dir, fileName)
	}
	enc.AppendString(fmt.Sprintf("%s:%s:%d", daemonName, fileName, caller.Line))
}

// New returns a sugared zap logger. Each logged line carries a timestamp,
// level, and enough context to find the source.
func New(name string) *zap.SugaredLogger {
	daemonName = name

	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.Level = atomicLevel
	zapConfig.DisableStacktrace = true
	zapConfig.EncoderConfig.EncodeTime = zapTimeEncoder
	zapConfig.EncoderConfig.EncodeCaller = zapCallerEncoder

	logger, err := zapConfig.Build()
	if err != nil {
		panic(fmt.Sprintf("can't build logger: %v", err))
	}

	return logger.Sugar()
}

// SetLevel adjusts the log level of every logger returned by New, at
// runtime.
func SetLevel(level string) error {
	var newLevel zapcore.Level
	if err := (&newLevel).UnmarshalText([]byte(level)); err != nil {
		return err
	}
	atomicLevel.SetLevel(newLevel)
	return nil
}

// Throttled wraps a sugared logger to rate-limit a single noisy call site.
type Throttled struct {
	slog      *zap.SugaredLogger
	next      time.Time
	baseDelay time.Duration
	maxDelay  time.Duration
	curDelay  time.Duration
}

func (t *Throttled) ready() bool {
	now := time.Now()
	if now.After(t.next) {
		t.next = now.Add(t.curDelay)
		t.curDelay *= 2
		if t.curDelay > t.maxDelay {
			t.curDelay = t.maxDelay
		}
		return true
	}
	return false
}

// Warnf issues a throttled WARN message.
func (t *Throttled) Warnf(format string, a ...interface{}) {
	if t.ready() {
		t.slog.Warnf(format, a...)
	}
}

// Debugf issues a throttled DEBUG message.
func (t *Throttled) Debugf(format string, a ...interface{}) {
	if t.ready() {
		t.slog.Debugf(format, a...)
	}
}

// Clear resets a throttled logger's backoff to its base delay.
func (t *Throttled) Clear() {
	t.next = time.Now()
	t.curDelay = t.baseDelay
}

// GetThrottled returns a Throttled logger unique to the call site, creating
// it on first use.
func GetThrottled(slog *zap.SugaredLogger, start, max time.Duration) *Throttled {
	var key string
	if _, file, line, ok := runtime.Caller(1); ok {
		key = file + ":" + strconv.Itoa(line)
	} else {
		key = "unknown"
	}

	t, ok := tloggers[key]
	if !ok {
		t = &Throttled{
			slog:      slog.Desugar().WithOptions(zap.AddCallerSkip(1)).Sugar(),
			next:      time.Now(),
			baseDelay: start,
			curDelay:  start,
			maxDelay:  max,
		}
		tloggers[key] = t
	}
	return t
}
