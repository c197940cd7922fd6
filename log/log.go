// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.
//
// Package log wraps zap with the per-module logger convention the rest of
// the tree uses (log.NewModuleLogger(log.Blockchain)), a colorized console
// encoder for interactive use, and caller-frame capture for warnings and
// above.
package log

import (
	"os"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Module identifies which subsystem a logger belongs to, so operators can
// filter or tune verbosity per component.
type Module string

const (
	Blockchain Module = "BLOCKCHAIN"
	TxPool     Module = "TXPOOL"
	P2P        Module = "P2P"
	Crypto     Module = "CRYPTO"
	Storage    Module = "STORAGE"
	Consensus  Module = "CONSENSUS"
	Worker     Module = "WORKER"
	CLI        Module = "CLI"
	Common     Module = "COMMON"
)

var base *zap.SugaredLogger

func init() {
	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "module",
		CallerKey:      "caller",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    colorLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.AddSync(colorable.NewColorable(os.Stderr)),
		zapcore.DebugLevel,
	)
	base = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
}

func colorLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	var c *color.Color
	switch level {
	case zapcore.DebugLevel:
		c = color.New(color.FgCyan)
	case zapcore.InfoLevel:
		c = color.New(color.FgGreen)
	case zapcore.WarnLevel:
		c = color.New(color.FgYellow)
	default:
		c = color.New(color.FgRed)
	}
	enc.AppendString(c.Sprint(level.CapitalString()))
}

// Logger is the per-module handle returned by NewModuleLogger.
type Logger struct {
	module Module
	sugar  *zap.SugaredLogger
}

// NewModuleLogger returns a Logger tagged with module, suitable for a
// single package-level var, e.g. var logger = log.NewModuleLogger(log.P2P).
func NewModuleLogger(module Module) *Logger {
	return &Logger{module: module, sugar: base.Named(string(module))}
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.sugar.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.sugar.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.sugar.Warnw(msg, withCaller(kv)...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.sugar.Errorw(msg, withCaller(kv)...) }

// withCaller appends the calling frame (one level above the Logger method)
// for warnings and errors, where knowing the call site matters most.
func withCaller(kv []interface{}) []interface{} {
	c := stack.Caller(2)
	return append(append([]interface{}{}, kv...), "at", fullCaller(c))
}

func fullCaller(c stack.Call) string {
	return c.String()
}
