// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"log/slog"
	"sync/atomic"
)

type rootHolder struct {
	l Logger
}

var root atomic.Value

func init() {
	root.Store(rootHolder{NewLogger(DiscardHandler())})
}

// SetDefault sets the default global logger.
func SetDefault(l Logger) {
	root.Store(rootHolder{l})
}

// Root returns the root logger.
func Root() Logger {
	return root.Load().(rootHolder).l
}

// WithContext returns a logger derived from the root logger with the
// given attributes attached. Packages typically call this once at init:
//
//	var logger = log.WithContext("pkg", "ledger")
//
// Records flow through whatever handler the root logger holds at emit
// time, so a later SetDefault is still honored.
func WithContext(ctx ...any) Logger {
	return &contextLogger{ctx: ctx}
}

// contextLogger defers root resolution to the call site, unlike
// Root().With which snapshots the handler.
type contextLogger struct {
	ctx []any
}

func (c *contextLogger) resolve() Logger {
	if len(c.ctx) == 0 {
		return Root()
	}
	return Root().With(c.ctx...)
}

func (c *contextLogger) With(ctx ...any) Logger {
	merged := make([]any, 0, len(c.ctx)+len(ctx))
	merged = append(merged, c.ctx...)
	merged = append(merged, ctx...)
	return &contextLogger{ctx: merged}
}

func (c *contextLogger) Handler() slog.Handler { return c.resolve().Handler() }

func (c *contextLogger) Trace(msg string, ctx ...any) { c.resolve().Trace(msg, ctx...) }
func (c *contextLogger) Debug(msg string, ctx ...any) { c.resolve().Debug(msg, ctx...) }
func (c *contextLogger) Info(msg string, ctx ...any)  { c.resolve().Info(msg, ctx...) }
func (c *contextLogger) Warn(msg string, ctx ...any)  { c.resolve().Warn(msg, ctx...) }
func (c *contextLogger) Error(msg string, ctx ...any) { c.resolve().Error(msg, ctx...) }
func (c *contextLogger) Crit(msg string, ctx ...any)  { c.resolve().Crit(msg, ctx...) }

// Trace logs at trace level via the root logger.
func Trace(msg string, ctx ...any) { Root().Trace(msg, ctx...) }

// Debug logs at debug level via the root logger.
func Debug(msg string, ctx ...any) { Root().Debug(msg, ctx...) }

// Info logs at info level via the root logger.
func Info(msg string, ctx ...any) { Root().Info(msg, ctx...) }

// Warn logs at warn level via the root logger.
func Warn(msg string, ctx ...any) { Root().Warn(msg, ctx...) }

// Error logs at error level via the root logger.
func Error(msg string, ctx ...any) { Root().Error(msg, ctx...) }

// Crit logs at crit level via the root logger.
func Crit(msg string, ctx ...any) { Root().Crit(msg, ctx...) }
