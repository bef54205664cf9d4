// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const timeFormat = "01-02|15:04:05.000"

// DiscardHandler returns a handler that drops every record.
func DiscardHandler() slog.Handler {
	return &discardHandler{}
}

type discardHandler struct{}

func (h *discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h *discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (h *discardHandler) WithGroup(string) slog.Handler             { return h }
func (h *discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }

// TerminalHandler writes records as compact logfmt lines, optionally
// colorized by level for tty output.
type TerminalHandler struct {
	mu       sync.Mutex
	w        io.Writer
	level    slog.Leveler
	useColor bool
	attrs    []slog.Attr
	buf      []byte
}

// NewTerminalHandler creates a terminal handler emitting records at or
// above the given level.
func NewTerminalHandler(w io.Writer, level slog.Leveler, useColor bool) *TerminalHandler {
	return &TerminalHandler{
		w:        w,
		level:    level,
		useColor: useColor,
	}
}

func (h *TerminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *TerminalHandler) WithGroup(string) slog.Handler {
	// groups are not used by this codebase
	return h
}

func (h *TerminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &TerminalHandler{
		w:        h.w,
		level:    h.level,
		useColor: h.useColor,
		attrs:    merged,
	}
}

func (h *TerminalHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	buf := h.buf[:0]
	buf = append(buf, h.levelTag(r.Level)...)
	buf = append(buf, '[')
	buf = r.Time.AppendFormat(buf, timeFormat)
	buf = append(buf, ']', ' ')
	buf = append(buf, r.Message...)

	for _, attr := range h.attrs {
		buf = appendAttr(buf, attr)
	}
	r.Attrs(func(attr slog.Attr) bool {
		buf = appendAttr(buf, attr)
		return true
	})
	buf = append(buf, '\n')

	h.buf = buf[:0]
	_, err := h.w.Write(buf)
	return err
}

const (
	colorCrit  = "\x1b[35m" // magenta
	colorError = "\x1b[31m" // red
	colorWarn  = "\x1b[33m" // yellow
	colorInfo  = "\x1b[32m" // green
	colorReset = "\x1b[0m"
)

func (h *TerminalHandler) levelTag(level slog.Level) string {
	tag := LevelString(level)
	if !h.useColor {
		return tag
	}
	switch {
	case level >= LevelCrit:
		return colorCrit + tag + colorReset
	case level >= LevelError:
		return colorError + tag + colorReset
	case level >= LevelWarn:
		return colorWarn + tag + colorReset
	case level >= LevelInfo:
		return colorInfo + tag + colorReset
	default:
		return tag
	}
}

func appendAttr(buf []byte, attr slog.Attr) []byte {
	buf = append(buf, ' ')
	buf = append(buf, attr.Key...)
	buf = append(buf, '=')
	return appendValue(buf, attr.Value)
}

func appendValue(buf []byte, v slog.Value) []byte {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return appendEscaped(buf, v.String())
	case slog.KindInt64:
		return strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindBool:
		return strconv.AppendBool(buf, v.Bool())
	case slog.KindFloat64:
		return strconv.AppendFloat(buf, v.Float64(), 'g', -1, 64)
	case slog.KindDuration:
		return append(buf, v.Duration().String()...)
	case slog.KindTime:
		return v.Time().AppendFormat(buf, time.RFC3339)
	default:
		return appendEscaped(buf, fmt.Sprintf("%v", v.Any()))
	}
}

func appendEscaped(buf []byte, s string) []byte {
	if strings.ContainsAny(s, " \t\n\"=") {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, s...)
}
