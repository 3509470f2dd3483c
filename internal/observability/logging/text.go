package logging

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vorn/vorn/internal/observability"
)

// textLogger writes one key=value line per entry, for server consoles.
type textLogger struct {
	writer   io.Writer
	closer   io.Closer
	minLevel int
	mu       sync.Mutex
}

func (l *textLogger) line(level, component, opID, head string, fields map[string]any) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s [%s]", time.Now().UTC().Format(time.RFC3339), strings.ToUpper(level), component)
	if opID != "" {
		fmt.Fprintf(&b, " op=%s", opID)
	}
	b.WriteString(" ")
	b.WriteString(head)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	b.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.writer, b.String())
}

func (l *textLogger) log(level, component, msg string, fields ...any) {
	if levelPriority(level) < l.minLevel {
		return
	}
	l.line(level, component, "", msg, pairs(fields))
}

func (l *textLogger) Event(ctx context.Context, event string, fields map[string]any) {
	if levelPriority(LevelInfo) < l.minLevel {
		return
	}
	l.line(LevelInfo, observability.Component(ctx), observability.OpID(ctx), EventPrefix+event, sanitizeMap(fields))
}

func (l *textLogger) Debug(component, msg string, fields ...any) {
	l.log(LevelDebug, component, msg, fields...)
}

func (l *textLogger) Info(component, msg string, fields ...any) {
	l.log(LevelInfo, component, msg, fields...)
}

func (l *textLogger) Warn(component, msg string, fields ...any) {
	l.log(LevelWarn, component, msg, fields...)
}

func (l *textLogger) Error(component, msg string, fields ...any) {
	l.log(LevelError, component, msg, fields...)
}

func (l *textLogger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
