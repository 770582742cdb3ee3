package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// dailyFileLayout names one log file per calendar day.
	dailyFileLayout = "2006-01-02"

	// lineTimeLayout prefixes every line, e.g. [2026-10-19 02:05:09.120 PM].
	lineTimeLayout = "2006-01-02 03:04:05.000 PM"
)

// DailyFile is a slog.Handler that appends records to
// SendError-<yyyy-MM-dd>.log in a directory, one line per record:
//
//	[2026-10-19 02:05:09.120 PM] :: Problem sending email. error="..."
//
// The file is opened and closed for every record, so no handle outlives a
// call to Handle.
type DailyFile struct {
	dir    string
	level  slog.Leveler
	mu     *sync.Mutex
	attrs  []slog.Attr
	groups []string
}

// NewDailyFile returns a handler writing records at or above level to dir.
func NewDailyFile(dir string, level slog.Leveler) *DailyFile {
	return &DailyFile{
		dir:   dir,
		level: level,
		mu:    &sync.Mutex{},
	}
}

// FileName returns the log file name used for records written at t.
func FileName(t time.Time) string {
	return "SendError-" + t.Format(dailyFileLayout) + ".log"
}

func (h *DailyFile) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *DailyFile) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var b strings.Builder
	b.WriteString("[")
	b.WriteString(ts.Format(lineTimeLayout))
	b.WriteString("] :: ")
	b.WriteString(r.Message)

	prefix := strings.Join(h.groups, ".")
	for _, a := range h.attrs {
		writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, prefix, a)
		return true
	})
	b.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()

	path := filepath.Join(h.dir, FileName(ts))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open error log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("write error log: %w", err)
	}
	return f.Close()
}

func (h *DailyFile) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := strings.Join(h.groups, ".")
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		newAttrs = append(newAttrs, a)
	}
	clone := *h
	clone.attrs = newAttrs
	return &clone
}

func (h *DailyFile) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newGroups := make([]string, len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups[len(h.groups)] = name
	clone := *h
	clone.groups = newGroups
	return &clone
}

// writeAttr renders a as " key=value", flattening groups with dotted keys.
func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(b, key, ga)
		}
		return
	}

	value := a.Value.String()
	if value == "" || strings.ContainsAny(value, " \t\r\n\"=") {
		value = strconv.Quote(value)
	}

	b.WriteString(" ")
	b.WriteString(key)
	b.WriteString("=")
	b.WriteString(value)
}
