package logger

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	LevelCritical = slog.Level(12)
	LevelPanic    = slog.Level(14)
	LevelFatal    = slog.Level(16)
)

// customLevels are the levels above ERROR, highest first.
var customLevels = []struct {
	level slog.Level
	name  string
}{
	{LevelFatal, "FATAL"},
	{LevelPanic, "PANIC"},
	{LevelCritical, "CRITICAL"},
}

// ParseLevel parses a level name, including CRITICAL, PANIC and FATAL. Names are case-insensitive.
func ParseLevel(s string) (slog.Level, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for _, l := range customLevels {
		if name == l.name {
			return l.level, nil
		}
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, errors.Wrapf(err, "invalid log level %q", s)
	}
	return level, nil
}

// levelName names custom levels the way slog names the built-in ones, e.g. CRITICAL+1.
func levelName(l slog.Level) (string, bool) {
	for _, c := range customLevels {
		if l < c.level {
			continue
		}
		if l == c.level {
			return c.name, true
		}
		return fmt.Sprintf("%s%+d", c.name, l-c.level), true
	}
	return "", false
}

func levelAttrReplacer(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) != 0 || attr.Key != LevelKey {
		return attr
	}
	if l, ok := attr.Value.Any().(slog.Level); ok {
		if name, ok := levelName(l); ok {
			return slog.String(attr.Key, name)
		}
	}
	return attr
}
