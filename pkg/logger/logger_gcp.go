package logger

import (
	"io"
	"log/slog"
)

// NewGCPHandler returns a JSON handler writing to w with the keys and severities of Cloud Logging.
func NewGCPHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     opts.Level,
		ReplaceAttr: attrReplacerChain(
			GCPAttrReplacer,
			opts.ReplaceAttr,
		),
	})
}

var gcpKeys = map[string]string{
	MessageKey: "message",
	SourceKey:  "logging.googleapis.com/sourceLocation",
	LevelKey:   "severity",
}

// GCPAttrReplacer replaces the default attribute keys with the GCP logging attribute keys.
func GCPAttrReplacer(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) != 0 {
		return attr
	}
	if attr.Key == LevelKey {
		if lvl, ok := attr.Value.Any().(slog.Level); ok {
			attr.Value = slog.StringValue(gcpSeverity(lvl))
		}
	}
	if key, ok := gcpKeys[attr.Key]; ok {
		attr.Key = key
	}
	return attr
}

// https://cloud.google.com/logging/docs/reference/v2/rest/v2/LogEntry#logseverity
var gcpSeverities = []struct {
	below    slog.Level
	severity string
}{
	{slog.LevelInfo, "DEBUG"},
	{slog.LevelWarn, "INFO"},
	{slog.LevelError, "WARNING"},
	{LevelCritical, "ERROR"},
	{LevelPanic, "CRITICAL"},
	{LevelFatal, "ALERT"},
}

func gcpSeverity(lvl slog.Level) string {
	for _, s := range gcpSeverities {
		if lvl < s.below {
			return s.severity
		}
	}
	return "EMERGENCY"
}
