package logger

import "strings"

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// levelAliases maps accepted spellings to canonical level names.
var levelAliases = map[string]string{
	"trace":   "trace",
	"debug":   "debug",
	"info":    "info",
	"warn":    "warn",
	"warning": "warn",
	"error":   "error",
}

// ValidLevel reports whether level names a known log level, case-insensitively.
// "WARNING" is accepted as an alias for "warn".
func ValidLevel(level string) bool {
	_, ok := levelAliases[strings.ToLower(strings.TrimSpace(level))]
	return ok
}

// normalizeLogLevel converts a log level string to its canonical lowercase form.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	if canonical, ok := levelAliases[strings.ToLower(strings.TrimSpace(level))]; ok {
		return canonical
	}
	return "info"
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo // Default to info if unknown
	}
}

// enabled reports whether a message at messageLevel passes the configured level.
func enabled(configured, messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(configured)
}
