package logger

import "strings"

var allowedLevels = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

func normalizeLevel(level string) string {
	if level == "" {
		return "INFO"
	}
	if mapped, ok := allowedLevels[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"state",
	"next_state",
	"token",
	"method",
	"cursor",
	"batch",
	"duration_ms",
	"processed",
	"failed",
	"duplicates",
	"sessions",
	"workers",
	"mode",
	"timeout_seconds",
	"driver",
	"db",
	"host",
	"port",
	"field",
	"err",
	"err_kind",
	"attempts",
	"backoff_ms",
}
