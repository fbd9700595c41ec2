package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	currentLevel  atomic.Value // stores slog.Level
	currentFormat atomic.Value // stores string
	outputMu      sync.Mutex
	output        io.Writer = os.Stderr
)

// LevelTrace is a custom trace level below debug
const LevelTrace = slog.Level(-8)

func init() {
	level, err := parseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = slog.LevelInfo
	}

	currentLevel.Store(level)
	currentFormat.Store(strings.ToUpper(os.Getenv("LOG_FORMAT")))
	updateHandler()
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(s) {
	case "ERROR":
		return slog.LevelError, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	case "TRACE":
		return LevelTrace, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", s)
	}
}

func parseFormat(s string) (string, error) {
	switch strings.ToUpper(s) {
	case "", "TEXT":
		return "TEXT", nil
	case "JSON":
		return "JSON", nil
	default:
		return "", fmt.Errorf("invalid log format: %s", s)
	}
}

// replaceAttr renders the trace level by name and normalizes timestamps.
func replaceAttr(timeKey string, timeFormat func(time.Time) string) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.TimeKey {
			return slog.Attr{
				Key:   timeKey,
				Value: slog.StringValue(timeFormat(a.Value.Time())),
			}
		}
		if a.Key == slog.LevelKey && a.Value.Any().(slog.Level) == LevelTrace {
			return slog.Attr{
				Key:   slog.LevelKey,
				Value: slog.StringValue("TRACE"),
			}
		}
		return a
	}
}

// updateHandler recreates the handler with the current level and format
func updateHandler() {
	level := currentLevel.Load().(slog.Level)
	format, _ := currentFormat.Load().(string)

	outputMu.Lock()
	w := output
	outputMu.Unlock()

	var handler slog.Handler
	if format == "JSON" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: replaceAttr("timestamp", func(t time.Time) string {
				return t.UTC().Format(time.RFC3339Nano)
			}),
		})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: replaceAttr(slog.TimeKey, func(t time.Time) string {
				return t.Format("2006-01-02 15:04:05.000-07:00")
			}),
		})
	}

	slog.SetDefault(slog.New(handler))
}

// Configure applies the level and format from the loaded configuration.
// Both values are validated before anything changes.
func Configure(level, format string) error {
	newLevel, err := parseLevel(level)
	if err != nil {
		return err
	}
	newFormat, err := parseFormat(format)
	if err != nil {
		return err
	}

	currentLevel.Store(newLevel)
	currentFormat.Store(newFormat)
	updateHandler()
	return nil
}

// SetOutput redirects log output. Tests use it to capture records.
func SetOutput(w io.Writer) {
	outputMu.Lock()
	output = w
	outputMu.Unlock()
	updateHandler()
}

// SetLogLevel atomically updates the log level at runtime
func SetLogLevel(level string) error {
	newLevel, err := parseLevel(level)
	if err != nil {
		return err
	}

	currentLevel.Store(newLevel)
	updateHandler()

	LogInfoWithFields("logging", "Log level changed", map[string]any{
		"new_level": level,
	})

	return nil
}

// GetLogLevel returns the current log level as a string
func GetLogLevel() string {
	level := currentLevel.Load().(slog.Level)

	switch level {
	case slog.LevelError:
		return "error"
	case slog.LevelWarn:
		return "warn"
	case slog.LevelInfo:
		return "info"
	case slog.LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	default:
		return "unknown"
	}
}

func LogError(format string, args ...any) {
	slog.Default().Error(fmt.Sprintf(format, args...))
}

func buildArgs(component string, fields map[string]any) []any {
	args := make([]any, 0, len(fields)*2+2)
	args = append(args, "component", component)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

func LogInfoWithFields(component, message string, fields map[string]any) {
	slog.Default().Info(message, buildArgs(component, fields)...)
}

func LogDebugWithFields(component, message string, fields map[string]any) {
	slog.Default().Debug(message, buildArgs(component, fields)...)
}

func LogErrorWithFields(component, message string, fields map[string]any) {
	slog.Default().Error(message, buildArgs(component, fields)...)
}

func LogWarnWithFields(component, message string, fields map[string]any) {
	slog.Default().Warn(message, buildArgs(component, fields)...)
}

func LogTraceWithFields(component, message string, fields map[string]any) {
	if currentLevel.Load().(slog.Level) <= LevelTrace {
		slog.Default().Log(context.Background(), LevelTrace, message, buildArgs(component, fields)...)
	}
}
