package log

import (
	"fmt"
	"strings"
)

// ParseLevel parses a level name (case-insensitive) into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("log: unknown level %q", s)
	}
}

// Config is a declarative logger configuration, the shape env/config files
// populate this service's logging from.
type Config struct {
	// Level is one of debug/info/warn/error/fatal.
	Level string
	// Format is "json" or "text".
	Format string
	// FilePath, if set, adds a file output alongside the console output.
	FilePath string
}

// ApplyConfig builds a Logger from cfg.
func ApplyConfig(cfg Config) (Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "text":
		formatter = &TextFormatter{}
	case "json", "":
		formatter = &JSONFormatter{}
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}

	opts := []LoggerOption{WithLevel(level), WithFormatter(formatter), WithOutput(NewConsoleOutput())}
	if cfg.FilePath != "" {
		fileOut, err := NewFileOutput(cfg.FilePath)
		if err != nil {
			return nil, fmt.Errorf("log: open file output: %w", err)
		}
		opts = append(opts, WithOutput(fileOut))
	}
	return NewLogger(opts...), nil
}
