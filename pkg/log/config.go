package log

import (
	"fmt"
	"log/slog"
	"strings"
)

// Config declares how ApplyConfig builds a logger.
type Config struct {
	Level  string `json:"level"`  // debug|info|warn|error
	Format string `json:"format"` // text|json
	// Outputs lists "console", "null" or "file:<path>". Empty means console.
	Outputs []string `json:"outputs"`
	// Redact lists field keys whose values are replaced.
	Redact []string `json:"redact"`
	// SampleInitial/SampleThereafter enable per-message sampling when
	// SampleThereafter > 0.
	SampleInitial    int `json:"sampleInitial"`
	SampleThereafter int `json:"sampleThereafter"`
}

// ParseLevel converts a level name into a Level.
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
		return InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// ApplyConfig builds a Logger from cfg.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		formatter = &TextFormatter{}
	case "json":
		formatter = &JSONFormatter{}
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	opts := []LoggerOption{WithLevel(level), WithFormatter(formatter)}
	for _, o := range cfg.Outputs {
		switch {
		case o == "console":
			opts = append(opts, WithOutput(NewConsoleOutput()))
		case o == "null":
			opts = append(opts, WithOutput(&NullOutput{}))
		case strings.HasPrefix(o, "file:"):
			fo, err := NewFileOutput(strings.TrimPrefix(o, "file:"))
			if err != nil {
				return nil, fmt.Errorf("log output %q: %w", o, err)
			}
			opts = append(opts, WithOutput(fo))
		default:
			return nil, fmt.Errorf("unknown log output %q", o)
		}
	}

	l := NewLogger(opts...).(*BaseLogger)
	h := l.handler.withRedactions(cfg.Redact).withSampler(cfg.SampleInitial, cfg.SampleThereafter)
	if h != l.handler {
		l.handler = h
		l.slogLogger = slog.New(h)
	}
	return l, nil
}
