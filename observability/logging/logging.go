package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures Setup. LogFilePath, when set, tees structured output to a
// rotating file in addition to stdout (production deployments run behind a
// log shipper that tails the file).
type Options struct {
	Service     string
	Environment string
	LogFilePath string
}

// Setup configures the standard library logger to emit structured JSON and returns
// the underlying slog.Logger for richer logging within the service. All log lines
// include the service name and environment when provided. Production environments
// log at info level; anything else logs at debug level, per the platform's
// observability posture.
func Setup(opts Options) *slog.Logger {
	level := slog.LevelDebug
	if strings.EqualFold(strings.TrimSpace(opts.Environment), "production") {
		level = slog.LevelInfo
	}

	var writer io.Writer = os.Stdout
	if path := strings.TrimSpace(opts.LogFilePath); path != "" {
		writer = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	replace := func(groups []string, attr slog.Attr) slog.Attr {
		switch attr.Key {
		case slog.TimeKey:
			return slog.Attr{Key: "timestamp", Value: attr.Value}
		case slog.LevelKey:
			return slog.String("severity", strings.ToUpper(attr.Value.String()))
		case slog.MessageKey:
			return slog.Attr{Key: "message", Value: attr.Value}
		default:
			return MaskAttr(attr)
		}
	}

	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{
		AddSource:   false,
		Level:       level,
		ReplaceAttr: replace,
	})

	attrs := []slog.Attr{
		slog.String("service", strings.TrimSpace(opts.Service)),
	}
	if env := strings.TrimSpace(opts.Environment); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}

	withArgs := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		withArgs = append(withArgs, attr)
	}

	base := slog.New(handler).With(withArgs...)
	slog.SetDefault(base)

	// Bridge the standard library logger so packages that still call log.Printf
	// continue to land in the structured stream.
	stdBridge := slog.NewLogLogger(handler.WithAttrs(attrs), level)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}
