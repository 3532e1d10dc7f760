package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls the process-wide logrus setup.
type Options struct {
	Level  string
	Format string // "text" or "json"
	File   string // optional rotating file, teed with stdout
}

// Setup configures the standard logrus logger. The returned closer flushes the
// rotating file, if any.
func Setup(opts Options) (io.Closer, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}
	log.SetLevel(level)

	switch opts.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	if opts.File == "" {
		log.SetOutput(os.Stdout)
		return io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log dir: %w", err)
	}
	rotating := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotating))
	log.WithField("path", opts.File).Info("File logging enabled")
	return rotating, nil
}
