// internal/logging/logging.go
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Options configure the process logger.
type Options struct {
	Level  string // debug | info | warn | error
	Format string // text | json | logfmt
	Prefix string
	Output io.Writer
}

// New builds a structured logger.
func New(o Options) (*log.Logger, error) {
	out := o.Output
	if out == nil {
		out = os.Stderr
	}

	lvl := log.InfoLevel
	if o.Level != "" {
		l, err := log.ParseLevel(strings.ToLower(o.Level))
		if err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		lvl = l
	}

	var f log.Formatter
	switch strings.ToLower(o.Format) {
	case "", "text":
		f = log.TextFormatter
	case "json":
		f = log.JSONFormatter
	case "logfmt":
		f = log.LogfmtFormatter
	default:
		return nil, fmt.Errorf("logging: unknown format %q", o.Format)
	}

	return log.NewWithOptions(out, log.Options{
		Level:           lvl,
		Prefix:          o.Prefix,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       f,
	}), nil
}
