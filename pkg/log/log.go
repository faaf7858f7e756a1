package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

const (
	FormatAuto    = "auto"
	FormatConsole = "console"
	FormatJSON    = "json"
)

// debugV is the logr verbosity slog debug records arrive with.
const debugV = 4

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerologr.NameFieldName = "logger"
	zerologr.NameSeparator = "/"
	zerologr.SetMaxV(debugV)
}

// New returns a zerolog logger writing JSON lines to out. Records below level
// are dropped.
func New(out io.Writer, level slog.Level) *zerolog.Logger {
	logger := zerolog.New(out).With().Timestamp().Logger().Level(zerologLevel(level))
	return &logger
}

// NewSlog builds the slog logger of the CLI. FormatConsole uses tint,
// FormatJSON routes through zerolog, FormatAuto picks JSON in Kubernetes and
// console otherwise.
func NewSlog(format string, level slog.Level, out io.Writer) (*slog.Logger, error) {
	if format == FormatAuto {
		format = FormatConsole
		if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
			format = FormatJSON
		}
	}
	switch format {
	case FormatConsole:
		return slog.New(tint.NewHandler(out, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			NoColor:    !isTerminal(out),
		})), nil
	case FormatJSON:
		return slog.New(logr.ToSlogHandler(zerologr.New(New(out, level)))), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func zerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level < slog.LevelInfo:
		return zerolog.Level(1 - debugV)
	case level < slog.LevelWarn:
		return zerolog.InfoLevel
	case level < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
