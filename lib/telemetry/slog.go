package telemetry

import (
	"io"
	"log/slog"
	"os"
)

// InitSlog installs a text handler on stderr as the slog default. verbose
// lowers the level to debug, otherwise only warnings and errors show.
func InitSlog(verbose bool) {
	slog.SetDefault(slog.New(NewHandler(os.Stderr, verbose)))
}

func NewHandler(w io.Writer, verbose bool) slog.Handler {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
}
