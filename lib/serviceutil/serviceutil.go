package serviceutil

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Returns a context that will live until Ctrl+C is pressed
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// Exit logs the error, unless message is empty, and terminates the process
// with the given code.
func Exit(code int, message string, err error) {
	switch {
	case message == "":
	case err != nil:
		slog.Error(message, "err", err.Error())
	default:
		slog.Error(message)
	}
	os.Exit(code)
}
