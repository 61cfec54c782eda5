package serviceutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Returns a context that will live until Ctrl+C is pressed, a second Ctrl+C
// falls through to the default handler and kills the process.
func SignalContext(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigs:
			slog.Warn("interrupted, finishing current step")
		case <-ctx.Done():
		}
		signal.Stop(sigs)
		cancel()
	}()

	return ctx
}

var exit = os.Exit

// Fatal logs the error, closes the given closers (log files last in line)
// and exits with status 1.
func Fatal(message string, err error, closers ...io.Closer) {
	slog.Error(message, "err", err.Error())
	for _, c := range closers {
		if c != nil {
			c.Close()
		}
	}
	exit(1)
}
