package httpserver

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/buzzfeed/authdispatch/internal/pkg/logging"
)

// overridden by tests
var shutdownSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
}

// Timeouts groups the server timeouts set from configuration.
type Timeouts struct {
	Read     time.Duration
	Write    time.Duration
	Shutdown time.Duration
}

// New returns a server for handler on addr with the read and write timeouts applied.
func New(addr string, handler http.Handler, timeouts Timeouts) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  timeouts.Read,
		WriteTimeout: timeouts.Write,
	}
}

// Run serves srv until ctx is done or the process receives SIGINT or SIGTERM,
// then shuts down gracefully, letting in-flight auth redirects finish within
// shutdownTimeout.
//
// Returns an error if the server cannot listen or the shutdown timeout elapses
// before in-flight requests finish.
func Run(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, logger *logging.LogEntry) error {
	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return runWithListener(ctx, ln, srv, shutdownTimeout, logger)
}

func runWithListener(ctx context.Context, ln net.Listener, srv *http.Server, shutdownTimeout time.Duration, logger *logging.LogEntry) error {
	var (
		sigCh       = make(chan os.Signal, 1)
		exitCh      = make(chan struct{})
		shutdownErr error
	)

	signal.Notify(sigCh, shutdownSignals...)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("shutdown started by signal: ", sig)
		case <-ctx.Done():
			logger.Info("shutdown started by context: ", ctx.Err())
		}
		signal.Stop(sigCh)

		logger.Info("waiting for server to shut down in ", shutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		shutdownErr = srv.Shutdown(shutdownCtx)
		close(exitCh)
	}()

	if serveErr := srv.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
		return serveErr
	}

	<-exitCh
	logger.Info("shutdown finished")

	return shutdownErr
}
