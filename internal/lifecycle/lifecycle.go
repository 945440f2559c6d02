// Package lifecycle owns process-level concerns that don't belong to any
// single core component: port discovery, the SERVER_PORT stdout
// advertisement, and signal-driven graceful shutdown.
//
// This generalizes cmd/server/main.go's select-on-signal-channel-then-
// Shutdown-with-timeout pattern into a reusable errgroup-based runner, since
// the sidecar's shutdown sequence (stop HTTP, then run each Closer, such as
// the Pruner and the Store) has more steps than the dashboard server's
// single HTTP.Shutdown call. WebSocket connections upgraded by the Hub are
// hijacked from the HTTP server, so srv.Shutdown neither closes nor waits
// for them; Run does not close them, and they end when the process exits.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// drainTimeout bounds how long in-flight HTTP responses are given to
// complete after a shutdown signal before the process force-exits.
const drainTimeout = 5 * time.Second

// DiscoverPort implements the three-step port discovery algorithm:
// preferred port, then a scan of [min, max], then OS-assigned (port 0).
// It binds and immediately releases each candidate, returning the first
// free port found.
func DiscoverPort(preferred, min, max int) (int, error) {
	if port, ok := tryBind(preferred); ok {
		return port, nil
	}

	for p := min; p <= max; p++ {
		if p == preferred {
			continue
		}
		if port, ok := tryBind(p); ok {
			return port, nil
		}
	}

	port, ok := tryBind(0)
	if !ok {
		return 0, fmt.Errorf("lifecycle: OS refused to assign a port")
	}
	return port, nil
}

func tryBind(port int) (int, bool) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return 0, false
	}
	actual := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return actual, true
}

// AnnouncePort writes the sole machine-readable interop line to stdout:
// "SERVER_PORT=<n>\n", with nothing else preceding it.
func AnnouncePort(port int) {
	fmt.Printf("SERVER_PORT=%d\n", port)
}

// Closer is anything with cleanup to run during shutdown (the Store, the
// Pruner). Closers run in the order passed to Run, after the HTTP server has
// stopped accepting new connections.
type Closer interface {
	Close() error
}

// Run binds srv to a loopback listener on port, announces the port,
// serves until ctx is canceled or SIGINT/SIGTERM arrives, then drains for
// up to 5s before closing every closer in order. It blocks until shutdown
// is complete.
func Run(ctx context.Context, logger *slog.Logger, srv *http.Server, port int, closers ...Closer) error {
	if logger == nil {
		logger = slog.Default()
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("lifecycle: listen on port %d: %w", port, err)
	}
	AnnouncePort(port)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("lifecycle: serving", "port", port)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("lifecycle: shutdown signal received, draining")

		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()

		if err := srv.Shutdown(drainCtx); err != nil {
			logger.Warn("lifecycle: HTTP shutdown did not complete cleanly", "error", err)
			srv.Close()
		}

		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Warn("lifecycle: closer returned an error during shutdown", "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("lifecycle: exited cleanly")
	return nil
}

// closerFunc adapts a plain func() error to the Closer interface.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// CloserFunc wraps fn as a Closer.
func CloserFunc(fn func() error) Closer { return closerFunc(fn) }
