package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// RunWithGracefulShutdown serves until SIGINT or SIGTERM, then runs cleanup
// and gives in-flight requests up to timeout to finish.
func RunWithGracefulShutdown(server *http.Server, appName string, cleanup func(), timeout time.Duration) error {
	serverErr := make(chan error, 1)
	go func() {
		log.Printf("[INFO] %q listening on %s ...", appName, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		} else {
			serverErr <- nil
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		log.Printf("[INFO] got signal [%s]. shutting down %q ...", sig, appName)
	case err := <-serverErr:
		// failed to start
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("[ERROR] server shutdown failed: %v", err)
	}
	if cleanup != nil {
		cleanup()
	}
	if err := <-serverErr; err != nil {
		return err
	}
	log.Printf("[INFO] %q shutdown complete", appName)
	return nil
}
