package emulator

import (
	"context"
	"net/http"
	"time"
)

var srv *http.Server

// Serve runs an emulator on its configured address until Close.
func Serve(opts ...Option) error {
	return ServeEmulator(New(opts...))
}

// ServeEmulator listens on e.Address until Close.
func ServeEmulator(e *Emulator) error {
	srv = &http.Server{
		Addr:    e.Address,
		Handler: e,
	}
	e.logger.Infof("runtime api listening on %s", e.Address)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts the served emulator down.
func Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
