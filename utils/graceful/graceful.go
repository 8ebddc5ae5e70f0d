package graceful

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abhissng/conduit/utils/constant"
	"github.com/abhissng/conduit/utils/helpers"
)

// Shutdowner is an interface that defines a Shutdown method.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// ShutdownFunc is a function type that matches the Shutdown method signature.
type ShutdownFunc func(ctx context.Context) error

// Shutdown implements the Shutdowner interface for ShutdownFunc.
func (f ShutdownFunc) Shutdown(ctx context.Context) error {
	return f(ctx)
}

// Shutdown stops services in reverse order, so the last dependency started
// is the first one stopped, sharing one deadline of timeout.
func Shutdown(timeout time.Duration, services ...Shutdowner) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for i := len(services) - 1; i >= 0; i-- {
		if services[i] == nil {
			continue
		}
		if err := services[i].Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GracefulShutdown blocks until SIGINT/SIGTERM or ctx is done, then runs Shutdown.
func GracefulShutdown(ctx context.Context, timeout time.Duration, services ...Shutdowner) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
	case <-ctx.Done():
	}

	if err := Shutdown(timeout, services...); err != nil {
		helpers.Println(constant.ERROR, "Error during shutdown: "+err.Error())
	} else {
		helpers.Println(constant.INFO, "Service stopped")
	}
}
