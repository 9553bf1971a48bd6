package engine

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/mirrorengine/pkg/logger"
)

// HandleSignals stops state on SIGHUP, SIGTERM or SIGINT. The returned
// function detaches the handler.
func HandleSignals(state *State) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGINT)

	quit := make(chan struct{})
	go func() {
		select {
		case sig := <-ch:
			logger.Info("Received " + sig.String() + ", shutting down after the current cycle")
			state.Stop()
		case <-quit:
		}
	}()

	return func() {
		signal.Stop(ch)
		close(quit)
	}
}
