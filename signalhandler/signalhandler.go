package signalhandler

import (
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"imagematch/logging"
)

// SetupHandler installs SIGINT/SIGTERM handling. The first signal calls
// cancel so a running search can stop between batches and still report;
// a second signal exits immediately.
func SetupHandler(cancel func()) {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logging.LogWarning("Received %v, finishing current batch (press Ctrl+C again to abort)", sig)
		if cancel != nil {
			cancel()
		}

		<-sigChan
		logging.CloseLogger()
		os.Exit(130)
	}()
}

// GetOptimalProcs returns the optimal number of worker goroutines for the system
func GetOptimalProcs() int {
	numCPU := runtime.NumCPU()

	// For image processing with CGo, using too many goroutines can cause issues
	maxProcs := (numCPU * 3) / 4
	if maxProcs < 1 {
		maxProcs = 1
	}

	return maxProcs
}
