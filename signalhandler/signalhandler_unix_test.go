//go:build unix

package signalhandler

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFirstSignalCancels(t *testing.T) {
	cancelled := make(chan struct{})
	SetupHandler(func() { close(cancelled) })

	assert.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGINT))

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("cancel was not called")
	}
}
