package cli

import (
	"testing"
	"time"
)

func TestSetupSignalHandler(t *testing.T) {
	ctx := SetupSignalHandler()

	select {
	case <-ctx.Done():
		t.Error("context should not be cancelled initially")
	default:
	}

	if ctx.Done() == nil {
		t.Error("context should have a Done channel")
	}
}

func TestSetupSignalHandlerStaysActive(t *testing.T) {
	ctx := SetupSignalHandler()

	select {
	case <-ctx.Done():
		t.Error("context cancelled without a signal")
	case <-time.After(10 * time.Millisecond):
	}
}
