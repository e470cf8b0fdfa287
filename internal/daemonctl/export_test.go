package daemonctl

import (
	"testing"
	"time"
)

// SetVerifierForTests replaces the live-process verifier for the duration of a test.
func SetVerifierForTests(t *testing.T, fn func(int) bool) {
	t.Helper()
	prev := verifyProcess
	verifyProcess = fn
	t.Cleanup(func() { verifyProcess = prev })
}

// SetClaimTimeoutForTests shortens how long claims wait on a held lock.
func SetClaimTimeoutForTests(t *testing.T, d time.Duration) {
	t.Helper()
	prev := claimTimeout
	claimTimeout = d
	t.Cleanup(func() { claimTimeout = prev })
}
