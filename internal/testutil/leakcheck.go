// Package testutil provides testing utilities for the EchoForge engine.
package testutil

import (
	"testing"

	"go.uber.org/goleak"
)

// VerifyNoLeaks should be deferred at the start of tests that spawn goroutines.
// It verifies that no goroutines were leaked during the test.
func VerifyNoLeaks(t *testing.T, opts ...goleak.Option) {
	t.Helper()
	goleak.VerifyNone(t, opts...)
}

// IgnoreAudioGoroutines returns goleak options to ignore the audio output
// device goroutines, which live for the whole process once the speaker is
// opened.
func IgnoreAudioGoroutines() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreAnyFunction("github.com/ebitengine/oto/v3.(*context).loop"),
		goleak.IgnoreAnyFunction("github.com/gopxl/beep/v2/speaker.Init.func1"),
	}
}
