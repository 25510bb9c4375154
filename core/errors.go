package turntaking

import (
	"errors"
	"fmt"
)

// ErrPermissionDenied reports that the capture device could not be acquired.
// It is fatal to [SpeechControl.Initialize]; there is no listen-less mode.
var ErrPermissionDenied = errors.New("audio capture permission denied")

// ErrNotInitialized reports a call that requires a successful Initialize
// first.
var ErrNotInitialized = errors.New("speech control not initialized")

// ErrAlreadyInitialized reports a repeated Initialize on a live control.
var ErrAlreadyInitialized = errors.New("speech control already initialized")

// ErrNoSynthesizer reports a Speak call without a synthesis client.
var ErrNoSynthesizer = errors.New("no text-to-speech client configured")

// ErrNoRecognizer reports an Initialize call without a recognition client.
var ErrNoRecognizer = errors.New("no speech-to-text client configured")

// ErrNoAudioDevice reports an Initialize call without both audio devices
// configured.
var ErrNoAudioDevice = errors.New("no audio device configured")

// ErrPaused reports a Speak call on an operator-paused control.
var ErrPaused = errors.New("speech control paused")

// ErrStopped reports a call on a control that has been stopped. Stopped
// controls cannot be reused.
var ErrStopped = errors.New("speech control stopped")

// DecodeError reports a synthesized chunk that could not be decoded. The
// chunk is dropped and its sequence slot released, so playback continues
// with the next chunk instead of stalling.
type DecodeError struct {
	Sequence int
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode audio chunk %d: %v", e.Sequence, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
