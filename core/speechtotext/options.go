package speechtotext

import (
	"context"

	"github.com/parleylabs/parley-core/core/audio"
)

// RecognitionSession is one live transcription stream. Sessions are single
// use: once aborted or closed by the platform they cannot be restarted, a new
// session has to be created instead.
type RecognitionSession interface {
	// SendAudio forwards captured audio to the recognizer. Audio sent after
	// Abort is discarded.
	SendAudio(audio []byte) error

	// Abort tears the session down immediately and discards any in-flight
	// results. No callback fires after Abort returns, including the closed
	// callback. Abort is idempotent.
	Abort() error
}

// SessionFactory creates recognition sessions. Clients implementing it are
// expected to open a fresh upstream connection per call.
type SessionFactory interface {
	NewRecognitionSession(ctx context.Context, opts ...TranscriptionOption) (RecognitionSession, error)
}

type TranscriptionOptions struct {
	InterimTranscriptionCallback func(transcript string)
	TranscriptionCallback        func(transcript string)

	SpeechStartedCallback func()
	SpeechEndedCallback   func()

	// ErrorCallback receives recognition failures that ended the session.
	ErrorCallback func(err error)
	// ClosedCallback fires when the session terminated on its own, after the
	// last result callback. It does not fire on Abort.
	ClosedCallback func()

	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

func WithTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.TranscriptionCallback = callback
	}
}

func WithInterimTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.InterimTranscriptionCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithErrorCallback(callback func(err error)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.ErrorCallback = callback
	}
}

func WithClosedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.ClosedCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}
