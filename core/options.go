package turntaking

import (
	"context"
	"time"

	"github.com/parleylabs/parley-core/core/audio"
	"github.com/parleylabs/parley-core/core/events"
	"github.com/parleylabs/parley-core/core/speechtotext"
	"github.com/parleylabs/parley-core/core/texttospeech"
)

type SpeechControlOption func(*SpeechControl)

// SpeechToText creates live recognition sessions. Sessions are single use:
// the control aborts and discards them on every turn change and asks the
// client for a fresh one instead of restarting.
type SpeechToText interface {
	NewRecognitionSession(ctx context.Context, opts ...speechtotext.TranscriptionOption) (speechtotext.RecognitionSession, error)
}

func WithSpeechToTextClient(client SpeechToText) SpeechControlOption {
	return func(c *SpeechControl) {
		c.speechToText = client
	}
}

// TextToSpeech opens streaming synthesis sessions.
type TextToSpeech interface {
	NewSpeechStream(ctx context.Context, opts ...texttospeech.SynthesisOption) (texttospeech.SpeechStream, error)
}

func WithTextToSpeechClient(client TextToSpeech) SpeechControlOption {
	return func(c *SpeechControl) {
		c.textToSpeech = client
	}
}

// AudioInput captures microphone audio.
type AudioInput interface {
	audioInputBase
}

func WithAudioInput(client AudioInput) SpeechControlOption {
	return func(c *SpeechControl) {
		c.audioInput = client
	}
}

// AudioOutput plays audio fed through a buffer and reports playback progress
// through positional marks: a mark's callback fires once every byte queued
// before the Mark call has left the device.
type AudioOutput interface {
	audioOutputBase
	Mark(name string, callback func(name string)) error
}

func WithAudioOutput(client AudioOutput) SpeechControlOption {
	return func(c *SpeechControl) {
		c.audioOutput = client
	}
}

// AudioDevice is a duplex audio backend serving both directions.
type AudioDevice interface {
	AudioInput
	AudioOutput
}

// WithAudioDevice wires one duplex backend as both the input and the output.
func WithAudioDevice(device AudioDevice) SpeechControlOption {
	return func(c *SpeechControl) {
		c.audioInput = device
		c.audioOutput = device
	}
}

// WithSilenceWatchdogTimeout overrides how long the control waits for a final
// transcript after the last interim before synthesizing one from it. The
// default is 2 seconds.
func WithSilenceWatchdogTimeout(timeout time.Duration) SpeechControlOption {
	return func(c *SpeechControl) {
		if timeout > 0 {
			c.watchdogTimeout = timeout
		}
	}
}

// WithSynthesisStallTimeout overrides how long the synthesis socket may go
// without producing a frame before the utterance is abandoned and the control
// returns to listening. The default is 30 seconds.
func WithSynthesisStallTimeout(timeout time.Duration) SpeechControlOption {
	return func(c *SpeechControl) {
		if timeout > 0 {
			c.stallTimeout = timeout
		}
	}
}

// InitializeOptions carries the caller-facing callbacks for one conversation
// session.
type InitializeOptions struct {
	onTranscript          func(transcript string, isFinal bool)
	onUserSpeakingChanged func(isSpeaking bool)
	onAudio               func(audio []byte)
	onSpokenText          func(spokenText string)
	onPlaybackEnded       func(transcript string)
	onError               func(err error)
	onEvent               func(event events.Event)
}

type InitializeOption func(*InitializeOptions)

// WithTranscriptCallback registers a callback for user transcripts. Interim
// transcripts arrive with isFinal false and each one overwrites the previous;
// exactly one final transcript per speech segment arrives with isFinal true,
// after silence and finality handling has resolved.
func WithTranscriptCallback(callback func(transcript string, isFinal bool)) InitializeOption {
	return func(o *InitializeOptions) {
		o.onTranscript = callback
	}
}

// WithUserSpeakingChangedCallback registers a callback for user
// speech-activity changes detected by the recognizer.
func WithUserSpeakingChangedCallback(callback func(isSpeaking bool)) InitializeOption {
	return func(o *InitializeOptions) {
		o.onUserSpeakingChanged = callback
	}
}

func WithAudioCallback(callback func(audio []byte)) InitializeOption {
	return func(o *InitializeOptions) {
		o.onAudio = callback
	}
}

// WithSpokenTextCallback registers a callback for spoken-text progress. The
// callback receives the prefix of the reply confirmed as played so far.
func WithSpokenTextCallback(callback func(spokenText string)) InitializeOption {
	return func(o *InitializeOptions) {
		o.onSpokenText = callback
	}
}

// WithPlaybackEndedCallback registers a callback fired once per reply, after
// the last queued chunk has finished playing.
func WithPlaybackEndedCallback(callback func(transcript string)) InitializeOption {
	return func(o *InitializeOptions) {
		o.onPlaybackEnded = callback
	}
}

// WithErrorCallback registers a callback for failures the control could not
// absorb. Every surfaced error has already driven the control back to a
// consistent listening state.
func WithErrorCallback(callback func(err error)) InitializeOption {
	return func(o *InitializeOptions) {
		o.onError = callback
	}
}

// WithEventCallback registers a callback observing every typed event the
// control publishes, before any per-callback routing.
func WithEventCallback(callback func(event events.Event)) InitializeOption {
	return func(o *InitializeOptions) {
		o.onEvent = callback
	}
}

// SpeakOptions carries per-utterance synthesis and completion settings.
type SpeakOptions struct {
	voiceSettings *texttospeech.VoiceSettings
	onSpeechEnded func(spokenText string)
}

type SpeakOption func(*SpeakOptions)

// WithVoiceSettings overrides the synthesis voice settings for this
// utterance only.
func WithVoiceSettings(settings texttospeech.VoiceSettings) SpeakOption {
	return func(o *SpeakOptions) {
		o.voiceSettings = &settings
	}
}

// WithSpeechEndedCallback registers a callback fired once when this
// utterance has fully finished playing. It receives the text confirmed as
// spoken, which may be shorter than the requested text if playback was cut
// short. It does not fire if the utterance is abandoned before finishing: by
// an error, by Stop or Pause, or by a newer Speak superseding it.
func WithSpeechEndedCallback(callback func(spokenText string)) SpeakOption {
	return func(o *SpeakOptions) {
		o.onSpeechEnded = callback
	}
}

type audioOutputBase interface {
	EncodingInfo() audio.EncodingInfo
	StartPlayback(ctx context.Context) error
	StopPlayback() error
	SendAudio(audio []byte) error
	ClearBuffer()
}

type audioInputBase interface {
	EncodingInfo() audio.EncodingInfo
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
}
