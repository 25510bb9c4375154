package texttospeech

import (
	"context"

	"github.com/parleylabs/parley-core/core/audio"
)

// SpeechStream is one live synthesis stream. Text sent to it is synthesized
// in order and returned through the audio chunk callback.
type SpeechStream interface {
	// SendText sends text to the synthesizer. It is guaranteed that the
	// speech will be generated in the order text is sent.
	//
	// SendText will error if EndOfText, Cancel or Close has been called.
	SendText(text string) error
	// EndOfText signals that no more text will be sent. After EndOfText is
	// called the stream closes on its own once all remaining speech has been
	// generated, firing the final callback first.
	//
	// EndOfText will error if Cancel or Close has been called.
	// Repeated calls to EndOfText are ignored.
	EndOfText() error
	// Cancel immediately stops further speech generation and closes the
	// stream. Audio already delivered through callbacks is unaffected, but
	// no further callbacks fire, including the final callback.
	//
	// Cancel will error if Close has been called.
	// Repeated calls to Cancel are ignored.
	Cancel() error
	// Close immediately closes the stream. It is guaranteed that no more
	// speech will be generated after this call.
	//
	// Repeated calls to Close are ignored.
	Close() error
}

// Synthesizer opens speech streams. Clients implementing it are expected to
// open a fresh upstream connection per call.
type Synthesizer interface {
	NewSpeechStream(ctx context.Context, opts ...SynthesisOption) (SpeechStream, error)
}

// Alignment maps an audio chunk back to the characters it speaks. The three
// slices are parallel; times are relative to the start of the utterance.
type Alignment struct {
	Chars        []string
	StartTimesMS []int
	DurationsMS  []int
}

// AudioChunk is one frame of synthesized speech, with character timing when
// the synthesizer provides it.
type AudioChunk struct {
	Audio     []byte
	Alignment *Alignment
}

// VoiceSettings tune the synthesized voice. Zero values fall back to the
// synthesizer's defaults for the selected voice.
type VoiceSettings struct {
	Stability       float64
	SimilarityBoost float64
	Style           float64
	SpeakerBoost    bool
}

type SynthesisOptions struct {
	// AudioChunkCallback is called for every audio frame the synthesizer
	// produces, in synthesis order.
	AudioChunkCallback func(chunk AudioChunk)
	// FinalCallback is called once, after the last audio chunk of the
	// utterance has been delivered. It does not fire on Cancel or Close.
	FinalCallback func()
	// ErrorCallback is called when the stream fails before finishing, this
	// usually means the connection to the synthesizer was lost.
	ErrorCallback func(err error)
	// ClosedCallback fires when the stream has fully shut down, after the
	// last other callback. It does not fire after Cancel.
	ClosedCallback func()

	VoiceSettings *VoiceSettings
	EncodingInfo  audio.EncodingInfo
}

type SynthesisOption func(*SynthesisOptions)

func WithAudioChunkCallback(callback func(chunk AudioChunk)) SynthesisOption {
	return func(o *SynthesisOptions) {
		o.AudioChunkCallback = callback
	}
}

func WithFinalCallback(callback func()) SynthesisOption {
	return func(o *SynthesisOptions) {
		o.FinalCallback = callback
	}
}

func WithErrorCallback(callback func(err error)) SynthesisOption {
	return func(o *SynthesisOptions) {
		o.ErrorCallback = callback
	}
}

func WithClosedCallback(callback func()) SynthesisOption {
	return func(o *SynthesisOptions) {
		o.ClosedCallback = callback
	}
}

// WithVoiceSettings overrides the voice tuning for this stream only.
func WithVoiceSettings(settings VoiceSettings) SynthesisOption {
	return func(o *SynthesisOptions) {
		o.VoiceSettings = &settings
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SynthesisOption {
	return func(o *SynthesisOptions) {
		if encodingInfo.IsZero() {
			return
		}

		o.EncodingInfo = encodingInfo
	}
}
