package turntaking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parleylabs/parley-core/core/audio"
	"github.com/parleylabs/parley-core/core/events"
	"github.com/parleylabs/parley-core/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultWatchdogTimeout = 2 * time.Second
	defaultStallTimeout    = 30 * time.Second
)

var errSynthesisStalled = errors.New("synthesis stream stalled")

// TurnState is a point-in-time snapshot of whose turn it is. It is the single
// source of truth the rest of the system reads: while IsAgentSpeaking is true
// no recognition session is live, and the other way around.
type TurnState struct {
	IsAgentSpeaking bool
	IsConnected     bool
}

// SpeechControl is the turn-taking orchestrator. It owns one recognition
// session and one playback queue and enforces their mutual exclusion: the
// microphone and the speaker are never live at the same time, so the system's
// own voice can never come back as user speech.
//
// Entering the speaking turn aborts the active recognition session outright
// instead of stopping it gracefully, because a graceful stop races with
// in-flight results. Leaving it, driven by the playback queue's drain mark
// rather than by synthesis socket closure, constructs a brand-new session;
// aborted recognizers are never reused.
//
// A control serves one conversation session: construct, Initialize, converse,
// Stop. Stopped controls cannot be reinitialized.
type SpeechControl struct {
	speechToText SpeechToText
	textToSpeech TextToSpeech
	audioInput   AudioInput
	audioOutput  AudioOutput

	watchdogTimeout time.Duration
	stallTimeout    time.Duration

	isAgentSpeaking atomic.Bool
	isConnected     atomic.Bool
	paused          atomic.Bool

	mu          sync.Mutex
	initialized bool
	stopped     bool
	baseContext context.Context
	queue       *audioQueue
	recognition *recognitionControl
	utterance   *activeUtterance
	callbacks   InitializeOptions
	emitEvent   eventEmitter
	cancelHook  chan struct{}

	transcript transcriptLog
	stopOnce   sync.Once
}

func NewSpeechControl(opts ...SpeechControlOption) *SpeechControl {
	c := &SpeechControl{
		watchdogTimeout: defaultWatchdogTimeout,
		stallTimeout:    defaultStallTimeout,
		baseContext:     context.Background(),
		emitEvent:       noopEventEmitter,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize acquires the audio devices, opens the first recognition session
// and marks the control connected. ctx is the base context for the whole
// conversation session; cancelling it stops the control.
//
// A capture device that cannot be acquired is fatal: the error wraps
// [ErrPermissionDenied] and the control stays uninitialized.
func (c *SpeechControl) Initialize(ctx context.Context, opts ...InitializeOption) error {
	ctx, span := tracer.Start(ctx, "initialize speech control")
	defer span.End()

	options := InitializeOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	if c.initialized {
		c.mu.Unlock()
		return ErrAlreadyInitialized
	}
	if c.audioInput == nil || c.audioOutput == nil {
		c.mu.Unlock()
		return ErrNoAudioDevice
	}
	if c.speechToText == nil {
		c.mu.Unlock()
		return ErrNoRecognizer
	}
	c.baseContext = ctx
	c.callbacks = options
	c.emitEvent = newCallbackEventEmitter(options)
	c.mu.Unlock()

	if err := c.audioOutput.StartPlayback(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to open audio output: %w", err)
	}

	recognition := newRecognitionControl(
		c.speechToText,
		c.audioInput.EncodingInfo(),
		c.watchdogTimeout,
		c.emitEvent,
		recognitionCallbacks{
			onFinal: c.handleFinalTranscript,
			onError: c.surfaceError,
		},
	)

	if err := c.audioInput.StartCapture(ctx, recognition.sendAudio); err != nil {
		_ = c.audioOutput.StopPlayback()
		span.RecordError(err)
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	if err := recognition.start(ctx); err != nil {
		_ = c.audioInput.StopCapture()
		_ = c.audioOutput.StopPlayback()
		span.RecordError(err)
		return fmt.Errorf("failed to start recognition: %w", err)
	}

	queue := c.newQueue()

	c.mu.Lock()
	c.initialized = true
	c.recognition = recognition
	c.queue = queue
	c.cancelHook = withContextCancelHook(ctx, c.Stop)
	c.mu.Unlock()

	c.isConnected.Store(true)
	c.emitEvent(events.NewTurnListening())
	return nil
}

// Speak synthesizes text and plays it, taking the speaking turn for as long
// as audio is audible. A Speak while a previous utterance is still playing
// supersedes it: the old stream is cancelled and its queued audio dropped.
//
// The control returns to listening when the last queued chunk has finished
// playing, not when the synthesis socket closes; the two are not
// synchronized and the socket routinely closes with audio still in flight.
func (c *SpeechControl) Speak(ctx context.Context, text string, opts ...SpeakOption) error {
	ctx, span := tracer.Start(ctx, "speak")
	defer span.End()

	options := SpeakOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	if !c.initialized {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	if c.textToSpeech == nil {
		c.mu.Unlock()
		return ErrNoSynthesizer
	}
	if c.paused.Load() {
		c.mu.Unlock()
		return ErrPaused
	}
	queue := c.queue
	recognition := c.recognition
	previous := c.utterance
	utterance := newActiveUtterance(text, options.onSpeechEnded)
	c.utterance = utterance
	c.mu.Unlock()

	span.SetAttributes(attribute.Int("request.text_length", len(text)))

	if previous != nil && previous.ended.CompareAndSwap(false, true) {
		previous.shutdown()
		queue.clear()
	}

	if c.isAgentSpeaking.CompareAndSwap(false, true) {
		recognition.mute()
		c.emitEvent(events.NewTurnSpeaking())
	}

	streamOpts := []texttospeech.SynthesisOption{
		texttospeech.WithEncodingInfo(audio.GetDefaultEncodingInfo()),
		texttospeech.WithAudioChunkCallback(func(chunk texttospeech.AudioChunk) { c.handleSpeechFrame(utterance, chunk) }),
		texttospeech.WithFinalCallback(func() { c.handleSpeechFinal(utterance) }),
		texttospeech.WithErrorCallback(func(err error) { c.handleSpeechError(utterance, err) }),
	}
	if options.voiceSettings != nil {
		streamOpts = append(streamOpts, texttospeech.WithVoiceSettings(*options.voiceSettings))
	}

	stream, err := c.textToSpeech.NewSpeechStream(ctx, streamOpts...)
	if err != nil {
		err = &texttospeech.SynthesisError{Err: err}
		c.abandonUtterance(utterance, nil)
		span.RecordError(err)
		return fmt.Errorf("failed to open speech stream: %w", err)
	}
	utterance.setStream(stream)
	utterance.resetStall(c.stallTimeout, func() { c.handleSpeechStall(utterance) })

	if err := stream.SendText(text); err != nil {
		c.abandonUtterance(utterance, nil)
		span.RecordError(err)
		return fmt.Errorf("failed to send text to speech stream: %w", &texttospeech.SynthesisError{Err: err})
	}
	if err := stream.EndOfText(); err != nil {
		c.abandonUtterance(utterance, nil)
		span.RecordError(err)
		return fmt.Errorf("failed to close speech stream input: %w", &texttospeech.SynthesisError{Err: err})
	}

	return nil
}

// Pause is an operator-level suspend, independent of conversational turn
// taking: both devices are released and any playing utterance is abandoned.
// Pausing an already paused control does nothing.
func (c *SpeechControl) Pause() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	if !c.initialized {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	c.mu.Unlock()

	if !c.paused.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	utterance := c.utterance
	c.utterance = nil
	queue := c.queue
	recognition := c.recognition
	c.mu.Unlock()

	if utterance != nil && utterance.ended.CompareAndSwap(false, true) {
		utterance.shutdown()
	}
	c.isAgentSpeaking.Store(false)
	recognition.mute()
	queue.clear()

	if err := c.audioInput.StopCapture(); err != nil {
		logger.Warn("failed to stop capture on pause", "error", err)
	}
	if err := c.audioOutput.StopPlayback(); err != nil {
		logger.Warn("failed to stop playback on pause", "error", err)
	}

	c.emitEvent(events.NewTurnPaused())
	return nil
}

// Resume reopens the devices and returns the control to listening. The
// playback queue is rebuilt from scratch: a suspended-then-resumed output
// device cannot safely reuse state scheduled before the pause.
func (c *SpeechControl) Resume(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	if !c.initialized {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	c.mu.Unlock()

	if !c.paused.CompareAndSwap(true, false) {
		return nil
	}

	if err := c.audioOutput.StartPlayback(ctx); err != nil {
		c.paused.Store(true)
		return fmt.Errorf("failed to reopen audio output: %w", err)
	}

	c.mu.Lock()
	staleQueue := c.queue
	c.mu.Unlock()
	staleQueue.stop()
	queue := c.newQueue()

	c.mu.Lock()
	c.queue = queue
	c.baseContext = ctx
	recognition := c.recognition
	c.mu.Unlock()

	if err := c.audioInput.StartCapture(ctx, recognition.sendAudio); err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	if err := recognition.unmute(ctx); err != nil {
		return fmt.Errorf("failed to restart recognition: %w", err)
	}

	c.emitEvent(events.NewTurnResumed())
	c.emitEvent(events.NewTurnListening())
	return nil
}

// Stop tears the whole session down: recognition aborted, queue cleared,
// devices closed, state reset to its initial values. Idempotent; safe on a
// control that was never initialized.
func (c *SpeechControl) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		initialized := c.initialized
		utterance := c.utterance
		c.utterance = nil
		queue := c.queue
		recognition := c.recognition
		hook := c.cancelHook
		c.cancelHook = nil
		ctx := c.baseContext
		c.mu.Unlock()

		if hook != nil {
			close(hook)
		}
		if utterance != nil && utterance.ended.CompareAndSwap(false, true) {
			utterance.shutdown()
		}
		if recognition != nil {
			recognition.stop()
		}
		if queue != nil {
			queue.stop()
		}

		if initialized {
			if err := c.audioInput.StopCapture(); err != nil {
				c.recordCloseError(ctx, fmt.Errorf("failed to stop audio capture: %w", err))
			}
			if err := c.audioOutput.StopPlayback(); err != nil {
				c.recordCloseError(ctx, fmt.Errorf("failed to stop audio playback: %w", err))
			}
		}
		clients := []any{c.speechToText, c.textToSpeech, c.audioInput}
		if any(c.audioOutput) != any(c.audioInput) {
			// A duplex backend serves both directions; close it once.
			clients = append(clients, c.audioOutput)
		}
		for _, client := range clients {
			if err := closeClient(ctx, client); err != nil {
				c.recordCloseError(ctx, fmt.Errorf("failed to close client: %w", err))
			}
		}

		c.isAgentSpeaking.Store(false)
		c.isConnected.Store(false)
		c.paused.Store(false)
		c.transcript.reset()
		c.emitEvent(events.NewTurnStopped())
	})
}

// TurnState returns a snapshot of whose turn it is.
func (c *SpeechControl) TurnState() TurnState {
	return TurnState{
		IsAgentSpeaking: c.isAgentSpeaking.Load(),
		IsConnected:     c.isConnected.Load(),
	}
}

// RecognitionState returns a snapshot of the microphone side of the turn.
func (c *SpeechControl) RecognitionState() RecognitionState {
	c.mu.Lock()
	recognition := c.recognition
	c.mu.Unlock()

	if recognition == nil {
		return RecognitionState{}
	}
	return recognition.state()
}

// Transcript returns a point-in-time copy of the utterance log.
func (c *SpeechControl) Transcript() []Utterance {
	return c.transcript.snapshot()
}

func (c *SpeechControl) newQueue() *audioQueue {
	return newAudioQueue(c.audioOutput, audio.GetDefaultEncodingInfo(), audioQueueCallbacks{
		onPlaybackStarted: func() { c.emitEvent(events.NewAssistantPlaybackStarted()) },
		onChunkPlayed:     c.handleChunkPlayed,
		onError:           c.handlePlaybackError,
	})
}

func (c *SpeechControl) handleSpeechFrame(utterance *activeUtterance, chunk texttospeech.AudioChunk) {
	if utterance.ended.Load() {
		return
	}
	utterance.resetStall(c.stallTimeout, func() { c.handleSpeechStall(utterance) })

	c.mu.Lock()
	queue := c.queue
	c.mu.Unlock()
	if queue == nil {
		return
	}

	sequence, ok := queue.enqueue(chunk.Audio, chunk.Alignment, nil)
	if !ok {
		return
	}
	utterance.progress.recordChunk(sequence, chunk.Alignment)
	c.emitEvent(events.NewAssistantSpeechFrame(sequence, chunk.Audio))
}

// handleSpeechFinal arms the queue's drain handler once the synthesis stream
// reports its last chunk. The handler attachment is retroactive by design:
// when the socket closed after its audio but before this point, the chunks
// already queued still guarantee exactly one firing.
func (c *SpeechControl) handleSpeechFinal(utterance *activeUtterance) {
	if utterance.ended.Load() {
		return
	}
	utterance.stopStall()
	c.emitEvent(events.NewAssistantSpeechFinal())

	c.mu.Lock()
	queue := c.queue
	c.mu.Unlock()
	if queue == nil {
		return
	}
	queue.attachDrainHandler(func() { c.finishUtterance(utterance) })
}

func (c *SpeechControl) handleSpeechError(utterance *activeUtterance, err error) {
	var synthesisErr *texttospeech.SynthesisError
	if !errors.As(err, &synthesisErr) {
		err = &texttospeech.SynthesisError{Err: err}
	}
	c.abandonUtterance(utterance, err)
}

func (c *SpeechControl) handleSpeechStall(utterance *activeUtterance) {
	c.abandonUtterance(utterance, &texttospeech.SynthesisError{Err: errSynthesisStalled})
}

func (c *SpeechControl) handleChunkPlayed(chunk *audioChunk) {
	c.mu.Lock()
	utterance := c.utterance
	c.mu.Unlock()

	if utterance == nil || utterance.ended.Load() {
		return
	}
	if spoken, updated := utterance.progress.chunkPlayed(chunk.sequence); updated {
		c.emitEvent(events.NewAssistantPlaybackProgress(spoken))
	}
}

func (c *SpeechControl) handlePlaybackError(err error) {
	c.mu.Lock()
	utterance := c.utterance
	c.mu.Unlock()

	if utterance == nil {
		c.surfaceError(err)
		return
	}
	c.abandonUtterance(utterance, err)
}

// finishUtterance completes an utterance whose audio fully played: the agent
// utterance is recorded and the control returns to listening. The ended flag
// makes completion and abandonment mutually exclusive and single-shot, no
// matter how many sources race to end the same utterance.
func (c *SpeechControl) finishUtterance(utterance *activeUtterance) {
	if !utterance.ended.CompareAndSwap(false, true) {
		return
	}
	utterance.shutdown()

	spoken := utterance.progress.finalSpoken(true)
	c.transcript.append(RoleAgent, spoken)
	c.resumeListening(utterance)
	c.emitEvent(events.NewAssistantPlaybackEnded(spoken))
	if utterance.onEnded != nil {
		utterance.onEnded(spoken)
	}
}

// abandonUtterance ends an utterance that did not fully play. Queued audio is
// dropped, the control still returns to listening, and err, when given, is
// surfaced exactly once. No failure path leaves the speaking flag stuck.
func (c *SpeechControl) abandonUtterance(utterance *activeUtterance, err error) {
	if !utterance.ended.CompareAndSwap(false, true) {
		return
	}
	utterance.shutdown()

	c.mu.Lock()
	queue := c.queue
	c.mu.Unlock()
	if queue != nil {
		queue.clear()
	}

	c.resumeListening(utterance)
	if err != nil {
		c.surfaceError(err)
	}
}

// resumeListening leaves the speaking turn: the speaking flag drops and a
// brand-new recognition session is constructed, unless a newer utterance has
// already taken over or the control is paused or stopped.
func (c *SpeechControl) resumeListening(utterance *activeUtterance) {
	c.mu.Lock()
	active := c.utterance == utterance
	if active {
		c.utterance = nil
	}
	recognition := c.recognition
	stopped := c.stopped
	ctx := c.baseContext
	c.mu.Unlock()

	if !active || stopped {
		return
	}

	c.isAgentSpeaking.Store(false)
	if c.paused.Load() {
		return
	}
	if recognition != nil {
		if err := recognition.unmute(ctx); err != nil {
			c.surfaceError(fmt.Errorf("failed to resume recognition: %w", err))
		}
	}
	c.emitEvent(events.NewTurnListening())
}

func (c *SpeechControl) handleFinalTranscript(transcript string) {
	c.transcript.append(RoleUser, transcript)
}

func (c *SpeechControl) surfaceError(err error) {
	c.mu.Lock()
	onError := c.callbacks.onError
	c.mu.Unlock()

	logger.Warn("speech control error", "error", err)
	if onError != nil {
		onError(err)
	}
}

func (c *SpeechControl) recordCloseError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// activeUtterance tracks one Speak call from stream open to playback end.
type activeUtterance struct {
	text     string
	onEnded  func(spokenText string)
	progress *speechProgress

	// ended flips exactly once, whether by completion, abandonment,
	// supersession, pause or stop.
	ended atomic.Bool

	mu     sync.Mutex
	stream texttospeech.SpeechStream
	stall  *time.Timer
}

func newActiveUtterance(text string, onEnded func(spokenText string)) *activeUtterance {
	return &activeUtterance{
		text:     text,
		onEnded:  onEnded,
		progress: newSpeechProgress(text),
	}
}

func (u *activeUtterance) setStream(stream texttospeech.SpeechStream) {
	u.mu.Lock()
	u.stream = stream
	u.mu.Unlock()
}

// resetStall rearms the synthesis stall watchdog. It is reset on every
// inbound frame, so it only fires when the socket goes quiet mid-utterance.
func (u *activeUtterance) resetStall(timeout time.Duration, onStall func()) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.stall != nil {
		u.stall.Stop()
	}
	u.stall = time.AfterFunc(timeout, onStall)
}

func (u *activeUtterance) stopStall() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.stall != nil {
		u.stall.Stop()
		u.stall = nil
	}
}

// shutdown releases the utterance's resources: the stall watchdog and the
// synthesis stream. Cancelling an already closed stream is a no-op.
func (u *activeUtterance) shutdown() {
	u.stopStall()

	u.mu.Lock()
	stream := u.stream
	u.stream = nil
	u.mu.Unlock()

	if stream != nil {
		_ = stream.Cancel()
	}
}
