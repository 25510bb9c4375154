package turntaking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/parleylabs/parley-core/core/audio"
	"github.com/parleylabs/parley-core/core/events"
	"github.com/parleylabs/parley-core/core/speechtotext"
)

// RecognitionState is a point-in-time snapshot of the microphone side of the
// turn.
type RecognitionState struct {
	IsListening       bool
	IsUserSpeaking    bool
	CurrentTranscript string
}

type recognitionCallbacks struct {
	onFinal func(transcript string)
	onError func(err error)
}

func (c recognitionCallbacks) withDefaults() recognitionCallbacks {
	if c.onFinal == nil {
		c.onFinal = func(string) {}
	}
	if c.onError == nil {
		c.onError = func(error) {}
	}
	return c
}

// recognitionControl owns the live recognition session and its lifecycle.
//
// Sessions are never restarted: every teardown, deliberate or not, is
// followed by constructing a brand-new session from the factory. Platform
// recognizers do not reliably restart after an abort, so the control does not
// try. Deliberate teardowns (mute, stop) bump a generation counter; every
// session callback carries the generation it was created under and no-ops
// once it is stale, which is what keeps an aborted session's in-flight
// results from ever reaching the caller.
//
// A silence watchdog guards finality: when interim transcripts stop flowing
// and no final arrives within the configured window, the last interim text is
// committed as the final so the conversation never hangs on a session that
// silently stopped producing results.
type recognitionControl struct {
	factory         SpeechToText
	encodingInfo    audio.EncodingInfo
	watchdogTimeout time.Duration
	emitEvent       eventEmitter
	callbacks       recognitionCallbacks

	mu           sync.Mutex
	ctx          context.Context
	generation   int
	session      speechtotext.RecognitionSession
	muted        bool
	stopped      bool
	userSpeaking bool
	transcript   string
	watchdog     *time.Timer
}

func newRecognitionControl(factory SpeechToText, encodingInfo audio.EncodingInfo, watchdogTimeout time.Duration, emitEvent eventEmitter, callbacks recognitionCallbacks) *recognitionControl {
	if emitEvent == nil {
		emitEvent = noopEventEmitter
	}
	return &recognitionControl{
		factory:         factory,
		encodingInfo:    encodingInfo,
		watchdogTimeout: watchdogTimeout,
		emitEvent:       emitEvent,
		callbacks:       callbacks.withDefaults(),
		ctx:             context.Background(),
	}
}

// start opens the first recognition session. ctx is kept as the base context
// for every session recreated after this one.
func (r *recognitionControl) start(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return ErrStopped
	}
	r.ctx = ctx
	generation := r.generation
	r.mu.Unlock()

	return r.launch(generation)
}

// launch constructs a session for the given generation. It quietly does
// nothing when the generation has moved on, so racing relaunches (watchdog
// vs. closed callback vs. unmute) collapse into one live session.
func (r *recognitionControl) launch(generation int) error {
	r.mu.Lock()
	if r.stopped || r.muted || generation != r.generation || r.session != nil {
		r.mu.Unlock()
		return nil
	}
	ctx := r.ctx
	r.mu.Unlock()

	session, err := r.factory.NewRecognitionSession(ctx,
		speechtotext.WithEncodingInfo(r.encodingInfo),
		speechtotext.WithSpeechStartedCallback(func() { r.handleSpeechStarted(generation) }),
		speechtotext.WithSpeechEndedCallback(func() { r.handleSpeechEnded(generation) }),
		speechtotext.WithInterimTranscriptionCallback(func(transcript string) { r.handleInterim(generation, transcript) }),
		speechtotext.WithTranscriptionCallback(func(transcript string) { r.handleFinal(generation, transcript) }),
		speechtotext.WithErrorCallback(func(err error) { r.handleError(generation, err) }),
		speechtotext.WithClosedCallback(func() { r.handleClosed(generation) }),
	)
	if err != nil {
		return fmt.Errorf("failed to open recognition session: %w", err)
	}

	r.mu.Lock()
	if r.stopped || r.muted || generation != r.generation {
		r.mu.Unlock()
		// Lost the race with a mute or stop; never leave a live session
		// holding the microphone.
		_ = session.Abort()
		return nil
	}
	r.session = session
	r.mu.Unlock()

	return nil
}

func (r *recognitionControl) sendAudio(audioBytes []byte) {
	r.mu.Lock()
	session := r.session
	muted := r.muted
	r.mu.Unlock()

	if session == nil || muted {
		return
	}
	if err := session.SendAudio(audioBytes); err != nil {
		logger.Warn("failed to forward captured audio", "error", err)
	}
}

// mute aborts the live session and keeps the control from creating another
// until unmute. Abort, not graceful stop: a graceful stop races with
// in-flight results that could surface the agent's own voice as user speech.
func (r *recognitionControl) mute() {
	r.mu.Lock()
	if r.muted || r.stopped {
		r.mu.Unlock()
		return
	}
	r.muted = true
	r.generation++
	session := r.session
	r.session = nil
	r.transcript = ""
	wasSpeaking := r.userSpeaking
	r.userSpeaking = false
	r.stopWatchdogLocked()
	r.mu.Unlock()

	if session != nil {
		_ = session.Abort()
	}
	if wasSpeaking {
		r.emitEvent(events.NewUserSpeechEnded())
	}
}

// unmute creates a fresh session; the one aborted by mute is never reused.
func (r *recognitionControl) unmute(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return ErrStopped
	}
	if !r.muted {
		r.mu.Unlock()
		return nil
	}
	r.muted = false
	r.generation++
	if ctx != nil {
		r.ctx = ctx
	}
	generation := r.generation
	r.mu.Unlock()

	return r.launch(generation)
}

func (r *recognitionControl) stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.generation++
	session := r.session
	r.session = nil
	r.transcript = ""
	r.userSpeaking = false
	r.stopWatchdogLocked()
	r.mu.Unlock()

	if session != nil {
		_ = session.Abort()
	}
}

func (r *recognitionControl) state() RecognitionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RecognitionState{
		IsListening:       r.session != nil && !r.muted && !r.stopped,
		IsUserSpeaking:    r.userSpeaking,
		CurrentTranscript: r.transcript,
	}
}

func (r *recognitionControl) handleSpeechStarted(generation int) {
	r.mu.Lock()
	if stale := generation != r.generation; stale || r.userSpeaking {
		r.mu.Unlock()
		return
	}
	r.userSpeaking = true
	r.mu.Unlock()

	r.emitEvent(events.NewUserSpeechStarted())
}

func (r *recognitionControl) handleSpeechEnded(generation int) {
	r.mu.Lock()
	if stale := generation != r.generation; stale || !r.userSpeaking {
		r.mu.Unlock()
		return
	}
	r.userSpeaking = false
	r.mu.Unlock()

	r.emitEvent(events.NewUserSpeechEnded())
}

func (r *recognitionControl) handleInterim(generation int, transcript string) {
	r.mu.Lock()
	if generation != r.generation {
		r.mu.Unlock()
		return
	}
	r.transcript = transcript
	r.resetWatchdogLocked(generation)
	r.mu.Unlock()

	r.emitEvent(events.NewUserTranscriptInterimUpdated(transcript))
}

func (r *recognitionControl) handleFinal(generation int, transcript string) {
	r.commit(generation, transcript)
}

// watchdogExpired promotes the last interim transcript to final after the
// session has gone quiet without committing one.
func (r *recognitionControl) watchdogExpired(generation int) {
	r.mu.Lock()
	transcript := r.transcript
	r.mu.Unlock()

	if transcript == "" {
		return
	}
	logger.Info("silence watchdog promoting interim transcript to final")
	r.commit(generation, transcript)
}

// commit delivers exactly one final transcript for the current speech
// segment, whether it came from the recognizer or from the watchdog.
func (r *recognitionControl) commit(generation int, transcript string) {
	r.mu.Lock()
	if generation != r.generation {
		r.mu.Unlock()
		return
	}
	r.transcript = ""
	wasSpeaking := r.userSpeaking
	r.userSpeaking = false
	r.stopWatchdogLocked()
	r.mu.Unlock()

	if wasSpeaking {
		r.emitEvent(events.NewUserSpeechEnded())
	}
	// An empty interim overwrite first, so observers never render the
	// committed segment twice.
	r.emitEvent(events.NewUserTranscriptInterimUpdated(""))
	r.emitEvent(events.NewUserTranscriptFinal(transcript))
	r.callbacks.onFinal(transcript)
}

// handleClosed reacts to a session terminating on its own, which platform
// recognizers are allowed to do after a final result. The dead session is
// replaced with a fresh one; deliberate teardowns never reach here because
// Abort suppresses the closed callback.
func (r *recognitionControl) handleClosed(generation int) {
	r.mu.Lock()
	if generation != r.generation || r.stopped || r.muted {
		r.mu.Unlock()
		return
	}
	r.session = nil
	r.mu.Unlock()

	go func() {
		if err := r.launch(generation); err != nil {
			r.callbacks.onError(err)
		}
	}()
}

// handleError handles failures that ended the session. A no-speech class
// error restarts silently; everything else is surfaced first, then the
// control still relaunches so the caller is left in a consistent listening
// state rather than half-torn-down.
func (r *recognitionControl) handleError(generation int, err error) {
	r.mu.Lock()
	if generation != r.generation || r.stopped || r.muted {
		r.mu.Unlock()
		return
	}
	r.session = nil
	r.transcript = ""
	r.stopWatchdogLocked()
	r.mu.Unlock()

	var recognitionErr *speechtotext.RecognitionError
	if !errors.As(err, &recognitionErr) || recognitionErr.Code != speechtotext.CodeNoSpeech {
		r.callbacks.onError(err)
	}

	go func() {
		if err := r.launch(generation); err != nil {
			r.callbacks.onError(err)
		}
	}()
}

// resetWatchdogLocked rearms the silence watchdog; callers hold r.mu.
func (r *recognitionControl) resetWatchdogLocked(generation int) {
	if r.watchdog != nil {
		r.watchdog.Stop()
	}
	r.watchdog = time.AfterFunc(r.watchdogTimeout, func() {
		r.watchdogExpired(generation)
	})
}

// stopWatchdogLocked disarms the silence watchdog; callers hold r.mu.
func (r *recognitionControl) stopWatchdogLocked() {
	if r.watchdog != nil {
		r.watchdog.Stop()
		r.watchdog = nil
	}
}
