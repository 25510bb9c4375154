package turntaking

import events "github.com/parleylabs/parley-core/core/events"

// eventEmitter publishes one typed event to whoever is listening.
type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

// newCallbackEventEmitter builds an emitter that fans typed events out to the
// caller-facing callbacks configured at Initialize. The raw event callback,
// when set, sees every event before the per-callback routing.
func newCallbackEventEmitter(opts InitializeOptions) eventEmitter {
	return func(event events.Event) {
		if opts.onEvent != nil {
			opts.onEvent(event)
		}

		switch typedEvent := event.(type) {
		case events.UserSpeechStarted:
			if opts.onUserSpeakingChanged != nil {
				opts.onUserSpeakingChanged(true)
			}
		case events.UserSpeechEnded:
			if opts.onUserSpeakingChanged != nil {
				opts.onUserSpeakingChanged(false)
			}
		case events.UserTranscriptInterimUpdated:
			if opts.onTranscript != nil {
				opts.onTranscript(typedEvent.Transcript, false)
			}
		case events.UserTranscriptFinal:
			if opts.onTranscript != nil {
				opts.onTranscript(typedEvent.Transcript, true)
			}
		case events.AssistantSpeechFrame:
			if opts.onAudio != nil {
				opts.onAudio(typedEvent.Audio)
			}
		case events.AssistantPlaybackProgress:
			if opts.onSpokenText != nil {
				opts.onSpokenText(typedEvent.Spoken)
			}
		case events.AssistantPlaybackEnded:
			if opts.onPlaybackEnded != nil {
				opts.onPlaybackEnded(typedEvent.Transcript)
			}
		}
	}
}
