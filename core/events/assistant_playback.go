package events

const (
	// KindAssistantPlaybackStarted identifies playback start for the current reply.
	KindAssistantPlaybackStarted Kind = "assistant_playback.started"
	// KindAssistantPlaybackProgress identifies spoken-prefix progress updates.
	KindAssistantPlaybackProgress Kind = "assistant_playback.progress"
	// KindAssistantPlaybackEnded identifies the playback completion milestone.
	KindAssistantPlaybackEnded Kind = "assistant_playback.ended"
)

// AssistantPlaybackStarted marks the start of assistant playback.
type AssistantPlaybackStarted struct{ Base }

// NewAssistantPlaybackStarted creates an assistant playback started event.
func NewAssistantPlaybackStarted() AssistantPlaybackStarted {
	return AssistantPlaybackStarted{Base: NewBase(KindAssistantPlaybackStarted)}
}

// AssistantPlaybackProgress carries the prefix of the reply spoken so far.
type AssistantPlaybackProgress struct {
	Base
	Spoken string
}

// NewAssistantPlaybackProgress creates an assistant playback progress event.
func NewAssistantPlaybackProgress(spoken string) AssistantPlaybackProgress {
	return AssistantPlaybackProgress{Base: NewBase(KindAssistantPlaybackProgress), Spoken: spoken}
}

// AssistantPlaybackEnded marks the end of assistant playback.
type AssistantPlaybackEnded struct {
	Base
	Transcript string
}

// NewAssistantPlaybackEnded creates an assistant playback ended event.
func NewAssistantPlaybackEnded(transcript string) AssistantPlaybackEnded {
	return AssistantPlaybackEnded{Base: NewBase(KindAssistantPlaybackEnded), Transcript: transcript}
}
