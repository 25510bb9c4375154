package events

const (
	// KindAssistantSpeechFrame identifies a synthesized audio chunk received from the stream.
	KindAssistantSpeechFrame Kind = "assistant_speech.frame"
	// KindAssistantSpeechFinal identifies the last chunk of the synthesis stream.
	KindAssistantSpeechFinal Kind = "assistant_speech.final"
)

// AssistantSpeechFrame carries a synthesized audio chunk and the playback
// sequence number it was assigned on arrival.
type AssistantSpeechFrame struct {
	Base
	Sequence int
	Audio    []byte
}

// NewAssistantSpeechFrame creates an assistant speech frame event.
func NewAssistantSpeechFrame(sequence int, audio []byte) AssistantSpeechFrame {
	return AssistantSpeechFrame{Base: NewBase(KindAssistantSpeechFrame), Sequence: sequence, Audio: audio}
}

// AssistantSpeechFinal marks the end of the synthesis stream.
type AssistantSpeechFinal struct{ Base }

// NewAssistantSpeechFinal creates an assistant speech final event.
func NewAssistantSpeechFinal() AssistantSpeechFinal {
	return AssistantSpeechFinal{Base: NewBase(KindAssistantSpeechFinal)}
}
