package events

import "testing"

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "user speech started", event: NewUserSpeechStarted(), expected: KindUserSpeechStarted},
		{name: "user speech ended", event: NewUserSpeechEnded(), expected: KindUserSpeechEnded},
		{name: "user interim updated", event: NewUserTranscriptInterimUpdated("text"), expected: KindUserTranscriptInterimUpdated},
		{name: "user transcript final", event: NewUserTranscriptFinal("text"), expected: KindUserTranscriptFinal},
		{name: "assistant speech frame", event: NewAssistantSpeechFrame(0, []byte{1}), expected: KindAssistantSpeechFrame},
		{name: "assistant speech final", event: NewAssistantSpeechFinal(), expected: KindAssistantSpeechFinal},
		{name: "assistant playback started", event: NewAssistantPlaybackStarted(), expected: KindAssistantPlaybackStarted},
		{name: "assistant playback progress", event: NewAssistantPlaybackProgress("spoken"), expected: KindAssistantPlaybackProgress},
		{name: "assistant playback ended", event: NewAssistantPlaybackEnded("text"), expected: KindAssistantPlaybackEnded},
		{name: "turn listening", event: NewTurnListening(), expected: KindTurnListening},
		{name: "turn speaking", event: NewTurnSpeaking(), expected: KindTurnSpeaking},
		{name: "turn paused", event: NewTurnPaused(), expected: KindTurnPaused},
		{name: "turn resumed", event: NewTurnResumed(), expected: KindTurnResumed},
		{name: "turn stopped", event: NewTurnStopped(), expected: KindTurnStopped},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
		})
	}
}

func TestListeningAndSpeakingKindsAreDistinct(t *testing.T) {
	listening := NewTurnListening()
	speaking := NewTurnSpeaking()

	if listening.Kind() == speaking.Kind() {
		t.Fatalf("expected listening and speaking kinds to differ, both were %q", listening.Kind())
	}
}

func TestEventsCarryCreationTimestamps(t *testing.T) {
	event := NewUserTranscriptFinal("done")

	if event.Timestamp().IsZero() {
		t.Fatalf("expected event timestamp to be set, got zero time")
	}
}
