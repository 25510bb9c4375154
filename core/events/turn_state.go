package events

const (
	// KindTurnListening identifies the microphone taking the turn.
	KindTurnListening Kind = "turn_state.listening"
	// KindTurnSpeaking identifies playback taking the turn.
	KindTurnSpeaking Kind = "turn_state.speaking"
	// KindTurnPaused identifies an operator-level suspend.
	KindTurnPaused Kind = "turn_state.paused"
	// KindTurnResumed identifies an operator-level resume.
	KindTurnResumed Kind = "turn_state.resumed"
	// KindTurnStopped identifies the end of the session.
	KindTurnStopped Kind = "turn_state.stopped"
)

// TurnListening marks the turn passing to the microphone.
type TurnListening struct{ Base }

// NewTurnListening creates a turn listening event.
func NewTurnListening() TurnListening {
	return TurnListening{Base: NewBase(KindTurnListening)}
}

// TurnSpeaking marks the turn passing to assistant playback.
type TurnSpeaking struct{ Base }

// NewTurnSpeaking creates a turn speaking event.
func NewTurnSpeaking() TurnSpeaking {
	return TurnSpeaking{Base: NewBase(KindTurnSpeaking)}
}

// TurnPaused marks an operator-level suspend of the whole session.
type TurnPaused struct{ Base }

// NewTurnPaused creates a turn paused event.
func NewTurnPaused() TurnPaused {
	return TurnPaused{Base: NewBase(KindTurnPaused)}
}

// TurnResumed marks an operator-level resume of the whole session.
type TurnResumed struct{ Base }

// NewTurnResumed creates a turn resumed event.
func NewTurnResumed() TurnResumed {
	return TurnResumed{Base: NewBase(KindTurnResumed)}
}

// TurnStopped marks the end of the session.
type TurnStopped struct{ Base }

// NewTurnStopped creates a turn stopped event.
func NewTurnStopped() TurnStopped {
	return TurnStopped{Base: NewBase(KindTurnStopped)}
}
