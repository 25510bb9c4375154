package speechtotext

import "fmt"

// Recognition error codes shared across recognition clients.
const (
	// CodeNoSpeech marks sessions ended by the platform because no speech
	// arrived. Callers treat it as a cue to restart silently.
	CodeNoSpeech = "no-speech"
	// CodeTransport marks sessions ended by a transport failure.
	CodeTransport = "transport"
)

// RecognitionError describes a failure that ended a recognition session.
type RecognitionError struct {
	Code string
	Err  error
}

func (e *RecognitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("recognition error (%s)", e.Code)
	}
	return fmt.Sprintf("recognition error (%s): %v", e.Code, e.Err)
}

func (e *RecognitionError) Unwrap() error {
	return e.Err
}
