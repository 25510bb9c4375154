package texttospeech

import "fmt"

// SynthesisError describes a failure that ended a speech stream before the
// final callback fired.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string {
	if e.Err == nil {
		return "synthesis error"
	}
	return fmt.Sprintf("synthesis error: %v", e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}
