package elevenlabs

import (
	"fmt"

	"github.com/parleylabs/parley-core/core/audio"
)

// convertEncoding maps an encoding to the upstream output_format label.
func convertEncoding(encoding audio.EncodingInfo) (string, error) {
	switch encoding.Format {
	case audio.EncodingLinear16:
		switch encoding.SampleRate {
		case 8000, 16000, 22050, 24000, 44100:
			return fmt.Sprintf("pcm_%d", encoding.SampleRate), nil
		default:
			return "", fmt.Errorf("unsupported sample rate for pcm output: %d", encoding.SampleRate)
		}
	case audio.EncodingMulaw:
		if encoding.SampleRate != 8000 {
			return "", fmt.Errorf("unsupported sample rate for ulaw output: %d", encoding.SampleRate)
		}
		return "ulaw_8000", nil
	case audio.EncodingALaw:
		if encoding.SampleRate != 8000 {
			return "", fmt.Errorf("unsupported sample rate for alaw output: %d", encoding.SampleRate)
		}
		return "alaw_8000", nil
	default:
		return "", fmt.Errorf("unsupported encoding: %s", encoding.Format.Name())
	}
}
