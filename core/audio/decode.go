package audio

import "fmt"

// DecodeToLinear16 converts transport-encoded audio bytes into 16-bit
// little-endian PCM suitable for playback devices. It returns the decoded
// samples together with their encoding info (the sample rate is preserved,
// the format is always linear16).
func DecodeToLinear16(raw []byte, info EncodingInfo) ([]byte, EncodingInfo, error) {
	out := EncodingInfo{SampleRate: info.SampleRate, Format: EncodingLinear16}

	switch info.Format {
	case EncodingLinear16:
		if len(raw)%2 != 0 {
			return nil, EncodingInfo{}, fmt.Errorf("linear16 audio has odd length %d", len(raw))
		}
		return raw, out, nil

	case EncodingMulaw:
		pcm := make([]byte, len(raw)*2)
		for i, b := range raw {
			putSample(pcm, i, mulawToLinear(b))
		}
		return pcm, out, nil

	case EncodingALaw:
		pcm := make([]byte, len(raw)*2)
		for i, b := range raw {
			putSample(pcm, i, alawToLinear(b))
		}
		return pcm, out, nil
	}

	return nil, EncodingInfo{}, fmt.Errorf("unsupported audio format %q", info.Format.Name())
}

func mulawToLinear(b byte) int16 {
	b = ^b
	t := (int(b&0x0F) << 3) + 0x84
	t <<= (b & 0x70) >> 4
	if b&0x80 != 0 {
		return int16(0x84 - t)
	}
	return int16(t - 0x84)
}

func alawToLinear(b byte) int16 {
	b ^= 0x55
	t := int(b&0x0F) << 4
	switch seg := (b & 0x70) >> 4; seg {
	case 0:
		t += 8
	case 1:
		t += 0x108
	default:
		t += 0x108
		t <<= seg - 1
	}
	if b&0x80 != 0 {
		return int16(t)
	}
	return int16(-t)
}

func sampleAt(pcm []byte, i int) int16 {
	return int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
}

func putSample(pcm []byte, i int, s int16) {
	pcm[2*i] = byte(s)
	pcm[2*i+1] = byte(uint16(s) >> 8)
}
