package audio

import "time"

const (
	DefaultSampleRate = 16000
	DefaultFormat     = "linear16"
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: encodingFormat(DefaultFormat)}
}

type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	case EncodingLinear16:
		return 0
	}

	return 0
}

// Duration reports how long byteCount bytes of audio in this encoding take to
// play.
func (e EncodingInfo) Duration(byteCount int) time.Duration {
	if e.IsZero() {
		return 0
	}
	return time.Duration(float64(byteCount) / float64(e.SampleRate) / float64(e.Format.ByteSize()) * float64(time.Second))
}

// ByteCount reports how many bytes of audio in this encoding play for the
// given duration, aligned down to a whole sample.
func (e EncodingInfo) ByteCount(duration time.Duration) int {
	if e.IsZero() || duration <= 0 {
		return 0
	}
	samples := int(duration.Seconds() * float64(e.SampleRate))
	return samples * e.Format.ByteSize()
}

// Silence returns a buffer of the given duration filled with this encoding's
// silence value.
func (e EncodingInfo) Silence(duration time.Duration) []byte {
	n := e.ByteCount(duration)
	if n <= 0 {
		return nil
	}
	silence := make([]byte, n)
	if v := e.SilenceValue(); v != 0 {
		for i := range silence {
			silence[i] = v
		}
	}
	return silence
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)
