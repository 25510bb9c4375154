package audio

import (
	"testing"
	"time"
)

func TestDurationAndByteCountRoundTrip(t *testing.T) {
	info := EncodingInfo{SampleRate: 16000, Format: EncodingLinear16}

	if got := info.Duration(32000); got != time.Second {
		t.Fatalf("expected 32000 linear16 bytes at 16kHz to last 1s, got %s", got)
	}
	if got := info.ByteCount(time.Second); got != 32000 {
		t.Fatalf("expected 1s at 16kHz linear16 to be 32000 bytes, got %d", got)
	}

	mulaw := EncodingInfo{SampleRate: 8000, Format: EncodingMulaw}
	if got := mulaw.Duration(8000); got != time.Second {
		t.Fatalf("expected 8000 mulaw bytes at 8kHz to last 1s, got %s", got)
	}
	if got := mulaw.ByteCount(500 * time.Millisecond); got != 4000 {
		t.Fatalf("expected 500ms at 8kHz mulaw to be 4000 bytes, got %d", got)
	}
}

func TestByteCountAlignsToWholeSamples(t *testing.T) {
	info := EncodingInfo{SampleRate: 16000, Format: EncodingLinear16}

	if got := info.ByteCount(time.Millisecond / 10); got%2 != 0 {
		t.Fatalf("expected linear16 byte count to be sample aligned, got %d", got)
	}
}

func TestSilenceUsesFormatSilenceValue(t *testing.T) {
	mulaw := EncodingInfo{SampleRate: 8000, Format: EncodingMulaw}
	silence := mulaw.Silence(time.Millisecond)
	if len(silence) != 8 {
		t.Fatalf("expected 8 bytes of mulaw silence for 1ms, got %d", len(silence))
	}
	for i, b := range silence {
		if b != 0xFF {
			t.Fatalf("expected mulaw silence byte 0xFF at %d, got %#x", i, b)
		}
	}

	linear := EncodingInfo{SampleRate: 16000, Format: EncodingLinear16}
	for i, b := range linear.Silence(time.Millisecond) {
		if b != 0 {
			t.Fatalf("expected linear16 silence byte 0 at %d, got %#x", i, b)
		}
	}
}

func TestZeroEncodingInfoProducesNothing(t *testing.T) {
	var info EncodingInfo

	if !info.IsZero() {
		t.Fatalf("expected zero-value encoding info to report IsZero")
	}
	if got := info.Duration(100); got != 0 {
		t.Fatalf("expected zero encoding info duration 0, got %s", got)
	}
	if got := info.Silence(time.Second); got != nil {
		t.Fatalf("expected zero encoding info silence nil, got %d bytes", len(got))
	}
}
