package audio

import "testing"

func TestDecodeToLinear16PassesThroughLinear16(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03, 0x04}
	info := EncodingInfo{SampleRate: 16000, Format: EncodingLinear16}

	pcm, out, err := DecodeToLinear16(raw, info)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(pcm) != len(raw) {
		t.Fatalf("expected passthrough length %d, got %d", len(raw), len(pcm))
	}
	if out.SampleRate != 16000 || out.Format != EncodingLinear16 {
		t.Fatalf("expected linear16 at 16kHz out, got %+v", out)
	}
}

func TestDecodeToLinear16RejectsOddLinear16(t *testing.T) {
	info := EncodingInfo{SampleRate: 16000, Format: EncodingLinear16}

	if _, _, err := DecodeToLinear16([]byte{0x01}, info); err == nil {
		t.Fatalf("expected odd-length linear16 to fail decoding")
	}
}

func TestDecodeToLinear16ExpandsMulaw(t *testing.T) {
	info := EncodingInfo{SampleRate: 8000, Format: EncodingMulaw}

	pcm, out, err := DecodeToLinear16([]byte{0xFF, 0x00, 0x80}, info)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(pcm) != 6 {
		t.Fatalf("expected 3 mulaw bytes to expand to 6 pcm bytes, got %d", len(pcm))
	}
	if out.Format != EncodingLinear16 || out.SampleRate != 8000 {
		t.Fatalf("expected linear16 at 8kHz out, got %+v", out)
	}

	if got := sampleAt(pcm, 0); got != 0 {
		t.Fatalf("expected mulaw 0xFF to decode to 0, got %d", got)
	}
	if got := sampleAt(pcm, 1); got != -32124 {
		t.Fatalf("expected mulaw 0x00 to decode to -32124, got %d", got)
	}
	if got := sampleAt(pcm, 2); got != 32124 {
		t.Fatalf("expected mulaw 0x80 to decode to 32124, got %d", got)
	}
}

func TestDecodeToLinear16ExpandsALaw(t *testing.T) {
	info := EncodingInfo{SampleRate: 8000, Format: EncodingALaw}

	pcm, _, err := DecodeToLinear16([]byte{0x55, 0xD5, 0x2A, 0xAA}, info)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got := sampleAt(pcm, 0); got != -8 {
		t.Fatalf("expected alaw 0x55 to decode to -8, got %d", got)
	}
	if got := sampleAt(pcm, 1); got != 8 {
		t.Fatalf("expected alaw 0xD5 to decode to 8, got %d", got)
	}
	if got := sampleAt(pcm, 2); got != -32256 {
		t.Fatalf("expected alaw 0x2A to decode to -32256, got %d", got)
	}
	if got := sampleAt(pcm, 3); got != 32256 {
		t.Fatalf("expected alaw 0xAA to decode to 32256, got %d", got)
	}
}

func TestDecodeToLinear16RejectsUnknownFormat(t *testing.T) {
	info := EncodingInfo{SampleRate: 8000, Format: encodingFormat("opus")}

	if _, _, err := DecodeToLinear16([]byte{0x00}, info); err == nil {
		t.Fatalf("expected unknown format to fail decoding")
	}
}
