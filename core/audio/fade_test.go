package audio

import (
	"math"
	"testing"
)

func constantPCM(samples int, value int16) []byte {
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		putSample(pcm, i, value)
	}
	return pcm
}

func TestFadeInStartsAtFloorAndReachesUnity(t *testing.T) {
	pcm := constantPCM(10, 16000)
	FadeIn(pcm, 4)

	first := sampleAt(pcm, 0)
	if first < 0 || first > 16 {
		t.Fatalf("expected first sample near the gain floor, got %d", first)
	}
	if got := sampleAt(pcm, 3); got != 16000 {
		t.Fatalf("expected last ramp sample at unity gain, got %d", got)
	}
	if got := sampleAt(pcm, 4); got != 16000 {
		t.Fatalf("expected samples past the ramp untouched, got %d", got)
	}
}

func TestFadeOutEndsAtFloor(t *testing.T) {
	pcm := constantPCM(10, 16000)
	FadeOut(pcm, 4)

	if got := sampleAt(pcm, 5); got != 16000 {
		t.Fatalf("expected samples before the ramp untouched, got %d", got)
	}
	if got := sampleAt(pcm, 6); got != 16000 {
		t.Fatalf("expected first ramp sample at unity gain, got %d", got)
	}
	last := sampleAt(pcm, 9)
	if last < 0 || last > 16 {
		t.Fatalf("expected final sample near the gain floor, got %d", last)
	}
}

func TestFadeRampClampsToBufferLength(t *testing.T) {
	pcm := constantPCM(2, 16000)
	FadeIn(pcm, 100)

	if got := sampleAt(pcm, 1); got != 16000 {
		t.Fatalf("expected clamped ramp to end at unity gain, got %d", got)
	}
}

func TestCrossfadeMixesTailDownAndHeadUp(t *testing.T) {
	tail := constantPCM(8, 16000)
	head := constantPCM(8, 16000)

	mixed := Crossfade(tail, head)
	if len(mixed) != 16 {
		t.Fatalf("expected mixed length 16 bytes, got %d", len(mixed))
	}

	first := sampleAt(mixed, 0)
	if first < 15900 || first > 16100 {
		t.Fatalf("expected start of crossfade dominated by the tail, got %d", first)
	}
	last := sampleAt(mixed, 7)
	if last < 15900 || last > 16100 {
		t.Fatalf("expected end of crossfade dominated by the head, got %d", last)
	}
	mid := sampleAt(mixed, 4)
	if mid >= first {
		t.Fatalf("expected crossfade midpoint below the edges, got %d >= %d", mid, first)
	}
}

func TestCrossfadeHandlesUnevenLengths(t *testing.T) {
	tail := constantPCM(4, 8000)
	head := constantPCM(10, 8000)

	mixed := Crossfade(tail, head)
	if len(mixed) != 20 {
		t.Fatalf("expected mixed length to match the longer input, got %d", len(mixed))
	}
	if got := sampleAt(mixed, 9); got != 8000 {
		t.Fatalf("expected trailing head sample at unity gain, got %d", got)
	}
}

func TestCrossfadeClampsInsteadOfWrapping(t *testing.T) {
	tail := constantPCM(2, math.MaxInt16)
	head := constantPCM(2, math.MaxInt16)

	for i, mixed := 0, Crossfade(tail, head); i < len(mixed)/2; i++ {
		if got := sampleAt(mixed, i); got < 0 {
			t.Fatalf("expected clamped mix, got wrapped sample %d at %d", got, i)
		}
	}
}
