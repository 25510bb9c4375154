package turntaking

import (
	"testing"

	"github.com/parleylabs/parley-core/core/texttospeech"
)

func alignmentFor(text string) *texttospeech.Alignment {
	alignment := &texttospeech.Alignment{}
	for i, r := range text {
		alignment.Chars = append(alignment.Chars, string(r))
		alignment.StartTimesMS = append(alignment.StartTimesMS, i*50)
		alignment.DurationsMS = append(alignment.DurationsMS, 50)
	}
	return alignment
}

func TestChunkPlayedAdvancesSpokenPrefix(t *testing.T) {
	progress := newSpeechProgress("hello world")
	progress.recordChunk(0, alignmentFor("hello "))
	progress.recordChunk(1, alignmentFor("world"))

	spoken, updated := progress.chunkPlayed(0)
	if !updated || spoken != "hello " {
		t.Fatalf("expected spoken prefix %q, got %q (updated=%t)", "hello ", spoken, updated)
	}

	spoken, updated = progress.chunkPlayed(1)
	if !updated || spoken != "hello world" {
		t.Fatalf("expected spoken prefix %q, got %q (updated=%t)", "hello world", spoken, updated)
	}
}

func TestChunkWithoutAlignmentDoesNotMoveThePrefix(t *testing.T) {
	progress := newSpeechProgress("hello")
	progress.recordChunk(0, nil)

	if _, updated := progress.chunkPlayed(0); updated {
		t.Fatalf("expected no progress for an unaligned chunk")
	}
	if _, updated := progress.chunkPlayed(7); updated {
		t.Fatalf("expected no progress for an unknown sequence")
	}
}

func TestFinalSpokenDependsOnCompletion(t *testing.T) {
	progress := newSpeechProgress("hello world")
	progress.recordChunk(0, alignmentFor("hello "))
	progress.recordChunk(1, alignmentFor("world"))
	progress.chunkPlayed(0)

	if got := progress.finalSpoken(false); got != "hello " {
		t.Fatalf("expected cut-short utterance to report the played prefix, got %q", got)
	}
	if got := progress.finalSpoken(true); got != "hello world" {
		t.Fatalf("expected completed utterance to report the full text, got %q", got)
	}
}
