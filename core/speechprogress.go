package turntaking

import (
	"strings"
	"sync"

	"github.com/parleylabs/parley-core/core/texttospeech"
)

// speechProgress folds per-character alignment from the synthesis stream into
// playback completion marks, so the spoken prefix of a reply is known as
// audio actually plays rather than as it arrives over the network.
//
// Alignment is optional on the wire. When no chunk carried any, progress
// stays silent and only the completion text is reported.
type speechProgress struct {
	mu        sync.Mutex
	requested string
	chars     map[int]string
	spoken    strings.Builder
}

func newSpeechProgress(requested string) *speechProgress {
	return &speechProgress{
		requested: requested,
		chars:     map[int]string{},
	}
}

// recordChunk remembers which characters the chunk with the given playback
// sequence speaks.
func (p *speechProgress) recordChunk(sequence int, alignment *texttospeech.Alignment) {
	if alignment == nil || len(alignment.Chars) == 0 {
		return
	}

	p.mu.Lock()
	p.chars[sequence] = strings.Join(alignment.Chars, "")
	p.mu.Unlock()
}

// chunkPlayed advances the spoken prefix past the chunk that just finished
// playing. It reports the cumulative spoken text and whether the prefix
// actually moved; chunks without alignment never move it.
func (p *speechProgress) chunkPlayed(sequence int) (spoken string, updated bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	chars, ok := p.chars[sequence]
	if !ok {
		return "", false
	}
	delete(p.chars, sequence)
	p.spoken.WriteString(chars)
	return p.spoken.String(), true
}

// finalSpoken reports the text confirmed as spoken once the utterance ends.
// A fully played utterance spoke everything that was requested; a cut-short
// one spoke only the aligned prefix confirmed by completion marks.
func (p *speechProgress) finalSpoken(completed bool) string {
	if completed {
		return p.requested
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spoken.String()
}
