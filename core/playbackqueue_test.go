package turntaking

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/parleylabs/parley-core/core/audio"
	"github.com/parleylabs/parley-core/core/texttospeech"
)

func pcmSeconds(seconds float64) []byte {
	info := audio.GetDefaultEncodingInfo()
	return make([]byte, info.ByteCount(time.Duration(seconds*float64(time.Second))))
}

func waitForSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestDrainHandlerFiresOnceAfterAllChunks(t *testing.T) {
	output := &stubQueueOutput{}
	var played []int
	var playedMu sync.Mutex

	q := newAudioQueue(output, audio.GetDefaultEncodingInfo(), audioQueueCallbacks{
		onChunkPlayed: func(chunk *audioChunk) {
			playedMu.Lock()
			played = append(played, chunk.sequence)
			playedMu.Unlock()
		},
	})
	defer q.stop()

	drained := make(chan struct{}, 1)
	drainCalls := atomic.Int32{}

	for i := 0; i < 4; i++ {
		if _, ok := q.enqueue(pcmSeconds(0.1), nil, nil); !ok {
			t.Fatalf("expected enqueue %d to be accepted", i)
		}
	}
	if _, ok := q.enqueue(pcmSeconds(0.1), nil, func() {
		if drainCalls.Add(1) == 1 {
			drained <- struct{}{}
		}
	}); !ok {
		t.Fatalf("expected final enqueue to be accepted")
	}

	waitForSignal(t, drained, "drain handler")

	time.Sleep(50 * time.Millisecond)
	if got := drainCalls.Load(); got != 1 {
		t.Fatalf("expected drain handler once, got %d", got)
	}
	if got := q.pendingCount(); got != 0 {
		t.Fatalf("expected empty pending queue after drain, got %d", got)
	}

	playedMu.Lock()
	defer playedMu.Unlock()
	if len(played) != 5 {
		t.Fatalf("expected 5 played chunks, got %v", played)
	}
	for i, sequence := range played {
		if sequence != i {
			t.Fatalf("expected chunks played in sequence order, got %v", played)
		}
	}
}

func TestConsecutiveStreamsEachDrainTheirOwnHandler(t *testing.T) {
	output := &stubQueueOutput{}
	q := newAudioQueue(output, audio.GetDefaultEncodingInfo(), audioQueueCallbacks{})
	defer q.stop()

	firstDrained := make(chan struct{}, 1)
	firstCalls := atomic.Int32{}
	q.enqueue(pcmSeconds(0.1), nil, nil)
	q.enqueue(pcmSeconds(0.1), nil, func() {
		if firstCalls.Add(1) == 1 {
			firstDrained <- struct{}{}
		}
	})
	waitForSignal(t, firstDrained, "first stream's drain handler")

	// The queue is reused as-is: a completed drain must not latch against
	// the next stream.
	secondDrained := make(chan struct{}, 1)
	secondCalls := atomic.Int32{}
	q.enqueue(pcmSeconds(0.1), nil, nil)
	q.enqueue(pcmSeconds(0.1), nil, nil)
	q.attachDrainHandler(func() {
		if secondCalls.Add(1) == 1 {
			secondDrained <- struct{}{}
		}
	})
	waitForSignal(t, secondDrained, "second stream's drain handler")

	time.Sleep(50 * time.Millisecond)
	if got := firstCalls.Load(); got != 1 {
		t.Fatalf("expected the first handler exactly once, got %d", got)
	}
	if got := secondCalls.Load(); got != 1 {
		t.Fatalf("expected the second handler exactly once, got %d", got)
	}
	if got := q.pendingCount(); got != 0 {
		t.Fatalf("expected empty pending queue after both drains, got %d", got)
	}
}

func TestShuffledDecodeLandingsPlayInSequenceOrder(t *testing.T) {
	output := &stubQueueOutput{}
	var played []*audioChunk
	var playedMu sync.Mutex

	q := newAudioQueue(output, audio.GetDefaultEncodingInfo(), audioQueueCallbacks{
		onChunkPlayed: func(chunk *audioChunk) {
			playedMu.Lock()
			played = append(played, chunk)
			playedMu.Unlock()
		},
	})
	defer q.stop()

	const chunks = 8
	info := audio.EncodingInfo{SampleRate: audio.DefaultSampleRate, Format: audio.EncodingLinear16}

	// Simulate decodes landing in an arbitrary order: sequences were handed
	// out in arrival order, but insertion happens shuffled.
	q.mu.Lock()
	q.arrivalSeq = chunks
	q.decoding = chunks
	epoch := q.epoch
	q.mu.Unlock()

	order := rand.Perm(chunks)
	for _, sequence := range order {
		pcm := pcmSeconds(0.05)
		q.insertChunk(epoch, &audioChunk{
			sequence: sequence,
			markID:   uuid.NewString(),
			pcm:      pcm,
			duration: info.Duration(len(pcm)),
		})
	}

	drained := make(chan struct{}, 1)
	q.attachDrainHandler(func() { drained <- struct{}{} })
	waitForSignal(t, drained, "drain handler")

	playedMu.Lock()
	defer playedMu.Unlock()
	if len(played) != chunks {
		t.Fatalf("expected %d played chunks, got %d", chunks, len(played))
	}
	for i := 1; i < len(played); i++ {
		if played[i].sequence != played[i-1].sequence+1 {
			t.Fatalf("expected strictly increasing sequences, got %d after %d", played[i].sequence, played[i-1].sequence)
		}
		if played[i].startTime.Before(played[i-1].startTime) {
			t.Fatalf("expected start times monotonic with sequence, got %v before %v", played[i].startTime, played[i-1].startTime)
		}
	}
}

func TestThreeChunkScheduleCoversTotalDurationMinusCrossfades(t *testing.T) {
	output := &stubQueueOutput{}
	var played []*audioChunk
	var playedMu sync.Mutex

	q := newAudioQueue(output, audio.GetDefaultEncodingInfo(), audioQueueCallbacks{
		onChunkPlayed: func(chunk *audioChunk) {
			playedMu.Lock()
			played = append(played, chunk)
			playedMu.Unlock()
		},
	})
	defer q.stop()

	drained := make(chan struct{}, 1)
	drainCalls := atomic.Int32{}

	q.enqueue(pcmSeconds(1.0), nil, nil)
	q.enqueue(pcmSeconds(0.5), nil, nil)
	q.enqueue(pcmSeconds(1.0), nil, func() {
		if drainCalls.Add(1) == 1 {
			drained <- struct{}{}
		}
	})

	waitForSignal(t, drained, "drain handler")

	time.Sleep(50 * time.Millisecond)
	if got := drainCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one drain callback, got %d", got)
	}
	if got := q.pendingCount(); got != 0 {
		t.Fatalf("expected empty pending queue after drain, got %d", got)
	}

	playedMu.Lock()
	defer playedMu.Unlock()
	if len(played) != 3 {
		t.Fatalf("expected 3 played chunks, got %d", len(played))
	}
	last := played[len(played)-1]
	scheduled := last.startTime.Add(last.duration).Sub(played[0].startTime)
	want := 2500*time.Millisecond - 2*crossfadeDuration
	if scheduled < want {
		t.Fatalf("expected at least %v of scheduled audio, got %v", want, scheduled)
	}
}

func TestRetroactiveDrainHandlerStillFires(t *testing.T) {
	output := &stubQueueOutput{}
	q := newAudioQueue(output, audio.GetDefaultEncodingInfo(), audioQueueCallbacks{})
	defer q.stop()

	// Both chunks are queued with no handler, as if the socket closed before
	// anyone knew the utterance was over.
	q.enqueue(pcmSeconds(0.1), nil, nil)
	q.enqueue(pcmSeconds(0.1), nil, nil)

	time.Sleep(100 * time.Millisecond)

	drained := make(chan struct{}, 1)
	drainCalls := atomic.Int32{}
	q.attachDrainHandler(func() {
		if drainCalls.Add(1) == 1 {
			drained <- struct{}{}
		}
	})

	waitForSignal(t, drained, "retroactively attached drain handler")

	time.Sleep(50 * time.Millisecond)
	if got := drainCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one drain callback, got %d", got)
	}
}

func TestBelowThresholdWithoutHandlerDoesNotStart(t *testing.T) {
	output := &stubQueueOutput{}
	q := newAudioQueue(output, audio.GetDefaultEncodingInfo(), audioQueueCallbacks{})
	defer q.stop()

	q.enqueue(pcmSeconds(0.1), nil, nil)

	time.Sleep(100 * time.Millisecond)
	if got := output.sendCount(); got != 0 {
		t.Fatalf("expected no audio sent below the start threshold, got %d sends", got)
	}
	if got := q.pendingCount(); got != 1 {
		t.Fatalf("expected the chunk to stay pending, got %d", got)
	}
}

func TestUndecodableChunkAdvancesSequence(t *testing.T) {
	output := &stubQueueOutput{}
	var played []int
	var playedMu sync.Mutex

	q := newAudioQueue(output, audio.GetDefaultEncodingInfo(), audioQueueCallbacks{
		onChunkPlayed: func(chunk *audioChunk) {
			playedMu.Lock()
			played = append(played, chunk.sequence)
			playedMu.Unlock()
		},
	})
	defer q.stop()

	drained := make(chan struct{}, 1)

	q.enqueue(pcmSeconds(0.1), nil, nil)
	q.enqueue([]byte{0x01}, nil, nil) // odd length cannot decode as linear16
	q.enqueue(pcmSeconds(0.1), nil, func() { drained <- struct{}{} })

	waitForSignal(t, drained, "drain handler")

	playedMu.Lock()
	defer playedMu.Unlock()
	if len(played) != 2 || played[0] != 0 || played[1] != 2 {
		t.Fatalf("expected the failed chunk skipped without stalling, got %v", played)
	}
}

func TestClearTwiceLeavesInitialState(t *testing.T) {
	output := &stubQueueOutput{}
	q := newAudioQueue(output, audio.GetDefaultEncodingInfo(), audioQueueCallbacks{})
	defer q.stop()

	q.enqueue(pcmSeconds(0.1), nil, nil)
	q.enqueue(pcmSeconds(0.1), nil, nil)

	q.clear()
	q.clear()

	if got := q.pendingCount(); got != 0 {
		t.Fatalf("expected empty pending queue after clear, got %d", got)
	}

	sequence, ok := q.enqueue(pcmSeconds(0.1), nil, nil)
	if !ok {
		t.Fatalf("expected cleared queue to accept new chunks")
	}
	if sequence != 0 {
		t.Fatalf("expected sequence counter reset by clear, got %d", sequence)
	}
}

func TestMarksFromBeforeClearCannotResurrectTheDrainHandler(t *testing.T) {
	output := &stubQueueOutput{holdMarks: true}
	q := newAudioQueue(output, audio.GetDefaultEncodingInfo(), audioQueueCallbacks{})
	defer q.stop()

	drainCalls := atomic.Int32{}
	q.enqueue(pcmSeconds(0.1), nil, nil)
	q.enqueue(pcmSeconds(0.1), nil, func() { drainCalls.Add(1) })

	// Both chunks are scheduled but the device has not completed them yet.
	deadline := time.Now().Add(2 * time.Second)
	for output.markCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for completion marks to register")
		}
		time.Sleep(5 * time.Millisecond)
	}

	q.clear()
	output.releaseMarks()

	time.Sleep(100 * time.Millisecond)
	if got := drainCalls.Load(); got != 0 {
		t.Fatalf("expected stale completion marks to no-op after clear, got %d drain calls", got)
	}
}

func TestEnqueueAfterStopIsRefused(t *testing.T) {
	output := &stubQueueOutput{}
	q := newAudioQueue(output, audio.GetDefaultEncodingInfo(), audioQueueCallbacks{})

	q.stop()
	q.stop()

	if _, ok := q.enqueue(pcmSeconds(0.1), nil, nil); ok {
		t.Fatalf("expected stopped queue to refuse chunks")
	}
}

func TestAlignmentRidesChunkFromEnqueueToCompletion(t *testing.T) {
	output := &stubQueueOutput{}
	alignments := make(chan *texttospeech.Alignment, 2)

	q := newAudioQueue(output, audio.GetDefaultEncodingInfo(), audioQueueCallbacks{
		onChunkPlayed: func(chunk *audioChunk) { alignments <- chunk.alignment },
	})
	defer q.stop()

	alignment := &texttospeech.Alignment{Chars: []string{"h", "i"}, StartTimesMS: []int{0, 50}, DurationsMS: []int{50, 50}}
	q.enqueue(pcmSeconds(0.1), alignment, nil)
	q.enqueue(pcmSeconds(0.1), nil, nil)

	select {
	case got := <-alignments:
		if got != alignment {
			t.Fatalf("expected alignment to ride the chunk, got %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for chunk completion")
	}
}

// stubQueueOutput is an output device that reports instant completion: every
// registered mark fires as soon as it is registered, unless holdMarks defers
// them until releaseMarks.
type stubQueueOutput struct {
	holdMarks bool

	mu    sync.Mutex
	sends [][]byte
	held  []func()
	marks []string
}

func (o *stubQueueOutput) EncodingInfo() audio.EncodingInfo    { return audio.GetDefaultEncodingInfo() }
func (o *stubQueueOutput) StartPlayback(context.Context) error { return nil }
func (o *stubQueueOutput) StopPlayback() error                 { return nil }
func (o *stubQueueOutput) ClearBuffer()                        {}

func (o *stubQueueOutput) SendAudio(audioBytes []byte) error {
	o.mu.Lock()
	o.sends = append(o.sends, append([]byte(nil), audioBytes...))
	o.mu.Unlock()
	return nil
}

func (o *stubQueueOutput) Mark(name string, callback func(name string)) error {
	o.mu.Lock()
	o.marks = append(o.marks, name)
	if o.holdMarks {
		o.held = append(o.held, func() { callback(name) })
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()
	go callback(name)
	return nil
}

func (o *stubQueueOutput) releaseMarks() {
	o.mu.Lock()
	held := o.held
	o.held = nil
	o.mu.Unlock()
	for _, fire := range held {
		go fire()
	}
}

func (o *stubQueueOutput) sendCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sends)
}

func (o *stubQueueOutput) markCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.marks)
}
