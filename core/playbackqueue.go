package turntaking

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parleylabs/parley-core/core/audio"
	"github.com/parleylabs/parley-core/core/texttospeech"
)

const (
	// crossfadeDuration is how much adjacent chunks overlap. Each chunk's
	// tail is held back and mixed into the next chunk's head over this
	// window, so boundaries never click.
	crossfadeDuration = 30 * time.Millisecond

	// scheduleLookahead pads the first start time so the device is never
	// asked to begin in the past.
	scheduleLookahead = 50 * time.Millisecond

	// startThreshold is how many chunks must be buffered before scheduling
	// starts when no drain handler is attached yet.
	startThreshold = 2
)

// audioChunk is one decoded synthesis frame, owned by the queue from arrival
// until its completion mark fires.
type audioChunk struct {
	sequence  int
	markID    string
	pcm       []byte
	alignment *texttospeech.Alignment
	duration  time.Duration
	startTime time.Time
	scheduled bool
	failed    bool
}

type audioQueueCallbacks struct {
	onPlaybackStarted func()
	onChunkPlayed     func(chunk *audioChunk)
	onError           func(err error)
}

func (c audioQueueCallbacks) withDefaults() audioQueueCallbacks {
	if c.onPlaybackStarted == nil {
		c.onPlaybackStarted = func() {}
	}
	if c.onChunkPlayed == nil {
		c.onChunkPlayed = func(*audioChunk) {}
	}
	if c.onError == nil {
		c.onError = func(error) {}
	}
	return c
}

// audioQueue turns chunks arriving at network cadence into one continuous
// stream on the output device.
//
// Chunks are sequenced at arrival, decoded asynchronously, and inserted into
// a pending list kept sorted by sequence, so out-of-order completion never
// reaches the device. A single scheduler goroutine feeds the device strictly
// in sequence order: when the next sequence has not landed yet it waits for
// an update instead of playing ahead. A chunk stays in the pending list until
// the device's positional mark confirms it has fully played; once the list
// drains with no decodes in flight, the remembered drain handler fires
// exactly once. Enqueueing again after a drain starts a fresh stream with its
// own drain handler.
//
// clear bumps the queue's epoch. Every late callback and in-flight scheduler
// pass carries the epoch it was created under and no-ops when it no longer
// matches, so cancellation can never resurrect stale audio.
type audioQueue struct {
	output         AudioOutput
	sourceEncoding audio.EncodingInfo
	encodingInfo   audio.EncodingInfo
	callbacks      audioQueueCallbacks

	// sendMu serializes device writes against clear, so a scheduler pass
	// that lost the race cannot re-queue audio the device already dropped.
	sendMu sync.Mutex

	mu         sync.Mutex
	epoch      int
	arrivalSeq int
	nextSeq    int
	pending    []*audioChunk
	decoding   int

	heldTail  []byte
	tailOwner *audioChunk

	scheduledEnd        time.Time
	started             bool
	playbackStartedSent bool
	stopped             bool

	drainHandler func()
	drainArmed   bool
	drainFired   bool

	updateSignal chan struct{}
}

func newAudioQueue(output AudioOutput, sourceEncoding audio.EncodingInfo, callbacks audioQueueCallbacks) *audioQueue {
	q := &audioQueue{
		output:         output,
		sourceEncoding: sourceEncoding,
		encodingInfo: audio.EncodingInfo{
			SampleRate: sourceEncoding.SampleRate,
			Format:     audio.EncodingLinear16,
		},
		callbacks:    callbacks.withDefaults(),
		updateSignal: make(chan struct{}, 1),
	}

	run := panicSafeWorker("audio scheduler", func() error {
		q.run()
		return nil
	})
	go func() {
		if err := run(); err != nil {
			logger.Error("audio scheduler stopped", "error", err)
		}
	}()

	return q
}

// enqueue registers raw synthesized audio under the next sequence number and
// decodes it in the background. A non-nil onComplete becomes the drain
// handler, fired once everything queued so far has fully played.
//
// The returned sequence identifies the chunk in playback events; ok is false
// once the queue has been stopped.
func (q *audioQueue) enqueue(raw []byte, alignment *texttospeech.Alignment, onComplete func()) (sequence int, ok bool) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return 0, false
	}

	q.resetDrainedStreamLocked()

	sequence = q.arrivalSeq
	q.arrivalSeq++
	q.decoding++
	epoch := q.epoch

	if onComplete != nil {
		q.drainHandler = onComplete
		q.drainArmed = true
		q.started = true
	}
	q.mu.Unlock()

	go q.decodeChunk(epoch, sequence, raw, alignment)
	return sequence, true
}

// attachDrainHandler arms the drain handler after the fact, covering streams
// that close without flagging their last chunk. Attaching also starts
// scheduling regardless of the buffered-chunk threshold, and when nothing is
// queued at all the handler still fires.
func (q *audioQueue) attachDrainHandler(onComplete func()) {
	if onComplete == nil {
		return
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.resetDrainedStreamLocked()
	q.drainHandler = onComplete
	q.drainArmed = true
	q.started = true
	q.mu.Unlock()

	q.signalUpdate()
}

// resetDrainedStreamLocked rearms the queue once new work follows a completed
// drain. The fired flag stays latched while the queue is at rest so late
// scheduler passes cannot double-fire, but the next stream starts with its own
// drain state, not the finished one's.
func (q *audioQueue) resetDrainedStreamLocked() {
	if !q.drainFired {
		return
	}
	q.drainHandler = nil
	q.drainArmed = false
	q.drainFired = false
	q.started = false
	q.playbackStartedSent = false
	q.scheduledEnd = time.Time{}
}

// clear stops and forgets everything: queued chunks, in-flight decodes, held
// crossfade tails, timing state and the drain handler. Safe to call from any
// state, including mid-scheduling, and idempotent.
func (q *audioQueue) clear() {
	q.mu.Lock()
	q.epoch++
	q.arrivalSeq = 0
	q.nextSeq = 0
	q.pending = nil
	q.decoding = 0
	q.heldTail = nil
	q.tailOwner = nil
	q.scheduledEnd = time.Time{}
	q.started = false
	q.playbackStartedSent = false
	q.drainHandler = nil
	q.drainArmed = false
	q.drainFired = false
	q.mu.Unlock()

	q.sendMu.Lock()
	q.output.ClearBuffer()
	q.sendMu.Unlock()

	q.signalUpdate()
}

// stop clears the queue and shuts the scheduler down. Stopped queues cannot
// be reused; the control builds a fresh one instead.
func (q *audioQueue) stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.mu.Unlock()

	q.clear()
}

func (q *audioQueue) pendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *audioQueue) decodeChunk(epoch, sequence int, raw []byte, alignment *texttospeech.Alignment) {
	chunk := &audioChunk{
		sequence:  sequence,
		markID:    uuid.NewString(),
		alignment: alignment,
	}

	pcm, _, err := audio.DecodeToLinear16(raw, q.sourceEncoding)
	if err != nil {
		logger.Warn("dropping undecodable audio chunk",
			"error", &DecodeError{Sequence: sequence, Err: err})
		chunk.failed = true
	} else {
		chunk.pcm = pcm
		chunk.duration = q.encodingInfo.Duration(len(pcm))
	}

	q.insertChunk(epoch, chunk)
}

// insertChunk places a decoded chunk into the pending list, keeping it
// sorted by sequence. Decodes finish in whatever order the runtime lands
// them; the sort order is what protects playback from that.
func (q *audioQueue) insertChunk(epoch int, chunk *audioChunk) {
	q.mu.Lock()
	if epoch != q.epoch || q.stopped {
		q.mu.Unlock()
		return
	}

	q.decoding--
	i := sort.Search(len(q.pending), func(i int) bool {
		return q.pending[i].sequence >= chunk.sequence
	})
	q.pending = append(q.pending, nil)
	copy(q.pending[i+1:], q.pending[i:])
	q.pending[i] = chunk

	if !q.started && len(q.pending) >= startThreshold {
		q.started = true
	}
	q.mu.Unlock()

	q.signalUpdate()
}

func (q *audioQueue) run() {
	for {
		pass := q.collectPass()
		if pass.stopped {
			return
		}
		if pass.idle {
			<-q.updateSignal
			continue
		}
		q.deliverPass(pass)
	}
}

// queueAction is one step of a scheduler pass: either bytes to push to the
// device or a completion mark to register for a fully queued chunk.
type queueAction struct {
	audio []byte
	mark  *audioChunk
}

type queuePass struct {
	epoch           int
	actions         []queueAction
	playbackStarted bool
	drain           func()
	stopped         bool
	idle            bool
}

// collectPass advances the queue state under the lock and returns the side
// effects to perform outside it.
func (q *audioQueue) collectPass() queuePass {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return queuePass{stopped: true}
	}

	pass := queuePass{epoch: q.epoch}
	if !q.started {
		pass.idle = true
		return pass
	}

	for {
		next := q.nextSchedulableLocked()
		if next == nil || next.sequence != q.nextSeq {
			break
		}
		q.nextSeq++

		if len(next.pcm) == 0 {
			// Undecodable or empty chunk: release the sequence slot so the
			// stream does not stall on audio that will never exist.
			q.removeLocked(next)
			continue
		}

		next.scheduled = true
		if !q.playbackStartedSent {
			q.playbackStartedSent = true
			pass.playbackStarted = true
		}
		pass.actions = q.scheduleChunkLocked(next, pass.actions)
	}

	streamComplete := q.drainArmed && q.decoding == 0 && q.nextSchedulableLocked() == nil

	if streamComplete && len(q.heldTail) > 0 {
		// No next chunk is coming to crossfade into, so the held tail is
		// faded out and flushed, completing its owner.
		tail := q.heldTail
		audio.FadeOut(tail, len(tail)/2)
		pass.actions = append(pass.actions,
			queueAction{audio: tail},
			queueAction{mark: q.tailOwner},
		)
		q.heldTail = nil
		q.tailOwner = nil
	}

	if streamComplete && !q.drainFired && len(q.pending) == 0 && len(q.heldTail) == 0 {
		q.drainFired = true
		pass.drain = q.drainHandler
	}

	pass.idle = len(pass.actions) == 0 && pass.drain == nil && !pass.playbackStarted
	return pass
}

// scheduleChunkLocked stamps the chunk's start time and turns its samples
// into device actions. The start time is the later of now plus the lookahead
// and the previous chunk's end minus the crossfade window.
func (q *audioQueue) scheduleChunkLocked(chunk *audioChunk, actions []queueAction) []queueAction {
	startTime := time.Now().Add(scheduleLookahead)
	if overlapped := q.scheduledEnd.Add(-crossfadeDuration); overlapped.After(startTime) {
		startTime = overlapped
	}
	chunk.startTime = startTime
	q.scheduledEnd = startTime.Add(chunk.duration)

	pcm := chunk.pcm
	w := q.windowBytes(len(pcm))
	head := pcm[:w]

	bodyFrom := 0
	if len(q.heldTail) > 0 {
		actions = append(actions,
			queueAction{audio: audio.Crossfade(q.heldTail, head)},
			queueAction{mark: q.tailOwner},
		)
		bodyFrom = w
	} else if w > 0 {
		audio.FadeIn(head, w/2)
	}

	if body := pcm[bodyFrom : len(pcm)-w]; len(body) > 0 {
		actions = append(actions, queueAction{audio: body})
	}

	q.heldTail = pcm[len(pcm)-w:]
	q.tailOwner = chunk
	if w == 0 {
		// Too short to hold a tail back; the chunk is already fully queued.
		q.heldTail = nil
		q.tailOwner = nil
		actions = append(actions, queueAction{mark: chunk})
	}

	return actions
}

// windowBytes clamps the crossfade window to at most half the chunk, kept
// sample aligned.
func (q *audioQueue) windowBytes(pcmLen int) int {
	w := q.encodingInfo.ByteCount(crossfadeDuration)
	if pcmLen < 2*w {
		w = pcmLen / 2
	}
	return w - w%2
}

func (q *audioQueue) nextSchedulableLocked() *audioChunk {
	for _, chunk := range q.pending {
		if !chunk.scheduled {
			return chunk
		}
	}
	return nil
}

func (q *audioQueue) removeLocked(chunk *audioChunk) {
	for i, pending := range q.pending {
		if pending == chunk {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

// deliverPass performs a pass's side effects: caller events outside any
// lock, device writes under sendMu with the epoch revalidated so a clear
// that won the race turns the writes into a no-op.
func (q *audioQueue) deliverPass(pass queuePass) {
	if pass.playbackStarted {
		q.callbacks.onPlaybackStarted()
	}

	if len(pass.actions) > 0 {
		if err := q.deliverActions(pass.epoch, pass.actions); err != nil {
			q.callbacks.onError(err)
		}
	}

	if pass.drain != nil {
		pass.drain()
	}
}

func (q *audioQueue) deliverActions(epoch int, actions []queueAction) error {
	q.sendMu.Lock()
	defer q.sendMu.Unlock()

	q.mu.Lock()
	stale := epoch != q.epoch || q.stopped
	q.mu.Unlock()
	if stale {
		return nil
	}

	for _, action := range actions {
		if action.mark != nil {
			chunk := action.mark
			if err := q.output.Mark(chunk.markID, func(string) {
				q.confirmChunk(epoch, chunk)
			}); err != nil {
				return err
			}
			continue
		}

		if err := q.output.SendAudio(action.audio); err != nil {
			return err
		}
	}

	return nil
}

// confirmChunk handles a device completion mark: the chunk's resources are
// released and the scheduler is woken to re-evaluate the drain condition.
// Marks from before the last clear identify themselves by epoch and no-op.
func (q *audioQueue) confirmChunk(epoch int, chunk *audioChunk) {
	q.mu.Lock()
	if epoch != q.epoch || q.stopped {
		q.mu.Unlock()
		return
	}
	q.removeLocked(chunk)
	q.mu.Unlock()

	q.callbacks.onChunkPlayed(chunk)
	q.signalUpdate()
}

func (q *audioQueue) signalUpdate() {
	select {
	case q.updateSignal <- struct{}{}:
	default:
	}
}
