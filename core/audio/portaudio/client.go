package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/parleylabs/parley-core/core/audio"
)

// Client is a duplex PortAudio backend. Capture runs a blocking read loop,
// playback runs a writer goroutine fed through a FIFO with positional marks,
// mirroring the miniaudio backend's contract.
type Client struct {
	bufferSize int
	stream     *portaudio.Stream

	in  []int16
	out []int16

	mu           sync.Mutex
	pendingAudio []byte
	marks        []playbackMark
	totalQueued  int
	totalWritten int
	closed       bool

	capturing atomic.Bool

	updateSignal chan struct{}
}

type playbackMark struct {
	name     string
	position int
	callback func(string)
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, audio.DefaultSampleRate, bufferSize, in, out)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to start portaudio stream: %w", err)
	}

	client := &Client{
		bufferSize:   bufferSize,
		stream:       stream,
		in:           in,
		out:          out,
		updateSignal: make(chan struct{}, 1),
	}
	go client.writeLoop()

	return client, nil
}

func (c *Client) StartCapture(ctx context.Context, onAudio func(audio []byte)) error {
	if !c.capturing.CompareAndSwap(false, true) {
		return nil
	}

	go func() {
		defer c.capturing.Store(false)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if !c.capturing.Load() {
				return
			}

			if err := c.stream.Read(); err != nil {
				log.Printf("Failed to read from PortAudio stream: %v", err)
				continue
			}

			audioBuffer := bytes.Buffer{}
			_ = binary.Write(&audioBuffer, binary.LittleEndian, c.in)
			onAudio(audioBuffer.Bytes())
		}
	}()

	return nil
}

func (c *Client) StopCapture() error {
	c.capturing.Store(false)
	return nil
}

func (c *Client) StartPlayback(_ context.Context) error {
	return c.stream.Start()
}

func (c *Client) StopPlayback() error {
	if err := c.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop portaudio stream: %w", err)
	}
	c.ClearBuffer()
	return nil
}

func (c *Client) SendAudio(audio []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("client closed")
	}
	c.pendingAudio = append(c.pendingAudio, audio...)
	c.totalQueued += len(audio)
	c.mu.Unlock()

	c.signalUpdate()
	return nil
}

func (c *Client) ClearBuffer() {
	c.mu.Lock()
	c.pendingAudio = nil
	c.marks = nil
	c.totalWritten = c.totalQueued
	c.mu.Unlock()

	c.signalUpdate()
}

// Mark registers a callback fired once every byte queued before this call has
// been written to the stream.
func (c *Client) Mark(name string, callback func(string)) error {
	c.mu.Lock()
	c.marks = append(c.marks, playbackMark{
		name:     name,
		position: c.totalQueued,
		callback: callback,
	})
	c.mu.Unlock()

	c.signalUpdate()
	return nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.EncodingLinear16,
	}
}

func (c *Client) Close() {
	c.capturing.Store(false)
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.signalUpdate()

	_ = c.stream.Close()
	_ = portaudio.Terminate()
}

func (c *Client) writeLoop() {
	frameBytes := c.bufferSize * 2
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}

		toCall := c.passedMarksLocked()

		pending := len(c.pendingAudio)
		wait := pending < frameBytes && (pending == 0 || len(c.marks) == 0)

		var frame []byte
		if !wait {
			// A short tail is padded out with silence so trailing marks
			// fire instead of waiting for audio that is not coming.
			frame = make([]byte, frameBytes)
			n := copy(frame, c.pendingAudio)
			if n == pending {
				c.pendingAudio = nil
			} else {
				c.pendingAudio = c.pendingAudio[n:]
			}
			c.totalWritten += n
		}
		c.mu.Unlock()

		for _, mark := range toCall {
			mark.callback(mark.name)
		}

		if wait {
			<-c.updateSignal
			continue
		}

		_ = binary.Read(bytes.NewReader(frame), binary.LittleEndian, c.out)
		if err := c.stream.Write(); err != nil {
			log.Printf("Failed to write to PortAudio stream: %v", err)
		}
	}
}

// passedMarksLocked returns marks whose audio has been fully written, in
// order.
func (c *Client) passedMarksLocked() []playbackMark {
	passedMarks := 0
	for _, mark := range c.marks {
		if mark.position > c.totalWritten {
			break
		}
		passedMarks++
	}
	if passedMarks == 0 {
		return nil
	}

	toCall := make([]playbackMark, passedMarks)
	copy(toCall, c.marks[:passedMarks])
	c.marks = c.marks[passedMarks:]
	return toCall
}
