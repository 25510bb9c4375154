package elevenlabs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/parleylabs/parley-core/core/audio"
	"github.com/parleylabs/parley-core/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
)

type speechStream struct {
	ws *websocket.Conn
	// mu guards socket writes and the lifecycle flags below.
	mu sync.Mutex

	textComplete bool
	cancelled    bool
	closed       bool
	finalized    bool

	callbacks synthesisCallbacks
}

var _ texttospeech.SpeechStream = (*speechStream)(nil)

// synthesisCallbacks is the fully-populated callback set a stream dispatches
// to; unset options become no-ops.
type synthesisCallbacks struct {
	audioChunkCallback func(chunk texttospeech.AudioChunk)
	finalCallback      func()
	errorCallback      func(err error)
	closedCallback     func()
}

func newSynthesisCallbacks(options texttospeech.SynthesisOptions) synthesisCallbacks {
	callbacks := synthesisCallbacks{
		audioChunkCallback: options.AudioChunkCallback,
		finalCallback:      options.FinalCallback,
		errorCallback:      options.ErrorCallback,
		closedCallback:     options.ClosedCallback,
	}
	if callbacks.audioChunkCallback == nil {
		callbacks.audioChunkCallback = func(texttospeech.AudioChunk) {}
	}
	if callbacks.finalCallback == nil {
		callbacks.finalCallback = func() {}
	}
	if callbacks.errorCallback == nil {
		callbacks.errorCallback = func(error) {}
	}
	if callbacks.closedCallback == nil {
		callbacks.closedCallback = func() {}
	}
	return callbacks
}

func (c *Client) NewSpeechStream(ctx context.Context, opts ...texttospeech.SynthesisOption) (texttospeech.SpeechStream, error) {
	ctx, span := tracer.Start(ctx, "open speech stream")
	defer span.End()

	options := texttospeech.SynthesisOptions{
		EncodingInfo:  audio.GetDefaultEncodingInfo(),
		VoiceSettings: c.voiceSettings,
	}
	for _, opt := range opts {
		opt(&options)
	}

	outputFormat, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("invalid encoding: %w", err)
	}
	span.SetAttributes(
		attribute.String("request.voice_id", c.voiceID),
		attribute.String("request.model_id", c.modelID),
		attribute.String("request.output_format", outputFormat),
	)

	conn, err := c.connectWebsocket(ctx, outputFormat)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to open websocket: %w", err)
	}

	stream := &speechStream{
		ws:        conn,
		callbacks: newSynthesisCallbacks(options),
	}

	// The opening frame authorizes generation and pins the voice settings
	// for the rest of the stream.
	if err := stream.sendWebsocketMessage(streamTextMessage{
		Text:          " ",
		VoiceSettings: convertVoiceSettings(options.VoiceSettings),
	}); err != nil {
		_ = conn.Close()
		span.RecordError(err)
		return nil, fmt.Errorf("failed to start speech stream: %w", err)
	}

	go stream.processIncomingMessages()

	return stream, nil
}

func (c *Client) connectWebsocket(ctx context.Context, outputFormat string) (*websocket.Conn, error) {
	streamUrl, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	switch streamUrl.Scheme {
	case "http":
		streamUrl.Scheme = "ws"
	default:
		streamUrl.Scheme = "wss"
	}
	streamUrl.Path = "/v1/text-to-speech/" + url.PathEscape(c.voiceID) + "/stream-input"

	queryParams := streamUrl.Query()
	queryParams.Set("model_id", c.modelID)
	queryParams.Set("output_format", outputFormat)
	queryParams.Set("sync_alignment", "true")
	queryParams.Set("inactivity_timeout", "60")
	streamUrl.RawQuery = queryParams.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, streamUrl.String(),
		http.Header{"xi-api-key": {c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to elevenlabs: %w", err)
	}

	return conn, nil
}

func (s *speechStream) processIncomingMessages() {
	for {
		_, msg, err := s.ws.ReadMessage()
		if err != nil {
			s.handleDisconnect(err)
			return
		}

		var parsedMsg streamResponse
		if err := json.Unmarshal(msg, &parsedMsg); err != nil {
			log.Printf("Failed to unmarshal elevenlabs message: %v", err)
			continue
		}

		s.processMessage(parsedMsg)
	}
}

func (s *speechStream) processMessage(msg streamResponse) {
	if s.isShutdown() {
		return
	}

	if msg.Error != "" {
		logger.Warn("elevenlabs reported an error", "error", msg.Error, "message", msg.Message)
	}

	if msg.Audio != "" {
		audioBytes, err := decodeAudio(msg.Audio)
		if err != nil {
			log.Printf("Failed to decode elevenlabs audio: %v", err)
		} else if len(audioBytes) > 0 {
			s.callbacks.audioChunkCallback(texttospeech.AudioChunk{
				Audio:     audioBytes,
				Alignment: msg.alignment(),
			})
		}
	}

	if msg.isFinal() {
		s.finalize()
		_ = s.Close()
	}
}

// finalize fires the final callback, at most once per stream.
func (s *speechStream) finalize() {
	s.mu.Lock()
	if s.finalized || s.cancelled {
		s.mu.Unlock()
		return
	}
	s.finalized = true
	s.mu.Unlock()

	s.callbacks.finalCallback()
}

func (s *speechStream) handleDisconnect(err error) {
	s.mu.Lock()
	cancelled := s.cancelled
	deliberate := cancelled || s.closed
	s.closed = true
	s.mu.Unlock()

	if cancelled {
		return
	}
	if deliberate {
		s.callbacks.closedCallback()
		return
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		// Upstream finished and closed on its own; when the final frame never
		// arrived the close stands in for it.
		s.finalize()
	} else {
		log.Printf("Websocket read error: %v", err)
		s.callbacks.errorCallback(&texttospeech.SynthesisError{Err: err})
	}

	s.callbacks.closedCallback()
}

func (s *speechStream) isShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled || s.closed
}

func (s *speechStream) SendText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("speech stream closed")
	} else if s.cancelled {
		return fmt.Errorf("speech stream cancelled")
	} else if s.textComplete {
		return fmt.Errorf("speech stream text already completed")
	}

	// Trailing whitespace is what commits text for generation; it also keeps
	// a literal empty string from reading as the end-of-input marker.
	if !strings.HasSuffix(text, " ") {
		text += " "
	}

	if err := s.writeLocked(streamTextMessage{Text: text}); err != nil {
		return fmt.Errorf("failed to send websocket text message: %w", err)
	}
	return nil
}

func (s *speechStream) EndOfText() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return fmt.Errorf("speech stream cancelled")
	} else if s.closed {
		return fmt.Errorf("speech stream closed")
	} else if s.textComplete {
		return nil
	}
	s.textComplete = true

	// An empty text frame is the end-of-input marker; the upstream flushes
	// the remaining audio, sends the final frame and closes.
	if err := s.writeLocked(streamTextMessage{Text: ""}); err != nil {
		return fmt.Errorf("failed to send websocket end-of-text message: %w", err)
	}
	return nil
}

func (s *speechStream) Cancel() error {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return nil
	}
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("speech stream closed")
	}
	s.cancelled = true
	s.closed = true
	ws := s.ws
	s.mu.Unlock()

	// Closing the socket is what stops generation; this endpoint has no
	// cancel frame.
	if ws == nil {
		return nil
	}
	if err := ws.Close(); err != nil {
		return fmt.Errorf("failed to close websocket: %w", err)
	}
	return nil
}

func (s *speechStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ws := s.ws
	s.mu.Unlock()

	if ws == nil {
		return nil
	}
	if err := ws.Close(); err != nil {
		return fmt.Errorf("failed to close websocket: %w", err)
	}
	return nil
}

func (s *speechStream) sendWebsocketMessage(msg streamTextMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(msg)
}

// writeLocked writes to the socket; callers hold s.mu.
func (s *speechStream) writeLocked(msg streamTextMessage) error {
	if s.ws == nil {
		return fmt.Errorf("websocket connection closed")
	}
	if err := s.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}
