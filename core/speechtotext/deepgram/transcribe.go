package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/parleylabs/parley-core/core/audio"
	"github.com/parleylabs/parley-core/core/speechtotext"
	"github.com/parleylabs/parley-core/internal/utils"
)

// recognitionSession is one live websocket transcription stream. All message
// processing happens inline on the read loop, so transcript accumulation
// needs no locking.
type recognitionSession struct {
	conn   *websocket.Conn
	connMu sync.Mutex

	callbacks transcriptionCallbacks

	lastMsgTs time.Time

	accumulatedTranscript string
	unendedSegment        bool

	aborted atomic.Bool
}

var _ speechtotext.RecognitionSession = (*recognitionSession)(nil)

func (s *recognitionSession) SendAudio(audio []byte) error {
	if s.aborted.Load() {
		return nil
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()

	s.lastMsgTs = time.Now()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (s *recognitionSession) Abort() error {
	if !s.aborted.CompareAndSwap(false, true) {
		return nil
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn.Close()
}

func (s *recognitionSession) sendSilence(audio []byte) error {
	if s.aborted.Load() {
		return nil
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()

	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (s *recognitionSession) sendKeepAlive() {
	if s.aborted.Load() {
		return
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()

	if err := s.conn.WriteJSON(
		struct {
			Type string `json:"type"`
		}{
			Type: "KeepAlive",
		}); err != nil {
		log.Println("Failed to write to deepgram client", "error", err)
	}
}

func (s *recognitionSession) sinceLastAudio() time.Duration {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return time.Since(s.lastMsgTs)
}

func (s *recognitionSession) readAndProcessMessages(ctx context.Context, encodingInfo audio.EncodingInfo) {
	silenceCtx, silenceCancel := context.WithCancel(ctx)
	defer silenceCancel()

	go s.generateSilence(silenceCtx, encodingInfo)

	for {
		msgType, msg, err := s.conn.ReadMessage()
		if err != nil {
			s.handleDisconnect(err)
			return
		}
		if msgType != websocket.BinaryMessage {
			s.processMessage(msg)
		}
	}
}

// handleDisconnect classifies how the session ended. Aborted sessions stay
// silent; everything else reports an error when abnormal and always reports
// closure so owners know to create a replacement session.
func (s *recognitionSession) handleDisconnect(err error) {
	s.connMu.Lock()
	s.conn.Close()
	s.connMu.Unlock()

	if s.aborted.Load() {
		return
	}

	if closeErr, ok := err.(*websocket.CloseError); !ok || closeErr.Code != websocket.CloseNormalClosure {
		s.callbacks.errorCallback(&speechtotext.RecognitionError{
			Code: classifyDisconnect(err),
			Err:  err,
		})
	}
	s.callbacks.closedCallback()
}

// classifyDisconnect maps websocket failures onto shared recognition codes.
// Deepgram ends idle streams with an internal-error close after ~10s without
// audio, which is the closest analog to a no-speech condition.
func classifyDisconnect(err error) string {
	if closeErr, ok := err.(*websocket.CloseError); ok {
		switch closeErr.Code {
		case websocket.CloseInternalServerErr, websocket.CloseGoingAway:
			return speechtotext.CodeNoSpeech
		}
	}
	return speechtotext.CodeTransport
}

func (s *recognitionSession) processMessage(msg []byte) {
	if s.aborted.Load() {
		return
	}

	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		log.Println("Failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			log.Println("Failed to unmarshal deepgram message", err)
			return
		}
		if len(msgResp.Channel.Alternatives) == 0 {
			return
		}
		transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)

		if msgResp.IsFinal {
			if len(transcript) > 0 {
				s.accumulatedTranscript += " " + transcript
			}
			if msgResp.SpeechFinal {
				s.onSpeechEnded()
			}
			return
		}

		if len(transcript) > 0 {
			s.callbacks.interimTranscriptionCallback(
				strings.TrimSpace(s.accumulatedTranscript + " " + transcript))
		}

	case api.TypeUtteranceEndResponse:
		var msgResp api.UtteranceEndResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			log.Println("Failed to unmarshal deepgram message", err)
			return
		}

		if s.unendedSegment {
			s.onSpeechEnded()
		}

	case api.TypeSpeechStartedResponse:
		var msgResp api.SpeechStartedResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			log.Println("Failed to unmarshal deepgram message", err)
			return
		}

		s.unendedSegment = true
		s.callbacks.startSpeechCallback()
	}
}

func (s *recognitionSession) onSpeechEnded() {
	s.unendedSegment = false
	fullTranscript := strings.TrimSpace(s.accumulatedTranscript)
	s.accumulatedTranscript = ""
	if len(fullTranscript) > 0 {
		s.callbacks.transcriptionCallback(fullTranscript)
	}
	s.callbacks.endSpeechCallback()
}

// generateSilence keeps the upstream connection alive while no audio flows:
// first by padding short gaps with silence frames, then by switching to
// keep-alive messages for longer ones.
func (s *recognitionSession) generateSilence(ctx context.Context, encodingInfo audio.EncodingInfo) {
	type silenceGeneratorState string
	const (
		silenceGeneratorStateWaiting   silenceGeneratorState = "waiting"
		silenceGeneratorStateSilence   silenceGeneratorState = "silence"
		silenceGeneratorStateKeepAlive silenceGeneratorState = "keepAlive"
	)

	const tickInterval = 50 * time.Millisecond
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	chunk := encodingInfo.Silence(tickInterval)

	var state = silenceGeneratorStateWaiting
	var firstSilenceTime *time.Time
	var lastKeepAliveTime *time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.aborted.Load() {
				return
			}

			switch state {
			case silenceGeneratorStateWaiting:
				if s.sinceLastAudio() > tickInterval {
					state = silenceGeneratorStateSilence
					firstSilenceTime = utils.Ptr(time.Now())
					continue
				}

			case silenceGeneratorStateSilence:
				if s.sinceLastAudio() < tickInterval {
					state = silenceGeneratorStateWaiting
					firstSilenceTime = nil
					continue
				}
				if time.Since(*firstSilenceTime) >= time.Second {
					state = silenceGeneratorStateKeepAlive
					lastKeepAliveTime = utils.Ptr(time.Now())
					firstSilenceTime = nil
					continue
				}

				if err := s.sendSilence(chunk); err != nil {
					log.Println("Sending silence audio error", err)
				}

			case silenceGeneratorStateKeepAlive:
				if s.sinceLastAudio() < tickInterval {
					state = silenceGeneratorStateWaiting
					continue
				}

				if time.Since(*lastKeepAliveTime) >= 5*time.Second {
					lastKeepAliveTime = utils.Ptr(time.Now())
					s.sendKeepAlive()
				}
			}
		}
	}
}
