// Package events defines the typed turn-taking event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - user_input.*
//   - assistant_speech.*
//   - assistant_playback.*
//   - turn_state.*
//
// Semantics used across the package:
//
//   - Interim: mutable point-in-time transcript hypothesis that later events
//     overwrite.
//   - Final: terminal immutable transcript for the current speech segment.
//   - Frame: binary audio chunk payload in stream order.
//   - Ended: lifecycle boundary indicating stream completion.
//
// user_input events
//
//   - UserSpeechStarted (user_input.speech_started): speech activity began.
//   - UserSpeechEnded (user_input.speech_ended): speech activity ended.
//   - UserTranscriptInterimUpdated (user_input.transcript_interim_updated):
//     mutable interim transcript snapshot; each update overwrites the last.
//   - UserTranscriptFinal (user_input.transcript_final): terminal transcript
//     for the speech segment, after silence/finality policy has resolved.
//
// assistant_speech events
//
//   - AssistantSpeechFrame (assistant_speech.frame): synthesized audio chunk
//     received from the synthesis stream, tagged with its playback sequence.
//   - AssistantSpeechFinal (assistant_speech.final): the synthesis stream
//     reported its last chunk.
//
// assistant_playback events
//
//   - AssistantPlaybackStarted (assistant_playback.started): the first chunk
//     of the current reply reached the output device.
//   - AssistantPlaybackProgress (assistant_playback.progress): the spoken
//     prefix of the reply advanced; carries the text spoken so far.
//   - AssistantPlaybackEnded (assistant_playback.ended): every queued chunk
//     finished playing; carries the full reply text.
//
// turn_state events
//
//   - TurnListening (turn_state.listening): microphone owns the turn.
//   - TurnSpeaking (turn_state.speaking): playback owns the turn, recognition
//     is torn down.
//   - TurnPaused (turn_state.paused): operator-level suspend.
//   - TurnResumed (turn_state.resumed): operator-level resume.
//   - TurnStopped (turn_state.stopped): the session ended.
package events
