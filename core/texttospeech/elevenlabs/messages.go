package elevenlabs

import (
	"encoding/base64"
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/parleylabs/parley-core/core/texttospeech"
)

type streamTextMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	SpeakerBoost    bool    `json:"use_speaker_boost"`
}

func convertVoiceSettings(settings *texttospeech.VoiceSettings) *voiceSettings {
	if settings == nil {
		return nil
	}
	converted := &voiceSettings{}
	if err := copier.Copy(converted, settings); err != nil {
		return nil
	}
	return converted
}

type streamResponse struct {
	Audio               string         `json:"audio"`
	IsFinal             *bool          `json:"isFinal"`
	Alignment           *wireAlignment `json:"alignment"`
	NormalizedAlignment *wireAlignment `json:"normalizedAlignment"`
	Error               string         `json:"error"`
	Message             string         `json:"message"`
}

func (m streamResponse) isFinal() bool {
	return m.IsFinal != nil && *m.IsFinal
}

// alignment prefers the normalized variant; the raw one covers servers that
// omit it.
func (m streamResponse) alignment() *texttospeech.Alignment {
	wire := m.NormalizedAlignment
	if wire == nil {
		wire = m.Alignment
	}
	return wire.convert()
}

type wireAlignment struct {
	Chars            []string `json:"chars"`
	CharStartTimesMS []int    `json:"charStartTimesMs"`
	CharDurationsMS  []int    `json:"charDurationsMs"`
}

func (a *wireAlignment) convert() *texttospeech.Alignment {
	if a == nil || len(a.Chars) == 0 {
		return nil
	}
	if len(a.Chars) != len(a.CharStartTimesMS) || len(a.Chars) != len(a.CharDurationsMS) {
		return nil
	}
	return &texttospeech.Alignment{
		Chars:        a.Chars,
		StartTimesMS: a.CharStartTimesMS,
		DurationsMS:  a.CharDurationsMS,
	}
}

// decodeAudio accepts both padded and unpadded base64, the upstream is not
// consistent about padding.
func decodeAudio(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}
	if audio, err := base64.StdEncoding.DecodeString(encoded); err == nil {
		return audio, nil
	}
	if audio, err := base64.RawStdEncoding.DecodeString(encoded); err == nil {
		return audio, nil
	}
	return nil, fmt.Errorf("invalid base64 audio payload")
}
