package elevenlabs

import (
	"fmt"
	"os"

	"github.com/parleylabs/parley-core/core/texttospeech"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
	defaultModelID = "eleven_flash_v2_5"
)

// Client creates speech streams backed by the ElevenLabs realtime API. Each
// stream owns its own websocket connection; a new stream is opened per
// utterance and discarded once it closes.
type Client struct {
	apiKey  string
	baseURL string
	voiceID string
	modelID string

	voiceSettings *texttospeech.VoiceSettings
}

var _ texttospeech.Synthesizer = (*Client)(nil)

type ClientOption func(*Client)

// WithAPIKey overrides the credential taken from the ELEVENLABS_API_KEY
// environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithVoice(voiceID string) ClientOption {
	return func(c *Client) {
		if voiceID == "" {
			return
		}
		c.voiceID = voiceID
	}
}

func WithModel(modelID string) ClientOption {
	return func(c *Client) {
		if modelID == "" {
			return
		}
		c.modelID = modelID
	}
}

// WithDefaultVoiceSettings sets the voice tuning applied to every stream that
// does not override it.
func WithDefaultVoiceSettings(settings texttospeech.VoiceSettings) ClientOption {
	return func(c *Client) { c.voiceSettings = &settings }
}

func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{
		baseURL: defaultBaseURL,
		voiceID: defaultVoiceID,
		modelID: defaultModelID,
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		apiKey, ok := os.LookupEnv("ELEVENLABS_API_KEY")
		if !ok || apiKey == "" {
			return nil, fmt.Errorf("elevenlabs api key not found")
		}
		client.apiKey = apiKey
	}

	return client, nil
}
