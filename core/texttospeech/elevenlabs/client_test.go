package elevenlabs

import (
	"os"
	"testing"
)

func TestNewClientRequiresCredential(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "")
	os.Unsetenv("ELEVENLABS_API_KEY")

	if _, err := NewClient(); err == nil {
		t.Fatal("expected an error without a credential")
	}

	client, err := NewClient(WithAPIKey("direct-key"))
	if err != nil {
		t.Fatalf("expected an explicit key to work, got %v", err)
	}
	if client.apiKey != "direct-key" {
		t.Fatalf("expected the explicit key to be kept, got %q", client.apiKey)
	}
}

func TestNewClientReadsEnvironmentCredential(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "env-key")

	client, err := NewClient(WithVoice("voice-9"), WithModel("model-9"))
	if err != nil {
		t.Fatalf("expected the environment key to work, got %v", err)
	}
	if client.apiKey != "env-key" {
		t.Fatalf("expected the environment key to be used, got %q", client.apiKey)
	}
	if client.voiceID != "voice-9" || client.modelID != "model-9" {
		t.Fatalf("expected voice and model overrides, got %q %q", client.voiceID, client.modelID)
	}
}

func TestNewClientKeepsDefaultsOnEmptyOverrides(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "env-key")

	client, err := NewClient(WithVoice(""), WithModel(""))
	if err != nil {
		t.Fatalf("expected client to build, got %v", err)
	}
	if client.voiceID != defaultVoiceID || client.modelID != defaultModelID {
		t.Fatalf("expected defaults to survive empty overrides, got %q %q", client.voiceID, client.modelID)
	}
}
