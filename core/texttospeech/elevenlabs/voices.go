package elevenlabs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

// Voice is one entry of the account's voice catalog.
type Voice struct {
	ID       string
	Name     string
	Category string
}

type voicesResponse struct {
	Voices []struct {
		VoiceID  string `json:"voice_id"`
		Name     string `json:"name"`
		Category string `json:"category"`
	} `json:"voices"`
}

// Voices lists the voices available to the configured credential.
func (c *Client) Voices(ctx context.Context) ([]Voice, error) {
	ctx, span := tracer.Start(ctx, "list voices")
	defer span.End()

	resp, err := c.get(ctx, "/v1/voices")
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		if errorBody, err := io.ReadAll(resp.Body); err == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		return nil, err
	}

	var body voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		err = fmt.Errorf("error unmarshalling JSON: %w", err)
		span.RecordError(err)
		return nil, err
	}

	voices := make([]Voice, 0, len(body.Voices))
	for _, voice := range body.Voices {
		voices = append(voices, Voice{
			ID:       voice.VoiceID,
			Name:     voice.Name,
			Category: voice.Category,
		})
	}
	span.SetAttributes(attribute.Int("response.voice_count", len(voices)))

	return voices, nil
}

// VerifyCredential checks that the configured API key is accepted upstream.
func (c *Client) VerifyCredential(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "verify credential")
	defer span.End()

	resp, err := c.get(ctx, "/v1/user")
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		err := fmt.Errorf("elevenlabs api key rejected")
		span.RecordError(err)
		return err
	default:
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		return err
	}
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)

	client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
			return operationName + " " + request.URL.Path
		}),
	)}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	return resp, nil
}
