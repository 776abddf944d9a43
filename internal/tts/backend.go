package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chadiek/sd-mate/internal/backend"
)

// Audio is a synthesized utterance ready for playback.
type Audio struct {
	Data        []byte
	ContentType string
}

// maxAudioBytes bounds a single synthesized reply.
const maxAudioBytes = 32 << 20

// BackendClient synthesizes speech through the conversational backend's /tts endpoint.
type BackendClient struct {
	api *backend.Client
}

func NewBackendClient(api *backend.Client) *BackendClient { return &BackendClient{api: api} }

type ttsRequest struct {
	Text string `json:"text"`
}

// Synthesize returns the raw audio bytes for text. Error responses carry a
// JSON body and surface as *backend.StatusError.
func (c *BackendClient) Synthesize(ctx context.Context, text string) (Audio, error) {
	if strings.TrimSpace(text) == "" {
		return Audio{}, errors.New("tts: empty text")
	}
	body, err := json.Marshal(ttsRequest{Text: text})
	if err != nil {
		return Audio{}, err
	}
	resp, err := c.api.Post(ctx, "/tts", "application/json", bytes.NewReader(body))
	if err != nil {
		return Audio{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes+1))
	if err != nil {
		return Audio{}, fmt.Errorf("tts read: %w", err)
	}
	if len(data) > maxAudioBytes {
		return Audio{}, fmt.Errorf("tts: audio exceeds %d bytes", maxAudioBytes)
	}
	if len(data) == 0 {
		return Audio{}, errors.New("tts: empty audio")
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "audio/mpeg"
	}
	return Audio{Data: data, ContentType: ct}, nil
}
