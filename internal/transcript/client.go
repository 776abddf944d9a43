package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/chadiek/sd-mate/internal/backend"
)

// Client sends finished recordings to the backend speech-to-text endpoint.
type Client struct {
	api *backend.Client
}

func NewClient(api *backend.Client) *Client { return &Client{api: api} }

type sttResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads blob as the multipart field "audio" and returns the
// recognized text. An empty blob resolves to an empty transcript without a
// network call.
func (c *Client) Transcribe(ctx context.Context, blob []byte, mimeType string) (string, error) {
	if len(blob) == 0 {
		return "", nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename="%s"`, FileName(mimeType)))
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(blob); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	resp, err := c.api.Post(ctx, "/stt", mw.FormDataContentType(), &body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var sr sttResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("decode /stt response: %w", err)
	}
	return strings.TrimSpace(sr.Text), nil
}

// FileName picks an upload file name whose extension matches the codec tag.
func FileName(mimeType string) string {
	base, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		base = mimeType
	}
	switch base {
	case "audio/ogg":
		return "recording.ogg"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "recording.wav"
	case "audio/webm":
		return "recording.webm"
	default:
		return "recording.bin"
	}
}
