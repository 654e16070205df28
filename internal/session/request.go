package session

import (
	"encoding/json"

	"github.com/namikmesic/canvas-stream/internal/chat"
)

// Content part types understood by the responses endpoint.
const (
	partInputText = "input_text"
	partImageURL  = "image_url"
)

// Request is the JSON body of a streaming responses call.
type Request struct {
	Model  string         `json:"model"`
	Input  []InputMessage `json:"input"`
	User   string         `json:"user"`
	Stream bool           `json:"stream"`
}

type InputMessage struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

type ContentPart struct {
	Type     string    `json:"type"` // "input_text" | "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an http(s) URL or a data:image/...;base64 URL.
type ImageURL struct {
	URL string `json:"url"`
}

// BuildRequest prepends the system instruction, drops loading placeholders
// and maps every remaining message to one input entry.
func BuildRequest(model, systemPrompt, user string, messages []chat.MessageChunk) Request {
	input := make([]InputMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		input = append(input, InputMessage{
			Role:    string(chat.RoleSystem),
			Content: []ContentPart{{Type: partInputText, Text: systemPrompt}},
		})
	}

	for _, m := range messages {
		if m.Role == chat.RoleLoading {
			continue
		}
		input = append(input, InputMessage{
			Role:    string(m.Role),
			Content: []ContentPart{contentPart(m)},
		})
	}

	return Request{
		Model:  model,
		Input:  input,
		User:   user,
		Stream: true,
	}
}

func contentPart(m chat.MessageChunk) ContentPart {
	if m.Kind == chat.KindImage {
		return ContentPart{Type: partImageURL, ImageURL: &ImageURL{URL: m.Content}}
	}
	return ContentPart{Type: partInputText, Text: m.Content}
}

// Encode marshals the request body.
func (r Request) Encode() ([]byte, error) {
	return json.Marshal(r)
}
