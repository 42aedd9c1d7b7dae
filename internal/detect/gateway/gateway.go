package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vbonduro/ilmigreen/internal/detect"
	"github.com/vbonduro/ilmigreen/internal/domain"
	"github.com/vbonduro/ilmigreen/internal/upstream"
)

// ErrNoToolCall is returned when the model answered without calling
// classify_waste.
var ErrNoToolCall = errors.New("AI response contained no classification")

// request types mirror the OpenAI chat completions API.
type request struct {
	Model      string     `json:"model"`
	Messages   []message  `json:"messages"`
	Tools      []tool     `json:"tools"`
	ToolChoice toolChoice `json:"tool_choice"`
}

// message content is either a string or a list of parts.
type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type part struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type tool struct {
	Type     string   `json:"type"`
	Function function `json:"function"`
}

type function struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type toolChoice struct {
	Type     string   `json:"type"`
	Function function `json:"function"`
}

type response struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

type GatewayDetector struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

func NewGatewayDetector(url, apiKey, model string) *GatewayDetector {
	return &GatewayDetector{
		url:    url,
		apiKey: apiKey,
		model:  model,
		client: &http.Client{},
	}
}

// dataURL encodes an image the way browsers do for FileReader.readAsDataURL.
func dataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func buildMessages(in detect.Input) []message {
	msgs := []message{{Role: "system", Content: detect.SystemPrompt}}
	if in.Kind == domain.InputImage {
		return append(msgs, message{
			Role: "user",
			Content: []part{
				{Type: "text", Text: detect.ImagePrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL(in.MimeType, in.ImageData)}},
			},
		})
	}
	return append(msgs, message{Role: "user", Content: detect.TextPrompt + in.Text})
}

func (d *GatewayDetector) Detect(ctx context.Context, in detect.Input) (*detect.Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	fn := function{
		Name:        detect.ToolName,
		Description: detect.ToolDescription,
		Parameters:  detect.ToolSchema(),
	}
	body := request{
		Model:      d.model,
		Messages:   buildMessages(in),
		Tools:      []tool{{Type: "function", Function: fn}},
		ToolChoice: toolChoice{Type: "function", Function: function{Name: detect.ToolName}},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := upstream.NewRequest(ctx, d.url, d.apiKey, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call AI gateway: %w", err)
	}
	if err := upstream.CheckResponse(resp); err != nil {
		return nil, err
	}
	defer upstream.CloseBody(resp)

	var respBody response
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(respBody.Choices) == 0 || len(respBody.Choices[0].Message.ToolCalls) == 0 {
		return nil, ErrNoToolCall
	}
	args := respBody.Choices[0].Message.ToolCalls[0].Function.Arguments
	if args == "" {
		return nil, ErrNoToolCall
	}

	return detect.ParseResult([]byte(args))
}
