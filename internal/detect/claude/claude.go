package claude

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/vbonduro/ilmigreen/internal/detect"
	"github.com/vbonduro/ilmigreen/internal/domain"
)

// maxTokens leaves room for two short paragraphs inside the tool arguments.
const maxTokens = 512

var ErrNoToolUse = errors.New("claude response contained no classification")

type ClaudeDetector struct {
	client *anthropic.Client
	model  string
}

func NewClaudeDetector(apiKey, model string, opts ...anthropic.ClientOption) *ClaudeDetector {
	return &ClaudeDetector{
		client: anthropic.NewClient(apiKey, opts...),
		model:  model,
	}
}

// buildMessages constructs the single user turn for a detection request.
func buildMessages(in detect.Input) []anthropic.Message {
	if in.Kind == domain.InputImage {
		return []anthropic.Message{{
			Role: anthropic.RoleUser,
			Content: []anthropic.MessageContent{
				anthropic.NewImageMessageContent(anthropic.MessageContentSource{
					Type:      anthropic.MessagesContentSourceTypeBase64,
					MediaType: normaliseMIME(in.MimeType),
					Data:      base64.StdEncoding.EncodeToString(in.ImageData),
				}),
				anthropic.NewTextMessageContent(detect.ImagePrompt),
			},
		}}
	}
	return []anthropic.Message{anthropic.NewUserTextMessage(detect.TextPrompt + in.Text)}
}

func (d *ClaudeDetector) Detect(ctx context.Context, in detect.Input) (*detect.Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	resp, err := d.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(d.model),
		System:    detect.SystemPrompt,
		Messages:  buildMessages(in),
		MaxTokens: maxTokens,
		Tools: []anthropic.ToolDefinition{{
			Name:        detect.ToolName,
			Description: detect.ToolDescription,
			InputSchema: detect.ToolSchema(),
		}},
		ToolChoice: &anthropic.ToolChoice{Type: "tool", Name: detect.ToolName},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call claude: %w", err)
	}

	for _, blk := range resp.Content {
		if blk.Type == anthropic.MessagesContentTypeToolUse && blk.MessageContentToolUse != nil {
			return detect.ParseResult(blk.MessageContentToolUse.Input)
		}
	}
	return nil, ErrNoToolUse
}

// normaliseMIME maps browser MIME types to the values the Anthropic API accepts.
// Unknown types are coerced to jpeg.
func normaliseMIME(mimeType string) string {
	switch mimeType {
	case "image/png", "image/gif", "image/webp":
		return mimeType
	default:
		return "image/jpeg"
	}
}
