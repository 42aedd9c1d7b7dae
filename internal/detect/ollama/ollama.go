package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/vbonduro/ilmigreen/internal/detect"
	"github.com/vbonduro/ilmigreen/internal/domain"
	"github.com/vbonduro/ilmigreen/internal/upstream"
)

// jsonInstruction asks for the classify_waste arguments as the whole reply,
// since /api/generate has no forced tool call.
const jsonInstruction = `Jawab hanya dengan objek JSON dengan kunci "jenis" (Organik, Anorganik, atau B3), "penjelasan", dan "tips".`

type OllamaDetector struct {
	host   string
	model  string
	client *http.Client
}

func NewOllamaDetector(host, model string) *OllamaDetector {
	return &OllamaDetector{
		host:   strings.TrimRight(host, "/"),
		model:  model,
		client: &http.Client{},
	}
}

func buildPrompt(in detect.Input) string {
	var task string
	if in.Kind == domain.InputImage {
		task = detect.ImagePrompt
	} else {
		task = detect.TextPrompt + in.Text
	}
	return detect.SystemPrompt + "\n\n" + task + "\n" + jsonInstruction
}

func (d *OllamaDetector) Detect(ctx context.Context, in detect.Input) (*detect.Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	reqBody := map[string]any{
		"model":  d.model,
		"prompt": buildPrompt(in),
		"format": detect.ToolSchema(),
		"stream": false,
	}
	if in.Kind == domain.InputImage {
		reqBody["images"] = []string{base64.StdEncoding.EncodeToString(in.ImageData)}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := upstream.NewRequest(ctx, d.host+"/api/generate", "", payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call ollama: %w", err)
	}
	if err := upstream.CheckResponse(resp); err != nil {
		return nil, err
	}
	defer upstream.CloseBody(resp)

	var respBody struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return detect.ParseResult([]byte(respBody.Response))
}
