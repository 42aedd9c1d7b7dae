package detect

import (
	"context"
	"errors"

	"github.com/vbonduro/ilmigreen/internal/domain"
)

// SystemPrompt instructs the model for both image and text classification.
const SystemPrompt = `Kamu adalah IlmiGreen AI, asisten cerdas untuk klasifikasi sampah. Tentukan jenis sampah (Organik, Anorganik, atau B3). Berikan penjelasan singkat dan tips pengelolaan dalam Bahasa Indonesia yang ramah dan edukatif.`

// ImagePrompt accompanies an uploaded photo.
const ImagePrompt = "Identifikasi jenis sampah dalam gambar ini dan berikan tips pengelolaannya."

// TextPrompt prefixes a user supplied description.
const TextPrompt = "Identifikasi jenis sampah: "

// ToolName is the function every backend forces the model to call.
const ToolName = "classify_waste"

// ToolDescription describes the classify_waste function to the model.
const ToolDescription = "Klasifikasi jenis sampah dan berikan informasi pengelolaan"

var ErrEmptyInput = errors.New("detection input is empty")

// Detector classifies a single waste item.
type Detector interface {
	Detect(ctx context.Context, in Input) (*Result, error)
}

type Input struct {
	Kind      domain.InputKind
	Text      string
	ImageData []byte
	MimeType  string
}

func (in Input) Validate() error {
	switch in.Kind {
	case domain.InputImage:
		if len(in.ImageData) == 0 {
			return ErrEmptyInput
		}
	case domain.InputText:
		if in.Text == "" {
			return ErrEmptyInput
		}
	default:
		return errors.New("unknown detection input kind")
	}
	return nil
}

// Result is the classification returned by a backend. The JSON field names
// match the public API response.
type Result struct {
	Category    domain.Category `json:"jenis"`
	Explanation string          `json:"penjelasan"`
	Tips        string          `json:"tips"`
}

// ToolSchema is the JSON schema of the classify_waste arguments.
func ToolSchema() map[string]any {
	categories := make([]string, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		categories = append(categories, string(c.Category))
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"jenis": map[string]any{
				"type":        "string",
				"enum":        categories,
				"description": "Jenis sampah yang terdeteksi",
			},
			"penjelasan": map[string]any{
				"type":        "string",
				"description": "Penjelasan singkat tentang jenis sampah (maks 50 kata)",
			},
			"tips": map[string]any{
				"type":        "string",
				"description": "Tips pengelolaan atau daur ulang (maks 50 kata)",
			},
		},
		"required":             []string{"jenis", "penjelasan", "tips"},
		"additionalProperties": false,
	}
}
