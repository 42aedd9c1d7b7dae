package detect

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vbonduro/ilmigreen/internal/domain"
)

// ParseResult decodes classify_waste arguments. The category is matched
// case-insensitively; explanation and tips are trimmed.
func ParseResult(raw []byte) (*Result, error) {
	var args struct {
		Jenis      string `json:"jenis"`
		Penjelasan string `json:"penjelasan"`
		Tips       string `json:"tips"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("failed to decode classification: %w", err)
	}

	category, err := domain.ParseCategory(args.Jenis)
	if err != nil {
		return nil, err
	}

	return &Result{
		Category:    category,
		Explanation: strings.TrimSpace(args.Penjelasan),
		Tips:        strings.TrimSpace(args.Tips),
	}, nil
}
