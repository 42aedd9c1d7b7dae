package domain

import (
	"fmt"
	"strings"
)

// CategoryInfo describes a waste category for display on the index page.
type CategoryInfo struct {
	Category    Category
	Title       string
	Description string
	Hazardous   bool
}

var Categories = []CategoryInfo{
	{
		Category:    CategoryOrganic,
		Title:       "Organik",
		Description: "Sisa makanan, daun, dan bahan alami yang bisa dikompos",
	},
	{
		Category:    CategoryInorganic,
		Title:       "Anorganik",
		Description: "Plastik, kertas, dan logam yang bisa didaur ulang",
	},
	{
		Category:    CategoryHazardous,
		Title:       "B3",
		Description: "Bahan berbahaya yang perlu penanganan khusus",
		Hazardous:   true,
	},
}

// ParseCategory matches s case-insensitively against the known categories.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(s, string(c.Category)) {
			return c.Category, nil
		}
	}
	return "", fmt.Errorf("unknown waste category %q", s)
}

func (c Category) Hazardous() bool {
	return c == CategoryHazardous
}
