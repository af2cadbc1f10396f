package models

// Recipe represents a structured recipe record as loaded from the corpus files.
// Keys follow the Indonesian corpus layout.
type Recipe struct {
	Name        string   `json:"nama" yaml:"nama" validate:"required"`
	Category    string   `json:"kategori,omitempty" yaml:"kategori,omitempty"`
	Servings    string   `json:"porsi,omitempty" yaml:"porsi,omitempty"`
	CookTime    string   `json:"waktu_masak,omitempty" yaml:"waktu_masak,omitempty"`
	Difficulty  string   `json:"tingkat_kesulitan,omitempty" yaml:"tingkat_kesulitan,omitempty"`
	Ingredients []string `json:"bahan,omitempty" yaml:"bahan,omitempty"`
	Steps       []string `json:"langkah,omitempty" yaml:"langkah,omitempty"`
	Tips        string   `json:"tips,omitempty" yaml:"tips,omitempty"`
}

// Metadata returns the flat metadata stored alongside the recipe's indexed document
func (r Recipe) Metadata() Metadata {
	return Metadata{
		Name:       r.Name,
		Category:   r.Category,
		Servings:   r.Servings,
		CookTime:   r.CookTime,
		Difficulty: r.Difficulty,
	}
}
