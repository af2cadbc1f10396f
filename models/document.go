package models

import (
	"fmt"
	"sort"
	"strings"
)

// Metadata keys as stored by the index backends
const (
	MetaKeyName       = "nama"
	MetaKeyCategory   = "kategori"
	MetaKeyServings   = "porsi"
	MetaKeyCookTime   = "waktu_masak"
	MetaKeyDifficulty = "tingkat_kesulitan"
)

// Metadata is the fixed-shape metadata attached to every indexed document
type Metadata struct {
	Name       string `json:"nama" validate:"required,max=200"`
	Category   string `json:"kategori,omitempty" validate:"max=100"`
	Servings   string `json:"porsi,omitempty" validate:"max=100"`
	CookTime   string `json:"waktu_masak,omitempty" validate:"max=100"`
	Difficulty string `json:"tingkat_kesulitan,omitempty" validate:"max=100"`
}

// ToMap flattens the metadata into the key/value layout used by the stores
func (m Metadata) ToMap() map[string]string {
	return map[string]string{
		MetaKeyName:       m.Name,
		MetaKeyCategory:   m.Category,
		MetaKeyServings:   m.Servings,
		MetaKeyCookTime:   m.CookTime,
		MetaKeyDifficulty: m.Difficulty,
	}
}

// MetadataFromMap builds Metadata from a flat map.
// Unknown keys are rejected so malformed records fail at ingestion rather than at query time.
func MetadataFromMap(values map[string]string) (Metadata, error) {
	var m Metadata
	var unknown []string
	for key, value := range values {
		switch key {
		case MetaKeyName:
			m.Name = value
		case MetaKeyCategory:
			m.Category = value
		case MetaKeyServings:
			m.Servings = value
		case MetaKeyCookTime:
			m.CookTime = value
		case MetaKeyDifficulty:
			m.Difficulty = value
		default:
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Metadata{}, fmt.Errorf("unknown metadata fields: %s", strings.Join(unknown, ", "))
	}
	if strings.TrimSpace(m.Name) == "" {
		return Metadata{}, fmt.Errorf("metadata field %q is required", MetaKeyName)
	}
	return m, nil
}

// IndexedDocument is a single (id, text, metadata) record owned by an embedding index
type IndexedDocument struct {
	ID       string   `json:"id"`
	Text     string   `json:"text" validate:"required"`
	Metadata Metadata `json:"metadata"`
}

// IndexStats describes the contents of an embedding index
type IndexStats struct {
	TotalDocuments int      `json:"total_recipes"`
	Categories     []string `json:"categories"`
	NumCategories  int      `json:"num_categories"`
}
