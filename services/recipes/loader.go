package recipes

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/puanakeyla/ChatbotMasakanIndonesia/models"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a recipe array from a JSON file, or YAML when the
// extension is .yaml or .yml. Records are returned unprocessed.
func LoadFile(path string) ([]models.Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(data)
	default:
		return DecodeJSON(data)
	}
}

// DecodeJSON parses a JSON array of recipes
func DecodeJSON(data []byte) ([]models.Recipe, error) {
	var recipes []models.Recipe
	if err := json.Unmarshal(data, &recipes); err != nil {
		return nil, fmt.Errorf("failed to parse recipe JSON: %w", err)
	}
	return recipes, nil
}

// DecodeYAML parses a YAML sequence of recipes
func DecodeYAML(data []byte) ([]models.Recipe, error) {
	var recipes []models.Recipe
	if err := yaml.Unmarshal(data, &recipes); err != nil {
		return nil, fmt.Errorf("failed to parse recipe YAML: %w", err)
	}
	return recipes, nil
}
