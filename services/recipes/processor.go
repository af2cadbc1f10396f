package recipes

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/puanakeyla/ChatbotMasakanIndonesia/models"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/utils"
)

var (
	unwantedPatterns = []*regexp.Regexp{
		regexp.MustCompile(`<[^>]+>`),
		regexp.MustCompile(`https?://\S+`),
		regexp.MustCompile(`\[.*?\]`),
	}
	whitespace    = regexp.MustCompile(`\s+`)
	numberedStep  = regexp.MustCompile(`^\d+\.`)
	leadingBullet = regexp.MustCompile(`^[-*•]+\s*`)
)

// CleanText strips HTML tags, URLs and bracketed fragments, then collapses whitespace
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	for _, pattern := range unwantedPatterns {
		text = pattern.ReplaceAllString(text, "")
	}
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// NormalizeIngredients cleans each ingredient, drops empties and strips bullets
func NormalizeIngredients(ingredients []string) []string {
	normalized := make([]string, 0, len(ingredients))
	for _, ingredient := range ingredients {
		cleaned := CleanText(ingredient)
		cleaned = strings.TrimSpace(leadingBullet.ReplaceAllString(cleaned, ""))
		if cleaned != "" {
			normalized = append(normalized, cleaned)
		}
	}
	return normalized
}

// NormalizeSteps cleans each step, drops empties and numbers the rest
// unless a step already starts with "n."
func NormalizeSteps(steps []string) []string {
	normalized := make([]string, 0, len(steps))
	for _, step := range steps {
		cleaned := CleanText(step)
		if cleaned == "" {
			continue
		}
		if !numberedStep.MatchString(cleaned) {
			cleaned = fmt.Sprintf("%d. %s", len(normalized)+1, cleaned)
		}
		normalized = append(normalized, cleaned)
	}
	return normalized
}

// Process cleans every field of a raw recipe. The name is required.
func Process(raw models.Recipe) (models.Recipe, error) {
	processed := models.Recipe{
		Name:        CleanText(raw.Name),
		Category:    CleanText(raw.Category),
		Servings:    CleanText(raw.Servings),
		CookTime:    CleanText(raw.CookTime),
		Difficulty:  CleanText(raw.Difficulty),
		Ingredients: NormalizeIngredients(raw.Ingredients),
		Steps:       NormalizeSteps(raw.Steps),
		Tips:        CleanText(raw.Tips),
	}

	if err := utils.ValidateStruct(processed); err != nil {
		verr := services.NewValidationError("invalid recipe")
		for field, message := range utils.GetValidationFields(err) {
			verr = verr.WithDetail(field, message)
		}
		return models.Recipe{}, verr
	}
	return processed, nil
}

// ProcessAll processes recipes in order; the first invalid one aborts with its position
func ProcessAll(raw []models.Recipe) ([]models.Recipe, error) {
	processed := make([]models.Recipe, 0, len(raw))
	for i, r := range raw {
		p, err := Process(r)
		if err != nil {
			verr := services.NewValidationError("recipe %d: %s", i, messageOf(err))
			for field, message := range services.GetErrorDetails(err) {
				verr = verr.WithDetail(field, message)
			}
			return nil, verr
		}
		processed = append(processed, p)
	}
	return processed, nil
}

func messageOf(err error) string {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}

// FormatForEmbedding renders a processed recipe as the structured text that is embedded
func FormatForEmbedding(recipe models.Recipe) string {
	parts := []string{"Nama Masakan: " + recipe.Name}

	if recipe.Category != "" {
		parts = append(parts, "Kategori: "+recipe.Category)
	}
	if recipe.Servings != "" {
		parts = append(parts, "Porsi: "+recipe.Servings)
	}
	if recipe.CookTime != "" {
		parts = append(parts, "Waktu Memasak: "+recipe.CookTime)
	}
	if recipe.Difficulty != "" {
		parts = append(parts, "Tingkat Kesulitan: "+recipe.Difficulty)
	}

	if len(recipe.Ingredients) > 0 {
		parts = append(parts, "\nBahan-bahan:")
		for _, ingredient := range recipe.Ingredients {
			parts = append(parts, "- "+ingredient)
		}
	}

	if len(recipe.Steps) > 0 {
		parts = append(parts, "\nCara Membuat:")
		parts = append(parts, recipe.Steps...)
	}

	if recipe.Tips != "" {
		parts = append(parts, "\nTips: "+recipe.Tips)
	}

	return strings.Join(parts, "\n")
}

// ToDocument builds the index document for a processed recipe.
// The id is left empty so the index assigns one.
func ToDocument(recipe models.Recipe) models.IndexedDocument {
	return models.IndexedDocument{
		Text:     FormatForEmbedding(recipe),
		Metadata: recipe.Metadata(),
	}
}

// ToDocuments is ToDocument over a slice
func ToDocuments(recipes []models.Recipe) []models.IndexedDocument {
	docs := make([]models.IndexedDocument, 0, len(recipes))
	for _, r := range recipes {
		docs = append(docs, ToDocument(r))
	}
	return docs
}
