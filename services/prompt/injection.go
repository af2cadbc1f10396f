package prompt

import (
	"regexp"
	"sort"
)

// InjectionType classifies a prompt-injection attempt
type InjectionType string

const (
	InjectionTypeSystemPromptLeak    InjectionType = "system_prompt_leak"
	InjectionTypeRoleManipulation    InjectionType = "role_manipulation"
	InjectionTypeInstructionOverride InjectionType = "instruction_override"
	InjectionTypeCodeExecution       InjectionType = "code_execution"
	InjectionTypeJailbreak           InjectionType = "jailbreak"
	InjectionTypeDelimiterAttack     InjectionType = "delimiter_attack"
	InjectionTypeEncodedPayload      InjectionType = "encoded_payload"
)

// Detection is one pattern match inside a user message
type Detection struct {
	Type       InjectionType `json:"type"`
	Confidence float64       `json:"confidence"`
	Start      int           `json:"start"`
	End        int           `json:"end"`
}

type patternGroup struct {
	kind       InjectionType
	confidence float64
	weight     float64
	patterns   []*regexp.Regexp
}

// Users write in Indonesian and English, so both are covered.
var patternGroups = []patternGroup{
	{
		kind:       InjectionTypeSystemPromptLeak,
		confidence: 0.9,
		weight:     1.5,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)ignore\s+(previous|all|above|prior)\s+(instructions?|prompts?|commands?)`),
			regexp.MustCompile(`(?i)(show|reveal|print|repeat)\s+(me\s+)?(your|the)\s+(system|original|initial|hidden)\s+(prompt|instructions?)`),
			regexp.MustCompile(`(?i)(tampilkan|tunjukkan|sebutkan|bocorkan)\s+(prompt|instruksi)\s+(sistem|awal|rahasia)`),
		},
	},
	{
		kind:       InjectionTypeRoleManipulation,
		confidence: 0.85,
		weight:     1,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)from\s+now\s+on[,]?\s+(you|your)\s+(are|will)`),
			regexp.MustCompile(`(?i)(you|your)\s+(are|role|identity)\s+(now|is|changed)`),
			regexp.MustCompile(`(?i)pretend\s+(to\s+)?be\s+(a|an)`),
			regexp.MustCompile(`(?i)(mulai\s+sekarang|sekarang)\s+kamu\s+(adalah|menjadi)`),
			regexp.MustCompile(`(?i)berpura-pura\s+(menjadi|jadi)`),
		},
	},
	{
		kind:       InjectionTypeInstructionOverride,
		confidence: 0.9,
		weight:     1.5,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(disregard|override|cancel)\s+(all|previous|above|any|system)\s+(instructions?|rules|commands?|settings?)`),
			regexp.MustCompile(`(?i)forget\s+(everything|all\s+previous|what\s+you\s+learned)`),
			regexp.MustCompile(`(?i)(abaikan|lupakan)\s+(semua\s+)?(instruksi|perintah|aturan)`),
		},
	},
	{
		kind:       InjectionTypeCodeExecution,
		confidence: 0.95,
		weight:     2,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(execute|run)\s+(this|the\s+following)\s+(code|script|command)`),
			regexp.MustCompile(`(?i)\b(eval|exec|system)\s*\(`),
			regexp.MustCompile(`(?i)import\s+(os|sys|subprocess|socket)\b`),
		},
	},
	{
		kind:       InjectionTypeJailbreak,
		confidence: 0.95,
		weight:     2,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bDAN\s+mode`),
			regexp.MustCompile(`(?i)(developer|unrestricted|god)\s+mode`),
			regexp.MustCompile(`(?i)jailbreak`),
			regexp.MustCompile(`(?i)without\s+(any|ethical|moral)\s+(restrictions?|limitations?|guidelines?)`),
		},
	},
	{
		kind:       InjectionTypeDelimiterAttack,
		confidence: 0.8,
		weight:     1,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\[/?(SYSTEM|USER|ASSISTANT)\]`),
			regexp.MustCompile(`<\|(system|user|assistant|end)\|>`),
			regexp.MustCompile(`###\s*(SYSTEM|USER|ASSISTANT|INSTRUCTION)`),
		},
	},
	{
		kind:       InjectionTypeEncodedPayload,
		confidence: 0.7,
		weight:     1,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)base64\s*[:\s=]\s*[A-Za-z0-9+/]{20,}={0,2}`),
			regexp.MustCompile(`(?:\\x[0-9a-fA-F]{2}){10,}`),
		},
	},
}

// Detect returns every pattern match in text ordered by position
func Detect(text string) []Detection {
	var detections []Detection
	for _, group := range patternGroups {
		for _, pattern := range group.patterns {
			for _, loc := range pattern.FindAllStringIndex(text, -1) {
				detections = append(detections, Detection{
					Type:       group.kind,
					Confidence: group.confidence,
					Start:      loc[0],
					End:        loc[1],
				})
			}
		}
	}
	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Start < detections[j].Start
	})
	return detections
}

// RiskScore is the weighted mean confidence of the detections, 0 when there are none
func RiskScore(detections []Detection) float64 {
	var total, weights float64
	for _, d := range detections {
		w := weightOf(d.Type)
		total += d.Confidence * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return min(total/weights, 1)
}

func weightOf(kind InjectionType) float64 {
	for _, group := range patternGroups {
		if group.kind == kind {
			return group.weight
		}
	}
	return 1
}
