package extract

import (
	"regexp"
	"strings"
)

// DefaultClientName is returned when no client cue is found in the text
const DefaultClientName = "Cliente"

// One to four capitalized words; accents allowed
const personName = `([A-ZÁÉÍÓÚÑ][a-záéíóúñ]+(?:\s+[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+){0,3})`

// Cue words are case-insensitive, the name itself is not.
// Order is priority: the first pattern with a match wins.
var clientPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i:para)\s+` + personName),
	regexp.MustCompile(`(?i:cliente):?\s+` + personName),
	regexp.MustCompile(`(?i:a nombre de)\s+` + personName),
	regexp.MustCompile(`(?i:destinatario):?\s+` + personName),
}

// ExtractClient returns the client name mentioned in text (original case),
// or DefaultClientName.
func ExtractClient(text string) string {
	text = normalizeSpaces(text)
	for _, re := range clientPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return DefaultClientName
}
