package extract

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/floresloli/pedidos-factura-service/internal/models"
)

// GenericProductLabel labels the single item built from a bare price
const GenericProductLabel = "Producto Genérico"

// candidate is a decoded match before amounts are computed
type candidate struct {
	matcher    string
	start, end int
	quantity   int
	label      string
	price      string
}

// Match describes one candidate seen by the cascade
type Match struct {
	Matcher  string `json:"patron"`
	Text     string `json:"texto"`
	Accepted bool   `json:"aceptado"`
}

// ExtractItems runs the matcher cascade over text and returns the line items
// found, in matcher order then text order. When nothing matches, the first
// bare price in the text becomes a single generic item. The result may be empty.
func (e *Extractor) ExtractItems(text string) []models.LineItem {
	items, _ := e.run(text)
	return items
}

// Trace returns every candidate the cascade considered and whether it became an item
func (e *Extractor) Trace(text string) []Match {
	_, matches := e.run(text)
	return matches
}

func (e *Extractor) run(text string) ([]models.LineItem, []Match) {
	lower := normalizeSpaces(strings.ToLower(text))

	var items []models.LineItem
	var matches []Match
	var accepted [][2]int
	for _, c := range collectCandidates(lower) {
		match := Match{Matcher: c.matcher, Text: lower[c.start:c.end]}
		matches = append(matches, match)

		if e.strict && overlapsAny(c.start, c.end, accepted) {
			continue
		}
		price, ok := ParsePrice(c.price)
		if !ok {
			continue
		}
		items = append(items, ComputeLine(c.label, c.quantity, price, e.taxRate))
		accepted = append(accepted, [2]int{c.start, c.end})
		matches[len(matches)-1].Accepted = true
	}

	if len(items) == 0 {
		if loc := barePriceRe.FindStringSubmatchIndex(lower); loc != nil {
			if price, ok := ParsePrice(lower[loc[2]:loc[3]]); ok {
				items = append(items, ComputeLine(GenericProductLabel, 1, price, e.taxRate))
				matches = append(matches, Match{Matcher: "bare-price", Text: lower[loc[0]:loc[1]], Accepted: true})
			}
		}
	}

	if items == nil {
		items = []models.LineItem{}
	}
	return items, matches
}

// collectCandidates applies every matcher to the lowercased text
func collectCandidates(lower string) []candidate {
	var out []candidate
	for _, m := range itemMatchers {
		for _, loc := range m.re.FindAllStringSubmatchIndex(lower, -1) {
			groups := make([]string, 0, len(loc)/2-1)
			for g := 2; g+1 < len(loc); g += 2 {
				if loc[g] < 0 {
					groups = append(groups, "")
					continue
				}
				groups = append(groups, lower[loc[g]:loc[g+1]])
			}

			quantity, label, price, ok := decodeGroups(groups)
			if !ok {
				continue
			}
			out = append(out, candidate{
				matcher:  m.name,
				start:    loc[0],
				end:      loc[1],
				quantity: quantity,
				label:    label,
				price:    price,
			})
		}
	}
	return out
}

// decodeGroups reads capture groups positionally:
//
//	4 groups: quantity, keyword, name, price
//	3 groups: quantity, name, price  when the first group is numeric
//	          keyword, name, price   otherwise (quantity 1)
func decodeGroups(groups []string) (quantity int, label, price string, ok bool) {
	switch len(groups) {
	case 4:
		return parseQuantity(groups[0]), productLabel(groups[1], groups[2]), groups[3], true
	case 3:
		if isDigits(groups[0]) {
			return parseQuantity(groups[0]), productLabel("", groups[1]), groups[2], true
		}
		return 1, productLabel(groups[0], groups[1]), groups[2], true
	default:
		return 0, "", "", false
	}
}

// parseQuantity falls back to 1 for anything that is not a positive integer
func parseQuantity(s string) int {
	if !isDigits(s) {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// productLabel title-cases "keyword name" and collapses whitespace
func productLabel(keyword, name string) string {
	words := strings.Fields(keyword + " " + name)
	// Casers keep state, so one per call.
	return cases.Title(language.Spanish).String(strings.Join(words, " "))
}

// normalizeSpaces maps every Unicode space (NBSP, thin space, ...) to ' ' so
// the ASCII-only \s in the patterns sees pasted chat text the same way
func normalizeSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, s)
}

func overlapsAny(start, end int, spans [][2]int) bool {
	for _, s := range spans {
		if start < s[1] && s[0] < end {
			return true
		}
	}
	return false
}
