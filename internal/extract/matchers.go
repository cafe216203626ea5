package extract

import "regexp"

const (
	priceGroup   = `(\d+(?:[.,]\d{1,2})?)`
	euroSuffix   = `\s*(?:euros?|€|eur)`
	productChars = `[a-záéíóúñ\s]`
	allKeywords  = `(ramos?|centros?|plantas?|arreglos?|bouquets?|coronas?)`
	dashKeywords = `(ramos?|centros?|plantas?|arreglos?)`
)

// itemMatcher is one surface pattern of the cascade. Its capture groups are
// decoded by arity, see decodeGroups.
type itemMatcher struct {
	name string
	re   *regexp.Regexp
}

// itemMatchers run in this order; each one scans the whole text and all of
// them contribute, so a single mention can be matched more than once.
var itemMatchers = []itemMatcher{
	// "2 ramos de rosas a 30 euros"
	{
		name: "qty-keyword-a-price",
		re: regexp.MustCompile(`(?i)(\d+)\s+` + allKeywords + `[^0-9]*?(` + productChars + `+?)\s+a\s+` +
			priceGroup + euroSuffix),
	},
	// "ramo de rosas 30€"
	{
		name: "keyword-price",
		re: regexp.MustCompile(`(?i)` + allKeywords + `\s+(?:de\s+)?(` + productChars + `+?)\s+` +
			priceGroup + euroSuffix),
	},
	// "2x ramo de rosas - 30€"
	{
		name: "qty-keyword-dash-price",
		re: regexp.MustCompile(`(?i)(\d+)\s*x?\s+` + dashKeywords + `[^0-9]*?(` + productChars + `+?)\s*[-–]\s*` +
			priceGroup + euroSuffix),
	},
	// "3 tulipanes 12 euros"
	{
		name: "generic",
		re:   regexp.MustCompile(`(?i)(\d+)\s+(` + productChars + `{3,30}?)\s+` + priceGroup + euroSuffix),
	},
}

// barePriceRe is the last resort when no matcher produced an item
var barePriceRe = regexp.MustCompile(`(?i)` + priceGroup + euroSuffix)
