package extract

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var normalizedPriceRe = regexp.MustCompile(`^\d+(?:\.\d+)?$`)

// ParsePrice turns a price token such as "30", "30,5" or "30.50" into an amount.
// A comma decimal separator is accepted in place of the point. ok is false when
// the token is not an unsigned number; callers skip the candidate in that case.
func ParsePrice(token string) (decimal.Decimal, bool) {
	normalized := strings.ReplaceAll(strings.TrimSpace(token), ",", ".")
	if !normalizedPriceRe.MatchString(normalized) {
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, false
	}
	return price, true
}
