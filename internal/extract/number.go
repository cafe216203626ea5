package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var invoiceNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)factura\s*[:#]?\s*(\d{4}-\d{3})`), // factura: 2025-001
	regexp.MustCompile(`(?i)n[uúº]mero\s+(\d{4}-\d{3})`),      // número 2025-001
	regexp.MustCompile(`(?i)factura\s+n[uúº]\s*(\d+)`),        // factura nº 123
}

// MatchInvoiceNumber looks for an explicit invoice number in text
func MatchInvoiceNumber(text string) (string, bool) {
	text = normalizeSpaces(text)
	for _, re := range invoiceNumberPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// SyntheticInvoiceNumber formats t as YYYY-MMDDHHmm. Two orders handled within
// the same minute get the same number.
func SyntheticInvoiceNumber(t time.Time) string {
	return fmt.Sprintf("%d-%02d%02d%02d%02d",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute())
}

// ResolveInvoiceNumber picks, in order: the caller-supplied number, a number
// written in the text, or one synthesized from the extractor's clock.
func (e *Extractor) ResolveInvoiceNumber(text, supplied string) string {
	if s := strings.TrimSpace(supplied); s != "" {
		return s
	}
	if n, ok := MatchInvoiceNumber(text); ok {
		return n
	}
	return SyntheticInvoiceNumber(e.now())
}
