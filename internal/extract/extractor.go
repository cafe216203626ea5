// Package extract turns free-form Spanish order text into invoice data:
// client name, invoice number and priced line items.
package extract

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/floresloli/pedidos-factura-service/internal/common"
	"github.com/floresloli/pedidos-factura-service/internal/models"
)

// Options configures an Extractor
type Options struct {
	// TaxRate applied to every line; zero means DefaultTaxRate
	TaxRate decimal.Decimal

	// Strict drops a match whose text span overlaps an item already accepted.
	// Off, every match of every pattern becomes an item.
	Strict bool

	// Now is the clock used for synthesized invoice numbers; nil means time.Now
	Now func() time.Time
}

// Extractor holds immutable extraction settings and is safe for concurrent use
type Extractor struct {
	taxRate decimal.Decimal
	strict  bool
	now     func() time.Time
}

// New creates an Extractor
func New(opts Options) *Extractor {
	e := &Extractor{
		taxRate: opts.TaxRate,
		strict:  opts.Strict,
		now:     opts.Now,
	}
	if e.taxRate.IsZero() {
		e.taxRate = DefaultTaxRate
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// TaxRate returns the rate applied to line items
func (e *Extractor) TaxRate() decimal.Decimal {
	return e.taxRate
}

// Strict reports whether overlapping matches are discarded
func (e *Extractor) Strict() bool {
	return e.strict
}

// Extract reads client, invoice number and line items from text. supplied, when
// not blank, is used as the invoice number as-is. An empty item list is not an
// error here; callers report it as common.ErrNoProducts.
func (e *Extractor) Extract(text, supplied string) (result *models.ExtractionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = common.NewAppError("EXTRACTION_FAILED", fmt.Sprintf("%v", r), common.ErrInternal)
		}
	}()

	return &models.ExtractionResult{
		Items:         e.ExtractItems(text),
		ClientName:    ExtractClient(text),
		InvoiceNumber: e.ResolveInvoiceNumber(text, supplied),
	}, nil
}
