package services

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/floresloli/pedidos-factura-service/internal/models"
)

// DateLayout is the invoice date format (DD/MM/YYYY)
const DateLayout = "02/01/2006"

// DefaultMaxItems is how many lines fit on one invoice
const DefaultMaxItems = 10

// AssembleInvoice turns an extraction result into an invoice dated now.
// Items beyond maxItems are dropped and the invoice is marked Truncated.
func AssembleInvoice(result *models.ExtractionResult, now time.Time, maxItems int) *models.Invoice {
	if maxItems < 1 {
		maxItems = DefaultMaxItems
	}

	items := result.Items
	truncated := false
	if len(items) > maxItems {
		items = items[:maxItems]
		truncated = true
	}
	kept := make([]models.LineItem, len(items))
	copy(kept, items)

	subtotal, tax, total := Totals(kept)
	return &models.Invoice{
		Number:     result.InvoiceNumber,
		Date:       now.Format(DateLayout),
		ClientName: result.ClientName,
		Items:      kept,
		Subtotal:   subtotal,
		TaxTotal:   tax,
		GrandTotal: total,
		Truncated:  truncated,
	}
}

// Totals sums the per-line amounts
func Totals(items []models.LineItem) (subtotal, tax, total decimal.Decimal) {
	for _, item := range items {
		subtotal = subtotal.Add(item.Base)
		tax = tax.Add(item.Tax)
		total = total.Add(item.Total)
	}
	return subtotal, tax, total
}

// InvoiceFromRequest builds an invoice from an externally supplied payload.
// Amounts are taken as given; run InvoiceValidator first.
func InvoiceFromRequest(req *models.RenderRequest) *models.Invoice {
	items := make([]models.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, models.LineItem{
			Label:    strings.TrimSpace(it.Label),
			Quantity: it.Quantity,
			Base:     it.Base.Round(2),
			Tax:      it.Tax.Round(2),
			Total:    it.Total.Round(2),
		})
	}

	client := ""
	if req.Client != nil {
		client = strings.TrimSpace(req.Client.Name)
	}

	subtotal, tax, total := Totals(items)
	return &models.Invoice{
		Number:     strings.TrimSpace(req.Number),
		Date:       strings.TrimSpace(req.Date),
		ClientName: client,
		Items:      items,
		Subtotal:   subtotal,
		TaxTotal:   tax,
		GrandTotal: total,
	}
}
