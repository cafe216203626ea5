package extract

import (
	"github.com/shopspring/decimal"

	"github.com/floresloli/pedidos-factura-service/internal/models"
)

// DefaultTaxRate is the IVA applied to every line (10%)
var DefaultTaxRate = decimal.New(10, -2)

// ComputeLine builds a line item from a unit price. Amounts are rounded to
// cents half away from zero; Total is always Base + Tax.
func ComputeLine(label string, quantity int, unitPrice, taxRate decimal.Decimal) models.LineItem {
	if quantity < 1 {
		quantity = 1
	}

	base := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	tax := base.Mul(taxRate).Round(2)
	total := base.Add(tax).Round(2)

	return models.LineItem{
		Label:    label,
		Quantity: quantity,
		Base:     base.Round(2),
		Tax:      tax,
		Total:    total,
	}
}
