package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/floresloli/pedidos-factura-service/internal/extract"
	"github.com/floresloli/pedidos-factura-service/internal/models"
)

func line(label string, qty int, unit string) models.LineItem {
	return extract.ComputeLine(label, qty, decimal.RequireFromString(unit), extract.DefaultTaxRate)
}

func TestAssembleInvoice_SumsAndDate(t *testing.T) {
	res := &models.ExtractionResult{
		ClientName:    "Juan Pérez",
		InvoiceNumber: "2025-001",
		Items:         []models.LineItem{line("Ramos De Rosas", 2, "30"), line("Centro De Mesa", 1, "45")},
	}
	inv := AssembleInvoice(res, time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC), 10)

	if inv.Date != "07/03/2025" {
		t.Fatalf("expected date 07/03/2025 got %s", inv.Date)
	}
	if inv.Number != "2025-001" || inv.ClientName != "Juan Pérez" {
		t.Fatalf("header not copied: %+v", inv)
	}
	if !inv.Subtotal.Equal(decimal.NewFromInt(105)) ||
		!inv.TaxTotal.Equal(decimal.RequireFromString("10.5")) ||
		!inv.GrandTotal.Equal(decimal.RequireFromString("115.5")) {
		t.Fatalf("unexpected totals %s/%s/%s", inv.Subtotal, inv.TaxTotal, inv.GrandTotal)
	}
	if inv.Truncated {
		t.Fatalf("expected no truncation")
	}
}

func TestAssembleInvoice_Truncates(t *testing.T) {
	var items []models.LineItem
	for i := 0; i < 12; i++ {
		items = append(items, line(fmt.Sprintf("Ramo %d", i), 1, "10"))
	}
	res := &models.ExtractionResult{ClientName: "Cliente", InvoiceNumber: "X", Items: items}

	inv := AssembleInvoice(res, time.Now(), 0)
	if len(inv.Items) != DefaultMaxItems || !inv.Truncated {
		t.Fatalf("expected %d items and truncation, got %d (truncated=%v)", DefaultMaxItems, len(inv.Items), inv.Truncated)
	}
	if !inv.Subtotal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected totals over kept items only, got %s", inv.Subtotal)
	}
	if len(res.Items) != 12 {
		t.Fatalf("extraction result must not be modified")
	}
}

func TestInvoiceFromRequest(t *testing.T) {
	req := &models.RenderRequest{
		Number: " F-1 ",
		Date:   "01/02/2025",
		Items: []models.RenderItem{
			{Label: " Corona ", Quantity: 1, Base: decimal.NewFromInt(80), Tax: decimal.NewFromInt(8), Total: decimal.NewFromInt(88)},
		},
	}
	req.Client = &struct {
		Name string `json:"nombre"`
	}{Name: "Ana López"}

	inv := InvoiceFromRequest(req)
	if inv.Number != "F-1" || inv.ClientName != "Ana López" || inv.Items[0].Label != "Corona" {
		t.Fatalf("unexpected invoice %+v", inv)
	}
	if !inv.GrandTotal.Equal(decimal.NewFromInt(88)) {
		t.Fatalf("expected total 88 got %s", inv.GrandTotal)
	}
}
