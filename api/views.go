package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/floresloli/pedidos-factura-service/internal/db"
	"github.com/floresloli/pedidos-factura-service/internal/models"
)

// money renders an amount as a JSON number with exactly two decimals
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func moneyFloat(f float64) json.Number {
	return money(decimal.NewFromFloat(f))
}

type itemView struct {
	Product  string      `json:"producto"`
	Quantity int         `json:"cantidad"`
	Base     json.Number `json:"base"`
	IVA      json.Number `json:"iva"`
	Total    json.Number `json:"total"`
}

type clientView struct {
	Name string `json:"nombre"`
}

// invoiceView is the "factura" object, the same shape POST /generar-factura accepts
type invoiceView struct {
	Number string     `json:"numero"`
	Date   string     `json:"fecha"`
	Client clientView `json:"cliente"`
	Items  []itemView `json:"items"`
}

type summaryView struct {
	Subtotal json.Number `json:"subtotal"`
	IVA      json.Number `json:"iva"`
	Total    json.Number `json:"total"`
	NumItems int         `json:"num_items"`
}

// recordView is a persisted invoice
type recordView struct {
	ID           string      `json:"id"`
	Number       string      `json:"numero"`
	Date         string      `json:"fecha"`
	Client       clientView  `json:"cliente"`
	OriginalText string      `json:"texto_original,omitempty"`
	Items        []itemView  `json:"items"`
	Subtotal     json.Number `json:"subtotal"`
	IVA          json.Number `json:"iva"`
	Total        json.Number `json:"total"`
	PDFName      string      `json:"pdf_nombre,omitempty"`
	CreatedAt    string      `json:"created_at"`
}

func itemViews(items []models.LineItem) []itemView {
	views := make([]itemView, 0, len(items))
	for _, it := range items {
		views = append(views, itemView{
			Product:  it.Label,
			Quantity: it.Quantity,
			Base:     money(it.Base),
			IVA:      money(it.Tax),
			Total:    money(it.Total),
		})
	}
	return views
}

func newInvoiceView(inv *models.Invoice) invoiceView {
	return invoiceView{
		Number: inv.Number,
		Date:   inv.Date,
		Client: clientView{Name: inv.ClientName},
		Items:  itemViews(inv.Items),
	}
}

func newSummaryView(inv *models.Invoice) summaryView {
	return summaryView{
		Subtotal: money(inv.Subtotal),
		IVA:      money(inv.TaxTotal),
		Total:    money(inv.GrandTotal),
		NumItems: len(inv.Items),
	}
}

func newRecordView(inv *db.Invoice) recordView {
	return recordView{
		ID:           inv.ID.String(),
		Number:       inv.Number,
		Date:         inv.Date,
		Client:       clientView{Name: inv.ClientName},
		OriginalText: inv.OriginalText,
		Items:        itemViews(inv.Items),
		Subtotal:     moneyFloat(inv.Subtotal),
		IVA:          moneyFloat(inv.IVA),
		Total:        moneyFloat(inv.Total),
		PDFName:      inv.PDFName,
		CreatedAt:    inv.CreatedAt.Format(time.RFC3339),
	}
}
