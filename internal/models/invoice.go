package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one product entry extracted from an order text
type LineItem struct {
	Label    string          `json:"producto"` // Product label, e.g. "Ramo De Rosas"
	Quantity int             `json:"cantidad"` // Units ordered (>= 1)
	Base     decimal.Decimal `json:"base"`     // Pre-tax amount for the whole line
	Tax      decimal.Decimal `json:"iva"`      // IVA amount for the whole line
	Total    decimal.Decimal `json:"total"`    // Base + IVA
}

// ExtractionResult is what the extraction engine hands back to its caller.
// It lives for a single request.
type ExtractionResult struct {
	Items         []LineItem `json:"items"`
	ClientName    string     `json:"cliente"`
	InvoiceNumber string     `json:"numero"`
}

// Invoice is the assembled record sent to the renderer and persisted
type Invoice struct {
	Number     string          `json:"numero"`
	Date       string          `json:"fecha"` // DD/MM/YYYY
	ClientName string          `json:"cliente"`
	Items      []LineItem      `json:"items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxTotal   decimal.Decimal `json:"iva"`
	GrandTotal decimal.Decimal `json:"total"`

	// Truncated reports that the extractor produced more items than the invoice can hold
	Truncated bool `json:"-"`
}

// OrderRequest is the body of POST /procesar-pedido
type OrderRequest struct {
	Text        *string `json:"texto"`                 // Required; nil means the field was absent
	Number      string  `json:"numero,omitempty"`      // Optional, bypasses number detection
	Engine      string  `json:"motor,omitempty"`       // "heuristico" (default) or "ia"
	GeneratePDF bool    `json:"generar_pdf,omitempty"` // Render and store the PDF as well
}

// RenderRequest is the body of POST /generar-factura, the same shape the
// order endpoint returns under "factura".
type RenderRequest struct {
	Number string `json:"numero"`
	Date   string `json:"fecha"`
	Client *struct {
		Name string `json:"nombre"`
	} `json:"cliente"`
	Items []RenderItem `json:"items"`
}

// RenderItem is a line item as supplied by an external caller
type RenderItem struct {
	Label    string          `json:"producto"`
	Quantity int             `json:"cantidad"`
	Base     decimal.Decimal `json:"base"`
	Tax      decimal.Decimal `json:"iva"`
	Total    decimal.Decimal `json:"total"`
}

// StoredFile describes a rendered invoice document in storage
type StoredFile struct {
	Name      string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created"`
}
