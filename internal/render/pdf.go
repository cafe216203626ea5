// Package render draws invoices as A4 PDF documents.
package render

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/floresloli/pedidos-factura-service/internal/models"
)

const (
	marginX    = 25.0 // mm
	labelRunes = 50
)

// column widths as fractions of the table width: Producto, Cantidad, Base, IVA, Total
var columnShares = []float64{0.40, 0.15, 0.15, 0.15, 0.15}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName is the storage name of the PDF for an invoice number
func FileName(number string) string {
	clean := unsafeFileChars.ReplaceAllString(strings.TrimSpace(number), "_")
	if clean == "" {
		clean = "sin_numero"
	}
	return "factura_" + clean + ".pdf"
}

// UnitBreakdown returns the per-unit base and IVA shown in the table.
// They are display values only; totals always use the line amounts.
func UnitBreakdown(item models.LineItem, taxRate decimal.Decimal) (unitBase, unitTax decimal.Decimal) {
	qty := item.Quantity
	if qty < 1 {
		qty = 1
	}
	unitBase = item.Base.Div(decimal.NewFromInt(int64(qty))).Round(2)
	unitTax = unitBase.Mul(taxRate).Round(2)
	return unitBase, unitTax
}

// PDFRenderer lays out invoices for one company
type PDFRenderer struct {
	company models.CompanyConfig
	taxRate decimal.Decimal
}

// NewPDFRenderer creates a renderer
func NewPDFRenderer(company models.CompanyConfig, taxRate decimal.Decimal) *PDFRenderer {
	return &PDFRenderer{company: company, taxRate: taxRate}
}

// RenderBytes renders inv into memory
func (r *PDFRenderer) RenderBytes(inv *models.Invoice) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Render(inv, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Render writes inv as PDF to w
func (r *PDFRenderer) Render(inv *models.Invoice, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginX, 10, marginX)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	tableW := pageW - 2*marginX

	r.drawCompany(pdf, tr)
	r.drawInvoiceHeader(pdf, tr, inv, pageW)
	y := r.drawClient(pdf, tr, inv, pageW)
	y = r.drawTable(pdf, tr, inv, y, tableW)
	r.drawTotals(pdf, tr, inv, y, pageW)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render invoice %s: %w", inv.Number, err)
	}
	return nil
}

func (r *PDFRenderer) drawCompany(pdf *gofpdf.Fpdf, tr func(string) string) {
	y := 10.0
	if r.company.LogoPath != "" {
		if _, err := os.Stat(r.company.LogoPath); err == nil {
			pdf.ImageOptions(r.company.LogoPath, marginX, y, 20, 20, false,
				gofpdf.ImageOptions{ReadDpi: true}, 0, "")
			// unreadable logos are skipped
			if pdf.Err() {
				pdf.ClearError()
			}
		}
	}
	y += 24

	pdf.SetFont("Helvetica", "B", 10)
	pdf.Text(marginX, y, tr(r.company.Name))
	pdf.SetFont("Helvetica", "", 9)
	for _, line := range []string{r.company.Address, r.company.PostCode, r.company.Email, r.company.Phone} {
		if line == "" {
			continue
		}
		y += 4
		pdf.Text(marginX, y, tr(line))
	}
}

func (r *PDFRenderer) drawInvoiceHeader(pdf *gofpdf.Fpdf, tr func(string) string, inv *models.Invoice, pageW float64) {
	x := pageW - marginX - 80
	pdf.SetXY(x, 26)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(80, 6, tr("FACTURA: "+inv.Number), "", 2, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(80, 6, tr("Fecha: "+inv.Date), "", 0, "R", false, 0, "")
}

func (r *PDFRenderer) drawClient(pdf *gofpdf.Fpdf, tr func(string) string, inv *models.Invoice, pageW float64) float64 {
	y := 75.0
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.2)
	pdf.Line(marginX, y, pageW-marginX, y)

	y += 8
	pdf.SetFont("Helvetica", "B", 10)
	pdf.Text(marginX, y, "Datos cliente")

	y += 6
	pdf.SetFont("Helvetica", "", 9)
	pdf.Text(marginX, y, tr("Nombre: "+inv.ClientName))

	y += 8
	pdf.Line(marginX, y, pageW-marginX, y)
	return y + 10
}

func (r *PDFRenderer) drawTable(pdf *gofpdf.Fpdf, tr func(string) string, inv *models.Invoice, y, tableW float64) float64 {
	widths := make([]float64, len(columnShares))
	for i, share := range columnShares {
		widths[i] = tableW * share
	}

	pdf.SetXY(marginX, y)
	pdf.SetFont("Helvetica", "B", 9)
	headers := []string{"Producto", "Cantidad", "Base", "IVA", "Total"}
	aligns := []string{"L", "C", "R", "R", "R"}
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "B", 0, aligns[i], false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetDrawColor(200, 200, 200)
	for _, item := range inv.Items {
		unitBase, unitTax := UnitBreakdown(item, r.taxRate)
		cells := []string{
			tr(truncateRunes(item.Label, labelRunes)),
			fmt.Sprintf("%d", item.Quantity),
			tr(euros(unitBase)),
			tr(euros(unitTax)),
			tr(euros(item.Total)),
		}
		pdf.SetX(marginX)
		for i, c := range cells {
			pdf.CellFormat(widths[i], 8, c, "B", 0, aligns[i], false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.SetDrawColor(0, 0, 0)

	return pdf.GetY()
}

func (r *PDFRenderer) drawTotals(pdf *gofpdf.Fpdf, tr func(string) string, inv *models.Invoice, y, pageW float64) {
	labelW, valueW := 40.0, 35.0
	x := pageW - marginX - labelW - valueW
	y += 10

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetXY(x, y)
	pdf.CellFormat(labelW, 6, "Base Imponible", "", 0, "L", false, 0, "")
	pdf.CellFormat(valueW, 6, tr(euros(inv.Subtotal)), "", 1, "R", false, 0, "")

	pdf.SetX(x)
	pdf.CellFormat(labelW, 6, "IVA "+r.taxRate.Shift(2).String()+"%", "", 0, "L", false, 0, "")
	pdf.CellFormat(valueW, 6, tr(euros(inv.TaxTotal)), "B", 1, "R", false, 0, "")

	pdf.SetX(x)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(labelW, 8, "Total", "", 0, "L", false, 0, "")
	pdf.CellFormat(valueW, 8, tr(euros(inv.GrandTotal)), "", 1, "R", false, 0, "")
}

func euros(d decimal.Decimal) string {
	return d.StringFixed(2) + " €"
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
