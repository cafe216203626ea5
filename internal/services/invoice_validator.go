package services

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/floresloli/pedidos-factura-service/internal/models"
)

// ValidationError represents a single validation error
type ValidationError struct {
	Field    string  `json:"field"`
	Code     string  `json:"code"`
	Expected float64 `json:"expected,omitempty"`
	Actual   float64 `json:"actual,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// ValidationWarning represents a non-critical issue
type ValidationWarning struct {
	Field    string  `json:"field"`
	Code     string  `json:"code"`
	Expected float64 `json:"expected,omitempty"`
	Actual   float64 `json:"actual,omitempty"`
	Message  string  `json:"message"`
}

// ComputedValues holds the totals recomputed from the submitted lines
type ComputedValues struct {
	Subtotal float64 `json:"subtotal"`
	IVA      float64 `json:"iva"`
	Total    float64 `json:"total"`
}

// ValidationResult is the response from validation
type ValidationResult struct {
	Valid       bool                `json:"valid"`
	NeedsReview bool                `json:"needs_review"`
	Errors      []ValidationError   `json:"errors"`
	Warnings    []ValidationWarning `json:"warnings"`
	Computed    ComputedValues      `json:"computed"`
}

// InvoiceValidator checks invoice payloads submitted for rendering
type InvoiceValidator struct {
	taxRate   decimal.Decimal
	maxItems  int
	tolerance decimal.Decimal // absolute, in euros
}

// NewInvoiceValidator creates a validator with a one-cent tolerance
func NewInvoiceValidator(taxRate decimal.Decimal, maxItems int) *InvoiceValidator {
	if maxItems < 1 {
		maxItems = DefaultMaxItems
	}
	return &InvoiceValidator{
		taxRate:   taxRate,
		maxItems:  maxItems,
		tolerance: decimal.New(1, -2),
	}
}

// Validate performs all checks on the payload
func (v *InvoiceValidator) Validate(req *models.RenderRequest) *ValidationResult {
	result := &ValidationResult{
		Valid:       true,
		NeedsReview: false,
		Errors:      []ValidationError{},
		Warnings:    []ValidationWarning{},
	}

	// 1. Number, date and client
	v.validateHeader(req, result)

	// 2. Item count
	v.validateItemCount(req, result)

	// 3. Per-line amounts
	var subtotal, iva, total decimal.Decimal
	for i, item := range req.Items {
		v.validateItem(i, item, result)
		subtotal = subtotal.Add(item.Base)
		iva = iva.Add(item.Tax)
		total = total.Add(item.Total)
	}

	result.Computed = ComputedValues{
		Subtotal: round2(subtotal),
		IVA:      round2(iva),
		Total:    round2(total),
	}

	result.Valid = len(result.Errors) == 0
	result.NeedsReview = len(result.Warnings) > 0

	return result
}

// validateHeader checks the fields printed at the top of the invoice
func (v *InvoiceValidator) validateHeader(req *models.RenderRequest, result *ValidationResult) {
	if strings.TrimSpace(req.Number) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "numero",
			Code:    "missing_number",
			Message: "Número de factura requerido",
		})
	}

	date := strings.TrimSpace(req.Date)
	if date == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "fecha",
			Code:    "missing_date",
			Message: "Fecha requerida",
		})
	} else if _, err := time.Parse(DateLayout, date); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "fecha",
			Code:    "invalid_date",
			Message: "Fecha debe tener formato DD/MM/AAAA",
		})
	}

	if req.Client == nil || strings.TrimSpace(req.Client.Name) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "cliente.nombre",
			Code:    "missing_client",
			Message: "Nombre del cliente requerido",
		})
	}
}

// validateItemCount checks the invoice has between 1 and maxItems lines
func (v *InvoiceValidator) validateItemCount(req *models.RenderRequest, result *ValidationResult) {
	switch n := len(req.Items); {
	case n == 0:
		result.Errors = append(result.Errors, ValidationError{
			Field:   "items",
			Code:    "no_items",
			Message: "La factura debe tener al menos un producto",
		})
	case n > v.maxItems:
		result.Errors = append(result.Errors, ValidationError{
			Field:    "items",
			Code:     "too_many_items",
			Expected: float64(v.maxItems),
			Actual:   float64(n),
			Message:  fmt.Sprintf("Máximo %d productos por factura", v.maxItems),
		})
	}
}

// validateItem checks one line: required fields are errors, arithmetic drift is a warning
func (v *InvoiceValidator) validateItem(i int, item models.RenderItem, result *ValidationResult) {
	field := func(name string) string { return fmt.Sprintf("items[%d].%s", i, name) }

	if strings.TrimSpace(item.Label) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   field("producto"),
			Code:    "missing_label",
			Message: "Nombre de producto requerido",
		})
	}
	if item.Quantity < 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   field("cantidad"),
			Code:    "invalid_quantity",
			Actual:  float64(item.Quantity),
			Message: "La cantidad debe ser al menos 1",
		})
	}

	amounts := []struct {
		name  string
		value decimal.Decimal
	}{{"base", item.Base}, {"iva", item.Tax}, {"total", item.Total}}
	negative := false
	for _, a := range amounts {
		if a.value.IsNegative() {
			negative = true
			result.Errors = append(result.Errors, ValidationError{
				Field:   field(a.name),
				Code:    "negative_amount",
				Actual:  round2(a.value),
				Message: "Los importes no pueden ser negativos",
			})
		}
	}
	if negative {
		return
	}

	expectedTax := item.Base.Mul(v.taxRate).Round(2)
	if item.Tax.Sub(expectedTax).Abs().GreaterThan(v.tolerance) {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:    field("iva"),
			Code:     "iva_mismatch",
			Expected: round2(expectedTax),
			Actual:   round2(item.Tax),
			Message:  fmt.Sprintf("IVA no coincide con %s%% de la base", v.taxRate.Shift(2).String()),
		})
	}

	expectedTotal := item.Base.Add(item.Tax)
	if item.Total.Sub(expectedTotal).Abs().GreaterThan(v.tolerance) {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:    field("total"),
			Code:     "total_mismatch",
			Expected: round2(expectedTotal),
			Actual:   round2(item.Total),
			Message:  "Total no coincide con base + IVA",
		})
	}
}

// round2 rounds to 2 decimal places
func round2(d decimal.Decimal) float64 {
	return math.Round(d.InexactFloat64()*100) / 100
}
