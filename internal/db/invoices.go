package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floresloli/pedidos-factura-service/internal/common"
	"github.com/floresloli/pedidos-factura-service/internal/models"
)

// Invoice is a persisted order invoice (pedidos_facturas)
type Invoice struct {
	ID           uuid.UUID         `json:"id"`
	Number       string            `json:"numero"`
	Date         string            `json:"fecha"`
	ClientName   string            `json:"cliente"`
	OriginalText string            `json:"texto_original,omitempty"`
	Items        []models.LineItem `json:"items"`
	Subtotal     float64           `json:"subtotal"`
	IVA          float64           `json:"iva"`
	Total        float64           `json:"total"`
	PDFName      string            `json:"pdf_nombre,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// FromModel converts an assembled invoice into its stored form
func FromModel(inv *models.Invoice, originalText, pdfName string) *Invoice {
	return &Invoice{
		Number:       inv.Number,
		Date:         inv.Date,
		ClientName:   inv.ClientName,
		OriginalText: originalText,
		Items:        inv.Items,
		Subtotal:     inv.Subtotal.InexactFloat64(),
		IVA:          inv.TaxTotal.InexactFloat64(),
		Total:        inv.GrandTotal.InexactFloat64(),
		PDFName:      pdfName,
	}
}

// SaveInvoice inserts inv and fills in ID and CreatedAt
func SaveInvoice(ctx context.Context, inv *Invoice) error {
	if Pool == nil {
		return ErrNoDatabase
	}

	items, err := json.Marshal(inv.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}

	query := `
		INSERT INTO pedidos_facturas (
			id, numero, fecha, cliente, texto_original, items,
			subtotal, iva, total, pdf_nombre
		) VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, $10)
		RETURNING created_at
	`

	return Pool.QueryRow(ctx, query,
		inv.ID, inv.Number, inv.Date, inv.ClientName, inv.OriginalText, string(items),
		inv.Subtotal, inv.IVA, inv.Total, inv.PDFName,
	).Scan(&inv.CreatedAt)
}

// GetInvoices returns a page of invoices, newest first, and the total count
func GetInvoices(ctx context.Context, limit, offset int) ([]Invoice, int, error) {
	if Pool == nil {
		return nil, 0, ErrNoDatabase
	}

	// Count total
	var total int
	if err := Pool.QueryRow(ctx, `SELECT COUNT(*) FROM pedidos_facturas`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, numero, fecha, cliente, items::text,
		       subtotal::float8, iva::float8, total::float8, pdf_nombre, created_at
		FROM pedidos_facturas
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	invoices := []Invoice{}
	for rows.Next() {
		var inv Invoice
		var items string
		err := rows.Scan(
			&inv.ID, &inv.Number, &inv.Date, &inv.ClientName, &items,
			&inv.Subtotal, &inv.IVA, &inv.Total, &inv.PDFName, &inv.CreatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		if err := decodeItems(items, &inv); err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return invoices, total, nil
}

// GetInvoiceByNumber returns the most recent invoice with that number
func GetInvoiceByNumber(ctx context.Context, number string) (*Invoice, error) {
	if Pool == nil {
		return nil, ErrNoDatabase
	}

	query := `
		SELECT id, numero, fecha, cliente, texto_original, items::text,
		       subtotal::float8, iva::float8, total::float8, pdf_nombre, created_at
		FROM pedidos_facturas
		WHERE numero = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var inv Invoice
	var items string
	err := Pool.QueryRow(ctx, query, number).Scan(
		&inv.ID, &inv.Number, &inv.Date, &inv.ClientName, &inv.OriginalText, &items,
		&inv.Subtotal, &inv.IVA, &inv.Total, &inv.PDFName, &inv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND", "invoice "+number+" not found", common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := decodeItems(items, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// DeleteInvoice removes every invoice with that number
func DeleteInvoice(ctx context.Context, number string) error {
	if Pool == nil {
		return ErrNoDatabase
	}

	tag, err := Pool.Exec(ctx, `DELETE FROM pedidos_facturas WHERE numero = $1`, number)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.NewAppError("NOT_FOUND", "invoice "+number+" not found", common.ErrNotFound)
	}
	return nil
}

// MonthlyStats represents monthly statistics
type MonthlyStats struct {
	Month         string  `json:"mes"`
	TotalFacturas int     `json:"total_facturas"`
	TotalSubtotal float64 `json:"total_subtotal"`
	TotalIVA      float64 `json:"total_iva"`
	TotalMonto    float64 `json:"total_monto"`
}

// GetMonthlyStats returns statistics for the month containing now
func GetMonthlyStats(ctx context.Context, now time.Time) (*MonthlyStats, error) {
	if Pool == nil {
		return nil, ErrNoDatabase
	}

	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 1, 0)

	query := `
		SELECT
			COUNT(*) as total_facturas,
			COALESCE(SUM(subtotal), 0)::float8 as total_subtotal,
			COALESCE(SUM(iva), 0)::float8 as total_iva,
			COALESCE(SUM(total), 0)::float8 as total_monto
		FROM pedidos_facturas
		WHERE created_at >= $1 AND created_at < $2
	`

	stats := &MonthlyStats{
		Month: start.Format("2006-01"),
	}

	err := Pool.QueryRow(ctx, query, start, end).Scan(
		&stats.TotalFacturas,
		&stats.TotalSubtotal,
		&stats.TotalIVA,
		&stats.TotalMonto,
	)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func decodeItems(raw string, inv *Invoice) error {
	inv.Items = []models.LineItem{}
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &inv.Items); err != nil {
		return fmt.Errorf("invoice %s: corrupt items: %w", inv.Number, err)
	}
	return nil
}
