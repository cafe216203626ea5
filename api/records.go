package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/floresloli/pedidos-factura-service/internal/auth"
	"github.com/floresloli/pedidos-factura-service/internal/db"
)

// GetInvoices returns a page of persisted invoices
func (h *Handler) GetInvoices(w http.ResponseWriter, r *http.Request) {
	if !db.Available() {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	// Parse pagination params
	page := 1
	limit := 50
	if p := r.URL.Query().Get("page"); p != "" {
		if val, err := strconv.Atoi(p); err == nil && val > 0 {
			page = val
		}
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 && val <= 100 {
			limit = val
		}
	}

	invoices, total, err := db.GetInvoices(r.Context(), limit, (page-1)*limit)
	if err != nil {
		h.log.Error("failed to get invoices", "error", err)
		h.sendError(w, http.StatusInternalServerError, "failed to get invoices")
		return
	}

	totalPages := (total + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}

	views := make([]recordView, 0, len(invoices))
	for i := range invoices {
		views = append(views, newRecordView(&invoices[i]))
	}

	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"facturas":    views,
		"total":       total,
		"page":        page,
		"limit":       limit,
		"total_pages": totalPages,
	})
}

// GetInvoice returns one persisted invoice by number
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	if !db.Available() {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	invoice, err := db.GetInvoiceByNumber(r.Context(), mux.Vars(r)["numero"])
	if err != nil {
		h.sendAppError(w, err, "failed to get invoice")
		return
	}

	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"factura": newRecordView(invoice),
	})
}

// DeleteInvoice removes a persisted invoice and its stored PDF
func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	if !db.Available() {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	ctx := r.Context()
	number := mux.Vars(r)["numero"]

	// Optionally: delete the PDF as well
	if h.store != nil {
		if invoice, err := db.GetInvoiceByNumber(ctx, number); err == nil && invoice.PDFName != "" {
			_ = h.store.Delete(ctx, invoice.PDFName)
		}
	}

	if err := db.DeleteInvoice(ctx, number); err != nil {
		h.sendAppError(w, err, "failed to delete invoice")
		return
	}

	by := "anonymous"
	if claims, err := auth.GetClaimsFromContext(ctx); err == nil {
		by = claims.Email
	}
	h.log.Info("invoice deleted", "numero", number, "by", by)

	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "invoice deleted",
	})
}

// GetStats returns statistics for the current month
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	if !db.Available() {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	stats, err := db.GetMonthlyStats(r.Context(), h.now())
	if err != nil {
		h.log.Error("failed to get stats", "error", err)
		h.sendError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats": map[string]interface{}{
			"mes":            stats.Month,
			"total_facturas": stats.TotalFacturas,
			"total_subtotal": moneyFloat(stats.TotalSubtotal),
			"total_iva":      moneyFloat(stats.TotalIVA),
			"total_monto":    moneyFloat(stats.TotalMonto),
		},
	})
}
