package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/floresloli/pedidos-factura-service/internal/common"
	"github.com/floresloli/pedidos-factura-service/internal/models"
	"github.com/floresloli/pedidos-factura-service/internal/render"
	"github.com/floresloli/pedidos-factura-service/internal/services"
	"github.com/floresloli/pedidos-factura-service/internal/storage"
)

var errNoStorage = common.NewAppError("NO_STORAGE", "almacenamiento de facturas no disponible", common.ErrUnavailable)

// GenerateInvoice renders a PDF from an invoice payload
func (h *Handler) GenerateInvoice(w http.ResponseWriter, r *http.Request) {
	var req models.RenderRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	validation := h.validator.Validate(&req)
	if !validation.Valid {
		h.sendJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":      "Factura inválida",
			"validacion": validation,
		})
		return
	}

	invoice := services.InvoiceFromRequest(&req)
	doc, err := h.storeDocument(r.Context(), invoice)
	if err != nil {
		h.sendAppError(w, err, "Error al generar la factura")
		return
	}

	h.log.Info("invoice rendered", "request_id", requestID(r.Context()), "numero", invoice.Number, "filename", doc["filename"])
	h.sendJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Factura generada correctamente",
		"factura": map[string]interface{}{
			"numero":    invoice.Number,
			"filename":  doc["filename"],
			"url":       doc["url"],
			"cliente":   invoice.ClientName,
			"fecha":     invoice.Date,
			"subtotal":  money(invoice.Subtotal),
			"iva":       money(invoice.TaxTotal),
			"total":     money(invoice.GrandTotal),
			"num_items": len(invoice.Items),
		},
		"validacion": validation,
		"timestamp":  h.now().Format("2006-01-02T15:04:05"),
	})
}

// storeDocument renders inv and saves it, returning its filename and URL
func (h *Handler) storeDocument(ctx context.Context, inv *models.Invoice) (map[string]string, error) {
	if h.store == nil {
		return nil, errNoStorage
	}

	data, err := h.renderer.RenderBytes(inv)
	if err != nil {
		return nil, common.NewAppError("PDF_FAILED", "PDF rendering failed", err)
	}

	name := render.FileName(inv.Number)
	if err := h.store.Save(ctx, name, bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, err
	}
	url, err := h.store.URL(ctx, name)
	if err != nil {
		return nil, err
	}
	return map[string]string{"filename": name, "url": url}, nil
}

// ListDocuments lists stored invoice PDFs, newest first
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.sendAppError(w, errNoStorage, "Error al listar facturas")
		return
	}

	files, err := h.store.List(r.Context())
	if err != nil {
		h.sendAppError(w, err, "Error al listar facturas")
		return
	}

	type fileView struct {
		models.StoredFile
		SizeMB float64 `json:"size_mb"`
	}
	views := make([]fileView, 0, len(files))
	for _, f := range files {
		views = append(views, fileView{
			StoredFile: f,
			SizeMB:     float64(f.Size*100/1024/1024) / 100,
		})
	}

	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"empresa":  h.config.Company.Name,
		"count":    len(views),
		"facturas": views,
	})
}

// DownloadDocument streams a stored PDF as an attachment
func (h *Handler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.sendAppError(w, errNoStorage, "Error al descargar la factura")
		return
	}

	name, err := storage.CleanName(mux.Vars(r)["filename"])
	if err != nil {
		h.sendError(w, http.StatusNotFound, "Factura no encontrada")
		return
	}

	rc, size, err := h.store.Open(r.Context(), name)
	if err != nil {
		if common.HTTPStatus(err) == http.StatusNotFound {
			h.sendError(w, http.StatusNotFound, "Factura no encontrada")
			return
		}
		h.sendAppError(w, err, "Error al descargar la factura")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", storage.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Warn("download interrupted", "filename", name, "error", err)
	}
}

// DeleteDocument removes a stored PDF
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.sendAppError(w, errNoStorage, "Error al borrar la factura")
		return
	}

	name, err := storage.CleanName(mux.Vars(r)["filename"])
	if err != nil {
		h.sendError(w, http.StatusNotFound, "Factura no encontrada")
		return
	}

	if err := h.store.Delete(r.Context(), name); err != nil {
		if common.HTTPStatus(err) == http.StatusNotFound {
			h.sendError(w, http.StatusNotFound, "Factura no encontrada")
			return
		}
		h.sendAppError(w, err, "Error al borrar la factura")
		return
	}

	h.log.Info("invoice document deleted", "filename", name)
	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Factura eliminada",
	})
}
