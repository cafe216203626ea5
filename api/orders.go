package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/floresloli/pedidos-factura-service/internal/common"
	"github.com/floresloli/pedidos-factura-service/internal/db"
	"github.com/floresloli/pedidos-factura-service/internal/models"
	"github.com/floresloli/pedidos-factura-service/internal/services"
)

// Extraction engines selectable with the "motor" field
const (
	EngineHeuristic = "heuristico"
	EngineAI        = "ia"
)

const orderFormatHint = `Formato esperado: "2 ramos de rosas a 30 euros"`

// ProcessOrder turns an order text into an invoice
func (h *Handler) ProcessOrder(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.Text == nil {
		h.sendError(w, http.StatusBadRequest, `Campo "texto" requerido`)
		return
	}
	text := *req.Text

	engine := strings.ToLower(strings.TrimSpace(req.Engine))
	if engine == "" {
		engine = EngineHeuristic
	}
	if engine != EngineHeuristic && engine != EngineAI {
		h.sendError(w, http.StatusBadRequest, fmt.Sprintf("motor desconocido: %s", req.Engine))
		return
	}

	result, usedEngine, err := h.extractOrder(r.Context(), engine, text, req.Number)
	if err != nil {
		h.sendAppError(w, err, "Error al procesar el pedido")
		return
	}

	if len(result.Items) == 0 {
		h.log.Info("no products found", "request_id", requestID(r.Context()), "engine", usedEngine)
		h.sendJSON(w, http.StatusBadRequest, map[string]string{
			"error":      "No se pudieron extraer productos del texto",
			"sugerencia": orderFormatHint,
		})
		return
	}

	maxItems := h.config.Extraction.MaxItems
	invoice := services.AssembleInvoice(result, h.now(), maxItems)

	response := map[string]interface{}{
		"success":        true,
		"mensaje":        "Pedido procesado correctamente",
		"motor":          usedEngine,
		"texto_original": text,
		"factura":        newInvoiceView(invoice),
		"resumen":        newSummaryView(invoice),
	}
	if invoice.Truncated {
		response["warning"] = fmt.Sprintf("Solo se procesaron los primeros %d productos", maxItems)
	}

	pdfName := ""
	if req.GeneratePDF {
		doc, err := h.storeDocument(r.Context(), invoice)
		if err != nil {
			h.sendAppError(w, err, "Error al generar la factura")
			return
		}
		pdfName = doc["filename"]
		response["pdf"] = doc
	}

	if db.Available() {
		record := db.FromModel(invoice, text, pdfName)
		if err := db.SaveInvoice(r.Context(), record); err != nil {
			h.log.Warn("failed to persist invoice", "numero", invoice.Number, "error", err)
			response["guardado"] = false
		} else {
			response["guardado"] = true
			response["id"] = record.ID.String()
		}
	}

	h.log.Info("order processed",
		"request_id", requestID(r.Context()),
		"engine", usedEngine,
		"numero", invoice.Number,
		"items", len(invoice.Items),
		"total", invoice.GrandTotal.StringFixed(2),
	)
	h.sendJSON(w, http.StatusOK, response)
}

// extractOrder runs the requested engine. The heuristic engine falls back to
// the AI engine when it finds nothing and ai.fallback_on_empty is set.
func (h *Handler) extractOrder(ctx context.Context, engine, text, number string) (*models.ExtractionResult, string, error) {
	if engine == EngineAI {
		if h.aiExtractor == nil {
			return nil, engine, common.NewAppError("AI_DISABLED", "motor de IA no configurado", common.ErrUnavailable)
		}
		result, err := h.aiExtractor.Extract(ctx, text, number)
		return result, engine, err
	}

	result, err := h.extractor.Extract(text, number)
	if err != nil {
		return nil, engine, err
	}
	if len(result.Items) > 0 || h.aiExtractor == nil || !h.config.AI.FallbackOnEmpty {
		return result, engine, nil
	}

	aiResult, err := h.aiExtractor.Extract(ctx, text, number)
	if err != nil {
		h.log.Warn("AI fallback failed", "provider", h.aiExtractor.ProviderName(), "error", err)
		return result, engine, nil
	}
	return aiResult, EngineAI, nil
}

// TestExtraction shows what the heuristic engine detects, including every
// pattern match and whether it was kept
func (h *Handler) TestExtraction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text   string `json:"texto"`
		Number string `json:"numero"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "JSON inválido: "+err.Error())
		return
	}

	result, err := h.extractor.Extract(req.Text, req.Number)
	if err != nil {
		h.sendAppError(w, err, "Error al analizar el texto")
		return
	}

	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"texto":                   req.Text,
		"cliente_detectado":       result.ClientName,
		"productos_detectados":    itemViews(result.Items),
		"numero_factura_generado": result.InvoiceNumber,
		"coincidencias":           h.extractor.Trace(req.Text),
		"modo_estricto":           h.extractor.Strict(),
	})
}

type orderExample struct {
	Description string `json:"descripcion"`
	Text        string `json:"texto"`
}

var orderExamples = []orderExample{
	{Description: "Pedido simple con ramo", Text: "Para María García: 1 ramo de rosas a 35 euros"},
	{Description: "Pedido múltiple", Text: "Para Juan Pérez: 2 ramos de rosas a 30 euros y 1 centro de mesa a 45 euros"},
	{Description: "Pedido con plantas", Text: "Cliente Ana López: 3 plantas de interior a 15 euros cada una"},
	{Description: "Arreglo floral", Text: "1 arreglo floral para evento a 120 euros, cliente: Hotel Plaza"},
	{Description: "Corona funeral", Text: "Para familia Rodríguez: 1 corona de flores a 80 euros"},
}

// Examples lists sample orders and the output format
func (h *Handler) Examples(w http.ResponseWriter, r *http.Request) {
	c := h.config.Company
	rate := h.extractor.TaxRate().Shift(2).String() + "%"

	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"service": "Pedidos - " + c.Name,
		"empresa": map[string]string{
			"nombre":    c.Name,
			"ubicacion": strings.TrimSpace(c.Address + ", " + c.PostCode),
			"contacto":  c.Phone,
		},
		"ejemplos": orderExamples,
		"formato_salida": map[string]interface{}{
			"numero":  "string (del texto o generado: YYYY-MMDDHHmm)",
			"fecha":   "string (DD/MM/YYYY - fecha actual)",
			"cliente": map[string]string{"nombre": "string"},
			"items": []map[string]string{{
				"producto": "string",
				"cantidad": "number",
				"base":     "number (sin IVA)",
				"iva":      "number (" + rate + ")",
				"total":    "number (base + IVA)",
			}},
		},
		"notas": []string{
			"IVA aplicado: " + rate,
			fmt.Sprintf("Máximo %d productos por factura", h.config.Extraction.MaxItems),
			"Detecta automáticamente: ramos, centros, plantas, arreglos, coronas, bouquets",
			`Formatos de precio aceptados: "30 euros", "30€", "30 eur"`,
		},
	})
}
