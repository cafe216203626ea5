package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"

	"github.com/floresloli/pedidos-factura-service/internal/ai"
	"github.com/floresloli/pedidos-factura-service/internal/common"
	"github.com/floresloli/pedidos-factura-service/internal/db"
	"github.com/floresloli/pedidos-factura-service/internal/extract"
	"github.com/floresloli/pedidos-factura-service/internal/logger"
	"github.com/floresloli/pedidos-factura-service/internal/models"
	"github.com/floresloli/pedidos-factura-service/internal/render"
	"github.com/floresloli/pedidos-factura-service/internal/services"
	"github.com/floresloli/pedidos-factura-service/internal/storage"
)

const (
	MaxBodySize = 1 << 20 // 1MB
	Version     = "1.0.0"
)

// Handler handles HTTP requests for order processing and invoice documents
type Handler struct {
	config      *models.Config
	extractor   *extract.Extractor
	aiExtractor *ai.OrderExtractor
	renderer    *render.PDFRenderer
	validator   *services.InvoiceValidator
	store       storage.Store
	log         *logger.Logger
	now         func() time.Time
}

// NewHandler creates a new API handler. store may be nil, in which case the
// document endpoints answer 503.
func NewHandler(config *models.Config, extractor *extract.Extractor, store storage.Store, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		config:    config,
		extractor: extractor,
		renderer:  render.NewPDFRenderer(config.Company, extractor.TaxRate()),
		validator: services.NewInvoiceValidator(extractor.TaxRate(), config.Extraction.MaxItems),
		store:     store,
		log:       log,
		now:       time.Now,
	}
}

// WithAI enables the "ia" extraction engine
func (h *Handler) WithAI(e *ai.OrderExtractor) *Handler {
	h.aiExtractor = e
	return h
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Order processing
	router.HandleFunc("/procesar-pedido", h.ProcessOrder).Methods("POST")
	router.HandleFunc("/api/pedidos", h.ProcessOrder).Methods("POST")
	router.HandleFunc("/test", h.TestExtraction).Methods("POST")
	router.HandleFunc("/ejemplos", h.Examples).Methods("GET")

	// Invoice documents
	router.HandleFunc("/generar-factura", h.GenerateInvoice).Methods("POST")
	router.HandleFunc("/facturas", h.ListDocuments).Methods("GET")
	router.HandleFunc("/factura/{filename}", h.DownloadDocument).Methods("GET")
	router.HandleFunc("/factura/{filename}", h.DeleteDocument).Methods("DELETE")

	// Persisted invoices
	router.HandleFunc("/api/invoices", h.GetInvoices).Methods("GET")
	router.HandleFunc("/api/invoice/{numero}", h.GetInvoice).Methods("GET")
	router.HandleFunc("/api/invoice/{numero}", h.DeleteInvoice).Methods("DELETE")
	router.HandleFunc("/api/stats", h.GetStats).Methods("GET")

	// Health check
	router.HandleFunc("/health", h.Health).Methods("GET")
	router.HandleFunc("/info", h.Info).Methods("GET")

	return router
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status    string        `json:"status"`
	Version   string        `json:"version"`
	Timestamp string        `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Company   string        `json:"empresa"`
	Memory    MemoryStats   `json:"memory"`
	Database  ServiceStatus `json:"database"`
	Storage   ServiceStatus `json:"storage"`
	AI        ServiceStatus `json:"ai"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus represents the status of a service dependency
type ServiceStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

// Health endpoint. Database and AI are optional, so only missing storage
// degrades the service.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: h.now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Company:   h.config.Company.Name,
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		Database: h.checkDatabase(r.Context()),
		Storage:  h.checkStorage(),
		AI:       h.checkAI(),
	}

	if !response.Storage.Available {
		response.Status = "degraded"
	}

	json.NewEncoder(w).Encode(response)
}

func (h *Handler) checkDatabase(ctx context.Context) ServiceStatus {
	if !db.Available() {
		return ServiceStatus{Available: false, Error: "not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.Pool.Ping(ctx); err != nil {
		return ServiceStatus{Available: false, Error: err.Error()}
	}
	return ServiceStatus{Available: true, Version: "postgres"}
}

func (h *Handler) checkStorage() ServiceStatus {
	if h.store == nil {
		return ServiceStatus{Available: false, Error: "not configured"}
	}
	return ServiceStatus{Available: true, Version: h.config.Storage.Backend}
}

func (h *Handler) checkAI() ServiceStatus {
	if h.aiExtractor == nil {
		return ServiceStatus{Available: false, Error: "disabled"}
	}
	return ServiceStatus{Available: true, Version: h.aiExtractor.ProviderName()}
}

// Info returns the company data and the invoice format rules
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	c := h.config.Company
	json.NewEncoder(w).Encode(map[string]interface{}{
		"empresa": map[string]string{
			"nombre":    c.Name,
			"direccion": c.Address,
			"cp":        c.PostCode,
			"email":     c.Email,
			"telefono":  c.Phone,
		},
		"iva":           h.extractor.TaxRate().Shift(2).String() + "%",
		"max_productos": h.config.Extraction.MaxItems,
		"formatos_aceptados": map[string]string{
			"fecha":   "DD/MM/YYYY",
			"numero":  "Texto libre (ej: 2025-001)",
			"precios": "Números con 2 decimales",
		},
	})
}

// decodeJSON enforces a JSON content type and decodes the body into dst
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		h.sendError(w, http.StatusBadRequest, "Content-Type debe ser application/json")
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.sendError(w, http.StatusRequestEntityTooLarge, "Cuerpo de la petición demasiado grande")
			return false
		}
		h.sendError(w, http.StatusBadRequest, "JSON inválido: "+err.Error())
		return false
	}
	return true
}

// sendAppError answers with the status mapped from err
func (h *Handler) sendAppError(w http.ResponseWriter, err error, message string) {
	status := common.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(message, "error", err)
	}
	h.sendJSON(w, status, map[string]string{
		"error":   message,
		"details": err.Error(),
	})
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message string) {
	h.sendJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

func (h *Handler) sendJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
