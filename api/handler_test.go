package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/floresloli/pedidos-factura-service/internal/ai"
	"github.com/floresloli/pedidos-factura-service/internal/auth"
	"github.com/floresloli/pedidos-factura-service/internal/extract"
	"github.com/floresloli/pedidos-factura-service/internal/models"
	"github.com/floresloli/pedidos-factura-service/internal/storage"
)

var frozen = time.Date(2026, 10, 15, 14, 30, 0, 0, time.UTC)

func testConfig() *models.Config {
	cfg := &models.Config{}
	cfg.ApplyDefaults()
	return cfg
}

func newTestHandler(t *testing.T, cfg *models.Config) (*Handler, *storage.LocalStore) {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	ex := extract.New(extract.Options{Strict: cfg.Extraction.StrictMode(), Now: func() time.Time { return frozen }})
	h := NewHandler(cfg, ex, store, nil)
	h.now = func() time.Time { return frozen }
	return h, store
}

func do(t *testing.T, h *Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	h.RequestLogger(h.SetupRoutes()).ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestProcessOrder_TwoItems(t *testing.T) {
	h, _ := newTestHandler(t, testConfig())

	rr := do(t, h, "POST", "/procesar-pedido", "application/json",
		`{"texto": "Para Juan Pérez: 2 ramos de rosas a 30 euros y 1 centro de mesa a 45 euros"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"resumen":{"subtotal":105.00,"iva":10.50,"total":115.50,"num_items":2}`) {
		t.Fatalf("expected two-decimal summary, got %s", rr.Body.String())
	}
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected a request id header")
	}

	out := decode(t, rr)
	factura := out["factura"].(map[string]interface{})
	if factura["numero"] != "2026-10151430" || factura["fecha"] != "15/10/2026" {
		t.Fatalf("unexpected invoice header %+v", factura)
	}
	if factura["cliente"].(map[string]interface{})["nombre"] != "Juan Pérez" {
		t.Fatalf("unexpected client %+v", factura["cliente"])
	}
	items := factura["items"].([]interface{})
	if len(items) != 2 {
		t.Fatalf("expected 2 items got %d", len(items))
	}
	first := items[0].(map[string]interface{})
	if first["cantidad"].(float64) != 2 || first["total"].(float64) != 66 {
		t.Fatalf("unexpected first item %+v", first)
	}
	if _, ok := out["warning"]; ok {
		t.Fatalf("did not expect a warning")
	}
	if _, ok := out["pdf"]; ok {
		t.Fatalf("did not expect a pdf without generar_pdf")
	}
}

func TestProcessOrder_SuppliedNumberAndAlias(t *testing.T) {
	h, _ := newTestHandler(t, testConfig())

	rr := do(t, h, "POST", "/api/pedidos", "application/json; charset=utf-8",
		`{"texto": "Para María García: 1 ramo de rosas a 35 euros", "numero": "2025-050"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	factura := decode(t, rr)["factura"].(map[string]interface{})
	if factura["numero"] != "2025-050" {
		t.Fatalf("expected supplied number, got %v", factura["numero"])
	}
}

func TestProcessOrder_BadRequests(t *testing.T) {
	h, _ := newTestHandler(t, testConfig())

	tests := []struct {
		name        string
		contentType string
		body        string
		wantError   string
	}{
		{"not json", "text/plain", `texto=hola`, "Content-Type debe ser application/json"},
		{"missing texto", "application/json", `{"numero": "1"}`, `Campo "texto" requerido`},
		{"malformed", "application/json", `{"texto": `, "JSON inválido"},
		{"unknown engine", "application/json", `{"texto": "x", "motor": "magia"}`, "motor desconocido"},
		{"no products", "application/json", `{"texto": "Hola, ¿qué tal? Llamo mañana"}`, "No se pudieron extraer productos del texto"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, "POST", "/procesar-pedido", tt.contentType, tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d: %s", rr.Code, rr.Body.String())
			}
			out := decode(t, rr)
			if msg, _ := out["error"].(string); !strings.Contains(msg, tt.wantError) {
				t.Fatalf("expected error containing %q, got %q", tt.wantError, msg)
			}
		})
	}

	rr := do(t, h, "POST", "/procesar-pedido", "application/json", `{"texto": "nada que facturar"}`)
	if decode(t, rr)["sugerencia"] == nil {
		t.Fatalf("expected a format suggestion")
	}
}

func TestProcessOrder_TruncatesToMaxItems(t *testing.T) {
	cfg := testConfig()
	cfg.Extraction.MaxItems = 1
	h, _ := newTestHandler(t, cfg)

	rr := do(t, h, "POST", "/procesar-pedido", "application/json",
		`{"texto": "Para Juan Pérez: 2 ramos de rosas a 30 euros y 1 centro de mesa a 45 euros"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	out := decode(t, rr)
	if out["warning"] != "Solo se procesaron los primeros 1 productos" {
		t.Fatalf("unexpected warning %v", out["warning"])
	}
	resumen := out["resumen"].(map[string]interface{})
	if resumen["num_items"].(float64) != 1 || resumen["total"].(float64) != 66 {
		t.Fatalf("expected totals of the kept item only, got %+v", resumen)
	}
}

func TestProcessOrder_GeneratesPDF(t *testing.T) {
	h, store := newTestHandler(t, testConfig())

	rr := do(t, h, "POST", "/procesar-pedido", "application/json",
		`{"texto": "Para María García: 1 ramo de rosas a 35 euros", "numero": "2025-007", "generar_pdf": true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	pdf := decode(t, rr)["pdf"].(map[string]interface{})
	if pdf["filename"] != "factura_2025-007.pdf" || pdf["url"] != "/factura/factura_2025-007.pdf" {
		t.Fatalf("unexpected pdf info %+v", pdf)
	}
	data, err := os.ReadFile(filepath.Join(store.Dir(), "factura_2025-007.pdf"))
	if err != nil || !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("expected a stored PDF (%v)", err)
	}
}

type stubProvider struct {
	answer string
	calls  int
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) ExtractData(ctx context.Context, prompt string) (string, error) {
	s.calls++
	return s.answer, nil
}

func TestProcessOrder_AIEngine(t *testing.T) {
	cfg := testConfig()
	h, _ := newTestHandler(t, cfg)

	rr := do(t, h, "POST", "/procesar-pedido", "application/json", `{"texto": "algo", "motor": "ia"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without AI engine, got %d", rr.Code)
	}

	p := &stubProvider{answer: `{"cliente": "Hotel Plaza", "items": [{"producto": "Centro de mesa", "cantidad": 3, "precio_unitario": 20}]}`}
	h.WithAI(ai.NewOrderExtractor(p, h.extractor))

	rr = do(t, h, "POST", "/procesar-pedido", "application/json", `{"texto": "tres centros para el hotel", "motor": "IA"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"subtotal":60.00`) {
		t.Fatalf("unexpected summary %s", rr.Body.String())
	}
	if decode(t, rr)["motor"] != EngineAI {
		t.Fatalf("expected AI engine to be reported")
	}

	// heuristic miss without fallback_on_empty stays a 400
	rr = do(t, h, "POST", "/procesar-pedido", "application/json", `{"texto": "tres centros para el hotel"}`)
	if rr.Code != http.StatusBadRequest || p.calls != 1 {
		t.Fatalf("expected 400 without AI fallback, got %d (calls %d)", rr.Code, p.calls)
	}

	cfg.AI.FallbackOnEmpty = true
	rr = do(t, h, "POST", "/procesar-pedido", "application/json", `{"texto": "tres centros para el hotel"}`)
	if rr.Code != http.StatusOK || p.calls != 2 {
		t.Fatalf("expected AI fallback, got %d (calls %d)", rr.Code, p.calls)
	}
	if decode(t, rr)["motor"] != EngineAI {
		t.Fatalf("expected fallback to report the AI engine")
	}
}

func TestTestExtraction(t *testing.T) {
	h, _ := newTestHandler(t, testConfig())

	rr := do(t, h, "POST", "/test", "", `{"texto": "Para María García: 1 ramo de rosas a 35 euros"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	out := decode(t, rr)
	if out["cliente_detectado"] != "María García" || out["numero_factura_generado"] != "2026-10151430" {
		t.Fatalf("unexpected detection %+v", out)
	}
	if len(out["productos_detectados"].([]interface{})) != 1 {
		t.Fatalf("expected one product, got %v", out["productos_detectados"])
	}
	if len(out["coincidencias"].([]interface{})) == 0 {
		t.Fatalf("expected the match trace")
	}
}

func TestExamplesAndInfo(t *testing.T) {
	h, _ := newTestHandler(t, testConfig())

	out := decode(t, do(t, h, "GET", "/ejemplos", "", ""))
	if len(out["ejemplos"].([]interface{})) != 5 {
		t.Fatalf("expected 5 examples")
	}
	if !strings.Contains(out["notas"].([]interface{})[0].(string), "10%") {
		t.Fatalf("expected the tax rate in the notes, got %v", out["notas"])
	}

	out = decode(t, do(t, h, "GET", "/info", "", ""))
	if out["iva"] != "10%" || out["max_productos"].(float64) != 10 {
		t.Fatalf("unexpected info %+v", out)
	}
	if out["empresa"].(map[string]interface{})["nombre"] != "FLORES Y PLANTAS LOLI" {
		t.Fatalf("unexpected company %+v", out["empresa"])
	}
}

const validInvoice = `{
  "numero": "2025-001",
  "fecha": "22/12/2025",
  "cliente": {"nombre": "Juan Pérez"},
  "items": [{"producto": "Ramo de rosas", "cantidad": 2, "base": 60.00, "iva": 6.00, "total": 66.00}]
}`

func TestGenerateInvoice_AndDocumentLifecycle(t *testing.T) {
	h, _ := newTestHandler(t, testConfig())

	rr := do(t, h, "POST", "/generar-factura", "application/json", validInvoice)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"total":66.00`) {
		t.Fatalf("expected two-decimal total, got %s", rr.Body.String())
	}
	factura := decode(t, rr)["factura"].(map[string]interface{})
	if factura["filename"] != "factura_2025-001.pdf" {
		t.Fatalf("unexpected filename %v", factura["filename"])
	}

	out := decode(t, do(t, h, "GET", "/facturas", "", ""))
	if out["count"].(float64) != 1 {
		t.Fatalf("expected 1 stored invoice, got %v", out["count"])
	}

	rr = do(t, h, "GET", "/factura/factura_2025-001.pdf", "", "")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("expected PDF download, got %d %s", rr.Code, rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "attachment") || !bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected a PDF attachment")
	}

	if rr := do(t, h, "DELETE", "/factura/factura_2025-001.pdf", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete got %d", rr.Code)
	}
	if rr := do(t, h, "GET", "/factura/factura_2025-001.pdf", "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete got %d", rr.Code)
	}
	if rr := do(t, h, "DELETE", "/factura/factura_2025-001.pdf", "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete got %d", rr.Code)
	}
	if rr := do(t, h, "GET", "/factura/notas.txt", "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for non-PDF names got %d", rr.Code)
	}
}

func TestGenerateInvoice_Invalid(t *testing.T) {
	h, store := newTestHandler(t, testConfig())

	rr := do(t, h, "POST", "/generar-factura", "application/json",
		`{"numero": "", "fecha": "2025-12-22", "cliente": {"nombre": "Ana"}, "items": []}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
	validation := decode(t, rr)["validacion"].(map[string]interface{})
	if validation["valid"] != false || len(validation["errors"].([]interface{})) != 3 {
		t.Fatalf("expected 3 validation errors, got %+v", validation)
	}

	if rr := do(t, h, "POST", "/generar-factura", "text/plain", validInvoice); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-JSON got %d", rr.Code)
	}

	files, _ := store.List(context.Background())
	if len(files) != 0 {
		t.Fatalf("expected nothing stored, got %+v", files)
	}
}

func TestDocuments_NoStorage(t *testing.T) {
	cfg := testConfig()
	ex := extract.New(extract.Options{Strict: true})
	h := NewHandler(cfg, ex, nil, nil)

	if rr := do(t, h, "GET", "/facturas", "", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rr.Code)
	}
	if rr := do(t, h, "POST", "/generar-factura", "application/json", validInvoice); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rr.Code)
	}

	out := decode(t, do(t, h, "GET", "/health", "", ""))
	if out["status"] != "degraded" {
		t.Fatalf("expected degraded status without storage, got %v", out["status"])
	}
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t, testConfig())

	out := decode(t, do(t, h, "GET", "/health", "", ""))
	if out["status"] != "healthy" || out["version"] != Version {
		t.Fatalf("unexpected health %+v", out)
	}
	if out["database"].(map[string]interface{})["available"] != false {
		t.Fatalf("expected database to be unavailable in tests")
	}
	if out["storage"].(map[string]interface{})["version"] != "local" {
		t.Fatalf("expected local storage backend, got %+v", out["storage"])
	}
}

func TestRecords_WithoutDatabase(t *testing.T) {
	h, _ := newTestHandler(t, testConfig())

	for _, tc := range []struct{ method, path string }{
		{"GET", "/api/invoices?page=2&limit=10"},
		{"GET", "/api/invoice/2025-001"},
		{"DELETE", "/api/invoice/2025-001"},
		{"GET", "/api/stats"},
	} {
		if rr := do(t, h, tc.method, tc.path, "", ""); rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s %s: expected 503 got %d", tc.method, tc.path, rr.Code)
		}
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	h, _ := newTestHandler(t, testConfig())

	req := httptest.NewRequest("GET", "/info", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	h.RequestLogger(h.SetupRoutes()).ServeHTTP(rr, req)
	if rr.Header().Get(RequestIDHeader) != "abc-123" {
		t.Fatalf("expected the caller's request id, got %q", rr.Header().Get(RequestIDHeader))
	}
}

func TestRequestLogger_CoversRejectedRequests(t *testing.T) {
	if err := auth.Init("test-secret", time.Hour); err != nil {
		t.Fatalf("failed to init auth: %v", err)
	}
	h, _ := newTestHandler(t, testConfig())
	root := h.RequestLogger(auth.JWTMiddleware(h.SetupRoutes()))

	req := httptest.NewRequest("GET", "/facturas", nil)
	rr := httptest.NewRecorder()
	root.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rr.Code)
	}
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected a request id on rejected requests")
	}
}

func TestProcessOrder_DefaultConfigIsStrict(t *testing.T) {
	h, _ := newTestHandler(t, testConfig())

	rr := do(t, h, "POST", "/procesar-pedido", "application/json",
		`{"texto": "Para María García: 1 ramo de rosas a 35 euros"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"resumen":{"subtotal":35.00,"iva":3.50,"total":38.50,"num_items":1}`) {
		t.Fatalf("expected a single item, got %s", rr.Body.String())
	}
}

func TestProcessOrder_NonBreakingSpaces(t *testing.T) {
	h, _ := newTestHandler(t, testConfig())

	rr := do(t, h, "POST", "/procesar-pedido", "application/json",
		"{\"texto\": \"Para María García: 1 ramo de rosas a 35\u00a0euros\"}")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	if decode(t, rr)["resumen"].(map[string]interface{})["num_items"].(float64) != 1 {
		t.Fatalf("expected one item, got %s", rr.Body.String())
	}
}
