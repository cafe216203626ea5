package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/floresloli/pedidos-factura-service/internal/common"
	"github.com/floresloli/pedidos-factura-service/internal/extract"
	"github.com/floresloli/pedidos-factura-service/internal/models"
)

type fakeProvider struct {
	answer string
	err    error
	prompt string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) ExtractData(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.answer, f.err
}

func heuristics() *extract.Extractor {
	now := time.Date(2026, 10, 15, 14, 30, 0, 0, time.UTC)
	return extract.New(extract.Options{Strict: true, Now: func() time.Time { return now }})
}

func TestOrderExtractor_ParsesFencedJSON(t *testing.T) {
	fence := "```"
	p := &fakeProvider{answer: fence + `json
{"cliente": "Ana López", "numero": null, "items": [
  {"producto": "ramo  de rosas", "cantidad": 2, "precio_unitario": 30},
  {"producto": "Corona", "cantidad": "1", "precio_unitario": "80,50 €"},
  {"producto": "Regalo", "cantidad": 1, "precio_unitario": 0}
]}
` + fence}
	e := NewOrderExtractor(p, heuristics())

	res, err := e.Extract(context.Background(), "pedido de Ana", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ClientName != "Ana López" {
		t.Fatalf("expected Ana López got %q", res.ClientName)
	}
	if res.InvoiceNumber != "2026-10151430" {
		t.Fatalf("expected synthesized number got %q", res.InvoiceNumber)
	}
	if len(res.Items) != 2 {
		t.Fatalf("expected 2 priced items got %+v", res.Items)
	}
	first, second := res.Items[0], res.Items[1]
	if first.Label != "ramo de rosas" || first.Quantity != 2 || !first.Base.Equal(decimal.NewFromInt(60)) || !first.Total.Equal(decimal.NewFromInt(66)) {
		t.Fatalf("unexpected first item %+v", first)
	}
	if !second.Tax.Equal(decimal.RequireFromString("8.05")) || !second.Total.Equal(decimal.RequireFromString("88.55")) {
		t.Fatalf("unexpected second item %+v", second)
	}
	if p.prompt == "" || e.ProviderName() != "fake" {
		t.Fatalf("expected prompt to be sent to the provider")
	}
}

func TestOrderExtractor_Fallbacks(t *testing.T) {
	p := &fakeProvider{answer: `Aquí tienes: {"items": []} espero que sirva`}
	e := NewOrderExtractor(p, heuristics())

	res, err := e.Extract(context.Background(), "Para María García: factura: 2025-001", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ClientName != "María García" || res.InvoiceNumber != "2025-001" {
		t.Fatalf("expected heuristic fallbacks, got %+v", res)
	}
	if res.Items == nil || len(res.Items) != 0 {
		t.Fatalf("expected empty non-nil items, got %#v", res.Items)
	}

	p.answer = `{"cliente": "", "numero": 77, "items": []}`
	res, _ = e.Extract(context.Background(), "sin datos", "")
	if res.InvoiceNumber != "77" || res.ClientName != extract.DefaultClientName {
		t.Fatalf("unexpected result %+v", res)
	}

	res, _ = e.Extract(context.Background(), "sin datos", "F-1")
	if res.InvoiceNumber != "F-1" {
		t.Fatalf("expected supplied number to win, got %q", res.InvoiceNumber)
	}
}

func TestOrderExtractor_Errors(t *testing.T) {
	e := NewOrderExtractor(&fakeProvider{err: errors.New("boom")}, heuristics())
	if _, err := e.Extract(context.Background(), "x", ""); !errors.Is(err, common.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}

	e = NewOrderExtractor(&fakeProvider{answer: "no json here"}, heuristics())
	if _, err := e.Extract(context.Background(), "x", ""); !errors.Is(err, common.ErrUnavailable) {
		t.Fatalf("expected unavailable for unusable answer, got %v", err)
	}
}

func TestParseQuantityAndDecimal(t *testing.T) {
	if parseQuantity(3.0) != 3 || parseQuantity("4") != 4 || parseQuantity(0.0) != 1 || parseQuantity(nil) != 1 || parseQuantity("dos") != 1 {
		t.Fatalf("unexpected quantity parsing")
	}
	if !parseDecimal("12,5 euros").Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("expected 12.5")
	}
	if !parseDecimal(19.99).Equal(decimal.RequireFromString("19.99")) {
		t.Fatalf("expected 19.99")
	}
	if !parseDecimal("gratis").IsZero() || !parseDecimal(nil).IsZero() {
		t.Fatalf("expected zero for unparseable prices")
	}
}

func TestOllamaProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Stream || req.Model != "llama3" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(ollamaResponse{Error: "bad request"})
			return
		}
		json.NewEncoder(w).Encode(ollamaResponse{Response: `{"items": []}`})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL+"/", "")
	out, err := p.ExtractData(context.Background(), "hola")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"items": []}` {
		t.Fatalf("unexpected answer %q", out)
	}
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	p, err := NewProvider(ctx, models.AIConfig{})
	if err != nil || p != nil {
		t.Fatalf("expected disabled engine, got %v (%v)", p, err)
	}
	if _, err := NewProvider(ctx, models.AIConfig{DefaultProvider: "bogus"}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
	if _, err := NewProvider(ctx, models.AIConfig{DefaultProvider: "openai"}); err == nil {
		t.Fatalf("expected error for missing OpenAI key")
	}

	cfg := models.AIConfig{DefaultProvider: "ollama"}
	cfg.Ollama.BaseURL = "http://ollama:11434"
	p, err = NewProvider(ctx, cfg)
	if err != nil || p.Name() != "ollama" {
		t.Fatalf("expected ollama provider, got %v (%v)", p, err)
	}
}
