package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/floresloli/pedidos-factura-service/internal/common"
	"github.com/floresloli/pedidos-factura-service/internal/extract"
	"github.com/floresloli/pedidos-factura-service/internal/models"
)

const systemPrompt = "Eres un asistente de una floristería que convierte pedidos escritos en datos de factura. Respondes SOLO con JSON válido."

// OrderExtractor reads orders with a language model and prices them with the
// same line arithmetic as the heuristic engine
type OrderExtractor struct {
	provider   Provider
	heuristics *extract.Extractor
}

// NewOrderExtractor creates an AI order extractor. heuristics supplies the tax
// rate and the client/number fallbacks.
func NewOrderExtractor(provider Provider, heuristics *extract.Extractor) *OrderExtractor {
	return &OrderExtractor{provider: provider, heuristics: heuristics}
}

// ProviderName returns the name of the model backend
func (e *OrderExtractor) ProviderName() string {
	return e.provider.Name()
}

// Extract asks the model for client, number and items, then computes amounts
func (e *OrderExtractor) Extract(ctx context.Context, text, supplied string) (*models.ExtractionResult, error) {
	response, err := e.provider.ExtractData(ctx, buildPrompt(text))
	if err != nil {
		return nil, common.NewAppError("AI_FAILED", "AI extraction failed", fmt.Errorf("%w: %v", common.ErrUnavailable, err))
	}

	order, err := parseResponse(response)
	if err != nil {
		return nil, common.NewAppError("AI_BAD_RESPONSE", err.Error(), common.ErrUnavailable)
	}

	result := &models.ExtractionResult{
		Items:         []models.LineItem{},
		ClientName:    strings.TrimSpace(order.Client),
		InvoiceNumber: strings.TrimSpace(supplied),
	}
	if result.ClientName == "" {
		result.ClientName = extract.ExtractClient(text)
	}
	if result.InvoiceNumber == "" {
		result.InvoiceNumber = strings.TrimSpace(toString(order.Number))
	}
	if result.InvoiceNumber == "" {
		result.InvoiceNumber = e.heuristics.ResolveInvoiceNumber(text, "")
	}

	for _, it := range order.Items {
		price := parseDecimal(it.UnitPrice)
		if !price.IsPositive() {
			continue
		}
		label := strings.Join(strings.Fields(it.Product), " ")
		if label == "" {
			label = extract.GenericProductLabel
		}
		result.Items = append(result.Items, extract.ComputeLine(label, parseQuantity(it.Quantity), price, e.heuristics.TaxRate()))
	}

	return result, nil
}

func buildPrompt(text string) string {
	return fmt.Sprintf(`Extrae los datos del siguiente pedido de floristería.

Devuelve SOLO JSON válido (sin markdown, sin comentarios) con este formato:
{
  "cliente": "nombre del cliente o null",
  "numero": "número de factura si aparece en el texto, o null",
  "items": [{"producto": "Ramo De Rosas", "cantidad": 2, "precio_unitario": 30.00}]
}

REGLAS:
1. precio_unitario es el precio de UNA unidad SIN IVA, en euros
2. Si no se indica cantidad, usa 1
3. NUNCA inventes productos ni precios que no aparezcan en el texto
4. Si no hay productos, devuelve "items": []

PEDIDO:
%s`, text)
}

type aiOrder struct {
	Client string      `json:"cliente"`
	Number interface{} `json:"numero"`
	Items  []struct {
		Product   string      `json:"producto"`
		Quantity  interface{} `json:"cantidad"`
		UnitPrice interface{} `json:"precio_unitario"`
	} `json:"items"`
}

// parseResponse tolerates markdown fences and text around the JSON object
func parseResponse(response string) (*aiOrder, error) {
	cleaned := strings.TrimSpace(response)
	backticks := strings.Repeat("`", 3)
	cleaned = strings.ReplaceAll(cleaned, backticks+"json", "")
	cleaned = strings.ReplaceAll(cleaned, backticks, "")
	cleaned = strings.TrimSpace(cleaned)

	start, end := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in AI response")
	}
	cleaned = cleaned[start : end+1]

	var order aiOrder
	if err := json.Unmarshal([]byte(cleaned), &order); err != nil {
		return nil, fmt.Errorf("JSON parse error: %w", err)
	}
	return &order, nil
}

func parseDecimal(v interface{}) decimal.Decimal {
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val).Round(2)
	case string:
		s := strings.ToLower(strings.TrimSpace(val))
		for _, suffix := range []string{"euros", "euro", "eur", "€"} {
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
		}
		if d, ok := extract.ParsePrice(s); ok {
			return d
		}
		return decimal.Zero
	default:
		return decimal.Zero
	}
}

func parseQuantity(v interface{}) int {
	switch val := v.(type) {
	case float64:
		if q := int(math.Round(val)); q >= 1 {
			return q
		}
	case string:
		if q, err := strconv.Atoi(strings.TrimSpace(val)); err == nil && q >= 1 {
			return q
		}
	}
	return 1
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}
