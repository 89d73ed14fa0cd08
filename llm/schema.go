package llm

import "chatinvoice/storage"

// ExtractedItem is one line item as returned by the extraction tool call,
// before coercion into storage.OrderItem.
type ExtractedItem struct {
	ProductName  string   `json:"productName"`
	Quantity     float64  `json:"quantity"`
	Unit         string   `json:"unit"`
	PricePerUnit *float64 `json:"pricePerUnit"`
}

// SingleMessageResult is the structured payload extracted from a single
// free-text order message.
type SingleMessageResult struct {
	CustomerName    string          `json:"customerName"`
	CustomerPhone   string          `json:"customerPhone"`
	DeliveryAddress string          `json:"deliveryAddress"`
	Items           []ExtractedItem `json:"items"`
	Confidence      float64         `json:"confidence"`
}

// ChatLogResult is the structured payload extracted from a multi-turn chat
// log, including the enumerated confidence label.
type ChatLogResult struct {
	CustomerName    string                  `json:"customerName"`
	CustomerPhone   string                  `json:"customerPhone"`
	DeliveryAddress string                  `json:"deliveryAddress"`
	Items           []ExtractedItem         `json:"items"`
	Confidence      storage.ConfidenceLevel `json:"confidence"`
}

// Coerce validates and normalizes raw extracted items, defaulting a
// missing or nonsensical quantity to 1, clamping negative prices, and
// dropping items with an empty product name, per the extraction
// pipeline's tolerance for imperfect model output.
func Coerce(items []ExtractedItem) []storage.OrderItem {
	out := make([]storage.OrderItem, 0, len(items))
	for _, item := range items {
		if item.ProductName == "" {
			continue
		}
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		var price *float64
		if item.PricePerUnit != nil {
			p := *item.PricePerUnit
			if p < 0 {
				p = 0
			}
			price = &p
		}
		var total *float64
		if price != nil {
			t := qty * (*price)
			total = &t
		}
		out = append(out, storage.OrderItem{
			ProductName:  item.ProductName,
			Quantity:     qty,
			Unit:         item.Unit,
			PricePerUnit: price,
			TotalPrice:   total,
		})
	}
	return out
}

// ClampConfidence keeps a raw model confidence score within [0, 1].
func ClampConfidence(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// ClampConfidenceLabel normalizes a raw enumerated confidence label,
// falling back to storage.ConfidenceMedium for anything other than the
// three known values.
func ClampConfidenceLabel(label storage.ConfidenceLevel) storage.ConfidenceLevel {
	switch label {
	case storage.ConfidenceHigh, storage.ConfidenceMedium, storage.ConfidenceLow:
		return label
	default:
		return storage.ConfidenceMedium
	}
}
