package llm

import "encoding/json"

const singleMessageSystemPrompt = `You extract structured order details from a single customer message. ` +
	`Identify the customer's name, phone number, delivery address, and each item ordered with its quantity, ` +
	`unit, and price per unit where stated. Report a confidence score between 0 and 1 reflecting how certain ` +
	`the extraction is.`

const chatLogSystemPrompt = `You extract a confirmed order from a multi-turn chat log between a seller and a ` +
	`customer. Use only details both parties agreed on. Report the extraction's confidence as "high", "medium", ` +
	`or "low" based on how unambiguous the agreed order is.`

var singleMessageToolSchema = mustSchema(map[string]any{
	"name":        "extract_single_message_order",
	"description": "Extract order details from one free-text message.",
	"parameters": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"customerName":    map[string]any{"type": "string"},
			"customerPhone":   map[string]any{"type": "string"},
			"deliveryAddress": map[string]any{"type": "string"},
			"items":           itemsSchema(),
			"confidence":      map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		},
		"required": []string{"customerName", "items"},
	},
})

var chatLogToolSchema = mustSchema(map[string]any{
	"name":        "extract_chat_log_order",
	"description": "Extract the confirmed order from a chat log.",
	"parameters": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"customerName":    map[string]any{"type": "string"},
			"customerPhone":   map[string]any{"type": "string"},
			"deliveryAddress": map[string]any{"type": "string"},
			"items":           itemsSchema(),
			"confidence":      map[string]any{"type": "string", "enum": []string{"high", "medium", "low"}},
		},
		"required": []string{"customerName", "items", "confidence"},
	},
})

func itemsSchema() map[string]any {
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"productName":  map[string]any{"type": "string"},
				"quantity":     map[string]any{"type": "number"},
				"unit":         map[string]any{"type": "string"},
				"pricePerUnit": map[string]any{"type": "number"},
			},
			"required": []string{"productName", "quantity"},
		},
	}
}

func mustSchema(v map[string]any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
