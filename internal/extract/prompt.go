package extract

import (
	"strings"
)

const ExtractionPrompt = `You are a logistics data extraction engine. Extract the following fields from the document text.

Fields:
- "shipment_id": shipment, load, order or reference number
- "shipper": shipping company or origin party
- "consignee": receiving party or destination company
- "pickup_datetime": pickup date and time, ISO 8601 (YYYY-MM-DDTHH:MM:SS) when possible
- "delivery_datetime": delivery date and time, ISO 8601 when possible
- "equipment_type": equipment, e.g. "53' Dry Van", "Reefer", "Flatbed"
- "mode": transportation mode, e.g. "FTL", "LTL", "Intermodal"
- "rate": total freight rate or charges as a numeric string, e.g. "2500.00"
- "currency": currency code of the rate, e.g. "USD", "CAD"
- "weight": total shipment weight with unit, e.g. "42000 lbs"
- "carrier_name": carrier or trucking company

Rules:
- Extract ONLY values explicitly stated in the document.
- Use null for any field that is not present.
- If the document describes several shipments, extract the first one.
- Respond with ONLY a JSON object with exactly these 11 keys, no other text.`

// maxPromptChars caps the document text sent to the model.
const maxPromptChars = 12000

// BuildPrompt creates the user prompt for text, truncating long documents.
func BuildPrompt(text string) string {
	runes := []rune(text)
	if len(runes) > maxPromptChars {
		text = string(runes[:maxPromptChars])
	}
	var sb strings.Builder
	sb.WriteString("Extract structured data from this logistics document:\n\n")
	sb.WriteString(text)
	return sb.String()
}
