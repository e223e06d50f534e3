package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/freightdoc/internal/llm"
)

var jsonObjectRe = regexp.MustCompile(`(?s)\{[^{}]*\}`)

// parseModelOutput decodes the model's JSON object into a Shipment. Values
// that are null, empty, or not scalars are left unset; numbers keep their
// literal text.
func parseModelOutput(out string) (Shipment, error) {
	body := llm.StripCodeBlock(out)

	obj, err := decodeObject(body)
	if err != nil {
		m := jsonObjectRe.FindString(body)
		if m == "" {
			return Shipment{}, fmt.Errorf("no JSON object in model output: %s", llm.Truncate(body, 200))
		}
		if obj, err = decodeObject(m); err != nil {
			return Shipment{}, fmt.Errorf("parse model output: %w", err)
		}
	}

	values := make(map[string]string, len(Fields))
	for _, f := range Fields {
		switch v := obj[f].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" && !strings.EqualFold(s, "null") {
				values[f] = s
			}
		case json.Number:
			values[f] = v.String()
		}
	}
	return newShipment(values), nil
}

func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("model output is not an object")
	}
	return obj, nil
}
