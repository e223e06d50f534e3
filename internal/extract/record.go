// Package extract pulls the fixed shipment schema out of a document's full
// text, using a language model when one is configured and an ordered
// pattern library otherwise.
package extract

import (
	"fmt"
	"strings"
)

// Extraction methods.
const (
	MethodModel   = "model"
	MethodPattern = "pattern"
)

// Field names in schema order.
const (
	FieldShipmentID       = "shipment_id"
	FieldShipper          = "shipper"
	FieldConsignee        = "consignee"
	FieldPickupDatetime   = "pickup_datetime"
	FieldDeliveryDatetime = "delivery_datetime"
	FieldEquipmentType    = "equipment_type"
	FieldMode             = "mode"
	FieldRate             = "rate"
	FieldCurrency         = "currency"
	FieldWeight           = "weight"
	FieldCarrierName      = "carrier_name"
)

// Fields lists every schema field in order.
var Fields = []string{
	FieldShipmentID, FieldShipper, FieldConsignee, FieldPickupDatetime,
	FieldDeliveryDatetime, FieldEquipmentType, FieldMode, FieldRate,
	FieldCurrency, FieldWeight, FieldCarrierName,
}

// Shipment is the extracted schema. A nil field was not found and encodes
// as JSON null.
type Shipment struct {
	ShipmentID       *string `json:"shipment_id"`
	Shipper          *string `json:"shipper"`
	Consignee        *string `json:"consignee"`
	PickupDatetime   *string `json:"pickup_datetime"`
	DeliveryDatetime *string `json:"delivery_datetime"`
	EquipmentType    *string `json:"equipment_type"`
	Mode             *string `json:"mode"`
	Rate             *string `json:"rate"`
	Currency         *string `json:"currency"`
	Weight           *string `json:"weight"`
	CarrierName      *string `json:"carrier_name"`
}

// Record is the result of one extraction.
type Record struct {
	Shipment        Shipment `json:"shipment_data"`
	ConfidenceScore float64  `json:"confidence_score"`
	ExtractionNotes []string `json:"extraction_notes"`
	Method          string   `json:"method"`
}

func (s *Shipment) slot(field string) **string {
	switch field {
	case FieldShipmentID:
		return &s.ShipmentID
	case FieldShipper:
		return &s.Shipper
	case FieldConsignee:
		return &s.Consignee
	case FieldPickupDatetime:
		return &s.PickupDatetime
	case FieldDeliveryDatetime:
		return &s.DeliveryDatetime
	case FieldEquipmentType:
		return &s.EquipmentType
	case FieldMode:
		return &s.Mode
	case FieldRate:
		return &s.Rate
	case FieldCurrency:
		return &s.Currency
	case FieldWeight:
		return &s.Weight
	case FieldCarrierName:
		return &s.CarrierName
	}
	return nil
}

// Get returns the value of field, or nil.
func (s Shipment) Get(field string) *string {
	if p := s.slot(field); p != nil {
		return *p
	}
	return nil
}

// newShipment builds a Shipment from non-empty values keyed by field name.
func newShipment(values map[string]string) Shipment {
	var s Shipment
	for _, f := range Fields {
		v := strings.TrimSpace(values[f])
		if v == "" {
			continue
		}
		*s.slot(f) = &v
	}
	return s
}

// Missing returns the names of the fields not found, in schema order.
func (s Shipment) Missing() []string {
	var out []string
	for _, f := range Fields {
		if s.Get(f) == nil {
			out = append(out, f)
		}
	}
	return out
}

// Found returns the number of fields with a value.
func (s Shipment) Found() int {
	return len(Fields) - len(s.Missing())
}

func newRecord(s Shipment, method, methodNote string, extra ...string) Record {
	found := s.Found()
	notes := []string{
		"Extraction method: " + methodNote,
		fmt.Sprintf("Fields found: %d/%d", found, len(Fields)),
	}
	if missing := s.Missing(); len(missing) > 0 {
		notes = append(notes, "Missing fields: "+strings.Join(missing, ", "))
	}
	notes = append(notes, extra...)
	return Record{
		Shipment:        s,
		ConfidenceScore: float64(found) / float64(len(Fields)),
		ExtractionNotes: notes,
		Method:          method,
	}
}
