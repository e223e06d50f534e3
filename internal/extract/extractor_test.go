package extract

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/freightdoc/internal/llm"
)

type fakeGenerator struct {
	out  string
	err  error
	reqs []llm.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req llm.Request) (string, error) {
	f.reqs = append(f.reqs, req)
	return f.out, f.err
}

func (f *fakeGenerator) Model() string { return "fake-model" }

func TestExtract_PatternPathWithoutGenerator(t *testing.T) {
	rec := New(nil, 0, nil).Extract(context.Background(), sampleRateConfirmation)

	assert.Equal(t, MethodPattern, rec.Method)
	assert.Equal(t, 1.0, rec.ConfidenceScore)
	assert.Equal(t, []string{"Extraction method: pattern-based", "Fields found: 11/11"}, rec.ExtractionNotes)
	require.NotNil(t, rec.Shipment.Rate)
	assert.Equal(t, "3575.00", *rec.Shipment.Rate)
}

func TestExtract_PatternConfidenceIsFoundOverEleven(t *testing.T) {
	rec := New(nil, 0, nil).Extract(context.Background(), "Carrier Name: FastFreight Logistics LLC\nMode: LTL\n")

	assert.Equal(t, 2.0/11.0, rec.ConfidenceScore)
	assert.Equal(t, "Fields found: 2/11", rec.ExtractionNotes[1])
	assert.Equal(t,
		"Missing fields: shipment_id, shipper, consignee, pickup_datetime, delivery_datetime, equipment_type, rate, currency, weight",
		rec.ExtractionNotes[2])
}

func TestExtract_ModelPath(t *testing.T) {
	gen := &fakeGenerator{out: "```json\n" + `{
		"shipment_id": "LD-48213",
		"shipper": "Acme Manufacturing Inc",
		"consignee": null,
		"pickup_datetime": "2024-03-14T08:00:00",
		"delivery_datetime": "",
		"equipment_type": "53' Dry Van",
		"mode": "FTL",
		"rate": 3575.00,
		"currency": "USD",
		"weight": "42000 lbs",
		"carrier_name": "FastFreight Logistics LLC"
	}` + "\n```"}
	rec := New(gen, 0, nil).Extract(context.Background(), sampleRateConfirmation)

	assert.Equal(t, MethodModel, rec.Method)
	assert.Equal(t, 9.0/11.0, rec.ConfidenceScore)
	assert.Equal(t, "Extraction method: model-based (fake-model)", rec.ExtractionNotes[0])
	assert.Equal(t, "Missing fields: consignee, delivery_datetime", rec.ExtractionNotes[2])
	require.NotNil(t, rec.Shipment.Rate)
	assert.Equal(t, "3575.00", *rec.Shipment.Rate)
	assert.Nil(t, rec.Shipment.Consignee)

	require.Len(t, gen.reqs, 1)
	assert.Equal(t, 0.0, gen.reqs[0].Temperature)
	assert.Equal(t, 800, gen.reqs[0].MaxTokens)
	assert.Equal(t, ExtractionPrompt, gen.reqs[0].System)
}

func TestExtract_ModelOutputWithProse(t *testing.T) {
	gen := &fakeGenerator{out: `Here is the data: {"shipment_id": "SH-1", "rate": "900.00"} Hope that helps.`}
	rec := New(gen, 0, nil).Extract(context.Background(), "irrelevant")

	assert.Equal(t, MethodModel, rec.Method)
	assert.Equal(t, "SH-1", *rec.Shipment.ShipmentID)
	assert.Equal(t, "900.00", *rec.Shipment.Rate)
}

func TestExtract_ModelFailureFallsBackToPatterns(t *testing.T) {
	tests := map[string]*fakeGenerator{
		"error":   {err: errors.New("status 503")},
		"empty":   {out: "  "},
		"garbage": {out: "I could not find anything."},
	}
	for name, gen := range tests {
		t.Run(name, func(t *testing.T) {
			rec := New(gen, 0, nil).Extract(context.Background(), sampleRateConfirmation)

			assert.Equal(t, MethodPattern, rec.Method)
			assert.Equal(t, 1.0, rec.ConfidenceScore)
			last := rec.ExtractionNotes[len(rec.ExtractionNotes)-1]
			assert.True(t, strings.HasPrefix(last, "Model extraction failed: "), last)
		})
	}
}

func TestBuildPromptTruncates(t *testing.T) {
	p := BuildPrompt(strings.Repeat("é", maxPromptChars+500))
	assert.Equal(t, maxPromptChars, strings.Count(p, "é"))
}

func TestRecordJSONUsesNulls(t *testing.T) {
	rec := New(nil, 0, nil).Extract(context.Background(), "Mode: LTL\nnothing else to see")
	b, err := json.Marshal(rec)
	require.NoError(t, err)

	assert.Contains(t, string(b), `"shipment_id":null`)
	assert.Contains(t, string(b), `"mode":"LTL"`)
	assert.Contains(t, string(b), `"method":"pattern"`)
}
