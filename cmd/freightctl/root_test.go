package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `RATE CONFIRMATION
Load Number: LD-48213
Carrier Name: FastFreight Logistics LLC
Total Rate: $3,575.00 USD

SHIPPER INFORMATION
Shipper: Acme Manufacturing Inc
Pickup Date: 03/14/2024 08:00
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LLM_PROVIDER", "none")
	t.Setenv("EMBEDDING_PROVIDER", "local")
	t.Setenv("STOPWORDS_FILE", "")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ratecon.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleDoc), 0o644))
	return path
}

func TestChunkCommand(t *testing.T) {
	out, err := run(t, "chunk", writeSample(t))
	require.NoError(t, err)

	var chunks []struct {
		Index int    `json:"chunk_index"`
		Text  string `json:"text"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &chunks))
	require.Len(t, chunks, 4)
	assert.Equal(t, "RATE CONFIRMATION\nLoad Number: LD-48213", chunks[0].Text)
	assert.Equal(t, 3, chunks[3].Index)
}

func TestExtractCommand(t *testing.T) {
	out, err := run(t, "extract", writeSample(t))
	require.NoError(t, err)

	var rec struct {
		Shipment map[string]*string `json:"shipment_data"`
		Method   string             `json:"method"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "pattern", rec.Method)
	require.NotNil(t, rec.Shipment["rate"])
	assert.Equal(t, "3575.00", *rec.Shipment["rate"])
	require.NotNil(t, rec.Shipment["shipment_id"])
	assert.Equal(t, "LD-48213", *rec.Shipment["shipment_id"])
}

func TestAskCommand(t *testing.T) {
	out, err := run(t, "ask", writeSample(t), "What is the carrier rate?")
	require.NoError(t, err)

	var ans struct {
		Answer string `json:"answer"`
		Method string `json:"method"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &ans))
	assert.Equal(t, "extractive", ans.Method)
	assert.NotEmpty(t, ans.Answer)
}

func TestCommandErrors(t *testing.T) {
	_, err := run(t, "chunk", filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	_, err = run(t, "extract", path)
	assert.Error(t, err)

	_, err = run(t, "ask", writeSample(t))
	assert.Error(t, err, "ask needs a question")
}
