package terms

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("Total Rate: $3,575.00 USD (FTL)")
	assert.Equal(t, []string{"total", "rate", "3", "575", "00", "usd", "ftl"}, got)
}

func TestSignificant(t *testing.T) {
	sw := DefaultStopwords()

	assert.Equal(t, []string{"carrier", "rate"}, sw.Significant("What is the carrier rate?"))
	assert.Equal(t, []string{"weather"}, sw.Significant("What is the weather? The WEATHER!"))
	assert.Empty(t, sw.Significant("Is it a the?"))
}

func TestLoadStopwords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stop.txt")
	require.NoError(t, os.WriteFile(path, []byte("# custom\nCarrier\n\n rate \n"), 0o644))

	sw, err := LoadStopwords(path)
	require.NoError(t, err)
	assert.True(t, sw.Contains("carrier"))
	assert.True(t, sw.Contains("rate"))
	assert.False(t, sw.Contains("# custom"))
	assert.Equal(t, []string{"what", "is", "the"}, sw.Significant("What is the carrier rate?"))
}

func TestLoadStopwordsMissingFile(t *testing.T) {
	_, err := LoadStopwords(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestVocabulary(t *testing.T) {
	v := Vocabulary("Carrier Name: FastFreight Logistics LLC")
	assert.True(t, v.Contains("fastfreight"))
	assert.True(t, v.Contains("name"))
	assert.False(t, v.Contains("rate"))
}
