package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"strips units and noise", "NEW Stove Polish 200ml SALE!!", "stove polish"},
		{"strips punctuation", "Dog-Lead (Heavy Duty), Red", "dog lead heavy duty red"},
		{"keeps model numbers", "Karcher K4 Washer", "karcher k4 washer"},
		{"empty in empty out", "", ""},
		{"pure noise", "NEW SALE FREE DELIVERY", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTitle(tt.title))
		})
	}
}

func TestExtractBrandModel(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"brand plus model", "Karcher K4 Pressure Washer", "karcher k4"},
		{"model with dash", "Bosch PSB-1800 Drill", "bosch psb-1800"},
		{"no model token", "Stove Polish", ""},
		{"lowercase brand not detected", "generic thing 55X", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractBrandModel(tt.title))
		})
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("stove polish black", "stove polish black"))
	assert.Equal(t, 0.0, Similarity("", "stove polish"))

	high := Similarity("stove polish black", "black stove polish")
	assert.Greater(t, high, 0.7, "word order should not matter much")

	low := Similarity("stove polish black", "garden hose reel")
	assert.Less(t, low, 0.3)

	near := Similarity("karcher k4 washer", "karcher k4 power washer")
	assert.Greater(t, near, 0.5)
	assert.Greater(t, high, low)
}
