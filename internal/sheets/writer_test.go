package sheets

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harlowes/magpie/internal/common"
	"github.com/harlowes/magpie/internal/model"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "service account",
			mutate: func(c *Config) { c.ServiceAccountPath = "/tmp/key.json" },
		},
		{
			name: "oauth",
			mutate: func(c *Config) {
				c.ClientID = "id"
				c.ClientSecret = "secret"
				c.RefreshToken = "token"
			},
		},
		{
			name:    "no credentials",
			mutate:  func(_ *Config) {},
			wantErr: common.ErrMissingConfig,
		},
		{
			name: "both credential kinds",
			mutate: func(c *Config) {
				c.ServiceAccountPath = "/tmp/key.json"
				c.ClientID = "id"
				c.ClientSecret = "secret"
				c.RefreshToken = "token"
			},
			wantErr: common.ErrInvalidConfig,
		},
		{
			name: "bad batch size",
			mutate: func(c *Config) {
				c.ServiceAccountPath = "/tmp/key.json"
				c.BatchSize = 0
			},
			wantErr: common.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
		})
	}
}

func TestPrepareReportData(t *testing.T) {
	now := time.Now()
	rows := []model.ReportRow{
		{RecordedAt: now.Add(-time.Hour), Supplier: "example", SourceID: "old-item",
			Title: "Wool Duster", SourcePrice: 0.99, MarketplaceID: "B00AAA111",
			ListingPrice: 5.99, Method: model.MethodCodeExact, Confidence: 0.95},
		{RecordedAt: now, Supplier: "example", SourceID: "new-item",
			Title: "Pan Scourers x10", SourcePrice: 0.49,
			Method: model.MethodNone},
	}

	values := prepareReportData(rows)

	assert.Equal(t, "Magpie Arbitrage Report", values[0][0])
	assert.Equal(t, []any{"Total Items", 2}, values[3])
	assert.Equal(t, []any{"Matched", 1}, values[4])

	// Item rows follow the details header, newest first.
	detailStart := -1
	for i, row := range values {
		if len(row) > 0 && row[0] == "Item Details" {
			detailStart = i + 2
			break
		}
	}
	require.Greater(t, detailStart, 0)
	require.Len(t, values, detailStart+2)

	newest := values[detailStart]
	assert.Equal(t, "new-item", newest[2])
	assert.Equal(t, "", newest[7], "unmatched items carry no margin")

	oldest := values[detailStart+1]
	assert.Equal(t, "old-item", oldest[2])
	assert.InDelta(t, 5.0, oldest[7].(float64), 0.001)
}
