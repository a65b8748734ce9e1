package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSectionURLs(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "plain lines",
			content: "https://shop.example.com/clearance\nhttps://shop.example.com/garden",
			want:    []string{"https://shop.example.com/clearance", "https://shop.example.com/garden"},
		},
		{
			name:    "bulleted list with chatter",
			content: "Here are some sections worth crawling:\n- https://shop.example.com/clearance\n* https://shop.example.com/tools\nLet me know if you need more!",
			want:    []string{"https://shop.example.com/clearance", "https://shop.example.com/tools"},
		},
		{
			name:    "numbered list",
			content: "1. https://shop.example.com/sale\n2) https://shop.example.com/outlet",
			want:    []string{"https://shop.example.com/sale", "https://shop.example.com/outlet"},
		},
		{
			name:    "json array in markdown fence",
			content: "```json\n[\"https://shop.example.com/clearance\", \"https://shop.example.com/diy\"]\n```",
			want:    []string{"https://shop.example.com/clearance", "https://shop.example.com/diy"},
		},
		{
			name:    "markdown links",
			content: "- [Clearance](https://shop.example.com/clearance)\n- [Garden](https://shop.example.com/garden)",
			want:    []string{"https://shop.example.com/clearance", "https://shop.example.com/garden"},
		},
		{
			name:    "duplicates collapsed",
			content: "https://shop.example.com/sale\nhttps://shop.example.com/sale",
			want:    []string{"https://shop.example.com/sale"},
		},
		{
			name:    "garbage yields nothing",
			content: "I'm sorry, I can't browse the web.",
			want:    nil,
		},
		{
			name:    "relative paths rejected",
			content: "/clearance\n/garden-tools",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSectionURLs(tt.content))
		})
	}
}

func TestResponseCache(t *testing.T) {
	cache := newResponseCache(0)

	if _, found := cache.get("prompt", 0.2); found {
		t.Error("empty cache should miss")
	}

	cache.set("prompt", 0.2, "https://shop.example.com/sale")

	text, found := cache.get("prompt", 0.2)
	if !found || text != "https://shop.example.com/sale" {
		t.Errorf("cache hit = (%q, %v)", text, found)
	}

	// Same prompt at a different temperature is a distinct entry.
	if _, found := cache.get("prompt", 0.9); found {
		t.Error("different temperature should miss")
	}
}
