package suggest

import (
	"encoding/json"
	"net/url"
	"strings"
)

// ParseSectionURLs extracts catalog section URLs from a completion. The
// service gives no shape guarantee, so this accepts JSON arrays, bullet
// lists, numbered lists, and bare lines, skipping anything that is not a
// syntactically valid absolute http(s) URL. An empty result means the
// response was unusable and the caller should fall through to the next tier.
func ParseSectionURLs(content string) []string {
	content = cleanMarkdownWrapper(content)

	if urls := parseJSONArray(content); len(urls) > 0 {
		return urls
	}

	var results []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(content, "\n") {
		candidate := stripListMarkers(strings.TrimSpace(line))
		if candidate == "" {
			continue
		}
		if u, ok := validSectionURL(candidate); ok && !seen[u] {
			seen[u] = true
			results = append(results, u)
		}
	}
	return results
}

// cleanMarkdownWrapper removes a ```...``` fence if the model wrapped its
// output in one.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

func parseJSONArray(content string) []string {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil
	}

	var raw []string
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil
	}

	var results []string
	seen := make(map[string]bool)
	for _, candidate := range raw {
		if u, ok := validSectionURL(strings.TrimSpace(candidate)); ok && !seen[u] {
			seen[u] = true
			results = append(results, u)
		}
	}
	return results
}

// stripListMarkers removes leading bullets, numbering, and markdown link
// syntax from a line, leaving the URL candidate.
func stripListMarkers(line string) string {
	line = strings.TrimLeft(line, "-*• \t")
	// Numbered lists: "3. https://..." or "3) https://..."
	if i := strings.IndexAny(line, ".)"); i > 0 && i <= 3 {
		if isDigits(line[:i]) {
			line = strings.TrimSpace(line[i+1:])
		}
	}
	// Markdown links: [label](url)
	if open := strings.Index(line, "]("); open >= 0 {
		if close := strings.Index(line[open:], ")"); close > 0 {
			line = line[open+2 : open+close]
		}
	}
	return strings.Trim(line, `"',`)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func validSectionURL(candidate string) (string, bool) {
	if !strings.HasPrefix(candidate, "http://") && !strings.HasPrefix(candidate, "https://") {
		return "", false
	}
	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return "", false
	}
	u.Fragment = ""
	return u.String(), true
}
