package page

import (
	"strconv"
	"strings"
	"time"

	"gleaner/engine"
)

// rawItem is the per-post payload produced by the in-page extraction
// script, all fields as strings straight from the DOM.
type rawItem struct {
	Href     string
	Text     string
	Author   string
	Handle   string
	Datetime string
	Location string
	Replies  string
	Shares   string
	Likes    string
}

// toItem converts one extracted payload. Items without a resolvable
// status ID or with trivially short text are discarded.
func toItem(raw rawItem, baseURL string, now time.Time) (engine.Item, bool) {
	if len(strings.TrimSpace(raw.Text)) < 5 {
		return engine.Item{}, false
	}
	id, url := parseStatusLink(raw.Href, baseURL)
	if id == "" {
		return engine.Item{}, false
	}

	createdAt := now
	if t, err := time.Parse(time.RFC3339, raw.Datetime); err == nil {
		createdAt = t
	}

	return engine.Item{
		ID:           id,
		URL:          url,
		Text:         strings.TrimSpace(raw.Text),
		AuthorName:   strings.TrimSpace(raw.Author),
		AuthorHandle: strings.TrimSpace(raw.Handle),
		CreatedAt:    createdAt,
		Location:     strings.TrimSpace(raw.Location),
		Metrics: engine.Metrics{
			Replies: parseCount(raw.Replies),
			Shares:  parseCount(raw.Shares),
			Likes:   parseCount(raw.Likes),
		},
	}, true
}

// parseStatusLink pulls the numeric status ID out of a post permalink
// and returns the absolute URL. Media sub-links (photo/video) are
// rejected; the caller tries the next anchor.
func parseStatusLink(href, baseURL string) (id, url string) {
	if href == "" {
		return "", ""
	}
	lower := strings.ToLower(href)
	if !strings.Contains(lower, "/status/") ||
		strings.Contains(lower, "photo") || strings.Contains(lower, "video") {
		return "", ""
	}

	parts := strings.Split(href, "/")
	for i, p := range parts {
		if p == "status" && i+1 < len(parts) {
			id = parts[i+1]
			break
		}
	}
	if id == "" {
		return "", ""
	}
	// Strip any trailing path or query off the ID.
	for i, r := range id {
		if r < '0' || r > '9' {
			id = id[:i]
			break
		}
	}
	if id == "" {
		return "", ""
	}

	if strings.HasPrefix(href, "http") {
		return id, href
	}
	return id, baseURL + href
}

// parseCount parses an engagement counter as rendered: plain integers,
// separators, and compact suffixes in English (K, M) and Indonesian
// (rb, jt). Indonesian compact counters write the decimal as a comma
// ("1,2 rb").
func parseCount(s string) int {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0
	}

	mult := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		mult, s = 1e3, strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		mult, s = 1e6, strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "rb"):
		mult, s = 1e3, strings.TrimSuffix(s, "rb")
	case strings.HasSuffix(s, "jt"):
		mult, s = 1e6, strings.TrimSuffix(s, "jt")
	}
	s = strings.TrimSpace(s)

	// Before a compact suffix, a comma with one or two digits after it
	// is a decimal point; any other comma is a thousands separator.
	if mult > 1 {
		if i := strings.LastIndexByte(s, ','); i >= 0 {
			if frac := s[i+1:]; len(frac) >= 1 && len(frac) <= 2 && allDigits(frac) {
				s = s[:i] + "." + frac
			}
		}
	}
	s = strings.ReplaceAll(s, ",", "")

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int(f * mult)
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
