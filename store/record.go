package store

import (
	"encoding/json"
	"time"

	"gleaner/engine"
	"gleaner/geo"
)

// Record is the stored envelope for one collected post. The collection
// core writes every field except CleanText, Location detection results,
// and the sentiment columns; those belong to downstream processing and
// are never overwritten by later upserts of the same post.
type Record struct {
	ID           string       `json:"id"`
	Text         string       `json:"text"`
	CleanText    string       `json:"clean_text,omitempty"`
	AuthorName   string       `json:"author_name"`
	AuthorHandle string       `json:"author_handle"`
	CreatedAt    time.Time    `json:"created_at"`
	ScrapedAt    time.Time    `json:"scraped_at"`
	Location     geo.Location `json:"location"`
	SourceURL    string       `json:"source_url"`
	Replies      int          `json:"replies"`
	Shares       int          `json:"shares"`
	Likes        int          `json:"likes"`

	Sentiment         string  `json:"sentiment,omitempty"`
	SentimentScore    float64 `json:"sentiment_score,omitempty"`
	SentimentAnalyzed bool    `json:"sentiment_analyzed"`
}

// fromItem builds the envelope for a freshly extracted item.
func fromItem(it engine.Item, scrapedAt time.Time) Record {
	return Record{
		ID:           it.ID,
		Text:         it.Text,
		AuthorName:   it.AuthorName,
		AuthorHandle: it.AuthorHandle,
		CreatedAt:    it.CreatedAt,
		ScrapedAt:    scrapedAt,
		Location: geo.Location{
			Original:     it.Location,
			DetectedFrom: "none",
		},
		SourceURL: it.URL,
		Replies:   it.Metrics.Replies,
		Shares:    it.Metrics.Shares,
		Likes:     it.Metrics.Likes,
	}
}

func (r Record) locationJSON() string {
	b, err := json.Marshal(r.Location)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func parseLocation(raw string) geo.Location {
	var loc geo.Location
	if raw != "" {
		json.Unmarshal([]byte(raw), &loc)
	}
	return loc
}
