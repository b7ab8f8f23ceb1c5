package audit

import (
	"encoding/json"
	"time"
)

// Result is the normalized report returned to callers.
type Result struct {
	URL           string             `json:"url"`
	Timestamp     time.Time          `json:"timestamp"`
	Categories    Categories         `json:"categories"`
	Opportunities []Opportunity      `json:"opportunities"`
	Diagnostics   map[string]float64 `json:"diagnostics"`
}

// Categories holds the 0-100 score of each audited category.
type Categories struct {
	Performance   int `json:"performance"`
	Accessibility int `json:"accessibility"`
	BestPractices int `json:"best-practices"`
	SEO           int `json:"seo"`
}

// Opportunity is a suggested optimization with its estimated savings.
type Opportunity struct {
	Title string `json:"title"`
	// Savings is the estimated load-time saving in milliseconds.
	Savings float64           `json:"savings"`
	Items   []json.RawMessage `json:"items"`
}
