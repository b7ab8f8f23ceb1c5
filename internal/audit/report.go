package audit

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

const (
	maxOpportunities    = 5
	maxOpportunityItems = 3
)

// Report is the subset of a Lighthouse result (LHR) this package reads.
type Report struct {
	Categories   map[string]ReportCategory `json:"categories"`
	Audits       map[string]ReportAudit    `json:"audits"`
	RuntimeError *RuntimeError             `json:"runtimeError,omitempty"`
}

// ReportCategory carries a fractional 0..1 score; nil when Lighthouse could
// not score the category.
type ReportCategory struct {
	Score *float64 `json:"score"`
}

// ReportAudit is one entry of the LHR audits map.
type ReportAudit struct {
	NumericValue *float64       `json:"numericValue"`
	Details      *ReportDetails `json:"details"`
}

// ReportDetails holds the opportunity payload of an audit.
type ReportDetails struct {
	OverallSavingsMs float64           `json:"overallSavingsMs"`
	Items            []json.RawMessage `json:"items"`
}

// RuntimeError is set by Lighthouse when the page could not be audited.
type RuntimeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// categoryFields maps LHR category ids to Result fields.
var categoryFields = []struct {
	id    string
	field func(*Categories) *int
}{
	{"performance", func(c *Categories) *int { return &c.Performance }},
	{"accessibility", func(c *Categories) *int { return &c.Accessibility }},
	{"best-practices", func(c *Categories) *int { return &c.BestPractices }},
	{"seo", func(c *Categories) *int { return &c.SEO }},
}

// CategoryIDs lists the categories every audit requests.
func CategoryIDs() []string {
	ids := make([]string, 0, len(categoryFields))
	for _, f := range categoryFields {
		ids = append(ids, f.id)
	}
	return ids
}

// opportunityAudits is the allow-list of opportunity audits, in output order.
var opportunityAudits = []struct {
	id    string
	title string
}{
	{"unused-css-rules", "Remove unused CSS"},
	{"unused-javascript", "Remove unused JavaScript"},
	{"modern-image-formats", "Use modern image formats"},
	{"offscreen-images", "Defer offscreen images"},
}

// diagnosticAudits maps LHR audit ids to diagnostics keys.
var diagnosticAudits = []struct {
	id  string
	key string
}{
	{"cumulative-layout-shift", "cumulative-layout-shift"},
	{"first-contentful-paint", "first-contentful-paint"},
	{"speed-index", "speed-index"},
	{"largest-contentful-paint", "largest-contentful-paint"},
}

// ParseReport decodes a Lighthouse JSON report.
func ParseReport(data []byte) (Report, error) {
	var rep Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return Report{}, fmt.Errorf("%w: decode lighthouse report: %w", ErrToolFailure, err)
	}
	return rep, nil
}

// BuildResult extracts the normalized Result from a report.
func BuildResult(targetURL string, at time.Time, rep Report) (Result, error) {
	if rep.RuntimeError != nil && rep.RuntimeError.Code != "" {
		return Result{}, fmt.Errorf("%w: %s: %s", ErrToolFailure, rep.RuntimeError.Code, rep.RuntimeError.Message)
	}
	var cats Categories
	for _, f := range categoryFields {
		cat, ok := rep.Categories[f.id]
		if !ok {
			return Result{}, fmt.Errorf("%w: report missing category %q", ErrToolFailure, f.id)
		}
		if cat.Score != nil {
			*f.field(&cats) = ScoreToInt(*cat.Score)
		}
	}
	return Result{
		URL:           targetURL,
		Timestamp:     at,
		Categories:    cats,
		Opportunities: extractOpportunities(rep.Audits),
		Diagnostics:   extractDiagnostics(rep.Audits),
	}, nil
}

// ScoreToInt maps a fractional 0..1 score to an integer percentage.
func ScoreToInt(score float64) int {
	v := int(math.Round(score * 100))
	return min(max(v, 0), 100)
}

func extractOpportunities(audits map[string]ReportAudit) []Opportunity {
	out := make([]Opportunity, 0, maxOpportunities)
	for _, entry := range opportunityAudits {
		if len(out) == maxOpportunities {
			break
		}
		a, ok := audits[entry.id]
		if !ok || a.Details == nil || len(a.Details.Items) == 0 {
			continue
		}
		items := a.Details.Items
		if len(items) > maxOpportunityItems {
			items = items[:maxOpportunityItems]
		}
		out = append(out, Opportunity{
			Title:   entry.title,
			Savings: a.Details.OverallSavingsMs,
			Items:   append([]json.RawMessage(nil), items...),
		})
	}
	return out
}

func extractDiagnostics(audits map[string]ReportAudit) map[string]float64 {
	out := make(map[string]float64, len(diagnosticAudits))
	for _, entry := range diagnosticAudits {
		a, ok := audits[entry.id]
		if !ok || a.NumericValue == nil {
			continue
		}
		out[entry.key] = *a.NumericValue
	}
	return out
}
