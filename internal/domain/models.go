package domain

import (
	"regexp"
	"strings"
	"time"
)

// NotFound is the sentinel value meaning no evidence was located.
const NotFound = "NOT FOUND"

// Source identifies which extraction stage produced a value.
type Source string

const (
	SourceWeb  Source = "web"
	SourcePDF  Source = "pdf"
	SourceNone Source = "none"
)

// AttributeSpec describes one extractable attribute.
type AttributeSpec struct {
	Key             string
	WebInstructions string
	PDFInstructions string
}

// SiteProfile describes how to reach and read one supplier catalog site.
type SiteProfile struct {
	Name              string
	URLTemplate       string         // contains {part_number}
	PartNumberPattern *regexp.Regexp // nil matches every part number
	PreFetchScript    string
	ScriptWait        time.Duration // extra settle time after PreFetchScript
	ContentSelector   string
}

// Matches reports whether the profile applies to the part number.
func (p SiteProfile) Matches(partNumber string) bool {
	if p.PartNumberPattern == nil {
		return true
	}
	return p.PartNumberPattern.MatchString(partNumber)
}

// URL renders the profile URL for a part number.
func (p SiteProfile) URL(partNumber string) string {
	return strings.ReplaceAll(p.URLTemplate, "{part_number}", partNumber)
}

// Passage is a bounded chunk of text from one page of a source document.
type Passage struct {
	ID             string `json:"id"`
	Text           string `json:"text"`
	SourceDocument string `json:"source"`
	Page           int    `json:"page"`
	ChunkIndex     int    `json:"chunk"`
	ChunkCount     int    `json:"total_chunks"`
}

// Metadata returns the passage position as a flat map.
func (p Passage) Metadata() map[string]interface{} {
	return map[string]interface{}{
		"source":       p.SourceDocument,
		"page":         p.Page,
		"chunk":        p.ChunkIndex,
		"total_chunks": p.ChunkCount,
	}
}

// ExtractionResult is the per-attribute outcome of one extraction run.
type ExtractionResult struct {
	Attribute            string  `json:"attribute"`
	Value                string  `json:"value"`
	Source               Source  `json:"source"`
	Latency              float64 `json:"latency"`
	GroundTruth          *string `json:"ground_truth,omitempty"`
	IsSuccess            bool    `json:"is_success"`
	IsError              bool    `json:"is_error"`
	IsNotFound           bool    `json:"is_not_found"`
	IsRateLimit          bool    `json:"is_rate_limit"`
	ExactMatch           *bool   `json:"exact_match,omitempty"`
	CaseInsensitiveMatch *bool   `json:"case_insensitive_match,omitempty"`
}

// NewExtractionResult builds a result with status flags derived from the value.
// A sentinel value always reports SourceNone, whichever stage answered.
func NewExtractionResult(attribute, value string, source Source, latency float64) ExtractionResult {
	if value == NotFound {
		source = SourceNone
	}
	return ExtractionResult{
		Attribute:  attribute,
		Value:      value,
		Source:     source,
		Latency:    latency,
		IsSuccess:  value != NotFound,
		IsNotFound: value == NotFound,
	}
}

// WithGroundTruth returns a copy carrying the ground truth and its match flags.
// NOT FOUND results are outside the accuracy denominator and get no flags.
func (r ExtractionResult) WithGroundTruth(truth string) ExtractionResult {
	r.GroundTruth = &truth
	if r.IsNotFound {
		r.ExactMatch = nil
		r.CaseInsensitiveMatch = nil
		return r
	}
	exact := strings.TrimSpace(r.Value) == strings.TrimSpace(truth)
	folded := strings.EqualFold(strings.TrimSpace(r.Value), strings.TrimSpace(truth))
	r.ExactMatch = &exact
	r.CaseInsensitiveMatch = &folded
	return r
}

// BatchMetrics is derived from a set of ExtractionResult.
type BatchMetrics struct {
	TotalFields               int     `json:"total_fields"`
	SuccessCount              int     `json:"success_count"`
	ErrorCount                int     `json:"error_count"`
	NotFoundCount             int     `json:"not_found_count"`
	RateLimitCount            int     `json:"rate_limit_count"`
	ExactMatchCount           int     `json:"exact_match_count"`
	CaseInsensitiveMatchCount int     `json:"case_insensitive_match_count"`
	AccuracyDenominator       int     `json:"accuracy_denominator"`
	SuccessRate               float64 `json:"success_rate"`
	ErrorRate                 float64 `json:"error_rate"`
	NotFoundRate              float64 `json:"not_found_rate"`
	RateLimitRate             float64 `json:"rate_limit_rate"`
	ExactMatchAccuracy        float64 `json:"exact_match_accuracy"`
	CaseInsensitiveAccuracy   float64 `json:"case_insensitive_accuracy"`
	AvgLatency                float64 `json:"avg_latency"`
}
