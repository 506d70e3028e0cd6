// Package metrics summarises a batch of extraction results.
package metrics

import "github.com/spherical-ai/part-extractor/internal/domain"

// Aggregate reduces results to counts, rates and accuracies. Rates are
// relative to the batch size; accuracies to the results that found a value.
func Aggregate(results []domain.ExtractionResult) domain.BatchMetrics {
	m := domain.BatchMetrics{TotalFields: len(results)}

	var latency float64
	for _, r := range results {
		if r.IsSuccess {
			m.SuccessCount++
		}
		if r.IsError {
			m.ErrorCount++
		}
		if r.IsNotFound {
			m.NotFoundCount++
		}
		if r.IsRateLimit {
			m.RateLimitCount++
		}
		if !r.IsNotFound && r.ExactMatch != nil && *r.ExactMatch {
			m.ExactMatchCount++
		}
		if !r.IsNotFound && r.CaseInsensitiveMatch != nil && *r.CaseInsensitiveMatch {
			m.CaseInsensitiveMatchCount++
		}
		latency += r.Latency
	}

	m.AccuracyDenominator = m.TotalFields - m.NotFoundCount

	if m.TotalFields > 0 {
		total := float64(m.TotalFields)
		m.SuccessRate = float64(m.SuccessCount) / total
		m.ErrorRate = float64(m.ErrorCount) / total
		m.NotFoundRate = float64(m.NotFoundCount) / total
		m.RateLimitRate = float64(m.RateLimitCount) / total
		m.AvgLatency = latency / total
	}

	if m.AccuracyDenominator > 0 {
		denom := float64(m.AccuracyDenominator)
		m.ExactMatchAccuracy = float64(m.ExactMatchCount) / denom
		m.CaseInsensitiveAccuracy = float64(m.CaseInsensitiveMatchCount) / denom
	}

	return m
}
