package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spherical-ai/part-extractor/internal/domain"
)

func TestAggregate_Empty(t *testing.T) {
	m := Aggregate(nil)
	assert.Equal(t, domain.BatchMetrics{}, m)
}

func TestAggregate_Mixed(t *testing.T) {
	rl := domain.NewExtractionResult("Sealing", domain.NotFound, domain.SourceNone, 3)
	rl.IsRateLimit = true

	results := []domain.ExtractionResult{
		domain.NewExtractionResult("Colour", "Black", domain.SourceWeb, 1).WithGroundTruth("Black"),
		domain.NewExtractionResult("Gender", "female", domain.SourcePDF, 2).WithGroundTruth("Female"),
		domain.NewExtractionResult("Material Name", "PBT", domain.SourcePDF, 2).WithGroundTruth("PA66"),
		rl,
	}

	m := Aggregate(results)

	assert.Equal(t, 4, m.TotalFields)
	assert.Equal(t, 3, m.SuccessCount)
	assert.Equal(t, 1, m.NotFoundCount)
	assert.Equal(t, 0, m.ErrorCount)
	assert.Equal(t, 1, m.RateLimitCount)
	assert.Equal(t, 1, m.ExactMatchCount)
	assert.Equal(t, 2, m.CaseInsensitiveMatchCount)
	assert.Equal(t, 3, m.AccuracyDenominator)
	assert.InDelta(t, 0.75, m.SuccessRate, 1e-9)
	assert.InDelta(t, 0.25, m.NotFoundRate, 1e-9)
	assert.InDelta(t, 0.25, m.RateLimitRate, 1e-9)
	assert.InDelta(t, 1.0/3, m.ExactMatchAccuracy, 1e-9)
	assert.InDelta(t, 2.0/3, m.CaseInsensitiveAccuracy, 1e-9)
	assert.InDelta(t, 2.0, m.AvgLatency, 1e-9)
	assert.Equal(t, m.TotalFields, m.SuccessCount+m.NotFoundCount+m.ErrorCount)
}

func TestAggregate_AllNotFound(t *testing.T) {
	results := []domain.ExtractionResult{
		domain.NewExtractionResult("Colour", domain.NotFound, domain.SourceNone, 1),
		domain.NewExtractionResult("Gender", domain.NotFound, domain.SourceNone, 1),
	}
	m := Aggregate(results)
	assert.Equal(t, 0, m.AccuracyDenominator)
	assert.Zero(t, m.ExactMatchAccuracy)
	assert.Equal(t, 1.0, m.NotFoundRate)
}

func TestAggregate_ClientSuppliedErrors(t *testing.T) {
	r := domain.ExtractionResult{Attribute: "Colour", Value: "x", IsError: true, Latency: 4}
	m := Aggregate([]domain.ExtractionResult{r})
	assert.Equal(t, 1, m.ErrorCount)
	assert.Equal(t, 1.0, m.ErrorRate)
	assert.Equal(t, 4.0, m.AvgLatency)
}

func TestAggregate_NotFoundMatchesStayOutOfAccuracy(t *testing.T) {
	yes := true
	nf := domain.NewExtractionResult("Sealing", domain.NotFound, domain.SourceNone, 1)
	nf.ExactMatch = &yes
	nf.CaseInsensitiveMatch = &yes

	results := []domain.ExtractionResult{
		domain.NewExtractionResult("Colour", "Black", domain.SourceWeb, 1).WithGroundTruth("Black"),
		nf,
		domain.NewExtractionResult("Gender", domain.NotFound, domain.SourceNone, 1).WithGroundTruth(domain.NotFound),
	}

	m := Aggregate(results)

	assert.Equal(t, 1, m.AccuracyDenominator)
	assert.Equal(t, 1, m.ExactMatchCount)
	assert.Equal(t, 1, m.CaseInsensitiveMatchCount)
	assert.InDelta(t, 1.0, m.ExactMatchAccuracy, 1e-9)
}
