// Package export writes extraction results to spreadsheets.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/spherical-ai/part-extractor/internal/domain"
)

const (
	ResultsSheet = "Results"
	MetricsSheet = "Metrics"
)

var resultHeaders = []string{
	"Attribute",
	"Value",
	"Source",
	"Latency (s)",
	"Ground Truth",
	"Exact Match",
	"Case-Insensitive Match",
	"Rate Limited",
}

// ResultsXLSX renders results and their metrics as an XLSX workbook.
func ResultsXLSX(partNumber string, results []domain.ExtractionResult, metrics domain.BatchMetrics) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ResultsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(MetricsSheet); err != nil {
		return nil, fmt.Errorf("create metrics sheet: %w", err)
	}

	for i, h := range resultHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(ResultsSheet, cell, h)
	}

	for i, r := range results {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(ResultsSheet, cell, v)
		}

		write(1, r.Attribute)
		write(2, r.Value)
		write(3, string(r.Source))
		write(4, r.Latency)
		if r.GroundTruth != nil {
			write(5, *r.GroundTruth)
		}
		if r.ExactMatch != nil {
			write(6, *r.ExactMatch)
		}
		if r.CaseInsensitiveMatch != nil {
			write(7, *r.CaseInsensitiveMatch)
		}
		write(8, r.IsRateLimit)
	}

	_ = f.SetColWidth(ResultsSheet, "A", "A", 32)
	_ = f.SetColWidth(ResultsSheet, "B", "B", 40)
	_ = f.SetColWidth(ResultsSheet, "C", "D", 12)
	_ = f.SetColWidth(ResultsSheet, "E", "E", 32)
	_ = f.SetColWidth(ResultsSheet, "F", "H", 14)

	rows := [][2]any{
		{"Part Number", partNumber},
		{"Total Fields", metrics.TotalFields},
		{"Success Count", metrics.SuccessCount},
		{"Error Count", metrics.ErrorCount},
		{"Not Found Count", metrics.NotFoundCount},
		{"Rate Limit Count", metrics.RateLimitCount},
		{"Exact Match Count", metrics.ExactMatchCount},
		{"Case-Insensitive Match Count", metrics.CaseInsensitiveMatchCount},
		{"Accuracy Denominator", metrics.AccuracyDenominator},
		{"Success Rate", metrics.SuccessRate},
		{"Error Rate", metrics.ErrorRate},
		{"Not Found Rate", metrics.NotFoundRate},
		{"Rate Limit Rate", metrics.RateLimitRate},
		{"Exact Match Accuracy", metrics.ExactMatchAccuracy},
		{"Case-Insensitive Accuracy", metrics.CaseInsensitiveAccuracy},
		{"Average Latency (s)", metrics.AvgLatency},
	}
	for i, kv := range rows {
		_ = f.SetCellValue(MetricsSheet, fmt.Sprintf("A%d", i+1), kv[0])
		_ = f.SetCellValue(MetricsSheet, fmt.Sprintf("B%d", i+1), kv[1])
	}
	_ = f.SetColWidth(MetricsSheet, "A", "A", 30)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
