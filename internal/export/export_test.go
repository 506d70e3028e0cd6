package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/spherical-ai/part-extractor/internal/domain"
	"github.com/spherical-ai/part-extractor/internal/metrics"
)

func TestResultsXLSX(t *testing.T) {
	results := []domain.ExtractionResult{
		domain.NewExtractionResult("Colour", "Black", domain.SourceWeb, 1.5).WithGroundTruth("black"),
		domain.NewExtractionResult("Gender", domain.NotFound, domain.SourceNone, 0.25),
	}

	data, err := ResultsXLSX("1234567-1", results, metrics.Aggregate(results))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{ResultsSheet, MetricsSheet}, f.GetSheetList())

	rows, err := f.GetRows(ResultsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, resultHeaders, rows[0])
	assert.Equal(t, []string{"Colour", "Black", "web", "1.5", "black", "FALSE", "TRUE", "FALSE"}, rows[1])
	assert.Equal(t, "NOT FOUND", rows[2][1])
	assert.Equal(t, "none", rows[2][2])

	pn, err := f.GetCellValue(MetricsSheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "1234567-1", pn)

	total, err := f.GetCellValue(MetricsSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "2", total)
}
