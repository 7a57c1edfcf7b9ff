package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"altona/internal/directory/models"
	"altona/internal/directory/store"
	dErrors "altona/pkg/domain-errors"
)

func newTestService() (*Service, *store.Memory) {
	st := store.NewMemory()
	return NewService(st), st
}

func TestImportCSVUpsertsByErf(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	csvData := strings.Join([]string{
		"erf_number,street_number,street_name,suburb,postal_code",
		"1234,12,Yellowwood Crescent,Altona,6600",
		"5678,3,Protea Lane,Altona,6600",
	}, "\n")
	result, err := svc.ImportCSV(ctx, strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 0, result.Skipped)

	m, err := svc.Lookup(ctx, "1234")
	require.NoError(t, err)
	assert.Equal(t, "12 Yellowwood Crescent", m.FullAddress)

	// Re-importing the same ERF with a new address replaces it.
	csvData = "erf_number,street_number,street_name\n1234,14,Yellowwood Crescent"
	result, err = svc.ImportCSV(ctx, strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)

	m, err = svc.Lookup(ctx, "1234")
	require.NoError(t, err)
	assert.Equal(t, "14", m.StreetNumber)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestImportCSVHeaderAliases(t *testing.T) {
	svc, _ := newTestService()

	csvData := "ERF Number,Street Nr,Street Name\n42,7,Milkwood Drive"
	result, err := svc.ImportCSV(context.Background(), strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
}

func TestImportCSVMissingColumns(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.ImportCSV(context.Background(), strings.NewReader("erf_number,suburb\n1,Altona"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestImportSkipsIncompleteRows(t *testing.T) {
	svc, _ := newTestService()

	csvData := "erf_number,street_number,street_name\n,12,Somewhere\n99,1,Real Street"
	result, err := svc.ImportCSV(context.Background(), strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Skipped)
}

func TestLookupNotFound(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Lookup(context.Background(), "0000")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestParseFormatRoundTrip(t *testing.T) {
	cases := [][2]string{
		{"12", "Yellowwood Crescent"},
		{"3A", "Protea Lane"},
		{"", "Main Road"},
	}
	for _, c := range cases {
		number, name := models.ParseAddress(models.FormatAddress(c[0], c[1]))
		assert.Equal(t, c[0], number)
		assert.Equal(t, c[1], name)
	}
}
