package tabular

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlid/domain/core"
)

const sampleCSV = `code,whiteb,asian,pop,district,region
u01,120,10,150, d1 ,r1
u02,110,15,140,d1,r1
u03,30,95,130,d2,r1
u04,25,100,135,d2,r1
`

func sampleSchema() Schema {
	return Schema{
		IDCol:     "code",
		CountCols: []string{"whiteb", "asian", "pop"},
		KeyCols:   []string{"district", "region"},
	}
}

func TestFromCSV(t *testing.T) {
	table, err := FromCSV(strings.NewReader(sampleCSV), sampleSchema())
	require.NoError(t, err)

	assert.Equal(t, 4, table.N())
	assert.Equal(t, []string{"u01", "u02", "u03", "u04"}, table.UnitIDs())

	counts, ok := table.Counts("asian")
	require.True(t, ok)
	assert.Equal(t, []float64{10, 15, 95, 100}, counts)

	// Cell whitespace is trimmed before use.
	keys, ok := table.Keys("district")
	require.True(t, ok)
	assert.Equal(t, []string{"d1", "d1", "d2", "d2"}, keys)
}

func TestFromCSV_MissingColumn(t *testing.T) {
	schema := sampleSchema()
	schema.CountCols = append(schema.CountCols, "black")

	_, err := FromCSV(strings.NewReader(sampleCSV), schema)
	require.Error(t, err)
	assert.True(t, core.IsInvalidInputError(err), "got %v", err)
	assert.Contains(t, err.Error(), "black")
}

func TestFromCSV_NonNumericCount(t *testing.T) {
	csv := "code,whiteb,asian\nu01,ten,5\n"
	_, err := FromCSV(strings.NewReader(csv), Schema{
		IDCol:     "code",
		CountCols: []string{"whiteb", "asian"},
	})
	require.Error(t, err)
	assert.True(t, core.IsInvalidInputError(err), "got %v", err)
}

func TestFromCSV_HeaderOnly(t *testing.T) {
	_, err := FromCSV(strings.NewReader("code,whiteb,asian\n"), sampleSchema())
	require.Error(t, err)
	assert.True(t, core.IsInvalidInputError(err), "got %v", err)
}

func TestNewDataReader_TypeDetection(t *testing.T) {
	assert.Equal(t, "csv", NewDataReader("units.csv").fileType)
	assert.Equal(t, "csv", NewDataReader("UNITS.CSV").fileType)
	assert.Equal(t, "xlsx", NewDataReader("units.xlsx").fileType)
}

func TestReadTable_MissingFile(t *testing.T) {
	_, err := NewDataReader("no-such-file.csv").ReadTable(sampleSchema())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
