package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnMapping_Validate(t *testing.T) {
	assert.Error(t, ColumnMapping{}.Validate())
	assert.NoError(t, ColumnMapping{Address: "addr"}.Validate())
	assert.NoError(t, ColumnMapping{Zip: "zip"}.Validate())
}

func TestExtractor_SingleColumn(t *testing.T) {
	header := []string{"id", "full_address"}
	ex, err := NewExtractor(ColumnMapping{Address: "full_address"}, header)
	require.NoError(t, err)

	assert.Equal(t, "123 Main St, Springfield, IL", ex.Extract([]string{"1", "  123 Main St, Springfield, IL  "}))
	assert.Equal(t, "", ex.Extract([]string{"2", "   "}))
	assert.Equal(t, "", ex.Extract([]string{"3"})) // short row
}

func TestExtractor_ComponentOrder(t *testing.T) {
	header := []string{"street", "city", "state", "zip"}
	ex, err := NewExtractor(ColumnMapping{Street: "street", City: "city", State: "state", Zip: "zip"}, header)
	require.NoError(t, err)

	tests := []struct {
		name string
		row  []string
		want string
	}{
		{"all present", []string{"742 Evergreen Terrace", "Springfield", "IL", "62704"}, "742 Evergreen Terrace, Springfield, IL 62704"},
		{"no zip", []string{"742 Evergreen Terrace", "Springfield", "IL", ""}, "742 Evergreen Terrace, Springfield, IL"},
		{"zip only", []string{"", "", "", "62704"}, "62704"},
		{"city and state", []string{"", "Springfield", "IL", ""}, "Springfield, IL"},
		{"all blank", []string{"", "  ", "", ""}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ex.Extract(tt.row))
		})
	}
}

func TestExtractor_Deterministic(t *testing.T) {
	header := []string{"street", "city"}
	ex, err := NewExtractor(ColumnMapping{Street: "street", City: "city"}, header)
	require.NoError(t, err)

	row := []string{"1 First Ave", "Portland"}
	first := ex.Extract(row)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ex.Extract(row))
	}
}

func TestExtractor_MissingMappedColumnTreatedAsBlank(t *testing.T) {
	header := []string{"street", "city"}
	ex, err := NewExtractor(ColumnMapping{Street: "street", City: "city", State: "state"}, header)
	require.NoError(t, err)

	assert.Equal(t, "1 First Ave, Portland", ex.Extract([]string{"1 First Ave", "Portland"}))
}

func TestExtractor_AddressModeTakesPrecedence(t *testing.T) {
	header := []string{"full", "street"}
	ex, err := NewExtractor(ColumnMapping{Address: "full", Street: "street"}, header)
	require.NoError(t, err)

	assert.Equal(t, "the full one", ex.Extract([]string{"the full one", "ignored"}))
}
