package batch

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ColumnMapping names the input column(s) that supply the address: either a
// single full-address column, or any subset of the component columns.
type ColumnMapping struct {
	Address string
	Street  string
	City    string
	State   string
	Zip     string
}

// Validate checks that at least one column is mapped.
func (m ColumnMapping) Validate() error {
	if m.Address == "" && m.Street == "" && m.City == "" && m.State == "" && m.Zip == "" {
		return eris.New("batch: column mapping needs an address column or component columns")
	}
	return nil
}

// Extractor derives a query address from a row. It is a pure function of the
// row once constructed; construction resolves column names against the header.
type Extractor struct {
	address int
	street  int
	city    int
	state   int
	zip     int
}

// NewExtractor resolves mapping against header. Mapped columns missing from
// the header are logged and treated as always blank, matching the behavior of
// sparse exports where some geography columns exist only in some files.
func NewExtractor(mapping ColumnMapping, header []string) (*Extractor, error) {
	if err := mapping.Validate(); err != nil {
		return nil, err
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}

	resolve := func(name string) int {
		if name == "" {
			return -1
		}
		if i, ok := idx[name]; ok {
			return i
		}
		zap.L().Warn("mapped column not found in header, treating as blank",
			zap.String("column", name))
		return -1
	}

	return &Extractor{
		address: resolve(mapping.Address),
		street:  resolve(mapping.Street),
		city:    resolve(mapping.City),
		state:   resolve(mapping.State),
		zip:     resolve(mapping.Zip),
	}, nil
}

// Extract builds the query address for one row. An empty return means the row
// has no usable address data.
func (e *Extractor) Extract(row []string) string {
	if e.address >= 0 {
		return field(row, e.address)
	}

	parts := make([]string, 0, 3)
	for _, i := range []int{e.street, e.city, e.state} {
		if v := field(row, i); v != "" {
			parts = append(parts, v)
		}
	}
	query := strings.Join(parts, ", ")

	// Zip follows the state without a comma: "street, city, state zip".
	if z := field(row, e.zip); z != "" {
		if query == "" {
			return z
		}
		query += " " + z
	}
	return query
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
