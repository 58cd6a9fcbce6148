// Package csvio reads and writes the delimited tabular files the batch engine
// processes. The delimiter and input encoding are fixed per run.
package csvio

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ReaderOptions configures the CSV reader.
type ReaderOptions struct {
	Delimiter  rune   // default ','
	Encoding   string // "utf8" (default), "latin1", "windows-1252"
	LazyQuotes bool
	TrimSpace  bool
}

// Reader reads a header row and then data rows with stable 0-based indexes.
type Reader struct {
	f      *os.File
	r      *csv.Reader
	header []string
	next   int
	trim   bool
}

// OpenReader opens path, decodes it per opts.Encoding, and consumes the header
// row.
func OpenReader(path string, opts ReaderOptions) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "csvio: open %s", path)
	}

	var src io.Reader = f
	enc, err := lookupEncoding(opts.Encoding)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if enc != nil {
		src = transform.NewReader(f, enc.NewDecoder())
	}

	r := csv.NewReader(src)
	if opts.Delimiter != 0 {
		r.Comma = opts.Delimiter
	}
	r.LazyQuotes = opts.LazyQuotes
	r.FieldsPerRecord = -1 // allow ragged rows

	header, err := r.Read()
	if err == io.EOF {
		_ = f.Close()
		return nil, eris.Errorf("csvio: %s is empty, expected a header row", path)
	}
	if err != nil {
		_ = f.Close()
		return nil, eris.Wrapf(err, "csvio: read header of %s", path)
	}
	if opts.TrimSpace {
		for i := range header {
			header[i] = strings.TrimSpace(header[i])
		}
	}

	return &Reader{f: f, r: r, header: header, trim: opts.TrimSpace}, nil
}

// Header returns the column names from the first row.
func (r *Reader) Header() []string { return r.header }

// Next returns the next data row and its 0-based index, or io.EOF.
func (r *Reader) Next() ([]string, int, error) {
	record, err := r.r.Read()
	if err == io.EOF {
		return nil, 0, io.EOF
	}
	if err != nil {
		return nil, 0, eris.Wrapf(err, "csvio: read row %d", r.next)
	}
	if r.trim {
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
	}
	idx := r.next
	r.next++
	return record, idx, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// lookupEncoding maps an encoding name to a decoder, nil meaning plain UTF-8.
func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf8", "utf-8":
		return nil, nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	default:
		return nil, eris.Errorf("csvio: unsupported encoding %q", name)
	}
}

// CountRows returns the number of data rows (excluding the header) in path.
// A missing file counts as zero rows.
func CountRows(path string, delimiter rune) (int, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "csvio: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	if delimiter != 0 {
		r.Comma = delimiter
	}
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	n := -1 // header does not count
	for {
		_, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, eris.Wrapf(err, "csvio: count rows of %s", path)
		}
		n++
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}
