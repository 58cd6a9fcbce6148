package csvio

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Writer appends rows to a CSV output file and can durably flush them.
type Writer struct {
	f *os.File
	w *csv.Writer
}

// CreateWriter truncates (or creates) path and writes the header row.
func CreateWriter(path string, delimiter rune, header []string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "csvio: create %s", path)
	}
	w := newWriter(f, delimiter)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

// AppendWriter opens path for appending; the header is assumed present.
func AppendWriter(path string, delimiter rune) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, eris.Wrapf(err, "csvio: open %s for append", path)
	}
	return newWriter(f, delimiter), nil
}

func newWriter(f *os.File, delimiter rune) *Writer {
	w := csv.NewWriter(f)
	if delimiter != 0 {
		w.Comma = delimiter
	}
	return &Writer{f: f, w: w}
}

// Write buffers one row.
func (w *Writer) Write(row []string) error {
	if err := w.w.Write(row); err != nil {
		return eris.Wrap(err, "csvio: write row")
	}
	return nil
}

// Flush drains the buffer and fsyncs, so a crash after Flush loses nothing.
func (w *Writer) Flush() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return eris.Wrap(err, "csvio: flush")
	}
	if err := w.f.Sync(); err != nil {
		return eris.Wrap(err, "csvio: sync")
	}
	return nil
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}

// TruncateRows rewrites path keeping the header and the first keep data rows.
// Used on resume when the output ran ahead of the last committed checkpoint.
func TruncateRows(path string, delimiter rune, keep int) error {
	src, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "csvio: open %s", path)
	}
	defer src.Close() //nolint:errcheck

	tmp, err := os.CreateTemp(filepath.Dir(path), ".csvio-truncate-*")
	if err != nil {
		return eris.Wrap(err, "csvio: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	r := csv.NewReader(src)
	if delimiter != 0 {
		r.Comma = delimiter
	}
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	w := csv.NewWriter(tmp)
	if delimiter != 0 {
		w.Comma = delimiter
	}

	copied := -1 // header
	for copied < keep {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			_ = tmp.Close()
			return eris.Wrapf(err, "csvio: truncate read %s", path)
		}
		if err := w.Write(row); err != nil {
			_ = tmp.Close()
			return eris.Wrap(err, "csvio: truncate write")
		}
		copied++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "csvio: truncate flush")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "csvio: truncate sync")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "csvio: close temp file")
	}

	return eris.Wrapf(os.Rename(tmp.Name(), path), "csvio: replace %s", path)
}
