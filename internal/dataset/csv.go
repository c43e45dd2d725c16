package dataset

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"finetune-forge/internal/transform"
)

// CSVOptions describes the layout of a pixel table.
type CSVOptions struct {
	Height int
	Width  int
	// MaxRows stops reading after this many data rows when positive.
	MaxRows int
}

// Table is the raw content of a labelled pixel table: one label and
// Height*Width pixel values per row.
type Table struct {
	Labels []int
	Pixels []uint8
	Height int
	Width  int
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Labels) }

// Store wraps the table in a Flat store applying tf on access.
func (t *Table) Store(tf transform.Func) (*Flat, error) {
	return NewFlat(t.Pixels, t.Labels, t.Height, t.Width, tf)
}

// ReadCSV parses rows of the form label,p0,...,pN from r. A first row
// whose label column is not an integer is treated as a header.
func ReadCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	if opts.Height <= 0 || opts.Width <= 0 {
		return nil, errors.Errorf("csv: invalid image size %dx%d", opts.Height, opts.Width)
	}
	npix := opts.Height * opts.Width
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	table := &Table{Height: opts.Height, Width: opts.Width}
	row := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			return nil, errors.Wrapf(err, "csv: row %d", row)
		}
		label, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			if row == 1 {
				continue
			}
			return nil, errors.Wrapf(err, "csv: row %d: label", row)
		}
		if len(rec) != npix+1 {
			return nil, errors.Errorf("csv: row %d: got %d columns, want %d", row, len(rec), npix+1)
		}
		for col, field := range rec[1:] {
			v, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				return nil, errors.Wrapf(err, "csv: row %d: column %d", row, col+2)
			}
			if v < 0 || v > 255 {
				return nil, errors.Errorf("csv: row %d: column %d: pixel %d outside [0,255]", row, col+2, v)
			}
			table.Pixels = append(table.Pixels, uint8(v))
		}
		table.Labels = append(table.Labels, label)
		if opts.MaxRows > 0 && table.Len() >= opts.MaxRows {
			break
		}
	}
	return table, nil
}

// WriteCSV writes t in the layout ReadCSV accepts, with a header row.
func WriteCSV(w io.Writer, t *Table) error {
	npix := t.Height * t.Width
	cw := csv.NewWriter(w)
	row := make([]string, npix+1)
	row[0] = "label"
	for i := 0; i < npix; i++ {
		row[i+1] = "pixel" + strconv.Itoa(i)
	}
	if err := cw.Write(row); err != nil {
		return errors.Wrap(err, "csv: write header")
	}
	for i, label := range t.Labels {
		row[0] = strconv.Itoa(label)
		for j, p := range t.Pixels[i*npix : (i+1)*npix] {
			row[j+1] = strconv.Itoa(int(p))
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "csv: write row %d", i)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "csv: flush")
}
