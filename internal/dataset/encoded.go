package dataset

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"slices"

	"github.com/pkg/errors"

	"finetune-forge/internal/transform"
)

// Encoded keeps images in their compressed form and decodes them on access.
type Encoded struct {
	records []Record
	tf      transform.Func
}

// NewEncoded builds a store over records. A nil tf yields the decoded image
// as a [0,1] CHW tensor.
func NewEncoded(records []Record, tf transform.Func) *Encoded {
	if tf == nil {
		tf = transform.Pipeline{}.Func()
	}
	owned := slices.Clone(records)
	for i := range owned {
		owned[i].Image = slices.Clone(records[i].Image)
	}
	return &Encoded{records: owned, tf: tf}
}

// Len returns the number of records.
func (e *Encoded) Len() int { return len(e.records) }

// Get decodes and transforms the i-th record.
func (e *Encoded) Get(i int) (Sample, error) {
	if err := checkIndex(i, len(e.records)); err != nil {
		return Sample{}, err
	}
	rec := e.records[i]
	img, _, err := image.Decode(bytes.NewReader(rec.Image))
	if err != nil {
		return Sample{}, errors.Wrapf(err, "dataset: decode %s", rec.Key)
	}
	feat, err := e.tf(img)
	if err != nil {
		return Sample{}, errors.Wrapf(err, "dataset: transform %s", rec.Key)
	}
	return Sample{Features: feat, Label: rec.Label}, nil
}
