package dataset

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSVWithHeader(t *testing.T) {
	in := "label,p0,p1,p2,p3\n3,0,1,2,3\n7,255,254,253,252\n"
	table, err := ReadCSV(strings.NewReader(in), CSVOptions{Height: 2, Width: 2})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 7}, table.Labels)
	assert.Equal(t, []uint8{0, 1, 2, 3, 255, 254, 253, 252}, table.Pixels)

	s, err := table.Store(nil)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	sample, err := s.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 7, sample.Label)
	assert.InDelta(t, 1.0, sample.Features.At(0, 0, 0), 1e-12)
}

func TestReadCSVWithoutHeaderAndLimit(t *testing.T) {
	in := "1,0,0,0,0\n2,0,0,0,0\n3,0,0,0,0\n"
	table, err := ReadCSV(strings.NewReader(in), CSVOptions{Height: 2, Width: 2, MaxRows: 2})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, table.Labels)
}

func TestReadCSVErrors(t *testing.T) {
	cases := map[string]string{
		"short row":    "1,0,0,0\n",
		"bad pixel":    "1,0,x,0,0\n",
		"pixel range":  "1,0,256,0,0\n",
		"bad label":    "1,0,0,0,0\ny,0,0,0,0\n",
		"negative pix": "1,0,-1,0,0\n",
	}
	for name, in := range cases {
		_, err := ReadCSV(strings.NewReader(in), CSVOptions{Height: 2, Width: 2})
		assert.Error(t, err, name)
	}
	_, err := ReadCSV(strings.NewReader(""), CSVOptions{})
	assert.Error(t, err)
}

func TestWriteCSVRoundTrip(t *testing.T) {
	table, err := Synthetic(SyntheticOptions{Samples: 9, Classes: 3, Height: 3, Width: 3, Seed: 5})
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	require.NoError(t, WriteCSV(buf, table))

	back, err := ReadCSV(buf, CSVOptions{Height: 3, Width: 3})
	require.NoError(t, err)
	assert.Equal(t, table, back)
}

func TestSyntheticDeterministic(t *testing.T) {
	opts := SyntheticOptions{Samples: 10, Classes: 2, Height: 4, Width: 4, Seed: 11}
	a, err := Synthetic(opts)
	require.NoError(t, err)
	b, err := Synthetic(opts)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 10, a.Len())
	for _, l := range a.Labels {
		assert.True(t, l >= 0 && l < 2)
	}

	_, err = Synthetic(SyntheticOptions{Samples: 0, Classes: 1, Height: 1, Width: 1})
	assert.Error(t, err)
}
