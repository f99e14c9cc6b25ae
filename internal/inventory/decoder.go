package inventory

import (
	"encoding/csv"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/s3invsync/s3invsync/internal/errors"
)

// Decoder reads successive rows from a gzip-compressed CSV inventory shard.
type Decoder struct {
	schema *Schema
	csv    *csv.Reader
	gz     *gzip.Reader
}

// NewDecoder returns a Decoder that reads gzip-compressed CSV records from
// r according to schema. The caller remains responsible for closing r.
func NewDecoder(schema *Schema, r io.Reader) (*Decoder, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open gzip stream for inventory shard")
	}
	cr := csv.NewReader(gz)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	return &Decoder{schema: schema, csv: cr, gz: gz}, nil
}

// Next returns the next row from the shard, returning either a *Row or a
// *Directory for a directory sentinel, which callers should discard. It
// returns io.EOF once the shard is exhausted.
func (d *Decoder) Next() (*Row, *Directory, error) {
	record, err := d.csv.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, io.EOF
		}
		return nil, nil, errors.Wrap(err, "failed to read CSV record from inventory shard")
	}
	values := make([]string, len(record))
	copy(values, record)
	row, dir, err := d.schema.ParseRow(values)
	if err != nil {
		return nil, nil, err
	}
	return row, dir, nil
}

// Close releases the gzip reader. It does not close the underlying io.Reader.
func (d *Decoder) Close() error {
	return d.gz.Close()
}
