// Package manifest decodes the JSON manifest that an S3 Inventory
// configuration writes alongside each batch of CSV list-file shards.
package manifest

import (
	"encoding/json"
	"strings"

	"github.com/s3invsync/s3invsync/internal/errors"
)

// ExpectedFileSchema is the only fileSchema value s3invsync accepts. S3
// Inventory reports the columns actually present in each CSV shard via this
// field, in the order they appear; s3invsync requires the full configured
// column set rather than trying to cope with partial inventories.
const ExpectedFileSchema = "Bucket, Key, VersionId, IsLatest, IsDeleteMarker, Size, LastModifiedDate, ETag, IsMultipartUploaded"

// FileSpec names one CSV shard that makes up an inventory report.
type FileSpec struct {
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	MD5Checksum string `json:"MD5checksum"`
}

// Manifest is the parsed form of an S3 Inventory manifest.json.
type Manifest struct {
	SourceBucket string     `json:"sourceBucket"`
	FileFormat   string     `json:"fileFormat"`
	FileSchema   string     `json:"fileSchema"`
	Files        []FileSpec `json:"files"`
}

// UnsupportedFormatError is returned by Parse when a manifest's fileFormat
// is not "CSV".
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return "inventory files are in " + e.Format + " format; only CSV is supported"
}

// UnsupportedSchemaError is returned by Parse when a manifest's fileSchema
// does not match ExpectedFileSchema.
type UnsupportedSchemaError struct {
	Schema string
}

func (e *UnsupportedSchemaError) Error() string {
	return "inventory schema is unsupported: " + e.Schema
}

// Parse decodes and validates a manifest.json document, rejecting any
// manifest that does not describe CSV shards with the exact column set
// s3invsync knows how to decode.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "failed to parse inventory manifest")
	}
	if m.FileFormat != "CSV" {
		return nil, &UnsupportedFormatError{Format: m.FileFormat}
	}
	if m.FileSchema != ExpectedFileSchema {
		return nil, &UnsupportedSchemaError{Schema: m.FileSchema}
	}
	return &m, nil
}

// Columns returns the manifest's fileSchema split into individual field
// names, suitable for building an inventory.Schema.
func (m *Manifest) Columns() []string {
	var fields []string
	for _, part := range strings.Split(m.FileSchema, ",") {
		if field := strings.TrimSpace(part); field != "" {
			fields = append(fields, field)
		}
	}
	return fields
}
