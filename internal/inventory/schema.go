// Package inventory decodes rows from S3 Inventory CSV list files into the
// fields s3invsync cares about, tolerating whatever column set the
// inventory configuration reports in its manifest.
package inventory

import (
	"github.com/s3invsync/s3invsync/internal/errors"
)

// Field names a column that may appear in an inventory list file. See
// https://docs.aws.amazon.com/AmazonS3/latest/userguide/storage-inventory.html
// for the meaning of each.
type Field string

const (
	FieldBucket                       Field = "Bucket"
	FieldKey                          Field = "Key"
	FieldVersionId                    Field = "VersionId"
	FieldIsLatest                     Field = "IsLatest"
	FieldIsDeleteMarker               Field = "IsDeleteMarker"
	FieldSize                         Field = "Size"
	FieldLastModifiedDate             Field = "LastModifiedDate"
	FieldETag                         Field = "ETag"
	FieldIsMultipartUploaded          Field = "IsMultipartUploaded"
	FieldStorageClass                 Field = "StorageClass"
	FieldReplicationStatus            Field = "ReplicationStatus"
	FieldEncryptionStatus             Field = "EncryptionStatus"
	FieldObjectLockRetainUntilDate    Field = "ObjectLockRetainUntilDate"
	FieldObjectLockMode               Field = "ObjectLockMode"
	FieldObjectLockLegalHoldStatus    Field = "ObjectLockLegalHoldStatus"
	FieldIntelligentTieringAccessTier Field = "IntelligentTieringAccessTier"
	FieldBucketKeyStatus              Field = "BucketKeyStatus"
	FieldChecksumAlgorithm            Field = "ChecksumAlgorithm"
	FieldObjectAccessControlList      Field = "ObjectAccessControlList"
	FieldObjectOwner                  Field = "ObjectOwner"
)

// requiredFields lists the fields s3invsync requires in every inventory
// list file, regardless of what else the configuration reports.
var requiredFields = []Field{FieldBucket, FieldKey, FieldETag}

// Schema is the ordered list of fields an inventory configuration's CSV
// shards carry, as declared by a manifest's fileSchema.
type Schema struct {
	fields   []Field
	keyIndex int
}

// UnknownFieldError is returned by NewSchema for an unrecognized field name.
type UnknownFieldError struct {
	Name string
}

func (e *UnknownFieldError) Error() string {
	return "unknown inventory field in fileSchema: " + e.Name
}

// DuplicateFieldError is returned by NewSchema when a field appears more
// than once.
type DuplicateFieldError struct {
	Field Field
}

func (e *DuplicateFieldError) Error() string {
	return "duplicate inventory field in fileSchema: " + string(e.Field)
}

// MissingRequiredFieldsError is returned by NewSchema when one or more
// fields required by s3invsync are absent.
type MissingRequiredFieldsError struct {
	Missing []Field
}

func (e *MissingRequiredFieldsError) Error() string {
	msg := "fileSchema is missing required fields: "
	for i, f := range e.Missing {
		if i > 0 {
			msg += ", "
		}
		msg += string(f)
	}
	return msg
}

var allFields = []Field{
	FieldBucket, FieldKey, FieldVersionId, FieldIsLatest, FieldIsDeleteMarker,
	FieldSize, FieldLastModifiedDate, FieldETag, FieldIsMultipartUploaded,
	FieldStorageClass, FieldReplicationStatus, FieldEncryptionStatus,
	FieldObjectLockRetainUntilDate, FieldObjectLockMode, FieldObjectLockLegalHoldStatus,
	FieldIntelligentTieringAccessTier, FieldBucketKeyStatus, FieldChecksumAlgorithm,
	FieldObjectAccessControlList, FieldObjectOwner,
}

var fieldNames = func() map[string]Field {
	m := make(map[string]Field, len(allFields))
	for _, f := range allFields {
		m[string(f)] = f
	}
	return m
}()

// NewSchema builds a Schema from an ordered list of column names, as parsed
// out of a manifest's fileSchema.
func NewSchema(columns []string) (*Schema, error) {
	fields := make([]Field, 0, len(columns))
	seen := make(map[Field]bool, len(columns))
	for _, name := range columns {
		f, ok := fieldNames[name]
		if !ok {
			return nil, &UnknownFieldError{Name: name}
		}
		if seen[f] {
			return nil, &DuplicateFieldError{Field: f}
		}
		seen[f] = true
		fields = append(fields, f)
	}

	var missing []Field
	for _, f := range requiredFields {
		if !seen[f] {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingRequiredFieldsError{Missing: missing}
	}

	keyIndex := -1
	for i, f := range fields {
		if f == FieldKey {
			keyIndex = i
			break
		}
	}
	if keyIndex < 0 {
		return nil, errors.New("inventory: Key unexpectedly absent after required-field check")
	}
	return &Schema{fields: fields, keyIndex: keyIndex}, nil
}

// Fields returns the schema's columns in order.
func (s *Schema) Fields() []Field {
	return s.fields
}
