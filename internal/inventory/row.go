package inventory

import (
	"net/url"
	"strconv"
	"time"

	"github.com/s3invsync/s3invsync/internal/errors"
	"github.com/s3invsync/s3invsync/internal/keypath"
)

// ItemDetails carries the content metadata of a non-deleted row.
type ItemDetails struct {
	Size      *int64
	ETag      string
	ETagIsMD5 bool
}

// Row is one object version as described by an inventory list entry that is
// not a directory sentinel.
type Row struct {
	Bucket           string
	Key              keypath.KeyPath
	VersionID        string // empty means the schema omitted VersionId
	IsLatest         bool
	LastModifiedDate *time.Time

	// Deleted is true if this row is a delete marker, in which case
	// Details is unset.
	Deleted bool
	Details ItemDetails
}

// Directory is a row whose key ends in '/' and that represents a directory
// placeholder object rather than real file content. It is not valid as a
// keypath.KeyPath and carries no content metadata.
type Directory struct {
	Bucket    string
	Key       string
	VersionID string
}

// ParseEntryError is returned by Schema.ParseRow for a malformed row.
type ParseEntryError struct {
	Key     string
	Field   Field
	Value   string
	Message string
}

func (e *ParseEntryError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return "could not parse inventory entry for key " + strconv.Quote(e.Key) +
		", field " + string(e.Field) + ", value " + strconv.Quote(e.Value) + ": " + e.Message
}

// ParseRow decodes one CSV record according to the schema, percent-decoding
// the key and returning either a *Row or a *Directory. Exactly one of the
// two return values is non-nil on success.
func (s *Schema) ParseRow(values []string) (*Row, *Directory, error) {
	if s.keyIndex >= len(values) {
		return nil, nil, &ParseEntryError{Message: "inventory list entry is missing fields, including key"}
	}
	rawKey := values[s.keyIndex]
	decoded, err := url.PathUnescape(rawKey)
	if err != nil {
		return nil, nil, &ParseEntryError{Message: "inventory list entry key " + strconv.Quote(rawKey) + " did not decode as percent-encoded UTF-8"}
	}
	key := decoded

	if len(values) != len(s.fields) {
		return nil, nil, &ParseEntryError{
			Key:     key,
			Message: "inventory list entry has " + strconv.Itoa(len(values)) + " fields; expected " + strconv.Itoa(len(s.fields)),
		}
	}

	var (
		bucket           string
		versionID        string
		etag             string
		isLatest         = true
		isDeleteMarker   bool
		size             *int64
		lastModifiedDate *time.Time
		etagIsMD5        = true
	)

	for i, field := range s.fields {
		value := values[i]
		switch field {
		case FieldBucket:
			if value == "" {
				return nil, nil, &ParseEntryError{Key: key, Message: "inventory item has empty bucket field"}
			}
			bucket = value
		case FieldKey:
			// already decoded above
		case FieldVersionId:
			if value == "" {
				// An empty VersionId means the object was created while the
				// bucket was unversioned; the effective version ID to use
				// in GetObject requests is the literal string "null".
				versionID = "null"
			} else {
				versionID = value
			}
		case FieldIsLatest:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, nil, &ParseEntryError{Key: key, Field: field, Value: value, Message: `expected "true" or "false"`}
			}
			isLatest = b
		case FieldIsDeleteMarker:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, nil, &ParseEntryError{Key: key, Field: field, Value: value, Message: `expected "true" or "false"`}
			}
			isDeleteMarker = b
		case FieldSize:
			if value != "" {
				sz, err := strconv.ParseInt(value, 10, 64)
				if err != nil {
					return nil, nil, &ParseEntryError{Key: key, Field: field, Value: value, Message: "expected an integer"}
				}
				size = &sz
			}
		case FieldLastModifiedDate:
			ts, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return nil, nil, &ParseEntryError{Key: key, Field: field, Value: value, Message: "expected an ISO timestamp"}
			}
			lastModifiedDate = &ts
		case FieldETag:
			if value != "" {
				etag = value
			}
		case FieldIsMultipartUploaded:
			if value == "true" {
				etagIsMD5 = false
			}
		case FieldEncryptionStatus:
			if value != "NOT-SSE" && value != "SSE-S3" {
				etagIsMD5 = false
			}
		default:
			// Every other recognized field is informational and does not
			// affect how s3invsync interprets the row.
		}
	}

	if key != "" && key[len(key)-1] == '/' &&
		(isDeleteMarker || size == nil || *size == 0) {
		return nil, &Directory{Bucket: bucket, Key: key, VersionID: versionID}, nil
	}

	kp, err := keypath.Parse(key)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "inventory item key %q is not an acceptable filepath", key)
	}

	row := &Row{
		Bucket:           bucket,
		Key:              kp,
		VersionID:        versionID,
		IsLatest:         isLatest,
		LastModifiedDate: lastModifiedDate,
		Deleted:          isDeleteMarker,
	}
	if !isDeleteMarker {
		if etag == "" {
			return nil, nil, &ParseEntryError{Key: key, Message: "non-deleted inventory item lacks etag"}
		}
		row.Details = ItemDetails{Size: size, ETag: etag, ETagIsMD5: etagIsMD5}
	}
	return row, nil, nil
}
