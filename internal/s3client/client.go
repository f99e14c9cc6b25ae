// Package s3client wraps github.com/minio/minio-go/v7 with the handful of
// operations s3invsync needs: locating a bucket's region, listing and
// fetching inventory manifests, peeking and fully decoding inventory CSV
// shards, and downloading individual object versions, following the
// teacher's internal/backend/s3 construction idiom.
package s3client

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"hash"
	"io"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/s3invsync/s3invsync/internal/debug"
	"github.com/s3invsync/s3invsync/internal/errors"
	"github.com/s3invsync/s3invsync/internal/inventory"
	"github.com/s3invsync/s3invsync/internal/manifest"
	"github.com/s3invsync/s3invsync/internal/ratelimit"
	"github.com/s3invsync/s3invsync/internal/timestamps"
)

// peekBytes is how much of a shard's leading bytes PeekInventoryCSV
// requests: comfortably more than enough gzip+CSV framing to decode one
// record for all but the most pathological shards.
const peekBytes = 65536

// Client is a minimal read-only S3 client bound to no particular bucket.
type Client struct {
	inner      *minio.Client
	maxRetries uint
	limiter    *ratelimit.Limiter
}

// New constructs a Client from cfg, chaining static credentials (when
// supplied) with the environment- and file-based credential providers
// minio-go knows about.
func New(cfg Config) (*Client, error) {
	if cfg.MaxRetries > 0 {
		minio.MaxRetry = int(cfg.MaxRetries)
	}

	creds := credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvAWS{},
		&credentials.Static{
			Value: credentials.Value{
				AccessKeyID:     cfg.KeyID,
				SecretAccessKey: cfg.Secret,
			},
		},
		&credentials.EnvMinio{},
		&credentials.FileAWSCredentials{},
		&credentials.FileMinioClient{},
		&credentials.IAM{},
	})

	opts := &minio.Options{
		Creds:  creds,
		Secure: !cfg.UseHTTP,
		Region: cfg.Region,
	}
	switch strings.ToLower(cfg.BucketLookup) {
	case "", "auto":
		opts.BucketLookup = minio.BucketLookupAuto
	case "dns":
		opts.BucketLookup = minio.BucketLookupDNS
	case "path":
		opts.BucketLookup = minio.BucketLookupPath
	default:
		return nil, errors.Errorf("bad bucket-lookup style %q: must be \"auto\", \"path\", or \"dns\"", cfg.BucketLookup)
	}

	inner, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to construct S3 client")
	}
	return &Client{inner: inner, maxRetries: cfg.MaxRetries, limiter: ratelimit.New(cfg.DownloadLimitKb)}, nil
}

// retry runs op, retrying transient failures with exponential backoff up to
// c's configured retry count (defaultRetries when unset). It stops
// immediately once ctx is done.
func (c *Client) retry(ctx context.Context, op func() error) error {
	retries := c.maxRetries
	if retries == 0 {
		retries = defaultRetries
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries)), ctx)
	return backoff.Retry(op, b)
}

// GetRegion returns bucket's AWS region.
func (c *Client) GetRegion(ctx context.Context, bucket string) (string, error) {
	var region string
	err := c.retry(ctx, func() error {
		var err error
		region, err = c.inner.GetBucketLocation(ctx, bucket)
		return err
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to get region for bucket %s", bucket)
	}
	return region, nil
}

// ListManifestTimestamps lists every "YYYY-MM-DDTHH-MMZ/" snapshot
// directory under base (an "s3://bucket/prefix" location). It satisfies
// internal/timestamps.Lister.
func (c *Client) ListManifestTimestamps(ctx context.Context, base string) ([]timestamps.DateHM, error) {
	loc, err := ParseLocation(base)
	if err != nil {
		return nil, err
	}
	prefix := loc.Key
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var out []timestamps.DateHM
	seen := make(map[string]bool)
	for obj := range c.inner.ListObjects(ctx, loc.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: false}) {
		if obj.Err != nil {
			return nil, errors.Wrapf(obj.Err, "failed to list manifests under %s", base)
		}
		rel := strings.TrimPrefix(obj.Key, prefix)
		component, _, _ := strings.Cut(strings.TrimSuffix(rel, "/"), "/")
		if component == "" || seen[component] {
			continue
		}
		seen[component] = true
		ts, err := timestamps.ParseDateHM(component)
		if err != nil {
			debug.Log("ignoring non-timestamp entry %q under %s", component, base)
			continue
		}
		out = append(out, ts)
	}
	return out, nil
}

// GetManifest fetches and parses "<base>/<ts>/manifest.json".
func (c *Client) GetManifest(ctx context.Context, base string, ts timestamps.DateHM) (*manifest.Manifest, error) {
	loc, err := ParseLocation(base)
	if err != nil {
		return nil, err
	}
	key := loc.Join(ts.String()).Join("manifest.json").Key

	var data []byte
	err = c.retry(ctx, func() error {
		obj, err := c.inner.GetObject(ctx, loc.Bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return err
		}
		defer obj.Close()
		data, err = io.ReadAll(obj)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch manifest %s", key)
	}
	return manifest.Parse(data)
}

// DownloadObject streams the given object version's content to w,
// verifying its MD5 in flight when expectedMD5 is nonempty.
func (c *Client) DownloadObject(ctx context.Context, bucket, key, versionID, expectedMD5 string, w io.Writer) error {
	// Not wrapped in retry: w is written to incrementally as the stream is
	// copied, so a retry after a partial copy would duplicate already-
	// written bytes. Opening the GetObject call itself is retried; minio-go
	// retries the underlying HTTP round trip for transient network errors.
	var obj io.ReadCloser
	err := c.retry(ctx, func() error {
		opts := minio.GetObjectOptions{}
		if versionID != "" && versionID != "null" {
			opts.VersionID = versionID
		}
		o, err := c.inner.GetObject(ctx, bucket, key, opts)
		if err != nil {
			return err
		}
		if _, err := o.Stat(); err != nil {
			return err
		}
		obj = o
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to open object %s", key)
	}
	defer obj.Close()

	var r io.Reader = c.limiter.Reader(obj)
	h := md5.New()
	if expectedMD5 != "" {
		r = io.TeeReader(r, h)
	}
	if _, err := io.Copy(w, r); err != nil {
		return errors.Wrapf(err, "failed to download object %s", key)
	}
	if expectedMD5 != "" {
		got := hex.EncodeToString(h.Sum(nil))
		if !strings.EqualFold(got, expectedMD5) {
			return errors.Errorf("MD5 mismatch for %s: got %s, want %s", key, got, expectedMD5)
		}
	}
	return nil
}

// IsNotExist reports whether err indicates the requested object or key does
// not exist.
func IsNotExist(err error) bool {
	var e minio.ErrorResponse
	return errors.As(err, &e) && (e.Code == "NoSuchKey" || e.Code == "NoSuchBucket")
}

// InventorySession binds a Client to the bucket holding one inventory
// report's CSV shards and the schema used to decode them, implementing
// internal/presort.Peeker and the full-shard decode path the pipeline uses
// once shards are sorted.
type InventorySession struct {
	client *Client
	bucket string
	schema *inventory.Schema
}

// NewInventorySession returns a session for peeking and downloading shards
// in bucket, decoded according to schema.
func (c *Client) NewInventorySession(bucket string, schema *inventory.Schema) *InventorySession {
	return &InventorySession{client: c, bucket: bucket, schema: schema}
}

// PeekInventoryCSV performs a ranged GET of spec's leading bytes and
// decodes its first record.
func (s *InventorySession) PeekInventoryCSV(ctx context.Context, spec manifest.FileSpec) (*inventory.Row, *inventory.Directory, error) {
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(0, peekBytes-1); err != nil {
		return nil, nil, errors.Wrapf(err, "failed to set byte range for %s", spec.Key)
	}
	var obj io.ReadCloser
	err := s.client.retry(ctx, func() error {
		o, err := s.client.inner.GetObject(ctx, s.bucket, spec.Key, opts)
		if err != nil {
			return err
		}
		if _, err := o.Stat(); err != nil {
			return err
		}
		obj = o
		return nil
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to peek shard %s", spec.Key)
	}
	defer obj.Close()

	dec, err := inventory.NewDecoder(s.schema, obj)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open shard %s for peeking", spec.Key)
	}
	defer dec.Close()

	row, dir, err := dec.Next()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to decode first row of shard %s", spec.Key)
	}
	return row, dir, nil
}

// RowIterator streams rows from one fully downloaded inventory shard,
// verifying the compressed content's MD5 against the manifest once the
// stream is exhausted.
type RowIterator struct {
	dec         *inventory.Decoder
	src         io.ReadCloser
	hash        hash.Hash
	expectedMD5 string
}

// DownloadInventoryCSV opens a full streamed GET of spec and returns a
// RowIterator over its decoded rows.
func (s *InventorySession) DownloadInventoryCSV(ctx context.Context, spec manifest.FileSpec) (*RowIterator, error) {
	var obj io.ReadCloser
	err := s.client.retry(ctx, func() error {
		o, err := s.client.inner.GetObject(ctx, s.bucket, spec.Key, minio.GetObjectOptions{})
		if err != nil {
			return err
		}
		if _, err := o.Stat(); err != nil {
			return err
		}
		obj = o
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open shard %s", spec.Key)
	}
	h := md5.New()
	dec, err := inventory.NewDecoder(s.schema, io.TeeReader(s.client.limiter.Reader(obj), h))
	if err != nil {
		obj.Close()
		return nil, errors.Wrapf(err, "failed to open shard %s for decoding", spec.Key)
	}
	return &RowIterator{dec: dec, src: obj, hash: h, expectedMD5: spec.MD5Checksum}, nil
}

// Next returns the next row, or io.EOF once the shard is exhausted, after
// first verifying the shard's MD5 against the manifest.
func (it *RowIterator) Next() (*inventory.Row, *inventory.Directory, error) {
	row, dir, err := it.dec.Next()
	if errors.Is(err, io.EOF) {
		if verr := it.verify(); verr != nil {
			return nil, nil, verr
		}
		return nil, nil, io.EOF
	}
	if err != nil {
		return nil, nil, err
	}
	return row, dir, nil
}

func (it *RowIterator) verify() error {
	if it.expectedMD5 == "" {
		return nil
	}
	got := hex.EncodeToString(it.hash.Sum(nil))
	if !strings.EqualFold(got, it.expectedMD5) {
		return errors.Errorf("MD5 mismatch for inventory shard: got %s, want %s", got, it.expectedMD5)
	}
	return nil
}

// Close releases the decoder and the underlying object stream.
func (it *RowIterator) Close() error {
	closeErr := it.dec.Close()
	if err := it.src.Close(); err != nil && closeErr == nil {
		closeErr = err
	}
	return closeErr
}
