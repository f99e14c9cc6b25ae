package s3client

// Config holds the credentials and connection parameters used to build a
// minio.Client, following the teacher's S3 backend Config shape pared down
// to what a read-only inventory consumer needs.
type Config struct {
	Endpoint string
	Region   string
	UseHTTP  bool

	KeyID  string
	Secret string

	// BucketLookup selects "auto", "dns", or "path" addressing; empty
	// means "auto".
	BucketLookup string

	// MaxRetries overrides minio's default retry count when nonzero, and
	// bounds the exponential-backoff retries this package applies around
	// each request.
	MaxRetries uint

	// DownloadLimitKb caps download bandwidth in kilobytes per second; zero
	// means unlimited.
	DownloadLimitKb int
}

// defaultRetries is how many times a request is retried (with exponential
// backoff) when MaxRetries is unset.
const defaultRetries = 5
