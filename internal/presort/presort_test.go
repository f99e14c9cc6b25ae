package presort

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/s3invsync/s3invsync/internal/inventory"
	"github.com/s3invsync/s3invsync/internal/manifest"
)

var testColumns = strings.Split(manifest.ExpectedFileSchema, ", ")

func mustSchema(t *testing.T) *inventory.Schema {
	t.Helper()
	s, err := inventory.NewSchema(testColumns)
	if err != nil {
		t.Fatalf("NewSchema failed: %v", err)
	}
	return s
}

func gzipShard(t *testing.T, keys ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	cw := csv.NewWriter(gz)
	for _, k := range keys {
		row := []string{"bucket", k, "", "true", "false", "3", "2024-01-01T00:00:00Z", "d41d8cd98f00b204e9800998ecf8427e", "false"}
		if err := cw.Write(row); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		t.Fatalf("csv flush failed: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close failed: %v", err)
	}
	return buf.Bytes()
}

// fakePeeker decodes the full (small, test-sized) shard content rather than
// performing a real ranged GET, since it stands in for the network client.
type fakePeeker struct {
	schema  *inventory.Schema
	content map[string][]byte
}

func (f fakePeeker) PeekInventoryCSV(ctx context.Context, spec manifest.FileSpec) (*inventory.Row, *inventory.Directory, error) {
	content, ok := f.content[spec.Key]
	if !ok {
		return nil, nil, fmt.Errorf("no such shard: %s", spec.Key)
	}
	dec, err := inventory.NewDecoder(f.schema, bytes.NewReader(content))
	if err != nil {
		return nil, nil, err
	}
	defer dec.Close()
	row, dir, err := dec.Next()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return row, dir, nil
}

func TestSortOrdersByFirstKey(t *testing.T) {
	peeker := fakePeeker{
		schema: mustSchema(t),
		content: map[string][]byte{
			"shard-c.csv.gz": gzipShard(t, "c/1.txt", "c/2.txt"),
			"shard-a.csv.gz": gzipShard(t, "a/1.txt"),
			"shard-b.csv.gz": gzipShard(t, "b/1.txt"),
		},
	}
	specs := []manifest.FileSpec{
		{Key: "shard-c.csv.gz"},
		{Key: "shard-a.csv.gz"},
		{Key: "shard-b.csv.gz"},
	}

	sorted, err := Sort(context.Background(), peeker, specs, 2)
	if err != nil {
		t.Fatalf("Sort failed: %v", err)
	}
	got := make([]string, len(sorted))
	for i, s := range sorted {
		got[i] = s.Key
	}
	want := []string{"shard-a.csv.gz", "shard-b.csv.gz", "shard-c.csv.gz"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Sort order = %v, want %v", got, want)
	}
}

func TestSortDropsEmptyShards(t *testing.T) {
	peeker := fakePeeker{
		schema: mustSchema(t),
		content: map[string][]byte{
			"shard-empty.csv.gz": gzipShard(t),
			"shard-full.csv.gz":  gzipShard(t, "a/1.txt"),
		},
	}
	specs := []manifest.FileSpec{
		{Key: "shard-empty.csv.gz"},
		{Key: "shard-full.csv.gz"},
	}

	sorted, err := Sort(context.Background(), peeker, specs, 4)
	if err != nil {
		t.Fatalf("Sort failed: %v", err)
	}
	if len(sorted) != 1 || sorted[0].Key != "shard-full.csv.gz" {
		t.Errorf("Sort() = %+v, want only shard-full.csv.gz", sorted)
	}
}

func TestSortPropagatesFetchError(t *testing.T) {
	peeker := fakePeeker{schema: mustSchema(t), content: map[string][]byte{}}
	specs := []manifest.FileSpec{{Key: "missing.csv.gz"}}
	if _, err := Sort(context.Background(), peeker, specs, 1); err == nil {
		t.Errorf("Sort with an unfetchable shard should fail")
	}
}
