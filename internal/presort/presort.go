// Package presort orders inventory shard files by their first key so that
// the tree tracker (internal/treetracker) can consume a single globally
// sorted stream produced by concatenating the shards in that order.
//
// Individual shards are already sorted internally, but the manifest lists
// them in no particular order; peeking one row from each shard is enough
// to establish the global order without downloading any shard in full.
package presort

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/s3invsync/s3invsync/internal/errors"
	"github.com/s3invsync/s3invsync/internal/inventory"
	"github.com/s3invsync/s3invsync/internal/manifest"
)

// Peeker reads just enough of a shard to decode its first record. Real
// callers satisfy this with an *s3client.InventorySession's PeekInventoryCSV, which
// performs a ranged GET of the shard's leading bytes.
type Peeker interface {
	PeekInventoryCSV(ctx context.Context, spec manifest.FileSpec) (*inventory.Row, *inventory.Directory, error)
}

// Sort fetches the first row of every shard in specs and returns specs
// reordered ascending by that row's key, using up to concurrency
// simultaneous fetches. A shard with no rows (an empty shard, possible
// when a bucket prefix has no matching objects) contributes nothing to
// the sorted stream and is dropped from the result.
func Sort(ctx context.Context, peeker Peeker, specs []manifest.FileSpec, concurrency int) ([]manifest.FileSpec, error) {
	type keyed struct {
		spec manifest.FileSpec
		key  string
	}

	results := make([]keyed, len(specs))
	found := make([]bool, len(specs))

	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			row, dir, err := peeker.PeekInventoryCSV(gctx, spec)
			if err != nil {
				return errors.Wrapf(err, "failed to peek first row of %s", spec.Key)
			}
			switch {
			case row != nil:
				results[i] = keyed{spec: spec, key: row.Key.String()}
				found[i] = true
			case dir != nil:
				results[i] = keyed{spec: spec, key: dir.Key}
				found[i] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := results[:0]
	for i, ok := range found {
		if ok {
			kept = append(kept, results[i])
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].key < kept[j].key })

	sorted := make([]manifest.FileSpec, len(kept))
	for i, k := range kept {
		sorted[i] = k.spec
	}
	return sorted, nil
}
