// Package pipeline implements C8: the bounded-concurrency orchestration
// that drives a sorted list of inventory shards through the tree tracker
// and a pool of reconciler workers, spawning a directory-GC task for every
// directory the tracker closes, and cancelling cleanly on the first fatal
// error.
package pipeline

import (
	"context"
	"io"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/s3invsync/s3invsync/internal/errors"
	"github.com/s3invsync/s3invsync/internal/inventory"
	"github.com/s3invsync/s3invsync/internal/manifest"
	"github.com/s3invsync/s3invsync/internal/notify"
	"github.com/s3invsync/s3invsync/internal/treetracker"
)

// ChannelSize bounds the row channel, following the spec's fixed capacity.
const ChannelSize = 65535

// DefaultJobsCap is the ceiling DefaultJobs applies to the host's CPU count.
const DefaultJobsCap = 20

// DefaultJobs returns min(runtime.NumCPU(), DefaultJobsCap), never less
// than 1.
func DefaultJobs() int {
	n := runtime.NumCPU()
	if n > DefaultJobsCap {
		n = DefaultJobsCap
	}
	if n < 1 {
		n = 1
	}
	return n
}

// RowIterator yields successive rows from one decoded inventory shard.
type RowIterator interface {
	Next() (*inventory.Row, *inventory.Directory, error)
	Close() error
}

// ShardSource opens a full, integrity-verified decode of one inventory
// shard, already ordered by the caller (see internal/presort).
type ShardSource interface {
	DownloadInventoryCSV(ctx context.Context, spec manifest.FileSpec) (RowIterator, error)
}

// RowReconciler applies one inventory row to the local mirror.
type RowReconciler interface {
	Process(ctx context.Context, row *inventory.Row) error
}

// GCRunner prunes local entries against one closed directory event.
type GCRunner interface {
	Run(ctx context.Context, dir treetracker.Directory[*notify.Notifier]) error
}

// Pipeline wires a sorted shard list, a shard source, a reconciler, and a
// GC runner together under a fixed worker pool.
type Pipeline struct {
	Shards     []manifest.FileSpec
	Source     ShardSource
	Reconciler RowReconciler
	GC         GCRunner

	// Jobs is the reconciler worker count. Zero means DefaultJobs().
	Jobs int
}

type rowJob struct {
	row      *inventory.Row
	notifier *notify.Notifier
}

// Run drives the whole pipeline to completion or cancellation. It returns
// nil if every row and every GC task succeeded, or an *errors.MultiError
// collecting everything that went wrong otherwise. ctx cancellation (an OS
// interrupt bridged in by the caller, for instance) stops the pipeline as
// soon as in-flight work observes it.
func (p *Pipeline) Run(ctx context.Context) error {
	jobs := p.Jobs
	if jobs <= 0 {
		jobs = DefaultJobs()
	}

	g, gctx := errgroup.WithContext(ctx)
	rows := make(chan rowJob, ChannelSize)

	var mu sync.Mutex
	var merr errors.MultiError
	record := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		merr.Add(err)
		mu.Unlock()
	}

	for i := 0; i < jobs; i++ {
		g.Go(func() error {
			for job := range rows {
				err := p.Reconciler.Process(gctx, job.row)
				job.notifier.Fire()
				if err != nil {
					record(err)
					return err
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(rows)
		return p.feed(gctx, g, rows, record)
	})

	if err := g.Wait(); err != nil && merr.Empty() {
		merr.Add(err)
	}
	return merr.ErrorOrNil()
}

// feed reads every shard in order, threading each non-directory row through
// the tree tracker and onto rows, and spawns a GC task for every directory
// the tracker closes along the way (and, at the end, every directory
// Finish closes).
func (p *Pipeline) feed(ctx context.Context, g *errgroup.Group, rows chan<- rowJob, record func(error)) error {
	tracker := treetracker.New[*notify.Notifier]()

	for _, spec := range p.Shards {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.feedShard(ctx, tracker, spec, g, rows, record); err != nil {
			return err
		}
	}

	for _, dir := range tracker.Finish() {
		p.spawnGC(ctx, g, record, dir)
	}
	return nil
}

func (p *Pipeline) feedShard(ctx context.Context, tracker *treetracker.Tracker[*notify.Notifier], spec manifest.FileSpec, g *errgroup.Group, rows chan<- rowJob, record func(error)) error {
	it, err := p.Source.DownloadInventoryCSV(ctx, spec)
	if err != nil {
		err = errors.Wrapf(err, "failed to open inventory shard %s", spec.Key)
		record(err)
		return err
	}
	defer it.Close()

	for {
		row, dir, err := it.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			err = errors.Wrapf(err, "failed to decode inventory shard %s", spec.Key)
			record(err)
			return err
		}
		if dir != nil {
			// Directory marker objects carry no content of their own and
			// are not part of the tracked tree.
			continue
		}

		notifier := notify.New()
		closed, err := tracker.Add(row.Key, notifier)
		if err != nil {
			err = errors.Wrapf(err, "failed to track key %q", row.Key)
			record(err)
			return err
		}
		for _, d := range closed {
			p.spawnGC(ctx, g, record, d)
		}

		select {
		case rows <- rowJob{row: row, notifier: notifier}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Pipeline) spawnGC(ctx context.Context, g *errgroup.Group, record func(error), dir treetracker.Directory[*notify.Notifier]) {
	g.Go(func() error {
		if err := p.GC.Run(ctx, dir); err != nil {
			record(err)
			return err
		}
		return nil
	})
}
