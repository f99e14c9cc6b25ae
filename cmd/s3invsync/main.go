// Command s3invsync backs up every object version of a versioned S3 bucket
// by reconciling its S3 Inventory reports against a local directory mirror.
package main

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/s3invsync/s3invsync/internal/errors"
	"github.com/s3invsync/s3invsync/internal/filterlog"
	"github.com/s3invsync/s3invsync/internal/gc"
	"github.com/s3invsync/s3invsync/internal/inventory"
	"github.com/s3invsync/s3invsync/internal/pathlock"
	"github.com/s3invsync/s3invsync/internal/pipeline"
	"github.com/s3invsync/s3invsync/internal/presort"
	"github.com/s3invsync/s3invsync/internal/reconciler"
	"github.com/s3invsync/s3invsync/internal/s3client"
	"github.com/s3invsync/s3invsync/internal/statefile"
	"github.com/s3invsync/s3invsync/internal/timestamps"
	"github.com/s3invsync/s3invsync/internal/ui"
)

func init() {
	// don't import go.uber.org/automaxprocs directly to disable its log output
	_, _ = maxprocs.Set()
}

type options struct {
	jobs       int
	date       string
	listDates  bool
	pathFilter string
	filterMsgs int
	verbose    int
	quiet      bool

	endpoint        string
	region          string
	useHTTP         bool
	bucketLookup    string
	maxRetries      uint
	limitDownloadKb int
}

var opts options

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "s3invsync <inventory-base-url> [outdir]",
		Short:         "Back up every object version of a versioned S3 bucket via S3 Inventory",
		Args:          cobra.RangeArgs(1, 2),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.quiet && opts.verbose > 0 {
				return errors.Fatal("--quiet and --verbose cannot be specified at the same time")
			}
			return run(cmd.Context(), args, opts)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&opts.jobs, "jobs", "J", 0, "maximum number of concurrent download jobs (default: min(CPUs, 20))")
	flags.StringVarP(&opts.date, "date", "d", "", "inventory snapshot to use, as YYYY-MM-DD or YYYY-MM-DDTHH-MMZ (default: the most recent)")
	flags.BoolVar(&opts.listDates, "list-dates", false, "list available inventory snapshot dates instead of backing anything up")
	flags.StringVar(&opts.pathFilter, "path-filter", "", "only download objects whose keys match this regular expression")
	flags.IntVar(&opts.filterMsgs, "compress-filter-msgs", 0, "emit one log message per N objects skipped by --path-filter, instead of one per object")
	flags.CountVarP(&opts.verbose, "verbose", "v", "increase logging verbosity")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress all non-warning, non-error output")
	flags.StringVar(&opts.endpoint, "endpoint", "s3.amazonaws.com", "S3 endpoint to connect to")
	flags.StringVar(&opts.region, "region", "", "S3 region (default: auto-detected from the bucket)")
	flags.BoolVar(&opts.useHTTP, "use-http", false, "connect to the endpoint over plain HTTP instead of HTTPS")
	flags.StringVar(&opts.bucketLookup, "bucket-lookup", "auto", "bucket addressing style: auto, dns, or path")
	flags.UintVar(&opts.maxRetries, "retries", 0, "maximum number of request retries (default: minio's own per-request retries, plus 5 retries with backoff)")
	flags.IntVar(&opts.limitDownloadKb, "limit-download", 0, "limit download speed to N KiB/s (default: unlimited)")

	return cmd
}

func printerLevel(o options) ui.Level {
	switch {
	case o.quiet:
		return ui.Quiet
	case o.verbose > 0:
		return ui.Verbose
	default:
		return ui.Normal
	}
}

func run(ctx context.Context, args []string, o options) error {
	printer := ui.New(os.Stdout, os.Stderr, printerLevel(o))

	loc, err := s3client.ParseLocation(args[0])
	if err != nil {
		return errors.Wrapf(err, "invalid inventory base URL %q", args[0])
	}

	outdir := "."
	if len(args) > 1 {
		outdir = args[1]
	}
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create output directory %s", outdir)
	}

	region := o.region
	if region == "" {
		probe, err := s3client.New(s3client.Config{
			Endpoint:     o.endpoint,
			UseHTTP:      o.useHTTP,
			BucketLookup: o.bucketLookup,
			MaxRetries:   o.maxRetries,
		})
		if err != nil {
			return err
		}
		region, err = probe.GetRegion(ctx, loc.Bucket)
		if err != nil {
			return errors.Wrapf(err, "failed to determine region for bucket %s", loc.Bucket)
		}
	}
	printer.Verbosef("using region %s for bucket %s", region, loc.Bucket)

	client, err := s3client.New(s3client.Config{
		Endpoint:        o.endpoint,
		Region:          region,
		UseHTTP:         o.useHTTP,
		BucketLookup:    o.bucketLookup,
		MaxRetries:      o.maxRetries,
		DownloadLimitKb: o.limitDownloadKb,
	})
	if err != nil {
		return err
	}

	if o.listDates {
		dates, err := client.ListManifestTimestamps(ctx, args[0])
		if err != nil {
			return err
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Compare(dates[j]) < 0 })
		for _, d := range dates {
			fmt.Println(d.String())
		}
		return nil
	}

	ts, err := resolveDate(ctx, client, args[0], o.date)
	if err != nil {
		return err
	}
	printer.Printf("using inventory snapshot %s", ts.String())

	printer.Printf("fetching manifest ...")
	man, err := client.GetManifest(ctx, args[0], ts)
	if err != nil {
		return err
	}

	schema, err := inventory.NewSchema(man.Columns())
	if err != nil {
		return errors.Wrap(err, "inventory manifest's column list could not be understood")
	}

	jobs := o.jobs
	if jobs <= 0 {
		jobs = pipeline.DefaultJobs()
	}

	session := client.NewInventorySession(loc.Bucket, schema)
	printer.Printf("sorting %d inventory shards ...", len(man.Files))
	sorted, err := presort.Sort(ctx, session, man.Files, jobs)
	if err != nil {
		return err
	}
	printer.Verbosef("%d of %d shards carry at least one row", len(sorted), len(man.Files))

	var pathFilter *regexp.Regexp
	if o.pathFilter != "" {
		pathFilter, err = regexp.Compile(o.pathFilter)
		if err != nil {
			return errors.Wrapf(err, "invalid --path-filter regular expression %q", o.pathFilter)
		}
	}

	state := statefile.New(outdir)
	if err := state.Start(time.Now(), false); err != nil {
		return errors.Wrap(err, "failed to record backup start in state file")
	}

	filterLog := filterlog.New(printer, o.filterMsgs)
	recon := &reconciler.Reconciler{
		Outdir:     outdir,
		Client:     client,
		Locks:      pathlock.New(),
		FilterLog:  filterLog,
		PathFilter: pathFilter,
		Printer:    printer,
	}

	pl := &pipeline.Pipeline{
		Shards:     sorted,
		Source:     pipeline.S3Source{Session: session},
		Reconciler: recon,
		GC:         gc.New(outdir, printer),
		Jobs:       jobs,
	}

	printer.Printf("starting backup ...")
	runErr := pl.Run(ctx)
	filterLog.Finish()

	if interruptErr := interruptError(ctx); interruptErr != nil {
		runErr = combineErrors(runErr, interruptErr)
	}

	if runErr != nil {
		return runErr
	}

	if err := state.End(time.Now()); err != nil {
		return errors.Wrap(err, "failed to record backup completion in state file")
	}
	printer.Printf("backup complete")
	return nil
}

// resolveDate determines which manifest snapshot to use: the one named by
// dateFlag, parsed as a timestamps.Selector, or (if dateFlag is empty) the
// most recent snapshot available.
func resolveDate(ctx context.Context, lister timestamps.Lister, base, dateFlag string) (timestamps.DateHM, error) {
	if dateFlag != "" {
		sel, err := timestamps.ParseDateSelector(dateFlag)
		if err != nil {
			return timestamps.DateHM{}, err
		}
		return sel.Resolve(ctx, lister, base)
	}

	candidates, err := lister.ListManifestTimestamps(ctx, base)
	if err != nil {
		return timestamps.DateHM{}, errors.Wrap(err, "failed to list inventory manifest timestamps")
	}
	if len(candidates) == 0 {
		return timestamps.DateHM{}, errors.Errorf("no inventory snapshots found under %s", base)
	}
	latest := candidates[0]
	for _, c := range candidates[1:] {
		if c.Compare(latest) > 0 {
			latest = c
		}
	}
	return latest, nil
}

// interruptErrMessage is the pseudo-error the spec calls for recording in
// the aggregate when an OS interrupt cancelled the run.
const interruptErrMessage = "backup run terminated by interrupt"

func interruptError(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return errors.New(interruptErrMessage)
}

// combineErrors folds extra into base's *errors.MultiError (creating one if
// base isn't already one), so an interrupt pseudo-error always shows up
// alongside whatever the pipeline had already accumulated.
func combineErrors(base, extra error) error {
	var merr errors.MultiError
	if me, ok := base.(*errors.MultiError); ok {
		merr.Errs = append(merr.Errs, me.Errs...)
	} else if base != nil {
		merr.Add(base)
	}
	merr.Add(extra)
	return merr.ErrorOrNil()
}

func main() {
	ctx := createGlobalContext(os.Stderr)

	cmd := newRootCmd()
	err := cmd.ExecuteContext(ctx)

	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
