package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/enrich-cli/internal/model"
)

var (
	batchInput  string
	batchOutput string
	batchLimit  int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Enrich every reference in a CSV file",
	Long: `Reads references from a CSV file with a header row naming any of the
columns domain, name, region, email, phone and profile_url. Each finished
run is written as one JSON line to --output (stdout by default).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		in, err := os.Open(batchInput)
		if err != nil {
			return eris.Wrapf(err, "batch: open %s", batchInput)
		}
		defer in.Close() //nolint:errcheck

		refs, err := readReferences(in)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if batchOutput != "" {
			f, err := os.Create(batchOutput)
			if err != nil {
				return eris.Wrapf(err, "batch: create %s", batchOutput)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		env, err := initEnv(ctx, "batch", prometheus.NewRegistry())
		if err != nil {
			return err
		}
		defer env.Close()

		_, err = processBatch(ctx, refs, batchLimit, cfg.Batch.MaxConcurrent, out, env.enrich)
		return err
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "input", "", "CSV file of references (required)")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "JSONL output file (default stdout)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of references to process (0 = all)")
	_ = batchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(batchCmd)
}

// referenceColumns maps CSV header names onto reference fields.
var referenceColumns = map[string]func(*model.EntityReference, string){
	"domain":      func(r *model.EntityReference, v string) { r.Domain = v },
	"name":        func(r *model.EntityReference, v string) { r.Name = v },
	"region":      func(r *model.EntityReference, v string) { r.Region = v },
	"email":       func(r *model.EntityReference, v string) { r.Email = v },
	"phone":       func(r *model.EntityReference, v string) { r.Phone = v },
	"profile_url": func(r *model.EntityReference, v string) { r.ProfileURL = v },
}

// readReferences parses a headed CSV into references. Unknown columns are
// ignored and rows with no identifying field are skipped.
func readReferences(r io.Reader) ([]model.EntityReference, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "batch: read csv header")
	}

	setters := make([]func(*model.EntityReference, string), len(header))
	known := 0
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
		if set, ok := referenceColumns[key]; ok {
			setters[i] = set
			known++
		}
	}
	if known == 0 {
		return nil, eris.Errorf("batch: csv header %q has no reference columns", strings.Join(header, ","))
	}

	var refs []model.EntityReference
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "batch: read csv line %d", line)
		}

		var ref model.EntityReference
		for i, v := range row {
			if i < len(setters) && setters[i] != nil {
				setters[i](&ref, v)
			}
		}
		ref = ref.Trimmed()
		if ref.Validate() != nil {
			zap.L().Warn("batch: skipping row with no identifying fields", zap.Int("line", line))
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// enrichFunc resolves and records one reference.
type enrichFunc func(ctx context.Context, ref model.EntityReference) *model.Run

// batchSummary counts runs by final status.
type batchSummary struct {
	Done     int64
	Degraded int64
}

// processBatch applies limit, then enriches refs concurrently and writes
// each run as a JSON line to out.
func processBatch(ctx context.Context, refs []model.EntityReference, limit, concurrency int, out io.Writer, enrich enrichFunc) (batchSummary, error) {
	if len(refs) == 0 {
		zap.L().Info("no references to process")
		return batchSummary{}, nil
	}

	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("references", len(refs)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var (
		done, degraded atomic.Int64
		mu             sync.Mutex
		enc            = json.NewEncoder(out)
	)

	for _, ref := range refs {
		g.Go(func() error {
			run := enrich(gctx, ref)
			if run.Status == model.RunStatusDone {
				done.Add(1)
			} else {
				degraded.Add(1)
			}

			mu.Lock()
			defer mu.Unlock()
			if err := enc.Encode(run); err != nil {
				return eris.Wrapf(err, "batch: write result for %s", ref.Label())
			}
			return nil
		})
	}

	sum := batchSummary{}
	if err := g.Wait(); err != nil {
		return sum, eris.Wrap(err, "batch processing")
	}
	sum.Done = done.Load()
	sum.Degraded = degraded.Load()

	zap.L().Info("batch complete",
		zap.Int64("done", sum.Done),
		zap.Int64("degraded", sum.Degraded),
	)
	return sum, nil
}
