package tppd

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Dispatcher fans per-protein tasks out over a bounded worker pool. The
// input dataset is shared read-only across workers; every worker writes
// only its own result slot, so no locking is needed. Completion order
// is irrelevant: results are identified by protein and dataset tag
type Dispatcher struct {
	// Workers is the pool size. Zero or negative means NumCPU - 1
	Workers int
}

func (d *Dispatcher) limit() int {
	if d.Workers > 0 {
		return d.Workers
	}
	workers := runtime.NumCPU() - 1
	if workers < 1 {
		workers = 1
	}
	return workers
}

// FitAll fits every profile in parallel and blocks until all fits
// complete, then deduplicates nObs ties
func (d *Dispatcher) FitAll(f *Fitter, profiles []Profile) []ModelParams {
	out := make([]ModelParams, len(profiles))

	var g errgroup.Group
	g.SetLimit(d.limit())
	for i, p := range profiles {
		i, p := i, p
		g.Go(func() error {
			out[i] = f.FitProfile(p)
			return nil
		})
	}
	g.Wait()

	return DedupeParams(out)
}

// Collect runs one task per profile in parallel, blocks until every
// task completes, and concatenates the resulting F-statistic rows
func (d *Dispatcher) Collect(profiles []Profile, task func(Profile) []FStat) []FStat {
	results := make([][]FStat, len(profiles))

	var g errgroup.Group
	g.SetLimit(d.limit())
	for i, p := range profiles {
		i, p := i, p
		g.Go(func() error {
			results[i] = task(p)
			return nil
		})
	}
	g.Wait()

	var all []FStat
	for _, rows := range results {
		all = append(all, rows...)
	}
	return all
}
