package sim

import (
	"context"
	"runtime"

	"github.com/san-kum/hoversim/internal/dynamo"
	"golang.org/x/sync/errgroup"
)

// Factory builds an independent runner, with its own clock and noise
// source, for one seed.
type Factory func(seed int64) (*Runner, error)

// Ensemble repeats an episode over consecutive noise seeds in parallel.
type Ensemble struct {
	build     Factory
	numRuns   int
	seedStart int64
	workers   int
}

func NewEnsemble(build Factory, numRuns int, seedStart int64) *Ensemble {
	return &Ensemble{build: build, numRuns: numRuns, seedStart: seedStart, workers: runtime.GOMAXPROCS(0)}
}

func (e *Ensemble) SetWorkers(n int) {
	if n > 0 {
		e.workers = n
	}
}

func (e *Ensemble) Run(ctx context.Context) ([]*dynamo.Result, error) {
	results := make([]*dynamo.Result, e.numRuns)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := 0; i < e.numRuns; i++ {
		idx := i
		g.Go(func() error {
			r, err := e.build(e.seedStart + int64(idx))
			if err != nil {
				return err
			}
			res, err := r.Run(ctx)
			if err != nil {
				return err
			}
			results[idx] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// MeanMetrics averages every metric over the runs that reported it.
func MeanMetrics(results []*dynamo.Result) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range results {
		if r == nil {
			continue
		}
		for k, v := range r.Metrics {
			sums[k] += v
			counts[k]++
		}
	}
	for k := range sums {
		sums[k] /= float64(counts[k])
	}
	return sums
}
