package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"

	"github.com/san-kum/hoversim/internal/dynamo"
	"github.com/san-kum/hoversim/internal/sim"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Point is one evaluated parameter combination.
type Point struct {
	Params     map[string]float64
	Score      float64
	Terminated bool
}

// Builder returns a fresh runner with the given parameters applied.
type Builder func(params map[string]float64) (*sim.Runner, error)

// GridSearch evaluates every combination of the parameter ranges and keeps
// the one with the lowest metric. Runs that leave the box score +Inf.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	workers    int
	log        *zap.Logger
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{
		paramNames: params,
		ranges:     ranges,
		workers:    runtime.GOMAXPROCS(0),
		log:        zap.NewNop(),
	}
}

func (g *GridSearch) SetWorkers(n int) {
	if n > 0 {
		g.workers = n
	}
}

func (g *GridSearch) SetLogger(l *zap.Logger) {
	if l != nil {
		g.log = l
	}
}

// Size is the number of combinations.
func (g *GridSearch) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search runs every combination and returns the best point together with
// all points sorted by score.
func (g *GridSearch) Search(ctx context.Context, build Builder, metricName string) (Point, []Point, error) {
	if len(g.paramNames) != len(g.ranges) {
		return Point{}, nil, fmt.Errorf("%d parameter names for %d ranges", len(g.paramNames), len(g.ranges))
	}

	var combos []map[string]float64
	g.enumerate(0, make(map[string]float64), &combos)
	if len(combos) == 0 {
		return Point{}, nil, errors.New("empty search grid")
	}

	points := make([]Point, len(combos))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, params := range combos {
		i, params := i, params
		eg.Go(func() error {
			p, err := g.evaluate(ctx, build, params, metricName)
			if err != nil {
				return err
			}
			points[i] = p
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Point{}, nil, err
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].Score < points[j].Score })
	g.log.Info("grid search done",
		zap.Int("points", len(points)),
		zap.Any("best", points[0].Params),
		zap.Float64("score", points[0].Score))
	return points[0], points, nil
}

func (g *GridSearch) evaluate(ctx context.Context, build Builder, params map[string]float64, metricName string) (Point, error) {
	r, err := build(params)
	if err != nil {
		return Point{}, fmt.Errorf("build %v: %w", params, err)
	}

	result, err := r.Run(ctx)
	if err != nil {
		if errors.Is(err, dynamo.ErrContextCanceled) {
			return Point{}, err
		}
		g.log.Warn("run failed", zap.Any("params", params), zap.Error(err))
		return Point{Params: params, Score: math.Inf(1), Terminated: true}, nil
	}

	val, ok := result.Metrics[metricName]
	if !ok {
		return Point{}, fmt.Errorf("metric %q not recorded", metricName)
	}
	p := Point{Params: params, Score: val, Terminated: result.Terminated}
	if result.Terminated || math.IsNaN(val) {
		p.Score = math.Inf(1)
	}
	g.log.Debug("evaluated", zap.Any("params", params), zap.Float64("score", p.Score))
	return p, nil
}

func (g *GridSearch) enumerate(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		*out = append(*out, current)
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		g.enumerate(depth+1, newParams, out)
	}
}
