package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/hoversim/internal/analysis"
	"github.com/san-kum/hoversim/internal/config"
	"github.com/san-kum/hoversim/internal/dynamo"
	"github.com/san-kum/hoversim/internal/optim"
	"github.com/san-kum/hoversim/internal/sim"
	"github.com/san-kum/hoversim/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printMetrics(m map[string]float64) {
	for _, k := range sortedKeys(m) {
		fmt.Printf("  %-16s %.4f\n", k, m[k])
	}
}

func heights(samples []dynamo.Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Position.Y()
	}
	return out
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if runs > 1 {
		return runEnsemble(ctx, cfg, logger)
	}

	r, err := cfg.NewBatchRunner(cfg.Run.Seed)
	if err != nil {
		return err
	}
	r.SetLogger(logger)

	result, err := r.Run(ctx)
	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	if len(result.Samples) == 0 {
		return fmt.Errorf("simulation produced no samples")
	}
	last := result.Samples[len(result.Samples)-1]
	fmt.Printf("steps: %d  time: %.2fs  final height: %.3f  setpoint: %.1f\n",
		result.StepsTaken, last.Time, last.Position.Y(), last.Setpoint)
	if result.Terminated {
		fmt.Println("particle left the box")
	}
	fmt.Println("metrics:")
	printMetrics(result.Metrics)

	fmt.Println()
	fmt.Println(asciigraph.Plot(heights(result.Samples),
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("height"),
	))

	if pngOut != "" {
		p, err := storage.PlotRun(result.Samples, "hover")
		if err != nil {
			return err
		}
		if err := storage.SavePNG(p, 8, 4, pngOut); err != nil {
			return err
		}
		fmt.Printf("plot written to %s\n", pngOut)
	}

	if noSave {
		return nil
	}

	store := storage.New(dataDir)
	if err := store.Init(); err != nil {
		return err
	}
	meta := storage.RunMetadata{
		Preset:     preset,
		Seed:       cfg.Run.Seed,
		Controller: cfg.Run.Controller,
		Dt:         cfg.Run.Dt,
		Duration:   cfg.Run.Duration,
		Setpoint:   cfg.Run.Setpoint,
	}
	if cfg.Run.Controller == "pid" {
		meta.Params = cfg.PIDParams()
	}
	id, err := store.Save(meta, result)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	fmt.Printf("saved: %s\n", id)
	return nil
}

func runEnsemble(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ens := sim.NewEnsemble(func(s int64) (*sim.Runner, error) {
		r, err := cfg.NewBatchRunner(s)
		if err != nil {
			return nil, err
		}
		r.SetLogger(logger.With(zap.Int64("seed", s)))
		return r, nil
	}, runs, cfg.Run.Seed)
	ens.SetWorkers(workers)

	results, err := ens.Run(ctx)
	if err != nil {
		return fmt.Errorf("ensemble failed: %w", err)
	}

	terminated := 0
	for _, res := range results {
		if res.Terminated {
			terminated++
		}
	}
	fmt.Printf("runs: %d  seeds: %d..%d  left the box: %d\n",
		len(results), cfg.Run.Seed, cfg.Run.Seed+int64(runs)-1, terminated)
	fmt.Println("mean metrics:")
	printMetrics(sim.MeanMetrics(results))
	return nil
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(axes) == 0 {
		axes = []string{"kp=20:80:4", "kd=10:40:4"}
	}

	var names []string
	var ranges [][]float64
	for _, a := range axes {
		name, values, err := optim.ParseAxis(a)
		if err != nil {
			return err
		}
		if err := cfg.Clone().Set(name, 0); err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}

	logger := newLogger()
	defer logger.Sync()

	gs := optim.NewGridSearch(names, ranges)
	gs.SetWorkers(workers)
	gs.SetLogger(logger)
	fmt.Printf("evaluating %d points on %s\n", gs.Size(), metricName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	best, points, err := gs.Search(ctx, func(params map[string]float64) (*sim.Runner, error) {
		c := cfg.Clone()
		for k, v := range params {
			if err := c.Set(k, v); err != nil {
				return nil, err
			}
		}
		return c.NewBatchRunner(c.Run.Seed)
	}, metricName)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(names, "\t"))+"\tSCORE\tSTATUS")
	for i, p := range points {
		if i >= top {
			break
		}
		for _, n := range names {
			fmt.Fprintf(w, "%.3g\t", p.Params[n])
		}
		status := "ok"
		if p.Terminated {
			status = "left box"
		}
		fmt.Fprintf(w, "%.4f\t%s\n", p.Score, status)
	}
	w.Flush()

	if math.IsInf(best.Score, 1) {
		return fmt.Errorf("every point left the box")
	}
	fmt.Printf("best: %v  %s=%.4f\n", best.Params, metricName, best.Score)

	if saveBest != "" {
		c := cfg.Clone()
		for k, v := range best.Params {
			if err := c.Set(k, v); err != nil {
				return err
			}
		}
		if err := config.Save(saveBest, c); err != nil {
			return err
		}
		fmt.Printf("config written to %s\n", saveBest)
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	records, err := store.List()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRESET\tTIME\tCTRL\tSETPOINT\tSTEPS\tSTATUS\tIAE")
	for _, run := range records {
		status := "ok"
		if run.Terminated {
			status = "left box"
		}
		name := run.Preset
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f\t%d\t%s\t%.3f\n",
			run.ID, name, run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Controller, run.Setpoint, run.Steps, status, run.Metrics["tracking_error"])
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	meta, result, err := store.LoadResult(args[0])
	if err != nil {
		return err
	}
	if len(result.Samples) == 0 {
		return fmt.Errorf("run %s has no samples", args[0])
	}

	if pngOut != "" {
		p, err := storage.PlotRun(result.Samples, meta.ID)
		if err != nil {
			return err
		}
		if err := storage.SavePNG(p, 8, 4, pngOut); err != nil {
			return err
		}
		fmt.Printf("plot written to %s\n", pngOut)
		return nil
	}

	if svgOut != "" {
		svg := storage.TrajectorySVG(result.Samples, storage.TimeAxis, storage.Height, 800, 400, "#5fd7ff")
		if err := os.WriteFile(svgOut, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Printf("trace written to %s\n", svgOut)
		return nil
	}

	fmt.Printf("run: %s  controller: %s  steps: %d\n\n", meta.ID, meta.Controller, meta.Steps)

	setpoints := result.Series(func(s dynamo.Sample) float64 { return s.Setpoint })
	fmt.Println(asciigraph.PlotMany([][]float64{heights(result.Samples), setpoints},
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red),
		asciigraph.Caption("height (blue) and setpoint (red)"),
	))
	fmt.Println()

	thrust := result.Series(func(s dynamo.Sample) float64 { return s.Action.Y() })
	fmt.Println(asciigraph.Plot(thrust,
		asciigraph.Height(8),
		asciigraph.Width(80),
		asciigraph.Caption("thrust [N]"),
	))
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	meta, result, err := store.LoadResult(args[0])
	if err != nil {
		return err
	}
	if len(result.Samples) < 4 {
		return fmt.Errorf("run %s is too short to analyze", args[0])
	}

	stats := analysis.StepResponse(result.Samples)
	fmt.Printf("step response (height %.1f -> %.1f)\n", stats.Start, stats.Setpoint)
	fmt.Printf("  rise time:     %s\n", formatTime(stats.RiseTime))
	fmt.Printf("  settling time: %s\n", formatTime(stats.SettlingTime))
	fmt.Printf("  overshoot:     %.1f%%\n", stats.Overshoot*100)
	fmt.Printf("  steady state:  %.3f\n", stats.SteadyStateError)
	fmt.Println()

	errs := analysis.ErrorSeries(result)
	dtMean := analysis.MeanDt(result)
	freq, mag := analysis.DominantFrequency(errs, dtMean)
	fmt.Printf("dominant error frequency: %.3f Hz (magnitude %.2f)\n\n", freq, mag)

	// skip the DC bin
	spectrum := analysis.PowerSpectrum(errs)[1:]
	if len(spectrum) > 200 {
		spectrum = spectrum[:200]
	}
	if len(spectrum) > 0 {
		fmt.Println(asciigraph.Plot(spectrum,
			asciigraph.Height(12),
			asciigraph.Width(80),
			asciigraph.Caption("tracking error power spectrum"),
		))
	}

	if showPhase {
		fmt.Println()
		portrait := analysis.PhasePortrait(result.Samples)
		fmt.Println(analysis.PhasePortraitToASCII(portrait, meta.Setpoint, 70, 22))
		fmt.Println("height vs vertical velocity")
	}
	return nil
}

func formatTime(t float64) string {
	if t < 0 {
		return "never"
	}
	return fmt.Sprintf("%.2fs", t)
}

func output() (io.Writer, func() error, error) {
	if outFile == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(outFile)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	samples, err := store.LoadSamples(args[0])
	if err != nil {
		return err
	}
	w, closeFn, err := output()
	if err != nil {
		return err
	}
	if err := storage.WriteCSV(w, samples); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func exportJSON(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	meta, result, err := store.LoadResult(args[0])
	if err != nil {
		return err
	}
	w, closeFn, err := output()
	if err != nil {
		return err
	}
	if err := storage.ExportJSON(w, *meta, result.Samples); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func listPresets(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		cfg, err := config.GetPreset(args[0])
		if err != nil {
			return err
		}
		return config.Encode(os.Stdout, cfg)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCONTROLLER\tSETPOINT\tDESCRIPTION")
	for _, name := range config.ListPresets() {
		cfg, _ := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%s\n", name, cfg.Run.Controller, cfg.Run.Setpoint, config.PresetInfo[name])
	}
	return w.Flush()
}
